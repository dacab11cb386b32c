// Package notify renders and delivers the reminder message.
//
// The reminder is only ever sent as an ephemeral message: visible to the
// poster alone, never broadcast to the channel.
package notify

import (
	"fmt"
	"strings"
)

// howToInstructions is the fixed closing paragraph explaining how to add alt
// text in the client UI.
const howToInstructions = "To add alt text: hover over the image, open the ⋯ menu, choose *Edit file details*, and fill in the description field. Alt text lets people using screen readers know what your image shows."

// Compose renders the user-facing reminder.
//
// fileCount is the total number of files on the message; missing lists the
// image filenames lacking a description, in attachment order; suggestions
// maps filenames to generated descriptions (empty or absent means no
// suggestion — those files stay in the reminder list but are silently
// omitted from the suggestion block).
func Compose(fileCount int, missing []string, suggestions map[string]string) string {
	var sb strings.Builder

	if len(missing) == 1 {
		sb.WriteString(fmt.Sprintf("Hi! Your image *%s* is missing alt text.", missing[0]))
	} else {
		sb.WriteString(fmt.Sprintf("Hi! %d of the %d files you posted are missing alt text: *%s*.",
			len(missing), fileCount, strings.Join(missing, "*, *")))
	}

	var block []string
	for _, name := range missing {
		if text := suggestions[name]; text != "" {
			block = append(block, fmt.Sprintf("*%s*\n> %s", name, text))
		}
	}
	if len(block) > 0 {
		sb.WriteString("\n\nSuggested descriptions:\n")
		sb.WriteString(strings.Join(block, "\n"))
	}

	sb.WriteString("\n\n")
	sb.WriteString(howToInstructions)

	return sb.String()
}
