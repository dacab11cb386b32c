// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time, keeping prompt wording reviewable without touching Go code.
package assets

import (
	_ "embed"
)

// AltTextSystemPrompt instructs the model how to phrase accessibility
// descriptions (length bound, neutral register, no preamble).
//
//go:embed prompts/alt-text-system.txt
var AltTextSystemPrompt string

// AltTextUserPrompt is the fixed descriptive-task prompt sent alongside each
// image.
//
//go:embed prompts/alt-text-user.txt
var AltTextUserPrompt string
