// Package main is a development tool that posts signed synthetic Events API
// payloads at a running bot endpoint. It signs the body the same way the
// platform does, so the full verification path is exercised.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fpang/alt-text-bot/internal/signature"
	"github.com/fpang/alt-text-bot/internal/slackevent"
)

var (
	urlFlag      string
	secretFlag   string
	channelFlag  string
	userFlag     string
	fileNameFlag string
	mimetypeFlag string
	imageURLFlag string
	altFlag      string
	withAltFlag  bool
	retryNumFlag int
	eventIDFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "send-event",
	Short: "Post a signed synthetic file_share event at a bot endpoint",
	Long: `send-event builds a file_share message event, signs it with the
given signing secret, and POSTs it to the endpoint.

Examples:
  send-event --url http://localhost:8080/slack/events --secret $SLACK_SIGNING_SECRET
  send-event --url http://localhost:8080/slack/events --secret $SECRET --with-alt --alt "a cat"
  send-event --url http://localhost:8080/slack/events --secret $SECRET --retry-num 1`,
	RunE: run,
}

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Send a url_verification handshake",
	RunE:  runChallenge,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&urlFlag, "url", "http://localhost:8080/slack/events", "Endpoint URL")
	rootCmd.PersistentFlags().StringVar(&secretFlag, "secret", "", "Signing secret (required)")
	rootCmd.Flags().StringVar(&channelFlag, "channel", "C0TESTCHAN", "Channel ID")
	rootCmd.Flags().StringVar(&userFlag, "user", "U0TESTUSER", "Posting user ID")
	rootCmd.Flags().StringVar(&fileNameFlag, "file-name", "photo.jpg", "Attachment file name")
	rootCmd.Flags().StringVar(&mimetypeFlag, "mimetype", "image/jpeg", "Attachment MIME type")
	rootCmd.Flags().StringVar(&imageURLFlag, "image-url", "https://files.example.test/photo.jpg", "Full-size private URL")
	rootCmd.Flags().BoolVar(&withAltFlag, "with-alt", false, "Include an alt_txt field on the file")
	rootCmd.Flags().StringVar(&altFlag, "alt", "", "alt_txt value when --with-alt is set")
	rootCmd.Flags().IntVar(&retryNumFlag, "retry-num", 0, "Set X-Slack-Retry-Num on the delivery")
	rootCmd.Flags().StringVar(&eventIDFlag, "event-id", "", "Event ID (random when empty)")
	rootCmd.AddCommand(challengeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if secretFlag == "" {
		return fmt.Errorf("--secret is required")
	}

	eventID := eventIDFlag
	if eventID == "" {
		eventID = "Ev" + uuid.NewString()[:8]
	}

	file := slackevent.File{
		ID:         "F" + uuid.NewString()[:8],
		Name:       fileNameFlag,
		Mimetype:   mimetypeFlag,
		URLPrivate: imageURLFlag,
	}
	if withAltFlag {
		file.AltTxt = &altFlag
	}

	env := slackevent.Envelope{
		Type:      slackevent.TypeEventCallback,
		EventID:   eventID,
		EventTime: time.Now().Unix(),
		Event: &slackevent.Event{
			Type:    "message",
			Subtype: slackevent.SubtypeFileShare,
			Channel: channelFlag,
			User:    userFlag,
			TS:      fmt.Sprintf("%d.000100", time.Now().Unix()),
			Files:   []slackevent.File{file},
		},
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	headers := map[string]string{}
	if retryNumFlag > 0 {
		headers["X-Slack-Retry-Num"] = strconv.Itoa(retryNumFlag)
		headers["X-Slack-Retry-Reason"] = "http_timeout"
	}

	fmt.Printf("Sending event %s to %s\n", eventID, urlFlag)
	return post(body, headers)
}

func runChallenge(cmd *cobra.Command, args []string) error {
	if secretFlag == "" {
		return fmt.Errorf("--secret is required")
	}

	body, err := json.Marshal(map[string]string{
		"type":      slackevent.TypeURLVerification,
		"challenge": uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	fmt.Printf("Sending url_verification to %s\n", urlFlag)
	return post(body, nil)
}

// post signs body and delivers it, printing the endpoint's response.
func post(body []byte, headers map[string]string) error {
	ts := time.Now().Unix()

	req, err := http.NewRequest(http.MethodPost, urlFlag, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Slack-Signature", signature.Sign(secretFlag, ts, body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver event: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s\n%s\n", resp.Status, respBody)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("endpoint returned %s", resp.Status)
	}
	return nil
}
