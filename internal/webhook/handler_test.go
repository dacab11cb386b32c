package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/fpang/alt-text-bot/internal/dedup"
	"github.com/fpang/alt-text-bot/internal/dispatch"
	"github.com/fpang/alt-text-bot/internal/signature"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type recordingDispatcher struct {
	jobs []dispatch.Job
}

func (d *recordingDispatcher) Dispatch(job dispatch.Job) {
	d.jobs = append(d.jobs, job)
}

func newTestHandler(isExcluded func(string) bool) (*Handler, *recordingDispatcher) {
	d := &recordingDispatcher{}
	h := New(signature.NewVerifier(testSecret), dedup.NewCache(8), d, isExcluded)
	return h, d
}

// signedRequest builds a POST with a valid signature over body.
func signedRequest(t *testing.T, body []byte) *http.Request {
	t.Helper()
	ts := time.Now().Unix()
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Slack-Signature", signature.Sign(testSecret, ts, body))
	return req
}

func fileShareBody(eventID string, files string) []byte {
	return fmt.Appendf(nil, `{
		"type": "event_callback",
		"event_id": %q,
		"event": {
			"type": "message",
			"subtype": "file_share",
			"channel": "C1",
			"user": "U1",
			"ts": "1700000000.000100",
			"files": [%s]
		}
	}`, eventID, files)
}

const missingAltFile = `{"id":"F1","name":"cat.png","mimetype":"image/png","url_private":"https://files.example/cat.png"}`

func TestHandler_AcceptsAndDispatches(t *testing.T) {
	h, d := newTestHandler(nil)

	req := signedRequest(t, fileShareBody("Ev1", missingAltFile))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp map[string]bool
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || !resp["ok"] {
		t.Fatalf("expected {\"ok\":true}, got %s", rr.Body.String())
	}

	if len(d.jobs) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(d.jobs))
	}
	job := d.jobs[0]
	if job.Channel != "C1" || job.User != "U1" {
		t.Errorf("unexpected job target: %+v", job)
	}
	if job.Fingerprint != "Ev1:C1:U1" {
		t.Errorf("fingerprint = %q", job.Fingerprint)
	}
	if len(job.Missing) != 1 || job.Missing[0].Name != "cat.png" {
		t.Errorf("missing files = %+v", job.Missing)
	}
}

func TestHandler_InvalidSignature(t *testing.T) {
	h, d := newTestHandler(nil)

	body := fileShareBody("Ev1", missingAltFile)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
	if len(d.jobs) != 0 {
		t.Error("unauthenticated request must not dispatch")
	}
}

func TestHandler_MalformedJSON(t *testing.T) {
	h, d := newTestHandler(nil)

	req := signedRequest(t, []byte(`{"type": "event_callback", "event":`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	if len(d.jobs) != 0 {
		t.Error("malformed payload must not dispatch")
	}
}

func TestHandler_URLVerificationChallenge(t *testing.T) {
	h, _ := newTestHandler(nil)

	req := signedRequest(t, []byte(`{"type":"url_verification","challenge":"abc123"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["challenge"] != "abc123" {
		t.Errorf("challenge = %q", resp["challenge"])
	}
}

func TestHandler_RetryShortCircuit(t *testing.T) {
	h, d := newTestHandler(nil)

	req := signedRequest(t, fileShareBody("Ev1", missingAltFile))
	req.Header.Set("X-Slack-Retry-Num", "1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Slack-No-Retry") != "1" {
		t.Error("expected X-Slack-No-Retry: 1")
	}
	if len(d.jobs) != 0 {
		t.Error("redelivery must not dispatch")
	}
}

func TestHandler_DuplicateEventDispatchedOnce(t *testing.T) {
	h, d := newTestHandler(nil)

	for range 2 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, signedRequest(t, fileShareBody("Ev1", missingAltFile)))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
	}

	if len(d.jobs) != 1 {
		t.Errorf("expected exactly 1 dispatch across duplicates, got %d", len(d.jobs))
	}
}

func TestHandler_AllFilesDescribedNoDispatch(t *testing.T) {
	h, d := newTestHandler(nil)

	described := `{"id":"F1","name":"cat.png","mimetype":"image/png","alt_txt":"a cat"}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, signedRequest(t, fileShareBody("Ev1", described)))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
	if len(d.jobs) != 0 {
		t.Error("described files must not trigger a reminder")
	}
}

func TestHandler_SkipsBotMessages(t *testing.T) {
	h, d := newTestHandler(nil)

	body := []byte(`{
		"type": "event_callback",
		"event_id": "Ev1",
		"event": {
			"type": "message",
			"subtype": "file_share",
			"channel": "C1",
			"user": "U1",
			"bot_id": "B1",
			"ts": "1700000000.000100",
			"files": [` + missingAltFile + `]
		}
	}`)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, signedRequest(t, body))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
	if len(d.jobs) != 0 {
		t.Error("bot messages must not dispatch")
	}
}

func TestHandler_SkipsExcludedUsers(t *testing.T) {
	h, d := newTestHandler(func(userID string) bool { return userID == "U1" })

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, signedRequest(t, fileShareBody("Ev1", missingAltFile)))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
	if len(d.jobs) != 0 {
		t.Error("excluded users must not dispatch")
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/slack/events", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}
