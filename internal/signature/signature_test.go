package signature

import (
	"strconv"
	"testing"
	"time"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestVerify_ValidSignature(t *testing.T) {
	now := int64(1712345678)
	body := []byte(`{"type":"event_callback"}`)
	sig := Sign(testSecret, now, body)

	v := NewVerifierWithClock(testSecret, fixedClock(now))
	if !v.Verify(body, strconv.FormatInt(now, 10), sig) {
		t.Error("expected valid signature to verify")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	now := int64(1712345678)
	body := []byte(`{"type":"event_callback"}`)
	sig := Sign("some_other_secret", now, body)

	v := NewVerifierWithClock(testSecret, fixedClock(now))
	if v.Verify(body, strconv.FormatInt(now, 10), sig) {
		t.Error("expected signature from wrong secret to fail")
	}
}

func TestVerify_TamperedBody(t *testing.T) {
	now := int64(1712345678)
	sig := Sign(testSecret, now, []byte(`{"a":1}`))

	v := NewVerifierWithClock(testSecret, fixedClock(now))
	if v.Verify([]byte(`{"a":2}`), strconv.FormatInt(now, 10), sig) {
		t.Error("expected tampered body to fail verification")
	}
}

func TestVerify_StaleTimestamp(t *testing.T) {
	sent := int64(1712345678)
	body := []byte(`{}`)
	sig := Sign(testSecret, sent, body)

	// 301 seconds after the request was signed: outside the freshness window
	// even though the HMAC itself matches.
	v := NewVerifierWithClock(testSecret, fixedClock(sent+301))
	if v.Verify(body, strconv.FormatInt(sent, 10), sig) {
		t.Error("expected stale timestamp to be rejected")
	}
}

func TestVerify_FutureTimestamp(t *testing.T) {
	sent := int64(1712345678)
	body := []byte(`{}`)
	sig := Sign(testSecret, sent, body)

	v := NewVerifierWithClock(testSecret, fixedClock(sent-301))
	if v.Verify(body, strconv.FormatInt(sent, 10), sig) {
		t.Error("expected far-future timestamp to be rejected")
	}
}

func TestVerify_WithinFreshnessWindow(t *testing.T) {
	sent := int64(1712345678)
	body := []byte(`{}`)
	sig := Sign(testSecret, sent, body)

	v := NewVerifierWithClock(testSecret, fixedClock(sent+299))
	if !v.Verify(body, strconv.FormatInt(sent, 10), sig) {
		t.Error("expected timestamp within the window to verify")
	}
}

func TestVerify_MalformedSignaturePrefix(t *testing.T) {
	now := int64(1712345678)
	v := NewVerifierWithClock(testSecret, fixedClock(now))
	if v.Verify([]byte(`{}`), strconv.FormatInt(now, 10), "v1=deadbeef") {
		t.Error("expected non-v0 signature prefix to fail")
	}
}

func TestVerify_NonHexSignature(t *testing.T) {
	now := int64(1712345678)
	v := NewVerifierWithClock(testSecret, fixedClock(now))
	if v.Verify([]byte(`{}`), strconv.FormatInt(now, 10), "v0=not-hex!") {
		t.Error("expected non-hex signature to fail")
	}
}

func TestVerify_UnparseableTimestamp(t *testing.T) {
	v := NewVerifierWithClock(testSecret, fixedClock(1712345678))
	if v.Verify([]byte(`{}`), "yesterday", "v0=deadbeef") {
		t.Error("expected unparseable timestamp to fail")
	}
}
