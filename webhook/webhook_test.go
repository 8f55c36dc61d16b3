package webhook

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

const testSecret = "whsec_szUb4YwzQNXn"

func signedHeader(timestamp int64, payload []byte, secret string) string {
	sig := hex.EncodeToString(ComputeSignature(timestamp, payload, secret))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, sig)
}

func TestConstructEvent(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"reader.action.updated","created":1700000000,"data":{"id":"rdr_1"}}`)
	now := time.Now().Unix()

	event, err := ConstructEvent(payload, signedHeader(now, payload, testSecret), testSecret)
	if err != nil {
		t.Fatal(err)
	}
	if event.ID != "evt_1" {
		t.Errorf("id: got %q", event.ID)
	}
	if event.Type != "reader.action.updated" {
		t.Errorf("type: got %q", event.Type)
	}
	if len(event.Data) == 0 {
		t.Error("data payload was dropped")
	}
}

func TestConstructEventWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now().Unix()

	_, err := ConstructEvent(payload, signedHeader(now, payload, "whsec_other"), testSecret)
	if !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature, got %v", err)
	}
}

func TestConstructEventTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now().Unix()
	header := signedHeader(now, payload, testSecret)

	_, err := ConstructEvent([]byte(`{"id":"evt_2"}`), header, testSecret)
	if !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature, got %v", err)
	}
}

func TestConstructEventStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	stale := time.Now().Add(-time.Hour).Unix()

	_, err := ConstructEvent(payload, signedHeader(stale, payload, testSecret), testSecret)
	if !errors.Is(err, ErrTooOld) {
		t.Errorf("expected ErrTooOld, got %v", err)
	}

	// the same delivery passes with a tolerance that covers it
	_, err = ConstructEventWithTolerance(payload, signedHeader(stale, payload, testSecret), testSecret, 2*time.Hour)
	if err != nil {
		t.Errorf("expected stale event to verify within tolerance, got %v", err)
	}
}

func TestConstructEventMissingHeader(t *testing.T) {
	_, err := ConstructEvent([]byte(`{}`), "", testSecret)
	if !errors.Is(err, ErrNoSignature) {
		t.Errorf("expected ErrNoSignature, got %v", err)
	}

	_, err = ConstructEvent([]byte(`{}`), "v1=deadbeef", testSecret)
	if !errors.Is(err, ErrNoSignature) {
		t.Errorf("expected ErrNoSignature for header without timestamp, got %v", err)
	}
}

func TestConstructEventSecondSignatureMatches(t *testing.T) {
	// key rotation: the gateway may send one v1 per active secret
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now().Unix()

	good := hex.EncodeToString(ComputeSignature(now, payload, testSecret))
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", now, "00ff00ff", good)

	if _, err := ConstructEvent(payload, header, testSecret); err != nil {
		t.Errorf("expected second signature to verify, got %v", err)
	}
}
