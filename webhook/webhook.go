// Package webhook verifies and decodes Fluxpay event deliveries. Terminal
// flows are asynchronous, so the gateway reports action outcomes
// (reader.action.updated and friends) by signed webhook.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is how far a delivery timestamp may drift from local
// time before the event is rejected as a possible replay.
const DefaultTolerance = 5 * time.Minute

// Event is the decoded envelope of one delivery. Data holds the raw
// resource payload for the caller to unmarshal into the matching type.
type Event struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    json.RawMessage `json:"data"`
}

var (
	// ErrNoSignature means the Flux-Signature header was missing or empty.
	ErrNoSignature = errors.New("webhook: missing signature header")
	// ErrBadSignature means no candidate signature matched the payload.
	ErrBadSignature = errors.New("webhook: signature does not match payload")
	// ErrTooOld means the delivery timestamp fell outside the tolerance.
	ErrTooOld = errors.New("webhook: timestamp outside tolerance")
)

// ConstructEvent verifies the Flux-Signature header against the raw request
// body and the endpoint's signing secret, then decodes the event. The header
// has the shape "t=<unix>,v1=<hex hmac>"; the MAC covers "<t>.<body>".
func ConstructEvent(payload []byte, sigHeader, secret string) (Event, error) {
	return ConstructEventWithTolerance(payload, sigHeader, secret, DefaultTolerance)
}

// ConstructEventWithTolerance is ConstructEvent with a caller-chosen replay
// tolerance.
func ConstructEventWithTolerance(payload []byte, sigHeader, secret string, tolerance time.Duration) (Event, error) {
	event := Event{}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return event, err
	}

	if time.Since(time.Unix(timestamp, 0)) > tolerance {
		return event, ErrTooOld
	}

	expected := ComputeSignature(timestamp, payload, secret)
	matched := false
	for _, sig := range signatures {
		candidate, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		// hmac.Equal rather than ==, so comparison time leaks nothing
		if hmac.Equal(candidate, expected) {
			matched = true
			break
		}
	}
	if !matched {
		return event, ErrBadSignature
	}

	if err := json.Unmarshal(payload, &event); err != nil {
		return event, fmt.Errorf("webhook: decode event: %w", err)
	}
	return event, nil
}

// ComputeSignature produces the MAC the gateway would attach for the given
// timestamp, body and secret.
func ComputeSignature(timestamp int64, payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, ErrNoSignature
	}

	var timestamp int64
	var signatures []string
	sawTimestamp := false

	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			t, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("webhook: bad timestamp %q", parts[1])
			}
			timestamp = t
			sawTimestamp = true
		case "v1":
			signatures = append(signatures, parts[1])
		}
	}

	if !sawTimestamp || len(signatures) == 0 {
		return 0, nil, ErrNoSignature
	}
	return timestamp, signatures, nil
}
