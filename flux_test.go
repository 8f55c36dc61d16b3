package flux

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func testBackend(t *testing.T, handler http.HandlerFunc) Backend {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return NewBackend("sk_test_123", &BackendConfig{
		URL: server.URL,
		Log: log,
	})
}

func TestCallSetsHeaders(t *testing.T) {
	var gotAuth, gotVersion, gotAgent, gotRequestID, gotIdempotency string

	backend := testBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Flux-Version")
		gotAgent = r.Header.Get("User-Agent")
		gotRequestID = r.Header.Get("X-Request-Id")
		gotIdempotency = r.Header.Get("Idempotency-Key")
		fmt.Fprint(w, `{"id":"rdr_1"}`)
	})

	var reader Reader
	err := backend.Call(http.MethodPost, "/v1/terminal/readers", &ReaderParams{Label: "till"}, &reader)
	if err != nil {
		t.Fatal(err)
	}

	if gotAuth != "Bearer sk_test_123" {
		t.Errorf("Authorization: got %q", gotAuth)
	}
	if gotVersion != APIVersion {
		t.Errorf("Flux-Version: got %q want %q", gotVersion, APIVersion)
	}
	if gotAgent != "flux-go/"+ClientVersion {
		t.Errorf("User-Agent: got %q", gotAgent)
	}
	if gotRequestID == "" {
		t.Error("X-Request-Id was not set")
	}
	if gotIdempotency == "" {
		t.Error("Idempotency-Key was not generated for a POST")
	}
	if reader.ID != "rdr_1" {
		t.Errorf("decoded ID: got %q", reader.ID)
	}
}

func TestCallIdempotencyKeyOverride(t *testing.T) {
	var got string
	backend := testBackend(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Idempotency-Key")
		fmt.Fprint(w, `{}`)
	})

	params := &ReaderParams{}
	params.IdempotencyKey = "sale-42"
	if err := backend.Call(http.MethodPost, "/v1/terminal/readers", params, nil); err != nil {
		t.Fatal(err)
	}
	if got != "sale-42" {
		t.Errorf("Idempotency-Key: got %q want sale-42", got)
	}
}

func TestCallEncodesBodyAndQuery(t *testing.T) {
	var gotQuery, gotBody, gotContentType string

	backend := testBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gotQuery = r.URL.RawQuery
		case http.MethodPost:
			r.ParseForm()
			gotBody = r.PostForm.Encode()
			gotContentType = r.Header.Get("Content-Type")
		}
		fmt.Fprint(w, `{}`)
	})

	listParams := &ReaderListParams{Status: "online"}
	listParams.Limit = 2
	if err := backend.Call(http.MethodGet, "/v1/terminal/readers", listParams, nil); err != nil {
		t.Fatal(err)
	}
	if gotQuery != "limit=2&status=online" {
		t.Errorf("query: got %q", gotQuery)
	}

	if err := backend.Call(http.MethodPost, "/v1/terminal/readers", &ReaderParams{Label: "till 1"}, nil); err != nil {
		t.Fatal(err)
	}
	if gotBody != "label=till+1" {
		t.Errorf("body: got %q", gotBody)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type: got %q", gotContentType)
	}
}

func TestCallContextCancellation(t *testing.T) {
	backend := testBackend(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	params := &ReaderParams{}
	params.Context = ctx
	err := backend.Call(http.MethodGet, "/v1/terminal/readers/rdr_1", params, nil)
	if err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCallParsesErrorEnvelope(t *testing.T) {
	backend := testBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","code":"expired_card","message":"The card is expired","param":"payment","request_id":"req_9"}}`)
	})

	err := backend.Call(http.MethodPost, "/v1/terminal/readers/rdr_1/process_payment", nil, nil)
	if err == nil {
		t.Fatal("expected an error")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Type != ErrorTypeInvalidRequest {
		t.Errorf("type: got %q", apiErr.Type)
	}
	if apiErr.Code != "expired_card" {
		t.Errorf("code: got %q", apiErr.Code)
	}
	if apiErr.HTTPStatus != http.StatusPaymentRequired {
		t.Errorf("status: got %d", apiErr.HTTPStatus)
	}
	if apiErr.RequestID != "req_9" {
		t.Errorf("request_id: got %q", apiErr.RequestID)
	}
}

func TestCallHandlesNonJSONError(t *testing.T) {
	backend := testBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream timeout")
	})

	err := backend.Call(http.MethodGet, "/v1/terminal/readers", nil, nil)

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Type != ErrorTypeAPI {
		t.Errorf("type: got %q", apiErr.Type)
	}
	if apiErr.Message != "upstream timeout" {
		t.Errorf("message: got %q", apiErr.Message)
	}
	if apiErr.RequestID == "" {
		t.Error("request_id should fall back to the generated header value")
	}
}

func TestErrorString(t *testing.T) {
	apiErr := &Error{
		Type:       ErrorTypeRateLimit,
		Message:    "slow down",
		HTTPStatus: 429,
		RequestID:  "req_1",
	}
	want := "flux: rate_limit_error: slow down (status=429, request_id=req_1)"
	if got := apiErr.Error(); got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
