// Package flux provides the shared request layer used by every Fluxpay
// resource client. Typed resource packages (for example reader) prepare
// parameters and delegate the HTTP work to a Backend.
package flux

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	uuid "github.com/nu7hatch/gouuid"
	"github.com/sirupsen/logrus"
	shortid "github.com/ventu-io/go-shortid"
)

// APIURL is the live Fluxpay gateway.
const APIURL = "https://api.fluxpay.io"

// APIVersion pins the wire format these bindings were written against. It is
// sent on every request as the Flux-Version header.
const APIVersion = "2026-05-12"

// ClientVersion is reported to the gateway in the User-Agent header.
const ClientVersion = "1.3.0"

// defaultHTTPTimeout bounds a single round trip. The gateway holds terminal
// action requests open while the reader is contacted, so this is generous.
const defaultHTTPTimeout = 80 * time.Second

// Backend dispatches a prepared call against the remote API and decodes the
// response into v. Resource clients hold a Backend and never touch HTTP
// themselves.
type Backend interface {
	Call(method, path string, params ParamsContainer, v interface{}) error
}

// BackendConfig carries the optional knobs for NewBackend. Zero values fall
// back to the production gateway, a timeout-bounded http.Client and a fresh
// logrus logger.
type BackendConfig struct {
	URL        string
	HTTPClient *http.Client
	Log        *logrus.Logger
}

type backend struct {
	key        string
	url        string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewBackend returns a Backend authenticating with the given secret API key.
func NewBackend(apiKey string, config *BackendConfig) Backend {
	if config == nil {
		config = &BackendConfig{}
	}

	gatewayURL := config.URL
	if gatewayURL == "" {
		gatewayURL = APIURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	log := config.Log
	if log == nil {
		log = logrus.New()
	}

	return &backend{
		key:        apiKey,
		url:        strings.TrimRight(gatewayURL, "/"),
		httpClient: httpClient,
		log:        log,
	}
}

// Call builds the request for method+path, sends it and decodes the JSON
// response into v. Remote failures come back as *Error.
func (b *backend) Call(method, path string, params ParamsContainer, v interface{}) error {
	contextLogger := b.log.WithFields(logrus.Fields{
		"module": "flux",
		"method": method,
		"path":   path,
	})

	values, err := encodeParams(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	target := b.url + path
	encoded := values.Encode()

	var body io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		if encoded != "" {
			target = target + "?" + encoded
		}
	} else if encoded != "" {
		body = strings.NewReader(encoded)
	}

	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if ctx := callContext(params); ctx != nil {
		req = req.WithContext(ctx)
	}

	requestID := newRequestID()

	req.Header.Set("Authorization", "Bearer "+b.key)
	req.Header.Set("Flux-Version", APIVersion)
	req.Header.Set("User-Agent", "flux-go/"+ClientVersion)
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	// Mutating calls always carry an idempotency key so a lost response can
	// be replayed without provisioning twice.
	if method != http.MethodGet {
		key := idempotencyKey(params)
		if key == "" {
			key, _ = shortid.Generate()
		}
		req.Header.Set("Idempotency-Key", key)
	}

	contextLogger.Debugf("request to %s: %s", target, encoded)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("flux request: %w", err)
	}
	defer resp.Body.Close()

	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	contextLogger.Debugf("response status=%d body=%s", resp.StatusCode, resBody)

	if resp.StatusCode/100 != 2 {
		apiErr := responseToError(resp.StatusCode, resBody)
		if apiErr.RequestID == "" {
			apiErr.RequestID = requestID
		}
		contextLogger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"code":   apiErr.Code,
		}).Warn(apiErr.Message)
		return apiErr
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal(resBody, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func callContext(params ParamsContainer) context.Context {
	if containerNil(params) {
		return nil
	}
	if p := params.GetParams(); p != nil {
		return p.Context
	}
	return nil
}

func idempotencyKey(params ParamsContainer) string {
	if containerNil(params) {
		return ""
	}
	if p := params.GetParams(); p != nil {
		return p.IdempotencyKey
	}
	return ""
}

// containerNil guards against a typed nil pointer arriving through the
// interface, which would blow up the promoted GetParams call.
func containerNil(params ParamsContainer) bool {
	if params == nil {
		return true
	}
	rv := reflect.ValueOf(params)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

func newRequestID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return ""
	}
	return id.String()
}
