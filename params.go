package flux

import (
	"context"
	"net/url"

	"github.com/fluxpay/flux-go/form"
)

// Params are the call options shared by every operation. Resource parameter
// structs embed Params so the backend can pull these out uniformly.
type Params struct {
	// Context, when set, scopes the outgoing request.
	Context context.Context `form:"-"`

	// IdempotencyKey overrides the generated key on mutating calls.
	IdempotencyKey string `form:"-"`
}

// GetParams satisfies ParamsContainer.
func (p *Params) GetParams() *Params {
	return p
}

// ParamsContainer is implemented by every parameter struct handed to a
// Backend, via an embedded Params or ListParams.
type ParamsContainer interface {
	GetParams() *Params
}

// ListParams are the cursor-paging options shared by every list operation.
type ListParams struct {
	Context context.Context `form:"-"`

	// Limit caps the page size; the gateway accepts 1 to 100.
	Limit int64 `form:"limit"`

	// StartingAfter is an object ID cursor; the page begins immediately
	// after it. Iter maintains this between pages.
	StartingAfter string `form:"starting_after"`

	// EndingBefore pages backwards from the given object ID.
	EndingBefore string `form:"ending_before"`
}

// GetParams satisfies ParamsContainer. List calls never carry an
// idempotency key, so only the context crosses over.
func (p *ListParams) GetParams() *Params {
	if p == nil {
		return nil
	}
	return &Params{Context: p.Context}
}

func encodeParams(params ParamsContainer) (url.Values, error) {
	if params == nil {
		return url.Values{}, nil
	}
	return form.Encode(params)
}
