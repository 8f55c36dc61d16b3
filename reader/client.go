// Package reader exposes the /v1/terminal/readers operations: provisioning
// physical card readers and driving payments, refunds and display updates
// on them.
package reader

import (
	"errors"
	"net/http"
	"net/url"

	flux "github.com/fluxpay/flux-go"
)

const basePath = "/v1/terminal/readers"

// Client operates on terminal readers through a flux.Backend.
type Client struct {
	B flux.Backend
}

// New binds a Client to a backend.
func New(backend flux.Backend) Client {
	return Client{B: backend}
}

// New registers a device with the gateway using the pairing code shown on
// its screen.
func (c Client) New(params *flux.ReaderParams) (*flux.Reader, error) {
	reader := &flux.Reader{}
	err := c.B.Call(http.MethodPost, basePath, params, reader)
	return reader, err
}

// Get fetches a reader by ID.
func (c Client) Get(id string, params *flux.ReaderParams) (*flux.Reader, error) {
	path, err := readerPath(id)
	if err != nil {
		return nil, err
	}
	reader := &flux.Reader{}
	err = c.B.Call(http.MethodGet, path, params, reader)
	return reader, err
}

// Update changes a reader's label or metadata.
func (c Client) Update(id string, params *flux.ReaderParams) (*flux.Reader, error) {
	path, err := readerPath(id)
	if err != nil {
		return nil, err
	}
	reader := &flux.Reader{}
	err = c.B.Call(http.MethodPost, path, params, reader)
	return reader, err
}

// Del deprovisions a reader. The returned resource carries Deleted=true.
func (c Client) Del(id string, params *flux.ReaderParams) (*flux.Reader, error) {
	path, err := readerPath(id)
	if err != nil {
		return nil, err
	}
	reader := &flux.Reader{}
	err = c.B.Call(http.MethodDelete, path, params, reader)
	return reader, err
}

// ProcessPayment hands an authorised payment to the device so the
// cardholder can present their card.
func (c Client) ProcessPayment(id string, params *flux.ReaderProcessPaymentParams) (*flux.Reader, error) {
	return c.action(id, "process_payment", params)
}

// RefundPayment starts an on-reader refund.
func (c Client) RefundPayment(id string, params *flux.ReaderRefundPaymentParams) (*flux.Reader, error) {
	return c.action(id, "refund_payment", params)
}

// SetDisplay pushes cart contents to the reader's screen.
func (c Client) SetDisplay(id string, params *flux.ReaderSetDisplayParams) (*flux.Reader, error) {
	return c.action(id, "set_display", params)
}

// CancelAction aborts the in-flight action and returns the device to its
// idle screen.
func (c Client) CancelAction(id string, params *flux.ReaderCancelActionParams) (*flux.Reader, error) {
	return c.action(id, "cancel_action", params)
}

func (c Client) action(id, name string, params flux.ParamsContainer) (*flux.Reader, error) {
	path, err := readerPath(id)
	if err != nil {
		return nil, err
	}
	reader := &flux.Reader{}
	err = c.B.Call(http.MethodPost, path+"/"+name, params, reader)
	return reader, err
}

// List walks readers matching the filters, fetching pages as the iterator
// is drained.
func (c Client) List(params *flux.ReaderListParams) *Iter {
	if params == nil {
		params = &flux.ReaderListParams{}
	}
	return &Iter{flux.GetIter(&params.ListParams, func(p *flux.ListParams) ([]interface{}, flux.ListMeta, error) {
		page := *params
		page.ListParams = *p

		list := &flux.ReaderList{}
		err := c.B.Call(http.MethodGet, basePath, &page, list)

		ret := make([]interface{}, len(list.Data))
		for i, reader := range list.Data {
			ret[i] = reader
		}
		return ret, list.ListMeta, err
	})}
}

// Iter is a flux.Iter over readers.
type Iter struct {
	*flux.Iter
}

// Reader returns the reader the iterator currently points at.
func (i *Iter) Reader() *flux.Reader {
	return i.Current().(*flux.Reader)
}

func readerPath(id string) (string, error) {
	if id == "" {
		return "", errors.New("reader: id is required")
	}
	return basePath + "/" + url.PathEscape(id), nil
}
