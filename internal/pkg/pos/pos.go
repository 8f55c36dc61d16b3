// Package pos holds the request shapes the proxy receives from the
// point-of-sale frontend.
package pos

import (
	"errors"
	"math"
	"strconv"
)

// PaymentRequest is the originating request from the POS
type PaymentRequest struct {
	SaleID      string
	Amount      string
	Origin      string
	RegisterID  string
	AmountFloat float64
	AmountCents int64
}

// RefundRequest is the originating request from the POS
type RefundRequest struct {
	SaleID      string
	Amount      string
	Origin      string
	RegisterID  string
	PaymentID   string
	AmountFloat float64
	AmountCents int64
}

// ValidatePayment normalises the POS amount. The POS sends dollars as a
// string; the gateway deals in cents.
func ValidatePayment(req *PaymentRequest) (*PaymentRequest, error) {
	var err error

	if len(req.Amount) < 1 {
		return req, errors.New("Amount is required")
	}
	req.AmountFloat, err = strconv.ParseFloat(req.Amount, 64)
	if err != nil {
		return req, err
	}

	req.AmountCents = int64(math.Round(req.AmountFloat * 100))
	return req, err
}
