package flux

// ReaderStatus reports the device's network state as the gateway last saw it.
type ReaderStatus string

const (
	ReaderStatusOnline  ReaderStatus = "online"
	ReaderStatusOffline ReaderStatus = "offline"
)

// ReaderActionType names the long-running operation a reader is carrying out.
type ReaderActionType string

const (
	ReaderActionTypeProcessPayment ReaderActionType = "process_payment"
	ReaderActionTypeRefundPayment  ReaderActionType = "refund_payment"
	ReaderActionTypeSetDisplay     ReaderActionType = "set_display"
)

// ReaderActionStatus is the lifecycle state of a reader action.
type ReaderActionStatus string

const (
	ReaderActionStatusInProgress ReaderActionStatus = "in_progress"
	ReaderActionStatusSucceeded  ReaderActionStatus = "succeeded"
	ReaderActionStatusFailed     ReaderActionStatus = "failed"
)

// ReaderAction is the current or most recently finished action on a reader.
type ReaderAction struct {
	Type           ReaderActionType   `json:"type"`
	Status         ReaderActionStatus `json:"status"`
	Payment        string             `json:"payment,omitempty"`
	FailureCode    string             `json:"failure_code,omitempty"`
	FailureMessage string             `json:"failure_message,omitempty"`
}

// Reader mirrors the terminal.reader resource: one physical card-payment
// device provisioned against a location.
type Reader struct {
	ID              string            `json:"id"`
	Object          string            `json:"object"`
	Action          *ReaderAction     `json:"action"`
	DeviceType      string            `json:"device_type"`
	DeviceSwVersion string            `json:"device_sw_version"`
	IPAddress       string            `json:"ip_address"`
	Label           string            `json:"label"`
	Livemode        bool              `json:"livemode"`
	Location        string            `json:"location"`
	Metadata        map[string]string `json:"metadata"`
	SerialNumber    string            `json:"serial_number"`
	Status          ReaderStatus      `json:"status"`
	Deleted         bool              `json:"deleted"`
}

// ReaderList is one page of readers.
type ReaderList struct {
	ListMeta
	Data []*Reader `json:"data"`
}

// ReaderParams create or update a reader. RegistrationCode is the pairing
// code shown on the device and is only consumed on create; Label and
// Metadata are accepted on both.
type ReaderParams struct {
	Params
	RegistrationCode string            `form:"registration_code"`
	Label            string            `form:"label"`
	Location         string            `form:"location"`
	Metadata         map[string]string `form:"metadata"`
}

// ReaderListParams filter a reader listing.
type ReaderListParams struct {
	ListParams
	DeviceType   string `form:"device_type"`
	Location     string `form:"location"`
	SerialNumber string `form:"serial_number"`
	Status       string `form:"status"`
}

// ReaderProcessPaymentParams hand an authorised payment to the device for
// cardholder interaction.
type ReaderProcessPaymentParams struct {
	Params
	Payment      string `form:"payment"`
	Amount       int64  `form:"amount"`
	Currency     string `form:"currency"`
	POSReference string `form:"pos_reference"`
}

// ReaderRefundPaymentParams start an on-reader refund of a prior payment.
// Amount is optional; zero refunds the full charge.
type ReaderRefundPaymentParams struct {
	Params
	Payment string `form:"payment"`
	Amount  int64  `form:"amount"`
	Reason  string `form:"reason"`
}

// CartLineItemParams is one row on the reader's display.
type CartLineItemParams struct {
	Amount      int64  `form:"amount"`
	Description string `form:"description"`
	Quantity    int64  `form:"quantity"`
}

// CartParams is the cart shown by SetDisplay.
type CartParams struct {
	Currency  string                `form:"currency"`
	LineItems []*CartLineItemParams `form:"line_items"`
	Tax       int64                 `form:"tax"`
	Total     int64                 `form:"total"`
}

// ReaderSetDisplayParams push content to the reader's screen. Type is
// currently always "cart".
type ReaderSetDisplayParams struct {
	Params
	Type string      `form:"type"`
	Cart *CartParams `form:"cart"`
}

// ReaderCancelActionParams cancel the in-flight action, returning the
// device to its idle screen.
type ReaderCancelActionParams struct {
	Params
}
