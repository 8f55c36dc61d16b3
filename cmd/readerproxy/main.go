package main

import (
	"database/sql"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	flux "github.com/fluxpay/flux-go"
	"github.com/fluxpay/flux-go/internal/pkg/config"
	"github.com/fluxpay/flux-go/internal/pkg/pos"
	"github.com/fluxpay/flux-go/internal/pkg/readerstore"
	"github.com/fluxpay/flux-go/reader"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/sessions"
	logrus "github.com/sirupsen/logrus"
	"github.com/srinathgs/mysqlstore"
	shortid "github.com/ventu-io/go-shortid"
)

// These are the possible sale statuses reported back to the POS.
const (
	statusAccepted  = "ACCEPTED"
	statusCancelled = "CANCELLED"
	statusDeclined  = "DECLINED"
	statusFailed    = "FAILED"
	statusPending   = "PENDING"
)

// Response We build a JSON response object that contains important information for
// which step we should send back to the POS to guide the payment flow.
type Response struct {
	ID         string `json:"id,omitempty"`
	Amount     string `json:"amount"`
	RegisterID string `json:"register_id"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	HTTPStatus int    `json:"-"`
	file       string
}

// Outcome maps a reader action result to a generic ACCEPT/DECLINE
type Outcome struct {
	TxnStatus       string
	LogMessage      string
	CustomerMessage string
}

const defaultFailureCode = "gateway_error"

// DbSessionStore is the database session storage manager
var DbSessionStore *mysqlstore.MySQLStore

var log *logrus.Logger

var readers reader.Client

var db *sql.DB

var store *readerstore.Store

var defaultLocation string

func main() {
	// default configuration file for prod
	configurationFile := "/etc/readerproxy/readerproxy.json"
	if os.Getenv("DEV") != "" {
		// default configuration file for dev
		configurationFile = "../configs/readerproxy.json"
	}

	// load config
	appConfig, err := config.ReadApplicationConfig(configurationFile)
	if err != nil {
		logrus.Fatal(err)
	}

	// init our logging framework
	level, err := logrus.ParseLevel(appConfig.LogLevel)
	if err != nil {
		logrus.Fatalf("Level %s is not a valid log level. Try setting 'info' in production ", level)
	}

	log = initLogger(level)

	db = connectToDatabase(appConfig.Database)

	DbSessionStore = initSessionStore(db, appConfig.Session)

	// create the gateway client the proxy drives readers through
	backend := flux.NewBackend(appConfig.Flux.APIKey, &flux.BackendConfig{
		URL: appConfig.Flux.BaseURL,
		Log: log,
	})
	readers = reader.New(backend)
	defaultLocation = appConfig.Flux.Location

	store = readerstore.NewStore(db)

	// We are hosting all of the content in ./assets, as the resources are
	// required by the frontend.
	fileServer := http.FileServer(http.Dir("../assets"))
	http.Handle("/assets/", http.StripPrefix("/assets/", fileServer))
	http.HandleFunc("/", Index)
	http.HandleFunc("/pay", PaymentHandler)
	http.HandleFunc("/register", RegisterHandler)
	http.HandleFunc("/refund", RefundHandler)

	port := appConfig.Webserver.Port

	log.Infof("Starting webserver on port %s \n", port)

	log.Fatal(http.ListenAndServe(":"+port, nil))
}

func initLogger(logLevel logrus.Level) *logrus.Logger {

	logger := logrus.New()
	logger.Formatter = &logrus.JSONFormatter{}

	logger.SetOutput(os.Stdout)

	logger.SetLevel(logLevel)

	return logger
}

func initSessionStore(db *sql.DB, sessionConfig config.SessionConfig) *mysqlstore.MySQLStore {

	// @todo support multiple keys from the config so that key rotation is possible
	store, err := mysqlstore.NewMySQLStoreFromConnection(db, "sessions", "/", 3600, []byte(sessionConfig.Secret))
	if err != nil {
		log.Warn(err)
	}

	store.Options = &sessions.Options{
		Domain:   sessionConfig.Domain,
		Path:     sessionConfig.Path,
		MaxAge:   sessionConfig.MaxAge,
		HttpOnly: sessionConfig.HTTPOnly,
	}

	// register the type PaymentRequest so that we can use it later in the session
	gob.Register(&pos.PaymentRequest{})
	return store
}

func connectToDatabase(params config.DbConnection) *sql.DB {

	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=Local&timeout=%s",
		params.Username,
		params.Password,
		params.Host,
		params.Name,
		params.Timeout,
	)

	log.Infof("Attempting to connect to database %s\n", dsn)

	db, err := sql.Open("mysql", dsn)

	if err != nil {
		log.Error("Unable to connect")
		log.Fatal(err)
	}

	err = retry(30, time.Duration(10), db.Ping)

	// test to make sure it's all good
	if err != nil {
		log.Errorf("Unable to connect to database: %s on %s", params.Name, params.Host)
		log.Warn(err)
	}

	log.Info("Database Connected")

	return db
}

func retry(attempts int, sleep time.Duration, f func() error) error {
	log.Info("Attempting DB connection")
	if err := f(); err != nil {
		log.Warn(err)
		if attempts--; attempts > 0 {

			jitter := time.Duration(rand.Int63n(int64(sleep)))
			sleep = sleep + jitter/2

			time.Sleep(sleep)

			log.Warning("Unsuccessful Retrying")
			return retry(attempts, 2*sleep, f)
		}
		return err
	}

	return nil
}

func getPaymentRequestFromSession(r *http.Request) (*pos.PaymentRequest, error) {
	var err error
	var session *sessions.Session

	session, err = getSession(r, "flux")
	if err != nil {
		log.Println(err.Error())
		return nil, err
	}

	// get the POS request from the session
	posReq := session.Values["posReq"]
	paymentRequest, ok := posReq.(*pos.PaymentRequest)

	if !ok {
		msg := "Can't get the POS request from session"
		return nil, errors.New(msg)
	}
	return paymentRequest, err
}

func getSession(r *http.Request, sessionName string) (*sessions.Session, error) {
	if DbSessionStore == nil {
		log.Error("Can't get session store")
		return nil, errors.New("Can't get session store")
	}

	session, err := DbSessionStore.Get(r, sessionName)
	if err != nil {
		return session, err
	}
	return session, nil
}

// RegisterHandler GET prompts for the pairing code shown on the device,
// POST provisions the reader against the gateway and stores the mapping.
func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	browserResponse := &Response{}
	switch r.Method {
	case http.MethodPost:

		// Bind the request from the browser to reader provisioning params
		readerParams, err := bindToReaderParams(r)

		if err != nil {
			browserResponse.HTTPStatus = http.StatusBadRequest
			browserResponse.Message = err.Error()
			sendResponse(w, r, browserResponse)
			return
		}

		posRequest, err := getPaymentRequestFromSession(r)
		if err == nil {

			// provision the device against the gateway
			provisioned, err := readers.New(readerParams)

			if err != nil {
				log.Error(err)
				browserResponse.Message = registrationFailureMessage(err)
				browserResponse.HTTPStatus = http.StatusBadGateway
			} else {
				log.Infof("Reader %s successfully provisioned", provisioned.ID)

				register := readerstore.NewRegister(
					provisioned.ID,
					provisioned.Location,
					posRequest.Origin,
					posRequest.RegisterID,
				)

				_, err := store.Save("reader-proxy", register)
				if err != nil {
					log.Error(err)
					browserResponse.Message = "Unable to process request"
					browserResponse.HTTPStatus = http.StatusServiceUnavailable

				} else {
					browserResponse.Status = statusAccepted
					browserResponse.HTTPStatus = http.StatusOK
					browserResponse.file = "../assets/templates/register_success.html"
				}
			}
		} else {
			log.Error(err.Error())
			browserResponse.Message = "Sorry. We are unable to process this registration. Please contact support"
			browserResponse.HTTPStatus = http.StatusBadRequest
		}
	default:
		browserResponse.HTTPStatus = http.StatusOK
		browserResponse.file = "../assets/templates/register.html"
	}

	log.Print(browserResponse.Message)
	sendResponse(w, r, browserResponse)
}

func registrationFailureMessage(err error) string {
	var apiErr *flux.Error
	if errors.As(err, &apiErr) && apiErr.Type == flux.ErrorTypeInvalidRequest {
		return "The gateway rejected the pairing code. Check the code on the device screen and try again"
	}
	return "We are unable to process this request"
}

// processReaderAction maps the action state on a returned reader to the
// response the POS understands.
func processReaderAction(fluxReader *flux.Reader, amount string) *Response {

	response := &Response{}

	if fluxReader == nil || fluxReader.Action == nil {
		response.Message = "Unable to establish communication with the Fluxpay gateway"
		response.HTTPStatus = http.StatusBadRequest
		return response
	}

	action := fluxReader.Action

	switch action.Status {
	case flux.ReaderActionStatusSucceeded:
		log.Infof("Reader action %s succeeded", action.Type)
		response.Amount = amount
		response.ID = action.Payment
		response.Status = statusAccepted
		response.HTTPStatus = http.StatusOK
		response.Message = "APPROVED"
	case flux.ReaderActionStatusInProgress:
		// the cardholder still has the terminal; the POS polls for the outcome
		response.Amount = amount
		response.ID = action.Payment
		response.Status = statusPending
		response.HTTPStatus = http.StatusAccepted
		response.Message = "Waiting for the cardholder"
	case flux.ReaderActionStatusFailed:
		outcome := processFailureCodes()(action.FailureCode)
		log.Infof("Reader action failed: %s", outcome.LogMessage)
		response.Status = outcome.TxnStatus
		response.HTTPStatus = http.StatusOK
		response.Message = outcome.CustomerMessage
	default:
		// default to fail
		response.HTTPStatus = http.StatusOK
		response.Status = statusFailed
		response.Message = "Transaction failed"
	}
	return response
}

// processFailureCodes provides a guarded outcome based on the failure code
// reported on a failed reader action
func processFailureCodes() func(string) *Outcome {

	innerMap := map[string]*Outcome{
		"card_declined": {
			TxnStatus:       statusDeclined,
			LogMessage:      "Declined by the card issuer",
			CustomerMessage: "The card was declined",
		},
		"insufficient_funds": {
			TxnStatus:       statusDeclined,
			LogMessage:      "Declined due to insufficient funds",
			CustomerMessage: "The card has insufficient funds",
		},
		"expired_card": {
			TxnStatus:       statusDeclined,
			LogMessage:      "Declined because the card is expired",
			CustomerMessage: "The card is expired",
		},
		"incorrect_pin": {
			TxnStatus:       statusDeclined,
			LogMessage:      "Declined because the PIN was incorrect",
			CustomerMessage: "Incorrect PIN. Please try again",
		},
		"customer_cancelled": {
			TxnStatus:       statusCancelled,
			LogMessage:      "Cardholder cancelled at the terminal",
			CustomerMessage: "The payment was cancelled at the terminal",
		},
		"action_cancelled": {
			TxnStatus:       statusCancelled,
			LogMessage:      "Action cancelled by the operator",
			CustomerMessage: "The payment was cancelled",
		},
		"reader_timeout": {
			TxnStatus:       statusFailed,
			LogMessage:      "The reader did not respond in time",
			CustomerMessage: "The terminal did not respond. Please try again",
		},
		"reader_busy": {
			TxnStatus:       statusFailed,
			LogMessage:      "The reader is busy with another action",
			CustomerMessage: "The terminal is busy. Please wait and try again",
		},
		"reader_offline": {
			TxnStatus:       statusFailed,
			LogMessage:      "The reader is offline",
			CustomerMessage: "The terminal is offline. Check its network connection",
		},
		"payment_not_found": {
			TxnStatus:       statusFailed,
			LogMessage:      "The referenced payment was not found",
			CustomerMessage: "We could not find that payment. Please contact support",
		},
		"already_refunded": {
			TxnStatus:       statusFailed,
			LogMessage:      "The referenced payment was already refunded",
			CustomerMessage: "This payment has already been refunded",
		},
		"gateway_error": {
			TxnStatus:       statusFailed,
			LogMessage:      "Server Error",
			CustomerMessage: "Please contact support@fluxpay.io for further assistance",
		},
	}

	return func(key string) *Outcome {
		// check to make sure we know what the failure is
		ret := innerMap[key]

		if ret == nil {
			return innerMap[defaultFailureCode]
		}
		return ret
	}
}

func bindToReaderParams(r *http.Request) (*flux.ReaderParams, error) {

	if err := r.ParseForm(); err != nil {
		log.Errorf("Unable to bind registration payload: %s", err)
		return nil, err
	}
	registrationCode := strings.TrimSpace(r.Form.Get("RegistrationCode"))
	label := strings.TrimSpace(r.Form.Get("Label"))

	if registrationCode == "" {
		return nil, errors.New("A pairing code is required")
	}

	params := &flux.ReaderParams{
		RegistrationCode: registrationCode,
		Label:            label,
		Location:         defaultLocation,
		Metadata: map[string]string{
			"pos_vendor": "reader-proxy",
		},
	}

	return params, nil
}

func logRequest(r *http.Request) {
	dump, _ := httputil.DumpRequest(r, true)
	log.Debugf("%q ", dump)

	if r.RequestURI != "" {
		query := r.RequestURI
		log.Debugf("Query  %s", query)
	}

}

// Index displays the main payment processing page. The POS calls it with
// the amount, origin and register so we can route to register/pay/refund.
func Index(w http.ResponseWriter, r *http.Request) {

	logRequest(r)
	var err error

	if err := r.ParseForm(); err != nil {
		log.Errorf("Index error parsing form: %s", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	origin := r.Form.Get("origin")
	origin, _ = url.PathUnescape(origin)

	posReq := &pos.PaymentRequest{
		Amount:     r.Form.Get("amount"),
		Origin:     origin,
		RegisterID: r.Form.Get("register_id"),
	}

	log.Debugf("Received %s from %s for register %s", posReq.Amount, posReq.Origin, posReq.RegisterID)
	posReq, err = pos.ValidatePayment(posReq)

	if err != nil {
		w.Write([]byte("Not a valid request"))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	// we just want to ensure there is a reader provisioned for this register
	_, err = store.GetRegister(posReq.Origin, posReq.RegisterID)

	// register the device if needed
	if err != nil {
		saveToSession(w, r, posReq)

		// redirect
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}

	// refunds are triggered by a negative amount
	if posReq.AmountFloat > 0 {
		// payment
		http.ServeFile(w, r, "../assets/templates/index.html")
	} else {
		// save the details of the original request
		saveToSession(w, r, posReq)

		// refund
		http.ServeFile(w, r, "../assets/templates/refund.html")
	}
}

func saveToSession(w http.ResponseWriter, r *http.Request, posReq *pos.PaymentRequest) {

	session, err := getSession(r, "flux")
	if err != nil {
		log.Error(err)
	}

	session.Values["posReq"] = posReq
	err = sessions.Save(r, w)

	if err != nil {
		log.Error(err)
	}
	log.Infof("Session initiated: %s ", session.ID)
}

func bindToPaymentRequest(r *http.Request) (*pos.PaymentRequest, error) {
	r.ParseForm()
	origin := r.Form.Get("origin")
	origin, _ = url.PathUnescape(origin)

	posReq := &pos.PaymentRequest{
		Amount:     r.Form.Get("amount"),
		Origin:     origin,
		SaleID:     strings.TrimSpace(r.Form.Get("sale_id")),
		RegisterID: r.Form.Get("register_id"),
	}

	log.Debugf("Payment: %s from %s for register %s", posReq.Amount, posReq.Origin, posReq.RegisterID)
	posReq, err := pos.ValidatePayment(posReq)

	return posReq, err
}

// RefundHandler handles performing a refund on the terminal
func RefundHandler(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	cxFields := logrus.Fields{
		"module": "proxy",
		"call":   "RefundHandler",
	}
	cxLog := log.WithFields(cxFields)

	// create the default response so that we always have something to send to the browser
	browserResponse := new(Response)

	original, err := getPaymentRequestFromSession(r)
	if err != nil {
		cxLog.Error("Unable to get the refund request from the session")
		cxLog.Error(err)
		http.Error(w, "There was a problem processing the request", http.StatusBadRequest)
		return
	}

	refundReq := pos.RefundRequest{
		Amount:      strings.Replace(original.Amount, "-", "", 1),
		Origin:      original.Origin,
		SaleID:      strings.TrimSpace(r.Form.Get("sale_id")),
		PaymentID:   strings.TrimSpace(r.Form.Get("payment_id")),
		RegisterID:  original.RegisterID,
		AmountCents: -original.AmountCents,
	}
	cxFields["register_id"] = original.RegisterID
	cxFields["origin"] = original.Origin

	register, err := store.GetRegister(refundReq.Origin, refundReq.RegisterID)
	if err != nil {
		cxLog.Info("Register Not Found, redirecting to /register")
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}
	cxFields["reader_id"] = register.ReaderID

	txnRef, _ := shortid.Generate()
	refundParams := &flux.ReaderRefundPaymentParams{
		Payment: refundReq.PaymentID,
		Amount:  refundReq.AmountCents,
		Reason:  "requested_by_customer",
	}
	refundParams.IdempotencyKey = txnRef

	// hand the refund to the device
	fluxReader, err := readers.RefundPayment(register.ReaderID, refundParams)

	if err != nil {
		cxLog.Errorf("Error processing refund: %s", err)
		browserResponse = gatewayErrorResponse(err)
	} else {
		browserResponse = processReaderAction(fluxReader, refundReq.Amount)
		browserResponse.Amount = "0"
	}

	sendResponse(w, r, browserResponse)
}

// PaymentHandler receives the payment request from the POS and drives the
// provisioned reader through the gateway.
func PaymentHandler(w http.ResponseWriter, r *http.Request) {
	var posReq *pos.PaymentRequest
	var err error
	browserResponse := new(Response)

	logRequest(r)

	posReq, err = bindToPaymentRequest(r)
	if err != nil {
		log.Error(err)
		http.Error(w, "There was a problem processing the request", http.StatusBadRequest)
		return
	}

	// look up which gateway reader serves this POS register. If the seller
	// has not paired a device yet they get sent to registration.
	register, err := store.GetRegister(posReq.Origin, posReq.RegisterID)
	if err != nil {
		// redirect
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}
	log.Infof("Processing payment on reader %s ", register.ReaderID)

	paymentParams := &flux.ReaderProcessPaymentParams{
		Amount:       posReq.AmountCents,
		Currency:     "nzd",
		POSReference: posReq.SaleID,
	}
	paymentParams.IdempotencyKey = posReq.SaleID

	// send the payment to the terminal via the gateway
	fluxReader, err := readers.ProcessPayment(register.ReaderID, paymentParams)

	if err != nil {
		log.Errorf("Error processing payment: %s", err)
		browserResponse = gatewayErrorResponse(err)
	} else {
		browserResponse = processReaderAction(fluxReader, posReq.Amount)
	}

	sendResponse(w, r, browserResponse)
}

// gatewayErrorResponse shapes a transport or API error for the POS.
func gatewayErrorResponse(err error) *Response {
	response := &Response{
		Status:     statusFailed,
		HTTPStatus: http.StatusBadGateway,
		Message:    "There was a problem reaching the payment gateway",
	}

	var apiErr *flux.Error
	if errors.As(err, &apiErr) {
		outcome := processFailureCodes()(apiErr.Code)
		response.Status = outcome.TxnStatus
		response.Message = outcome.CustomerMessage
		response.HTTPStatus = http.StatusOK
	}
	return response
}

func sendResponse(w http.ResponseWriter, r *http.Request, response *Response) {

	if len(response.file) > 0 {
		// serve up the success page
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		absFile, err := filepath.Abs(response.file)
		if err != nil {
			log.Warnf("Unable to find file %s: %e", response.file, err)
		} else {
			log.Infof("Serving file : %s ", absFile)
		}

		http.ServeFile(w, r, response.file)

		return
	}

	// Marshal our response into JSON.
	responseJSON, err := json.Marshal(response)
	if err != nil {
		log.Errorf("Failed to marshal response json: %s ", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	log.Debugf("Sending Response: %s \n to the browser \n", responseJSON)

	if response.HTTPStatus == 0 {
		response.HTTPStatus = http.StatusInternalServerError
	}
	w.WriteHeader(response.HTTPStatus)
	w.Write(responseJSON)
}
