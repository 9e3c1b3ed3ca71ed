package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	applog "finboard/internal/log"
	"finboard/internal/services"
)

// Number encodes a decimal as a bare JSON number.
type Number struct {
	decimal.Decimal
}

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.Decimal.String()), nil
}

func (n *Number) UnmarshalJSON(data []byte) error {
	return n.Decimal.UnmarshalJSON(data)
}

// JSONResponseBuilder provides a fluent API for writing JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write encodes the body and sends the response. An encoding failure is answered
// with a 500 before any byte is written.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	payload, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Header("Allow", allowedMethods)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrNoExporter):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// operationFor names the log operation of an HTTP method.
func operationFor(method string) string {
	switch method {
	case http.MethodPost:
		return applog.OpCreate
	case http.MethodPut:
		return applog.OpUpdate
	case http.MethodDelete:
		return applog.OpDelete
	default:
		return applog.OpRead
	}
}

// writeError answers err with its mapped status. Internal failures are logged and
// reported with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body = errorBody{Error: ve.Error(), Field: ve.Field}
	}

	logger := applog.FromContext(r.Context())
	switch {
	case status >= 500:
		fields := applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "")
		fields[applog.FieldStatusCode] = status
		applog.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, "", operationFor(r.Method), fields)
		if status == http.StatusInternalServerError {
			body = errorBody{Error: "internal error"}
		}
	default:
		logger.DebugContext(r.Context(), "Request rejected",
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, status,
			applog.FieldError, err.Error())
	}
	NewJSONResponse().Status(status).Body(body).Write(w)
}

// encoder rounds money once, to the minor units of each figure's currency, with the
// user's rounding rule.
type encoder struct {
	rule core.RoundingRule
}

func (e encoder) money(amount decimal.Decimal, currency string) Number {
	return Number{core.RoundMoney(amount, currency, e.rule)}
}

type currencyTotalDTO struct {
	Currency string `json:"currency"`
	Total    Number `json:"total"`
}

type seriesPointDTO struct {
	Date  core.Date `json:"date"`
	Value Number    `json:"value"`
}

type categoryTotalDTO struct {
	Category string `json:"category"`
	Total    Number `json:"total"`
}

type summaryDTO struct {
	UserID            string             `json:"userId"`
	AsOf              core.Date          `json:"asOf"`
	BaseCurrency      string             `json:"baseCurrency"`
	TotalNetWorthBase Number             `json:"totalNetWorthBase"`
	ByCurrency        []currencyTotalDTO `json:"byCurrency"`
	Last30DaysSeries  []seriesPointDTO   `json:"last30DaysSeries"`
	CategoryBreakdown []categoryTotalDTO `json:"categoryBreakdown"`
	FallbackRates     []string           `json:"fallbackRates"`
	Unpriced          []string           `json:"unpriced"`
}

func (e encoder) summary(s core.Summary) summaryDTO {
	out := summaryDTO{
		UserID:            s.UserID,
		AsOf:              s.AsOf,
		BaseCurrency:      s.BaseCurrency,
		TotalNetWorthBase: e.money(s.TotalNetWorthBase, s.BaseCurrency),
		ByCurrency:        make([]currencyTotalDTO, 0, len(s.ByCurrency)),
		Last30DaysSeries:  make([]seriesPointDTO, 0, len(s.Last30DaysSeries)),
		CategoryBreakdown: make([]categoryTotalDTO, 0, len(s.CategoryBreakdown)),
		FallbackRates:     nonNil(s.FallbackRates),
		Unpriced:          nonNil(s.Unpriced),
	}
	for _, ct := range s.ByCurrency {
		out.ByCurrency = append(out.ByCurrency, currencyTotalDTO{Currency: ct.Currency, Total: e.money(ct.Total, ct.Currency)})
	}
	for _, p := range s.Last30DaysSeries {
		out.Last30DaysSeries = append(out.Last30DaysSeries, seriesPointDTO{Date: p.Date, Value: e.money(p.Value, s.BaseCurrency)})
	}
	for _, c := range s.CategoryBreakdown {
		out.CategoryBreakdown = append(out.CategoryBreakdown, categoryTotalDTO{Category: c.Category, Total: e.money(c.Total, s.BaseCurrency)})
	}
	return out
}

type transactionDTO struct {
	ID               string               `json:"id"`
	AccountID        string               `json:"accountId"`
	CategoryID       *string              `json:"categoryId"`
	Type             core.TransactionType `json:"type"`
	AmountOriginal   Number               `json:"amountOriginal"`
	CurrencyOriginal string               `json:"currencyOriginal"`
	AmountBase       Number               `json:"amountBase"`
	CurrencyBase     string               `json:"currencyBase"`
	Date             core.Date            `json:"date"`
	Memo             string               `json:"memo,omitempty"`
	Tags             []string             `json:"tags,omitempty"`
}

func (e encoder) transaction(tx core.Transaction) transactionDTO {
	return transactionDTO{
		ID:               tx.ID,
		AccountID:        tx.AccountID,
		CategoryID:       tx.CategoryID,
		Type:             tx.Type,
		AmountOriginal:   Number{tx.AmountOriginal},
		CurrencyOriginal: tx.CurrencyOriginal,
		AmountBase:       e.money(tx.AmountBase, tx.CurrencyBase),
		CurrencyBase:     tx.CurrencyBase,
		Date:             tx.Date,
		Memo:             tx.Memo,
		Tags:             tx.Tags,
	}
}

type holdingDTO struct {
	ID           string `json:"id"`
	Symbol       string `json:"symbol"`
	Exchange     string `json:"exchange"`
	Quantity     Number `json:"quantity"`
	AvgCost      Number `json:"avgCost"`
	CurrencyCode string `json:"currencyCode"`
	Note         string `json:"note,omitempty"`
}

func holdingToDTO(h core.Holding) holdingDTO {
	return holdingDTO{
		ID:           h.ID,
		Symbol:       h.Symbol,
		Exchange:     h.Exchange,
		Quantity:     Number{h.Quantity},
		AvgCost:      Number{h.AvgCost},
		CurrencyCode: h.CurrencyCode,
		Note:         h.Note,
	}
}

type priceDTO struct {
	Symbol       string    `json:"symbol"`
	Exchange     string    `json:"exchange"`
	Found        bool      `json:"found"`
	AsOf         core.Date `json:"asOf"`
	Price        *Number   `json:"price"`
	CurrencyCode string    `json:"currencyCode,omitempty"`
}

type fxRateDTO struct {
	Base     string    `json:"base"`
	Quote    string    `json:"quote"`
	Date     core.Date `json:"date"`
	Rate     Number    `json:"rate"`
	Fallback bool      `json:"fallback"`
	Source   string    `json:"source,omitempty"`
}

type jobDTO struct {
	Queued bool   `json:"queued"`
	Ref    string `json:"ref,omitempty"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
