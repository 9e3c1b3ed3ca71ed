package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"finboard/internal/core"
)

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// DefaultExchangeCurrencies maps EODHD exchange codes to their trading currency.
var DefaultExchangeCurrencies = map[string]string{
	"US":    "USD",
	"KO":    "KRW",
	"KQ":    "KRW",
	"TSE":   "JPY",
	"SHG":   "CNY",
	"SHE":   "CNY",
	"XETRA": "EUR",
	"PA":    "EUR",
	"AS":    "EUR",
	"MI":    "EUR",
	"LSE":   "GBP",
	"AU":    "AUD",
}

// flexDecimal accepts numbers and numeric strings, mapping "NA" and empty strings to zero.
type flexDecimal struct {
	decimal.Decimal
}

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "NA" || s == "N/A" || s == "null" {
		f.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("cannot unmarshal %s into decimal", string(data))
	}
	f.Decimal = d
	return nil
}

// EODHDClient fetches FX rates and real-time prices from the EODHD API.
type EODHDClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	currencies map[string]string
	logger     *slog.Logger
}

// ClientOption configures the client
type ClientOption func(*EODHDClient)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *EODHDClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *EODHDClient) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *EODHDClient) {
		c.httpClient.Timeout = timeout
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *EODHDClient) {
		c.httpClient = hc
	}
}

// WithExchangeCurrencies overrides the exchange to currency table used for prices.
func WithExchangeCurrencies(m map[string]string) ClientOption {
	return func(c *EODHDClient) {
		c.currencies = m
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *EODHDClient) {
		c.logger = logger
	}
}

func NewEODHDClient(apiKey string, opts ...ClientOption) *EODHDClient {
	c := &EODHDClient{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		currencies: DefaultExchangeCurrencies,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-200 answer from EODHD.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// get performs a rate-limited GET request and decodes the JSON body into result.
func (c *EODHDClient) get(ctx context.Context, path string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	c.logger.DebugContext(ctx, "EODHD API request", "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body)), Endpoint: path}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type eodBar struct {
	Date  string      `json:"date"`
	Close flexDecimal `json:"close"`
}

// FetchRate returns the closing BASEQUOTE.FOREX rate of the latest trading day on or
// before date, looking back a week to cover weekends and holidays.
func (c *EODHDClient) FetchRate(ctx context.Context, base, quote string, date core.Date) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("from", date.AddDays(-7).String())
	params.Set("to", date.String())
	params.Set("period", "d")
	params.Set("order", "d")

	var bars []eodBar
	path := fmt.Sprintf("/eod/%s%s.FOREX", base, quote)
	if err := c.get(ctx, path, params, &bars); err != nil {
		return decimal.Zero, fmt.Errorf("fetch rate %s/%s: %w", base, quote, err)
	}
	for _, b := range bars {
		if b.Close.IsPositive() {
			return b.Close.Decimal, nil
		}
	}
	return decimal.Zero, fmt.Errorf("fetch rate %s/%s: no quotes up to %s", base, quote, date)
}

type realTimeQuote struct {
	Code          string      `json:"code"`
	Close         flexDecimal `json:"close"`
	PreviousClose flexDecimal `json:"previousClose"`
}

// FetchPrice returns the last trade of SYMBOL.EXCHANGE, or the previous close when the
// market has not traded yet.
func (c *EODHDClient) FetchPrice(ctx context.Context, symbol, exchange string) (PriceQuote, error) {
	currency, ok := c.currencies[strings.ToUpper(exchange)]
	if !ok {
		return PriceQuote{}, fmt.Errorf("fetch price %s.%s: unknown exchange currency", symbol, exchange)
	}

	var q realTimeQuote
	path := fmt.Sprintf("/real-time/%s.%s", symbol, exchange)
	if err := c.get(ctx, path, nil, &q); err != nil {
		return PriceQuote{}, fmt.Errorf("fetch price %s.%s: %w", symbol, exchange, err)
	}

	price := q.Close.Decimal
	if !price.IsPositive() {
		price = q.PreviousClose.Decimal
	}
	if !price.IsPositive() {
		return PriceQuote{}, fmt.Errorf("fetch price %s.%s: no price in response", symbol, exchange)
	}
	return PriceQuote{Price: price, Currency: currency}, nil
}

func (c *EODHDClient) Source() string { return "eodhd" }
