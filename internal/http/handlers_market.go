package http

import (
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"finboard/internal/core"
	applog "finboard/internal/log"
)

// maxPriceSymbols bounds one /api/prices request.
const maxPriceSymbols = 50

// handleFxRefresh answers POST /api/fx/refresh?date=YYYY-MM-DD[&async=1].
func (s *Server) handleFxRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError(http.MethodPost).Write(w)
		return
	}
	query := r.URL.Query()
	date, err := parseDateParam(query, "date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if date.IsEmpty() {
		date = s.today()
	}

	res, queued, err := s.svc.Jobs.RefreshRates(r.Context(), date, parseBoolParam(query, "async"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if queued {
		status = http.StatusAccepted
	} else {
		applog.FromContext(r.Context()).InfoContext(r.Context(), "FX rates refreshed",
			applog.FieldAsOf, date.String(),
			"written", res.Written,
			"skipped", len(res.Skipped))
	}
	if res.Skipped == nil {
		res.Skipped = []string{}
	}
	NewJSONResponse().Status(status).Body(fxRefreshBody{
		Queued:  queued,
		Date:    res.Date,
		Written: res.Written,
		Skipped: res.Skipped,
	}).Write(w)
}

type fxRefreshBody struct {
	Queued  bool      `json:"queued"`
	Date    core.Date `json:"date"`
	Written int       `json:"written"`
	Skipped []string  `json:"skipped"`
}

// handleFxRate answers GET /api/fx/rate?base=KRW&quote=USD&date=YYYY-MM-DD.
func (s *Server) handleFxRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError(http.MethodGet).Write(w)
		return
	}
	query := r.URL.Query()
	base, quote := core.NormalizeCode(query.Get("base")), core.NormalizeCode(query.Get("quote"))
	for field, code := range map[string]string{"base": base, "quote": quote} {
		if len(code) != 3 {
			writeError(w, r, core.NewValidationError(field, "must be a 3-letter currency code"))
			return
		}
	}
	date, err := parseDateParam(query, "date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if date.IsEmpty() {
		date = s.today()
	}

	rate, err := s.svc.Rates.Rate(r.Context(), base, quote, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(fxRateDTO{
		Base:     base,
		Quote:    quote,
		Date:     date,
		Rate:     Number{rate.Value},
		Fallback: rate.Fallback,
		Source:   rate.Source,
	}).Write(w)
}

// handlePrices answers GET /api/prices?symbols=A,B&exchange=X[&asOf=YYYY-MM-DD].
// Unknown symbols are listed with found=false.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError(http.MethodGet).Write(w)
		return
	}
	query := r.URL.Query()
	symbols := splitList(query.Get("symbols"))
	if len(symbols) == 0 {
		writeError(w, r, core.NewValidationError("symbols", "is required"))
		return
	}
	if len(symbols) > maxPriceSymbols {
		writeError(w, r, core.NewValidationError("symbols", "lists too many symbols"))
		return
	}
	exchange := strings.ToUpper(sanitizeInput(query.Get("exchange")))
	if exchange == "" {
		writeError(w, r, core.NewValidationError("exchange", "is required"))
		return
	}
	asOf, err := parseDateParam(query, "asOf")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if asOf.IsEmpty() {
		asOf = s.today()
	}

	out := make([]priceDTO, len(symbols))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(4)
	for i, symbol := range symbols {
		g.Go(func() error {
			p, found, err := s.svc.Prices.LatestPrice(ctx, symbol, exchange, asOf)
			if err != nil {
				return err
			}
			dto := priceDTO{Symbol: strings.ToUpper(symbol), Exchange: exchange, Found: found}
			if found {
				dto.AsOf = p.AsOf
				dto.Price = &Number{p.Price}
				dto.CurrencyCode = p.CurrencyCode
			}
			out[i] = dto
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(out).Write(w)
}
