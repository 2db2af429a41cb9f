package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/tfleming/ironleap/internal/models"
	"github.com/tfleming/ironleap/internal/pricer"
)

const defaultLiveTimeout = 30 * time.Second

// Session is a lifetime-scoped handle to a live market data endpoint.
// Acquire one session, pass it to the components that need live data, and
// close it when the enclosing run finishes. There is no ambient shared
// connection state.
type Session struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewSession opens a session against the endpoint. The caller owns the
// session and must Close it.
func NewSession(baseURL, apiKey string, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = defaultLiveTimeout
	}
	return &Session{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Close releases the session's idle connections.
func (s *Session) Close() {
	s.client.CloseIdleConnections()
}

// getJSON performs an authenticated GET and decodes the JSON response.
// Transport failures become *SourceError; non-2xx responses become
// *APIError wrapped in a *SourceError so both layers stay inspectable.
func (s *Session) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := s.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &SourceError{Op: "GET " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &SourceError{Op: "GET " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &SourceError{Op: "GET " + path, Err: &APIError{Status: resp.StatusCode, Body: string(body)}}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &SourceError{Op: "GET " + path, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// LiveProvider implements Provider against a live REST market data source.
// It serves the current market: the date argument is accepted for interface
// compatibility and ignored. Partial greeks or prices in the feed are
// recomputed with the Black-Scholes pricer using the provided or default
// volatility.
type LiveProvider struct {
	session    *Session
	defaultVol float64
	riskFree   float64
}

// NewLiveProvider creates a provider over an open session.
func NewLiveProvider(session *Session) *LiveProvider {
	return &LiveProvider{
		session:    session,
		defaultVol: DefaultVolatility,
		riskFree:   RiskFreeRate,
	}
}

type liveQuoteResponse struct {
	Quote struct {
		Symbol string  `json:"symbol"`
		Last   float64 `json:"last"`
		Close  float64 `json:"close"`
	} `json:"quote"`
}

// SpotPrice returns the last traded price, falling back to the previous
// close, or 0.0 when the feed has neither.
func (p *LiveProvider) SpotPrice(ctx context.Context, symbol string, _ time.Time) (float64, error) {
	var resp liveQuoteResponse
	params := url.Values{"symbol": {symbol}}
	if err := p.session.getJSON(ctx, "/v1/markets/quote", params, &resp); err != nil {
		return 0, err
	}
	if resp.Quote.Last > 0 {
		return resp.Quote.Last, nil
	}
	if resp.Quote.Close > 0 {
		return resp.Quote.Close, nil
	}
	return 0, nil
}

type liveVolResponse struct {
	Volatility float64 `json:"volatility"`
}

// Volatility returns the feed's implied volatility reading, or the default
// when the endpoint has no reading for the symbol.
func (p *LiveProvider) Volatility(ctx context.Context, symbol string, _ time.Time) (float64, error) {
	var resp liveVolResponse
	params := url.Values{"symbol": {symbol}}
	if err := p.session.getJSON(ctx, "/v1/markets/volatility", params, &resp); err != nil {
		return 0, err
	}
	if resp.Volatility <= 0 {
		return p.defaultVol, nil
	}
	return resp.Volatility, nil
}

type liveExpirationsResponse struct {
	Expirations []string `json:"expirations"`
}

// Expirations returns the sorted expiration dates the feed offers.
func (p *LiveProvider) Expirations(ctx context.Context, symbol string, _ time.Time) ([]time.Time, error) {
	var resp liveExpirationsResponse
	params := url.Values{"symbol": {symbol}}
	if err := p.session.getJSON(ctx, "/v1/markets/options/expirations", params, &resp); err != nil {
		return nil, err
	}

	expirations := make([]time.Time, 0, len(resp.Expirations))
	for _, raw := range resp.Expirations {
		exp, err := time.Parse("2006-01-02", raw)
		if err != nil {
			continue
		}
		expirations = append(expirations, exp)
	}
	sort.Slice(expirations, func(i, j int) bool { return expirations[i].Before(expirations[j]) })
	return expirations, nil
}

type liveChainResponse struct {
	Options []liveOption `json:"options"`
}

type liveOption struct {
	ContractID int64   `json:"contract_id"`
	Strike     float64 `json:"strike"`
	Right      string  `json:"option_type"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Last       float64 `json:"last"`
	Greeks     *struct {
		Delta float64 `json:"delta"`
		Gamma float64 `json:"gamma"`
		Theta float64 `json:"theta"`
		Vega  float64 `json:"vega"`
		MidIV float64 `json:"mid_iv"`
	} `json:"greeks"`
}

// OptionChain fetches the chain for the expiration, recomputing any missing
// greeks or prices via the pricer so downstream components always see a
// fully priced leg.
func (p *LiveProvider) OptionChain(ctx context.Context, symbol string, date, expiration time.Time) ([]models.OptionLeg, error) {
	spot, err := p.SpotPrice(ctx, symbol, date)
	if err != nil {
		return nil, err
	}
	if spot == 0 {
		return nil, nil
	}

	vol, err := p.Volatility(ctx, symbol, date)
	if err != nil {
		return nil, err
	}

	var resp liveChainResponse
	params := url.Values{
		"symbol":     {symbol},
		"expiration": {expiration.Format("2006-01-02")},
	}
	if err := p.session.getJSON(ctx, "/v1/markets/options/chain", params, &resp); err != nil {
		return nil, err
	}

	ref := time.Now().UTC().Truncate(24 * time.Hour)
	if !date.IsZero() {
		ref = date.UTC().Truncate(24 * time.Hour)
	}
	t := float64(models.DaysBetween(ref, expiration)) / 365.0

	legs := make([]models.OptionLeg, 0, len(resp.Options))
	for _, opt := range resp.Options {
		right := models.RightPut
		if opt.Right == "call" || opt.Right == "C" {
			right = models.RightCall
		}
		isCall := right == models.RightCall

		price := opt.Last
		if price <= 0 && opt.Bid > 0 && opt.Ask > 0 {
			price = (opt.Bid + opt.Ask) / 2
		}

		iv := vol
		var greeks models.GreekVector
		if opt.Greeks != nil {
			greeks = models.GreekVector{
				Delta: opt.Greeks.Delta,
				Gamma: opt.Greeks.Gamma,
				Theta: opt.Greeks.Theta,
				Vega:  opt.Greeks.Vega,
			}
			if opt.Greeks.MidIV > 0 {
				iv = opt.Greeks.MidIV
			}
		}

		// Feed gaps: recompute with the model rather than passing zeros on.
		if opt.Greeks == nil || price <= 0 {
			delta, gamma, theta, vega := pricer.Greeks(spot, opt.Strike, t, p.riskFree, iv, isCall)
			if opt.Greeks == nil {
				greeks = models.GreekVector{Delta: delta, Gamma: gamma, Theta: theta, Vega: vega}
			}
			if price <= 0 {
				price = pricer.Price(spot, opt.Strike, t, p.riskFree, iv, isCall)
			}
		}

		var mid float64
		if opt.Bid > 0 && opt.Ask > 0 {
			mid = (opt.Bid + opt.Ask) / 2
		} else {
			mid = price
		}

		legs = append(legs, models.OptionLeg{
			Symbol:     symbol,
			Strike:     opt.Strike,
			Expiration: expiration,
			Right:      right,
			Action:     models.ActionBuy,
			Greeks:     greeks,
			Price:      price,
			Bid:        opt.Bid,
			Ask:        opt.Ask,
			Mid:        mid,
			ImpliedVol: &iv,
			ContractID: opt.ContractID,
		})
	}
	return legs, nil
}

var _ Provider = (*LiveProvider)(nil)
