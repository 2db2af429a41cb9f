package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func liveServer(t *testing.T, handler http.HandlerFunc) *LiveProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	session := NewSession(srv.URL, "test-key", time.Second)
	t.Cleanup(session.Close)
	return NewLiveProvider(session)
}

func TestLiveProvider_SpotPrice(t *testing.T) {
	p := liveServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"quote":{"symbol":"QQQ","last":441.2,"close":440.0}}`)
	})

	spot, err := p.SpotPrice(context.Background(), "QQQ", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 441.2, spot)
}

func TestLiveProvider_SpotFallsBackToClose(t *testing.T) {
	p := liveServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"quote":{"symbol":"QQQ","last":0,"close":440.0}}`)
	})

	spot, err := p.SpotPrice(context.Background(), "QQQ", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 440.0, spot)
}

func TestLiveProvider_APIErrorWrapped(t *testing.T) {
	p := liveServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := p.SpotPrice(context.Background(), "QQQ", time.Time{})
	require.Error(t, err)

	var srcErr *SourceError
	require.True(t, errors.As(err, &srcErr))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestLiveProvider_Expirations(t *testing.T) {
	p := liveServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"expirations":["2024-05-17","2024-04-19","bogus"]}`)
	})

	expirations, err := p.Expirations(context.Background(), "QQQ", time.Time{})
	require.NoError(t, err)
	// Unparseable entries are dropped, the rest sorted.
	require.Len(t, expirations, 2)
	assert.Equal(t, time.Date(2024, 4, 19, 0, 0, 0, 0, time.UTC), expirations[0])
	assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), expirations[1])
}

func TestLiveProvider_ChainRecomputesMissingGreeks(t *testing.T) {
	exp := time.Now().UTC().AddDate(0, 0, 40)
	p := liveServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/markets/quote":
			fmt.Fprint(w, `{"quote":{"symbol":"QQQ","last":440.0}}`)
		case "/v1/markets/volatility":
			fmt.Fprint(w, `{"volatility":0.22}`)
		case "/v1/markets/options/chain":
			// One fully-quoted option, one with no greeks and no prices.
			fmt.Fprint(w, `{"options":[
				{"contract_id":1,"strike":440,"option_type":"call","bid":10.1,"ask":10.5,"last":10.3,
				 "greeks":{"delta":0.52,"gamma":0.012,"theta":-0.15,"vega":0.6,"mid_iv":0.21}},
				{"contract_id":2,"strike":450,"option_type":"put"}
			]}`)
		default:
			http.NotFound(w, r)
		}
	})

	chain, err := p.OptionChain(context.Background(), "QQQ", time.Time{}, exp)
	require.NoError(t, err)
	require.Len(t, chain, 2)

	quoted := chain[0]
	assert.Equal(t, int64(1), quoted.ContractID)
	assert.Equal(t, 0.52, quoted.Greeks.Delta)
	assert.Equal(t, 10.3, quoted.Price)
	require.NotNil(t, quoted.ImpliedVol)
	assert.Equal(t, 0.21, *quoted.ImpliedVol)

	bare := chain[1]
	assert.Equal(t, int64(2), bare.ContractID)
	// Model-filled: a 40-day put near the money has a real price and a
	// negative delta.
	assert.Greater(t, bare.Price, 0.0)
	assert.Less(t, bare.Greeks.Delta, 0.0)
	require.NotNil(t, bare.ImpliedVol)
	assert.Equal(t, 0.22, *bare.ImpliedVol)
}
