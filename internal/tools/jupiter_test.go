package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"agent-wallet-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func TestJupiterBuildSwap(t *testing.T) {
	var swapBody map[string]json.RawMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			q := r.URL.Query()
			assert.Equal(t, NativeMint, q.Get("inputMint"))
			assert.Equal(t, usdcMint, q.Get("outputMint"))
			assert.Equal(t, "250000000", q.Get("amount"))
			assert.Equal(t, "200", q.Get("slippageBps"))
			assert.Equal(t, "true", q.Get("onlyDirectRoutes"))
			assert.Equal(t, "20", q.Get("maxAccounts"))
			_, _ = w.Write([]byte(`{"inAmount":"250000000","outAmount":"41000000","routePlan":[]}`))
		case "/swap":
			assert.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&swapBody))
			_, _ = w.Write([]byte(`{"swapTransaction":"AQAB","lastValidBlockHeight":123}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewJupiterClient(srv.URL+"/", zap.NewNop())
	tx, err := client.BuildSwap(context.Background(), SwapRequest{
		OutputMint:  usdcMint,
		InputAmount: decimal.RequireFromString("0.25"),
		UserWallet:  wallet,
	})
	require.NoError(t, err)
	assert.Equal(t, "AQAB", tx)

	assert.JSONEq(t, `"`+wallet+`"`, string(swapBody["userPublicKey"]))
	assert.JSONEq(t, `"auto"`, string(swapBody["prioritizationFeeLamports"]))
	assert.JSONEq(t, `{"inAmount":"250000000","outAmount":"41000000","routePlan":[]}`, string(swapBody["quoteResponse"]))
}

func TestJupiterQuoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Could not find any route","errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`))
	}))
	defer srv.Close()

	client := NewJupiterClient(srv.URL, zap.NewNop())
	_, err := client.BuildSwap(context.Background(), SwapRequest{
		OutputMint:  usdcMint,
		InputAmount: decimal.NewFromInt(1),
		UserWallet:  wallet,
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "COULD_NOT_FIND_ANY_ROUTE", swapErrorCode(err))
}

func TestJupiterValidatesInput(t *testing.T) {
	client := NewJupiterClient("http://127.0.0.1:0", zap.NewNop())

	cases := []SwapRequest{
		{OutputMint: usdcMint, InputAmount: decimal.NewFromInt(1), UserWallet: "not-a-wallet"},
		{OutputMint: "0OIl", InputAmount: decimal.NewFromInt(1), UserWallet: wallet},
		{OutputMint: usdcMint, InputAmount: decimal.Zero, UserWallet: wallet},
	}
	for _, req := range cases {
		_, err := client.BuildSwap(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}
