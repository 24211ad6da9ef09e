package tally

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	return &Client{
		http:    http.DefaultClient,
		baseURL: baseURL,
		log:     zap.NewNop(),
	}
}

func TestFetchLedgerChunkSendsContract(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/reports/salesextract", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"vouchers":[{"masterid":"1","alterid":"42","date":"20250401","amount":5000}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	vouchers, err := client.FetchLedgerChunk(context.Background(), ChunkRequest{
		TallyLocID:  "loc-1",
		Company:     "Acme",
		Guid:        "guid-1",
		FromDate:    "20250401",
		ToDate:      "20250401",
		LastAlterID: 7,
		Token:       "tok",
	})
	require.NoError(t, err)
	require.Len(t, vouchers, 1)

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "loc-1", got["tallyloc_id"])
	assert.Equal(t, "No", got["serverslice"])
	assert.Equal(t, DefaultVoucherType, got["vouchertype"])
	assert.Equal(t, float64(7), got["lastaltid"])

	// Numeric payload fields coerce to typed values.
	assert.Equal(t, "1", vouchers[0].MasterID.String())
	assert.Equal(t, int64(42), int64(vouchers[0].AlterID))
	assert.Equal(t, "5000", vouchers[0].Amount.String())
}

func TestFetchLedgerChunkNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream busy", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchLedgerChunk(context.Background(), ChunkRequest{Guid: "g", FromDate: "20250401", ToDate: "20250401"})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestFetchLedgerChunkMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"vouchers": [oops`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchLedgerChunk(context.Background(), ChunkRequest{Guid: "g"})
	assert.ErrorIs(t, err, ErrTransport)
}
