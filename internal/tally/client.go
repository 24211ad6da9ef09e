package tally

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/johnanishgitc/salesdashboard/internal/config"
	"github.com/johnanishgitc/salesdashboard/internal/voucher/domain"
)

// ErrTransport marks upstream fetch failures. Chunk fetches are never retried
// here; the sync loop records the failure and moves on.
var ErrTransport = errors.New("upstream_transport_failed")

// DefaultVoucherType selects sales and credit-note vouchers upstream.
const DefaultVoucherType = "$$isSales, $$IsCreditNote"

const extractPath = "/api/reports/salesextract"

// ChunkRequest identifies one date chunk of the remote ledger extract.
type ChunkRequest struct {
	TallyLocID  string
	Company     string
	Guid        string
	FromDate    string
	ToDate      string
	LastAlterID int64
	VoucherType string
	Token       string
}

type chunkPayload struct {
	TallyLocID  string `json:"tallyloc_id"`
	Company     string `json:"company"`
	Guid        string `json:"guid"`
	FromDate    string `json:"fromdate"`
	ToDate      string `json:"todate"`
	LastAltID   int64  `json:"lastaltid"`
	ServerSlice string `json:"serverslice"`
	VoucherType string `json:"vouchertype"`
}

type chunkResponse struct {
	Vouchers []domain.RawVoucher `json:"vouchers"`
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// Client talks to the remote transactional ledger's extract endpoint.
type Client struct {
	http    *http.Client
	baseURL string
	log     *zap.Logger
}

var Module = fx.Module("tally",
	fx.Provide(NewClient),
)

func NewClient(p Params) *Client {
	timeout := time.Duration(p.Config.UpstreamTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: p.Config.UpstreamBaseURL,
		log:     p.Log.Named("tally.client"),
	}
}

// FetchLedgerChunk fetches one date chunk of vouchers. The upstream contract
// is POST-only with a bearer token; a non-2xx status is a transport error.
func (c *Client) FetchLedgerChunk(ctx context.Context, req ChunkRequest) ([]domain.RawVoucher, error) {
	if req.VoucherType == "" {
		req.VoucherType = DefaultVoucherType
	}

	payload := chunkPayload{
		TallyLocID:  req.TallyLocID,
		Company:     req.Company,
		Guid:        req.Guid,
		FromDate:    req.FromDate,
		ToDate:      req.ToDate,
		LastAltID:   req.LastAlterID,
		ServerSlice: "No",
		VoucherType: req.VoucherType,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrTransport, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+extractPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d for %s..%s", ErrTransport, resp.StatusCode, req.FromDate, req.ToDate)
	}

	var decoded chunkResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	return decoded.Vouchers, nil
}
