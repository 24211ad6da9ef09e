package cardconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/johnanishgitc/salesdashboard/internal/card"
	"github.com/johnanishgitc/salesdashboard/internal/config"
)

// ErrFetch marks card-configuration fetch failures.
var ErrFetch = errors.New("cardconfig_fetch_failed")

const cardsPath = "/api/dashboard/cards"

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// Client fetches dashboard card definitions from the configuration source.
type Client struct {
	http    *http.Client
	baseURL string
	log     *zap.Logger
}

var Module = fx.Module("cardconfig",
	fx.Provide(NewClient),
)

func NewClient(p Params) *Client {
	timeout := time.Duration(p.Config.UpstreamTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: p.Config.CardAPIBaseURL,
		log:     p.Log.Named("cardconfig.client"),
	}
}

// ListRequest identifies one tenant's card set.
type ListRequest struct {
	Guid          string
	DashboardType string
	TallyLocID    string
	Token         string
}

type listResponse struct {
	Status string            `json:"status"`
	Data   []json.RawMessage `json:"data"`
}

// ListCards returns the active card specs for a dashboard, with the reserved
// settings pseudo-card split out as raw settings JSON.
func (c *Client) ListCards(ctx context.Context, req ListRequest) ([]card.Spec, json.RawMessage, error) {
	query := url.Values{}
	query.Set("dashboardType", req.DashboardType)
	query.Set("coGuid", req.Guid)
	query.Set("isActive", "true")
	if req.TallyLocID != "" {
		query.Set("tallylocId", req.TallyLocID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+cardsPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	var decoded listResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, nil, fmt.Errorf("%w: decode response: %v", ErrFetch, err)
	}
	if decoded.Status != "success" {
		return nil, nil, fmt.Errorf("%w: status %q", ErrFetch, decoded.Status)
	}

	var specs []card.Spec
	var settings json.RawMessage
	for _, raw := range decoded.Data {
		var probe struct {
			Title      string          `json:"title"`
			IsActive   bool            `json:"isActive"`
			CardConfig json.RawMessage `json:"cardConfig"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			c.log.Warn("skipping malformed card record", zap.Error(err))
			continue
		}
		if probe.Title == card.ReservedSettingsTitle {
			settings = probe.CardConfig
			continue
		}
		if !probe.IsActive {
			continue
		}
		var spec card.Spec
		if err := json.Unmarshal(raw, &spec); err != nil {
			c.log.Warn("skipping malformed card spec", zap.String("title", probe.Title), zap.Error(err))
			continue
		}
		specs = append(specs, spec)
	}
	return specs, settings, nil
}
