package storeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amouradev/amoura/backend/internal/domain/model"
	"github.com/amouradev/amoura/backend/internal/infra/httpclient"
)

// Client talks to the subscription platform's snapshot endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("store api base url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.Token),
		httpClient: httpclient.New(cfg.Timeout),
	}, nil
}

// FetchSnapshot returns the platform's current view of the user. A 404
// means the platform knows nothing about them; ok comes back false.
func (c *Client) FetchSnapshot(ctx context.Context, userID int64) (model.Snapshot, bool, error) {
	if userID <= 0 {
		return model.Snapshot{}, false, fmt.Errorf("invalid user id")
	}

	url := c.baseURL + "/v1/subscribers/" + strconv.FormatInt(userID, 10) + "/snapshot"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("build snapshot request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return model.Snapshot{}, false, nil
	default:
		return model.Snapshot{}, false, fmt.Errorf("snapshot endpoint returned status %d", resp.StatusCode)
	}

	var snapshot model.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("decode snapshot payload: %w", err)
	}

	return snapshot, true, nil
}
