package centralsync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"bitbucket.org/mmdatafocus/routesales_device/models"
)

// RemoteClient is the replicator's view of the central server. Upsert must
// be idempotent keyed by conflictKey so at-least-once delivery is safe.
type RemoteClient interface {
	Upsert(ctx context.Context, table models.EntityTable, records []json.RawMessage, conflictKey string) error
}

// APIClient is a resty-backed implementation of RemoteClient.
type APIClient struct {
	httpClient *resty.Client
	deviceId   string
}

type upsertRequest struct {
	ConflictKey string            `json:"conflict_key"`
	DeviceId    string            `json:"device_id"`
	Records     []json.RawMessage `json:"records"`
}

type upsertResponse struct {
	Upserted int    `json:"upserted"`
	Error    string `json:"error"`
}

// NewAPIClient builds the central-server client from env:
//   - CENTRAL_API_BASE_URL (default https://api.routesales.example.com)
//   - CENTRAL_API_KEY (required for real syncs)
//   - CENTRAL_API_KEY_HEADER (default X-API-Key)
//   - CENTRAL_API_TIMEOUT_SECONDS (default 30)
//   - DEVICE_ID
func NewAPIClient() *APIClient {
	baseURL := strings.TrimSpace(os.Getenv("CENTRAL_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.routesales.example.com"
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("CENTRAL_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	timeoutSeconds := 30
	if v := strings.TrimSpace(os.Getenv("CENTRAL_API_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeoutSeconds = n
		}
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader(apiKeyHeader, strings.TrimSpace(os.Getenv("CENTRAL_API_KEY"))).
		SetHeader("Content-Type", "application/json").
		SetTimeout(time.Duration(timeoutSeconds) * time.Second)

	return &APIClient{
		httpClient: restyClient,
		deviceId:   strings.TrimSpace(os.Getenv("DEVICE_ID")),
	}
}

// Upsert pushes one entity-table batch. The server applies it as an
// insert-or-update keyed by conflictKey, so replaying a batch is harmless.
func (c *APIClient) Upsert(ctx context.Context, table models.EntityTable, records []json.RawMessage, conflictKey string) error {
	if len(records) == 0 {
		return nil
	}

	var result upsertResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(upsertRequest{
			ConflictKey: conflictKey,
			DeviceId:    c.deviceId,
			Records:     records,
		}).
		SetResult(&result).
		Post(fmt.Sprintf("/sync/%s/upsert", table))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	if resp.IsError() {
		if result.Error != "" {
			return fmt.Errorf("upsert %s: server returned %s: %s", table, resp.Status(), result.Error)
		}
		return fmt.Errorf("upsert %s: server returned %s", table, resp.Status())
	}
	return nil
}
