// Package metadatamgr is the submit-and-await client for the external
// Metadata Task Manager (spec §1, §4.3): an opaque collaborator trusted to
// complete metadata collection once a request is accepted. The client only
// confirms acceptance; it never polls for completion.
//
// Grounded on internal/scheduler/executor.go's hardened http.Client
// construction (TLS floor, connection pooling, bounded redirects).
package metadatamgr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RefreshRequest is the params payload spec §4.3 names for a metadata
// refresh: comprehensive depth, capped table count, generous timeout, and
// the three metadata categories the refresh collects.
type RefreshRequest struct {
	ConnectionID uuid.UUID `json:"connectionId"`
	Depth        string    `json:"depth"`
	TableLimit   int       `json:"tableLimit"`
	TimeoutMins  int       `json:"timeoutMinutes"`
	RefreshTypes []string  `json:"refreshTypes"`
}

// DefaultRefreshRequest builds the canonical request body for connectionID,
// matching the fixed params spec §4.3 specifies for every refresh.
func DefaultRefreshRequest(connectionID uuid.UUID) RefreshRequest {
	return RefreshRequest{
		ConnectionID: connectionID,
		Depth:        "comprehensive",
		TableLimit:   50,
		TimeoutMins:  45,
		RefreshTypes: []string{"tables", "columns", "statistics"},
	}
}

// SchemaMismatchNotice is the targeted-refresh trigger a validation
// executor sends when a rule query fails with an error suggesting the
// underlying schema drifted out from under it.
type SchemaMismatchNotice struct {
	ConnectionID uuid.UUID `json:"connectionId"`
	TableName    string    `json:"tableName"`
	Reason       string    `json:"reason"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second, // acceptance-only round trip, not the refresh itself
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
	}
}

// SubmitRefresh posts a refresh request and returns once the task manager
// has acknowledged acceptance (2xx). It does not wait for the refresh
// itself to finish — that would defeat the point of treating the task
// manager as an opaque, trusted-to-complete collaborator.
func (c *Client) SubmitRefresh(ctx context.Context, req RefreshRequest) error {
	return c.post(ctx, "/v1/metadata/refresh", req)
}

// NotifySchemaMismatch sends the targeted-refresh trigger spec §4.3
// describes: a validation failure whose error text hints the target
// schema drifted, interpreted by the task manager as a refresh signal.
func (c *Client) NotifySchemaMismatch(ctx context.Context, notice SchemaMismatchNotice) error {
	return c.post(ctx, "/v1/metadata/schema-mismatch", notice)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("submit to metadata task manager: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("metadata task manager rejected submission: status %d", resp.StatusCode)
	}
	return nil
}
