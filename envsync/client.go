package envsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	errs "github.com/envsync/envsync/internal/errors"
)

// RemoteStore is the remote snapshot store consumed by the sync engine.
// Push has full-replace semantics: all prior records for the (project,
// environment) pair are discarded. Pull's found result distinguishes
// "nothing to pull" from an empty snapshot.
type RemoteStore interface {
	PushSnapshot(ctx context.Context, project, environment string, records EncryptedSnapshot) error
	PullSnapshot(ctx context.Context, project, environment string) (EncryptedSnapshot, bool, error)
}

// Client talks to the envsync remote store over its JSON HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates an API client for the given base URL and bearer token.
// If httpClient is nil, http.DefaultClient is used.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
	}
}

type pushRequest struct {
	Records EncryptedSnapshot `json:"records"`
}

type pullResponse struct {
	Records EncryptedSnapshot `json:"records"`
}

func (c *Client) snapshotURL(project, environment string) string {
	return fmt.Sprintf("%s/v1/projects/%s/environments/%s/snapshot",
		c.baseURL, url.PathEscape(project), url.PathEscape(environment))
}

// PushSnapshot replaces the full remote record set for the environment.
func (c *Client) PushSnapshot(ctx context.Context, project, environment string, records EncryptedSnapshot) error {
	payload, err := json.Marshal(pushRequest{Records: records})
	if err != nil {
		return fmt.Errorf("marshalling push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.snapshotURL(project, environment), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: push: %v", errs.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading push response: %v", errs.ErrTransport, err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: push returned status %d", errs.ErrInvalidToken, resp.StatusCode)
	default:
		return fmt.Errorf("%w: push returned status %d: %s", errs.ErrTransport, resp.StatusCode, apiErrorMessage(body))
	}
}

// PullSnapshot fetches the remote record set for the environment. The
// second result is false when the remote store has no snapshot for the
// pair (HTTP 404), which is distinct from an empty snapshot.
func (c *Client) PullSnapshot(ctx context.Context, project, environment string) (EncryptedSnapshot, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.snapshotURL(project, environment), nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating pull request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: pull: %v", errs.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading pull response: %v", errs.ErrTransport, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, false, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, false, fmt.Errorf("%w: pull returned status %d", errs.ErrInvalidToken, resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("%w: pull returned status %d: %s", errs.ErrTransport, resp.StatusCode, apiErrorMessage(body))
	}

	var pr pullResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, false, fmt.Errorf("%w: decoding pull response: %v", errs.ErrTransport, err)
	}

	if pr.Records == nil {
		pr.Records = EncryptedSnapshot{}
	}

	return pr.Records, true, nil
}

// apiErrorMessage extracts a human-readable message from an API error
// body. The store returns either {"error": "..."} or {"message": "..."};
// gjson tolerates both plus any non-JSON body.
func apiErrorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error").Str; msg != "" {
		return msg
	}
	if msg := gjson.GetBytes(body, "message").Str; msg != "" {
		return msg
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
