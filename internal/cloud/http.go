package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	kerrors "github.com/PolarWolf314/keysync/internal/errors"
	"github.com/PolarWolf314/keysync/internal/keystore"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPBackend talks to a keysync relay.
type HTTPBackend struct {
	base   string
	client *retryablehttp.Client
}

var _ Backend = (*HTTPBackend)(nil)

// NewHTTPBackend returns a backend for the relay at baseURL. Transport
// failures are retried twice; responses are handed back unchanged.
func NewHTTPBackend(baseURL string, timeout time.Duration) (*HTTPBackend, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: relay address %q is not an absolute url", kerrors.ErrInvalidConfig, baseURL)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient.Timeout = timeout

	return &HTTPBackend{base: strings.TrimRight(u.String(), "/"), client: client}, nil
}

func (b *HTTPBackend) endpoint(account, resource string) string {
	return b.base + "/v1/accounts/" + url.PathEscape(account) + "/" + resource
}

func (b *HTTPBackend) AccountStatus(ctx context.Context, account string) (AccountStatus, error) {
	resp, err := b.do(ctx, http.MethodGet, b.endpoint(account, "status"), nil)
	if err != nil {
		return StatusUnknown, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return StatusNoAccount, nil
	}
	if err := checkResponse(resp); err != nil {
		return StatusUnknown, err
	}
	var doc StatusDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return StatusUnknown, fmt.Errorf("%w: decoding status: %w", kerrors.ErrServiceUnavailable, err)
	}
	return doc.Status, nil
}

func (b *HTTPBackend) SetAccountStatus(ctx context.Context, account string, status AccountStatus) error {
	body, err := json.Marshal(StatusDocument{Status: status})
	if err != nil {
		return err
	}
	resp, err := b.do(ctx, http.MethodPut, b.endpoint(account, "status"), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkResponse(resp)
}

func (b *HTTPBackend) Push(ctx context.Context, account string, changes []keystore.Change) error {
	if len(changes) == 0 {
		return nil
	}
	body, err := json.Marshal(ChangeSet{Changes: changes})
	if err != nil {
		return err
	}
	resp, err := b.do(ctx, http.MethodPost, b.endpoint(account, "changes"), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkResponse(resp)
}

func (b *HTTPBackend) Pull(ctx context.Context, account string) (keystore.Snapshot, error) {
	resp, err := b.do(ctx, http.MethodGet, b.endpoint(account, "snapshot"), nil)
	if err != nil {
		return keystore.Snapshot{}, err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return keystore.Snapshot{}, err
	}
	var snap keystore.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return keystore.Snapshot{}, fmt.Errorf("%w: decoding snapshot: %w", kerrors.ErrServiceUnavailable, err)
	}
	return snap, nil
}

func (b *HTTPBackend) Close() error {
	b.client.HTTPClient.CloseIdleConnections()
	return nil
}

func (b *HTTPBackend) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var payload any
	if body != nil {
		payload = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s %s: %w", kerrors.ErrNetwork, method, target, err)
	}
	return resp, nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := strings.TrimSpace(string(msg))
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: relay returned %d: %s", kerrors.ErrServiceUnavailable, resp.StatusCode, detail)
	}
	return fmt.Errorf("relay returned %d: %s", resp.StatusCode, detail)
}
