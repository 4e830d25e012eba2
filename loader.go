package vagkoll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PageLoader is the REST snapshot collaborator: an ordered most-recent-first
// paged read over the backend's event collection.
type PageLoader interface {
	FetchEventsPage(ctx context.Context, offset, limit int, filters FilterState, mode Mode) ([]*Event, error)
	FetchEventHistory(ctx context.Context, externalID string) ([]EventHistoryVersion, error)
}

// APIClient talks to the backend HTTP API.
type APIClient struct {
	BaseURL string
	Client  *http.Client

	// RetryAttempts applies to page and history fetches. Zero means one
	// attempt, no retries.
	RetryAttempts int
}

var _ PageLoader = (*APIClient)(nil)

// NewAPIClient builds a client with a transport tuned for a long-running
// dashboard process: bounded dial/TLS handshakes so a dead backend fails
// fast instead of hanging a page load.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &APIClient{
		BaseURL:       strings.TrimSuffix(baseURL, "/"),
		Client:        &http.Client{Timeout: timeout, Transport: tr},
		RetryAttempts: 3,
	}
}

// FetchEventsPage requests one page of events. The backend orders pages
// most-recent-first and pages by plain integer offset.
func (c *APIClient) FetchEventsPage(ctx context.Context, offset, limit int, filters FilterState, mode Mode) ([]*Event, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	if mode != ModeAll {
		q.Set("mode", string(mode))
	}
	if s := joinStringSet(filters.MessageTypes); s != "" {
		q.Set("messageTypes", s)
	}
	if s := joinStringSet(filters.Severities); s != "" {
		q.Set("severities", s)
	}
	if counties := filters.EffectiveCounties(); counties != nil {
		q.Set("counties", joinIntSet(counties))
	}

	var events []*Event
	err := c.retry(ctx, func() error {
		return c.getJSON(ctx, "/events?"+q.Encode(), &events)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch events page offset=%d: %w", offset, err)
	}
	return events, nil
}

// FetchEventHistory loads the prior versions of one event. The backend does
// not document an order, so we sort oldest-first ourselves rather than
// assume one.
func (c *APIClient) FetchEventHistory(ctx context.Context, externalID string) ([]EventHistoryVersion, error) {
	var versions []EventHistoryVersion
	path := "/events/" + url.PathEscape(externalID) + "/history"
	err := c.retry(ctx, func() error {
		return c.getJSON(ctx, path, &versions)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", externalID, err)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionTime.Before(versions[j].VersionTime)
	})
	return versions, nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// retry runs fn with exponential backoff, giving up when the context ends.
func (c *APIClient) retry(ctx context.Context, fn func() error) error {
	attempts := c.RetryAttempts
	if attempts <= 1 {
		return fn()
	}
	d := 500 * time.Millisecond
	const maxDelay = 5 * time.Second
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
			if d < maxDelay {
				d *= 2
				if d > maxDelay {
					d = maxDelay
				}
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	if lastErr == nil {
		lastErr = errors.New("retry exhausted")
	}
	return lastErr
}

func joinStringSet(set map[string]bool) string {
	if len(set) == 0 {
		return ""
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func joinIntSet(set map[int]bool) string {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.Itoa(k)
	}
	return strings.Join(parts, ",")
}
