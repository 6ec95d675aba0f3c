// Package hostclient is the HTTP client the control plane uses to read
// and write entity state on the home-automation host (lights, pump
// locks, zone switches), with bounded retries and a short read cache.
package hostclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/clock"
)

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 4 * time.Second
	requestTimeout = 5 * time.Second
	cacheTTL       = 1 * time.Second
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	clock   clock.Clock

	mu    sync.Mutex
	cache map[string]cachedState
}

type cachedState struct {
	state      string
	attributes map[string]any
	fetchedAt  time.Time
}

type stateResponse struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// New builds a Client against baseURL, authenticating with token. clk is
// injected so tests can freeze cache expiry.
func New(baseURL, token string, clk clock.Clock) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
		clock:   clk,
		cache:   map[string]cachedState{},
	}
}

// ReadBool reads an entity's state as a boolean. "on", "true", and
// "locked" are treated as true; anything else is false.
func (c *Client) ReadBool(ctx context.Context, entityID string) (bool, error) {
	s, err := c.readState(ctx, entityID)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(s.state) {
	case "on", "true", "locked":
		return true, nil
	default:
		return false, nil
	}
}

// ReadNumber reads an entity's state as a float64.
func (c *Client) ReadNumber(ctx context.Context, entityID string) (float64, error) {
	s, err := c.readState(ctx, entityID)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s.state, 64)
	if err != nil {
		return 0, &PermanentError{Op: "read_number", Err: fmt.Errorf("entity %s state %q is not numeric: %w", entityID, s.state, err)}
	}
	return v, nil
}

// ReadTimeOfDay reads an entity's state as an "HH:MM" string.
func (c *Client) ReadTimeOfDay(ctx context.Context, entityID string) (string, error) {
	s, err := c.readState(ctx, entityID)
	if err != nil {
		return "", err
	}
	return s.state, nil
}

// SetBool turns an entity on or off via its domain's turn_on/turn_off
// service, invalidating the read cache for that entity.
func (c *Client) SetBool(ctx context.Context, entityID string, on bool) error {
	domain := domainOf(entityID)
	service := "turn_off"
	if on {
		service = "turn_on"
	}

	body, _ := json.Marshal(map[string]string{"entity_id": entityID})
	_, err := c.doWithRetry(ctx, "call_service", "POST", fmt.Sprintf("/services/%s/%s", domain, service), body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.cache, entityID)
	c.mu.Unlock()
	return nil
}

func domainOf(entityID string) string {
	if i := strings.Index(entityID, "."); i >= 0 {
		return entityID[:i]
	}
	return "switch"
}

func (c *Client) readState(ctx context.Context, entityID string) (cachedState, error) {
	c.mu.Lock()
	if cached, ok := c.cache[entityID]; ok && c.clock.Now().Sub(cached.fetchedAt) < cacheTTL {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	raw, err := c.doWithRetry(ctx, "get_state", "GET", "/states/"+entityID, nil)
	if err != nil {
		return cachedState{}, err
	}

	var resp stateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return cachedState{}, &PermanentError{Op: "get_state", Err: fmt.Errorf("decode state for %s: %w", entityID, err)}
	}

	cs := cachedState{state: resp.State, attributes: resp.Attributes, fetchedAt: c.clock.Now()}
	c.mu.Lock()
	c.cache[entityID] = cs
	c.mu.Unlock()
	return cs, nil
}

func (c *Client) doWithRetry(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		data, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			return data, nil
		}

		var perm *PermanentError
		if asPermanent(err, &perm) {
			return nil, err
		}

		lastErr = err
		if attempt == maxRetries {
			break
		}

		log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("host request failed, retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return nil, &TransientError{Op: op, Err: fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)}
}

func asPermanent(err error, target **PermanentError) bool {
	pe, ok := err.(*PermanentError)
	if ok {
		*target = pe
	}
	return ok
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &PermanentError{Op: "build_request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err // network errors are transient
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, &PermanentError{Op: "request", Err: fmt.Errorf("resource not found: %s", path)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &PermanentError{Op: "request", Err: fmt.Errorf("auth failure: status %d", resp.StatusCode)}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("server error: status %d: %s", resp.StatusCode, string(data))
	default:
		return nil, &PermanentError{Op: "request", Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))}
	}
}
