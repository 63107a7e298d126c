// Package apiclient talks to the agenda HTTP API and its change feed socket.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/asperus/agenda/internal/availability"
	"github.com/asperus/agenda/internal/booking"
	"github.com/asperus/agenda/internal/reservations"
	"github.com/asperus/agenda/internal/stores"
	"github.com/asperus/agenda/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx answer. Error returns the server's message verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("apiclient: status %d", e.Status)
}

// Is maps 409 answers to reservations.ErrSlotTaken.
func (e *APIError) Is(target error) bool {
	return e.Status == http.StatusConflict && target == reservations.ErrSlotTaken
}

// Client implements booking.Backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

var _ booking.Backend = (*Client)(nil)

func New(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// ListStores returns the store directory.
func (c *Client) ListStores(ctx context.Context) ([]stores.Store, error) {
	var out stores.ListResponse
	if err := c.do(ctx, http.MethodGet, "/stores", nil, &out); err != nil {
		return nil, err
	}
	return out.Stores, nil
}

// QuerySlots returns the open slots of one day.
func (c *Client) QuerySlots(ctx context.Context, storeID, day, professional string) ([]string, error) {
	req := availability.SlotQueryRequest{StoreID: storeID, Date: day, Professional: professional}
	var out availability.SlotQueryResponse
	if err := c.do(ctx, http.MethodPost, "/functions/get_available_slots", req, &out); err != nil {
		return nil, err
	}
	if out.Slots == nil {
		return []string{}, nil
	}
	return out.Slots, nil
}

// Reserve commits a reservation. A lost race is an *APIError matching
// reservations.ErrSlotTaken.
func (c *Client) Reserve(ctx context.Context, req reservations.Request) (*reservations.Reservation, error) {
	var out reservations.BookResponse
	if err := c.do(ctx, http.MethodPost, "/functions/book_slot", req, &out); err != nil {
		return nil, err
	}
	if out.Booking == nil {
		return nil, errors.New("apiclient: booking missing from response")
	}
	return out.Booking, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("apiclient: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("apiclient: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apiclient: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error != "" {
			apiErr.Message = envelope.Error
		} else {
			msg := strings.TrimSpace(string(respBody))
			if len(msg) > 300 {
				msg = msg[:300]
			}
			apiErr.Message = msg
		}
		c.logger.Debug("api request failed", "method", method, "path", path, "status", resp.StatusCode)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("apiclient: unmarshal response: %w", err)
	}
	return nil
}
