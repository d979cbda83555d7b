package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// ErrUnavailable marks transport-level failures reaching DB-Interact
// (connection refused, timeout). Handlers map it to 503 and never retry;
// retry policy belongs to the end client.
var ErrUnavailable = errors.New("db-interact unavailable")

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dbinteract_requests_total",
	Help: "Requests forwarded to the DB-Interact service, by method and outcome.",
}, []string{"method", "outcome"})

// DBInteract is the HTTP client for the DB-Interact service, the system of
// record for child profiles. Every call carries the original caller's bearer
// token unchanged so DB-Interact applies its own ownership checks.
type DBInteract struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewDBInteract(baseURL string, timeout time.Duration, logger *zap.Logger) *DBInteract {
	return &DBInteract{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Response is a relayed DB-Interact reply: its status code and raw body.
type Response struct {
	Status int
	Body   []byte
}

func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// JSON decodes the body, reporting false when it is not valid JSON.
func (r *Response) JSON() (interface{}, bool) {
	var payload interface{}
	if err := json.Unmarshal(r.Body, &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// Message extracts the "message" field from a JSON error body, falling back
// to the raw text when the body is not parseable JSON.
func (r *Response) Message() string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Body, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(r.Body))
}

type ChildPayload struct {
	Name      string   `json:"name"`
	Birthday  string   `json:"birthday"`
	Group     string   `json:"group,omitempty"`
	Allergies []string `json:"allergies,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

func (c *DBInteract) CreateChild(ctx context.Context, token string, child ChildPayload) (*Response, error) {
	return c.do(ctx, http.MethodPost, "/internal/children", token, child)
}

func (c *DBInteract) LinkSupervisor(ctx context.Context, token, childID, supervisorID string) (*Response, error) {
	payload := map[string]string{"supervisor_id": supervisorID}
	return c.do(ctx, http.MethodPut, "/internal/children/"+childID+"/link-supervisor", token, payload)
}

func (c *DBInteract) UpdateChild(ctx context.Context, token, childID string, fields json.RawMessage) (*Response, error) {
	return c.do(ctx, http.MethodPut, "/internal/children/"+childID, token, fields)
}

func (c *DBInteract) GetChild(ctx context.Context, token, childID string) (*Response, error) {
	return c.do(ctx, http.MethodGet, "/data/children/"+childID, token, nil)
}

func (c *DBInteract) ListChildren(ctx context.Context, token string) (*Response, error) {
	return c.do(ctx, http.MethodGet, "/data/children", token, nil)
}

func (c *DBInteract) do(ctx context.Context, method, path, token string, payload interface{}) (*Response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(method, "unavailable").Inc()
		c.logger.Error("db-interact request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues(method, "unavailable").Inc()
		return nil, fmt.Errorf("%w: read %s %s: %v", ErrUnavailable, method, path, err)
	}

	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Info("db-interact request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))
	return &Response{Status: resp.StatusCode, Body: raw}, nil
}
