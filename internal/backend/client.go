package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyprpranav/Visitor-Management-System/internal/config"
)

// maxBodyBytes bounds how much of a response is read; exports are the largest.
const maxBodyBytes = 32 << 20

// ErrBodyTooLarge is wrapped when a response exceeds maxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// DefaultExportName is used when the backend does not name the CSV file.
const DefaultExportName = "visitor_logs.csv"

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the visitor backend REST API.
type Client struct {
	baseURL string
	client  HTTPDoer
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(d HTTPDoer) Option {
	return func(c *Client) {
		c.client = d
	}
}

// WithMetrics records request outcomes into m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer allows injecting a custom OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// NewClient creates a backend client for cfg.Endpoint.
func NewClient(cfg config.BackendConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.Endpoint, "/"),
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("visitorconsole/backend")
	}
	return c
}

// Endpoint returns the base URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.baseURL
}

// Stats fetches aggregate visitor counts.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.call(ctx, "stats", func(ctx context.Context) error {
		status, _, body, err := c.send(ctx, http.MethodGet, "/stats", nil)
		if err != nil {
			return err
		}
		if !ok(status) {
			return lenientError(status, body, "Failed to fetch stats")
		}
		return decodeJSON(status, body, "Failed to fetch stats", &stats)
	})
	return stats, err
}

type historyResponse struct {
	Visitors []Visitor `json:"visitors"`
}

// History lists visitors whose name or contact matches search. The backend
// answers 404 when a non-empty search matches nothing.
func (c *Client) History(ctx context.Context, search string) ([]Visitor, error) {
	var res historyResponse
	err := c.call(ctx, "history", func(ctx context.Context) error {
		status, _, body, err := c.send(ctx, http.MethodGet, "/history?search="+url.QueryEscape(search), nil)
		if err != nil {
			return err
		}
		return decodeJSON(status, body, "Failed to fetch history", &res)
	})
	if err != nil {
		return nil, err
	}
	return res.Visitors, nil
}

// CheckIn creates a check-in record.
func (c *Client) CheckIn(ctx context.Context, req CheckInRequest) (VisitorResponse, error) {
	var res VisitorResponse
	err := c.call(ctx, "checkin", func(ctx context.Context) error {
		status, _, body, err := c.send(ctx, http.MethodPost, "/checkin", req)
		if err != nil {
			return err
		}
		return decodeJSON(status, body, "Check-in failed", &res)
	})
	return res, err
}

// CheckOut marks the checked-in visitor with the given contact as departed.
func (c *Client) CheckOut(ctx context.Context, req CheckOutRequest) (VisitorResponse, error) {
	var res VisitorResponse
	err := c.call(ctx, "checkout", func(ctx context.Context) error {
		status, _, body, err := c.send(ctx, http.MethodPost, "/checkout", req)
		if err != nil {
			return err
		}
		return decodeJSON(status, body, "Check-out failed", &res)
	})
	return res, err
}

// SubmitFeedback posts a feedback record.
func (c *Client) SubmitFeedback(ctx context.Context, fb Feedback) (MessageResponse, error) {
	var res MessageResponse
	err := c.call(ctx, "feedback", func(ctx context.Context) error {
		status, _, body, err := c.send(ctx, http.MethodPost, "/feedback", fb)
		if err != nil {
			return err
		}
		return decodeJSON(status, body, "Feedback submission failed", &res)
	})
	return res, err
}

// GenerateQR asks the backend for a pre-registration QR image for contact.
func (c *Client) GenerateQR(ctx context.Context, contact string) (File, error) {
	var file File
	err := c.call(ctx, "generate_qr", func(ctx context.Context) error {
		status, header, body, err := c.send(ctx, http.MethodPost, "/generate-qr", map[string]string{"contact": contact})
		if err != nil {
			return err
		}
		if !ok(status) {
			return lenientError(status, body, "QR code generation failed")
		}
		file = File{Name: "qr.png", ContentType: contentType(header, "image/png"), Data: body}
		return nil
	})
	return file, err
}

// Export downloads the visitor log as CSV.
func (c *Client) Export(ctx context.Context) (File, error) {
	var file File
	err := c.call(ctx, "export", func(ctx context.Context) error {
		status, header, body, err := c.send(ctx, http.MethodGet, "/export", nil)
		if err != nil {
			return err
		}
		if !ok(status) {
			return decodeJSON(status, body, "Export failed", nil)
		}
		file = File{
			Name:        attachmentName(header, DefaultExportName),
			ContentType: contentType(header, "text/csv"),
			Data:        body,
		}
		return nil
	})
	return file, err
}

type preRegistrationsResponse struct {
	PreRegistrations []PreRegistration `json:"preregistrations"`
}

// PendingPreRegistrations lists pre-registrations awaiting a decision.
func (c *Client) PendingPreRegistrations(ctx context.Context) ([]PreRegistration, error) {
	var res preRegistrationsResponse
	err := c.call(ctx, "preregistrations", func(ctx context.Context) error {
		status, _, body, err := c.send(ctx, http.MethodGet, "/preregistrations", nil)
		if err != nil {
			return err
		}
		if !ok(status) {
			return lenientError(status, body, "Failed to fetch preregistrations.")
		}
		return decodeJSON(status, body, "", &res)
	})
	if err != nil {
		return nil, err
	}
	return res.PreRegistrations, nil
}

// Approve approves a pending pre-registration, which checks the visitor in.
func (c *Client) Approve(ctx context.Context, id int64) (MessageResponse, error) {
	return c.decide(ctx, id, "approve", "Approval failed")
}

// Decline declines a pending pre-registration.
func (c *Client) Decline(ctx context.Context, id int64) (MessageResponse, error) {
	return c.decide(ctx, id, "decline", "Decline failed")
}

func (c *Client) decide(ctx context.Context, id int64, action, fallback string) (MessageResponse, error) {
	var res MessageResponse
	err := c.call(ctx, action, func(ctx context.Context) error {
		path := "/preregistrations/" + strconv.FormatInt(id, 10) + "/" + action
		status, _, body, err := c.send(ctx, http.MethodPost, path, nil)
		if err != nil {
			return err
		}
		return decodeJSON(status, body, fallback, &res)
	})
	return res, err
}

// PreRegister submits a future visit for admin approval.
func (c *Client) PreRegister(ctx context.Context, p PreRegistration) (MessageResponse, error) {
	var res MessageResponse
	err := c.call(ctx, "preregister", func(ctx context.Context) error {
		status, _, body, err := c.send(ctx, http.MethodPost, "/preregister", p)
		if err != nil {
			return err
		}
		return decodeJSON(status, body, "Failed to submit pre-registration.", &res)
	})
	return res, err
}

// Probe reports whether the backend answers GET /stats with a 2xx status.
func (c *Client) Probe(ctx context.Context) bool {
	err := c.call(ctx, "probe", func(ctx context.Context) error {
		status, _, _, err := c.send(ctx, http.MethodGet, "/stats", nil)
		if err != nil {
			return err
		}
		if !ok(status) {
			return serverError(status, "API not reachable")
		}
		return nil
	})
	return err == nil
}

// call wraps one logical request in a span and records its outcome.
func (c *Client) call(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "backend."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("backend.endpoint", endpoint)),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	c.metrics.ObserveRequest(endpoint, err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if status := StatusOf(err); status != 0 {
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
	}
	return err
}

// send performs the HTTP exchange. Only transport failures are returned as
// errors; status handling is left to the caller.
func (c *Client) send(ctx context.Context, method, path string, payload any) (int, http.Header, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("marshal %s body: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("create %s request: %w", path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, nil, unreachable(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return resp.StatusCode, resp.Header, nil, invalidResponse(resp.StatusCode, err)
	}
	if len(data) > maxBodyBytes {
		return resp.StatusCode, resp.Header, nil, invalidResponse(resp.StatusCode, ErrBodyTooLarge)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, resp.Header, data, nil
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

// decodeJSON requires a JSON body whatever the status. On 2xx it fills out
// (when non-nil); otherwise it returns a server error carrying the body's
// error or detail, or fallback.
func decodeJSON(status int, data []byte, fallback string, out any) error {
	if ok(status) {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return invalidResponse(status, err)
		}
		return nil
	}
	var env errorBody
	if err := json.Unmarshal(data, &env); err != nil {
		return invalidResponse(status, err)
	}
	return serverError(status, env.message(fallback))
}

// lenientError builds a server error from an optional JSON envelope.
func lenientError(status int, data []byte, fallback string) error {
	var env errorBody
	if err := json.Unmarshal(data, &env); err != nil {
		return serverError(status, fallback)
	}
	return serverError(status, env.message(fallback))
}

func contentType(h http.Header, fallback string) string {
	if ct := h.Get("Content-Type"); ct != "" {
		return ct
	}
	return fallback
}

func attachmentName(h http.Header, fallback string) string {
	_, params, err := mime.ParseMediaType(h.Get("Content-Disposition"))
	if err != nil || params["filename"] == "" {
		return fallback
	}
	return params["filename"]
}
