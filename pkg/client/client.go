// Package client is an HTTP client for the production tracker API. It
// satisfies workflow.RecordStore so the entry wizard can run against a
// remote server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"prodtracker-backend/domain/production"
	"prodtracker-backend/domain/site"
	apperrors "prodtracker-backend/pkg/errors"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Client talks to the REST API rooted at baseURL
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for baseURL, e.g. http://localhost:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListSites returns every production site
func (c *Client) ListSites(ctx context.Context) ([]site.Site, error) {
	var sites []site.Site
	if err := c.do(ctx, http.MethodGet, "/api/production-site", nil, &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

// ListRecords returns the history of one site
func (c *Client) ListRecords(ctx context.Context, companyID, productionSiteID int) ([]production.Record, error) {
	var resp struct {
		Data []production.Record `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, sitePath(companyID, productionSiteID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CheckExisting returns the record for the month, or nil when there is none
func (c *Client) CheckExisting(ctx context.Context, companyID, productionSiteID int, month production.MonthYear) (*production.Record, error) {
	var rec production.Record
	err := c.do(ctx, http.MethodGet, recordPath(companyID, productionSiteID, month), nil, &rec)
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create posts a new record. An existing record yields a conflict error.
func (c *Client) Create(ctx context.Context, companyID, productionSiteID int, month production.MonthYear, m production.Measurements) (*production.Record, error) {
	body := measurementBody(production.FullPatch(m))
	body["pk"] = production.PartitionKey(companyID, productionSiteID)
	body["sk"] = month.String()

	var rec production.Record
	if err := c.do(ctx, http.MethodPost, "/api/production-unit", body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update sends the fields present in patch
func (c *Client) Update(ctx context.Context, companyID, productionSiteID int, month production.MonthYear, patch production.MeasurementPatch) (*production.Record, error) {
	var rec production.Record
	if err := c.do(ctx, http.MethodPut, recordPath(companyID, productionSiteID, month), measurementBody(patch), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewUnavailableError("production API").WithCause(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("API request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeError rebuilds the server's AppError so callers can use the
// apperrors predicates on it.
func decodeError(resp *http.Response) error {
	var body apperrors.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(data, &body); err != nil || body.Type == "" {
		body.Type = string(apperrors.TypeForStatus(resp.StatusCode))
		body.Message = strings.TrimSpace(string(data))
		if body.Message == "" {
			body.Message = resp.Status
		}
	}
	return &apperrors.AppError{
		Type:       apperrors.ErrorType(body.Type),
		Message:    body.Message,
		Code:       body.Code,
		Details:    body.Details,
		HTTPStatus: resp.StatusCode,
	}
}

func sitePath(companyID, productionSiteID int) string {
	return fmt.Sprintf("/api/production-unit/%d/%d", companyID, productionSiteID)
}

func recordPath(companyID, productionSiteID int, month production.MonthYear) string {
	return sitePath(companyID, productionSiteID) + "/" + month.String()
}

func measurementBody(p production.MeasurementPatch) map[string]interface{} {
	body := make(map[string]interface{})
	for i, name := range production.UnitFieldNames {
		if p.Units[i] != nil {
			body[name] = *p.Units[i]
		}
	}
	for i, name := range production.ChargeFieldNames {
		if p.Charges[i] != nil {
			body[name] = *p.Charges[i]
		}
	}
	return body
}
