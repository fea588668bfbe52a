// Package persistence is the HTTP client of the remote profile API.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"onboard/internal/profile/models"
	"onboard/internal/upload"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/platform/retry"
	"onboard/pkg/platform/sentinel"
)

const (
	profilePath  = "/profile"
	completePath = "/profile/complete"
	uploadPath   = "/upload-document"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Client talks to the profile API on behalf of one organization.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
	retry  retry.Policy
	tracer trace.Tracer
	logger *slog.Logger
}

type Option func(c *Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithRetryPolicy sets the backoff used for LoadProfile.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New builds a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid api base url %q", baseURL))
	}
	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: 30 * time.Second},
		retry:  retry.DefaultPolicy(),
		tracer: otel.Tracer("onboard/internal/persistence"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LoadProfile fetches the stored profile. A profile that was never saved
// returns sentinel.ErrNotFound. Transient failures are retried.
func (c *Client) LoadProfile(ctx context.Context) (*models.ProfileDraft, error) {
	ctx, span := c.tracer.Start(ctx, "persistence.LoadProfile")
	defer span.End()

	draft, err := retry.DoValue(ctx, c.retry, func(ctx context.Context) (*models.ProfileDraft, error) {
		var envelope struct {
			Data *models.ProfileDraft `json:"data"`
		}
		if err := c.do(ctx, http.MethodGet, profilePath, nil, "", &envelope); err != nil {
			if !retryable(err) {
				return nil, retry.Permanent(err)
			}
			c.logger.WarnContext(ctx, "load profile attempt failed", "error", err)
			return nil, err
		}
		if envelope.Data == nil {
			return nil, retry.Permanent(dErrors.New(dErrors.CodeInternal, "profile response has no data"))
		}
		return envelope.Data, nil
	})
	endSpan(span, err)
	return draft, err
}

// SaveProgress writes the draft without server-side validation.
func (c *Client) SaveProgress(ctx context.Context, draft *models.ProfileDraft) error {
	ctx, span := c.tracer.Start(ctx, "persistence.SaveProgress")
	defer span.End()

	err := c.postJSON(ctx, completePath+"?mode=progress", draft)
	endSpan(span, err)
	return err
}

// CompleteProfile submits the finished draft. A server-side rejection is
// returned as *models.CompleteFailure.
func (c *Client) CompleteProfile(ctx context.Context, draft *models.ProfileDraft) error {
	ctx, span := c.tracer.Start(ctx, "persistence.CompleteProfile",
		trace.WithAttributes(attribute.Int("documents.uploaded", draft.UploadedCount())))
	defer span.End()

	err := c.postJSON(ctx, completePath, draft)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
		err = apiErr.completeFailure()
	}
	endSpan(span, err)
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, draft *models.ProfileDraft) error {
	body, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json", nil)
}

// UploadDocument streams f as a multipart form to the document endpoint.
func (c *Client) UploadDocument(ctx context.Context, t models.DocumentType, f upload.File) (upload.Result, error) {
	ctx, span := c.tracer.Start(ctx, "persistence.UploadDocument", trace.WithAttributes(
		attribute.String("document.type", string(t)),
		attribute.Int64("document.size", f.Size),
	))
	defer span.End()

	body, contentType := multipartBody(t, f)
	var res upload.Result
	err := c.do(ctx, http.MethodPost, uploadPath, body, contentType, &res)
	if err == nil && res.FileURL == "" {
		err = dErrors.New(dErrors.CodeUploadFailed, "upload response has no file url")
	}
	endSpan(span, err)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	target := c.base.String() + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnauthorized, "obtain access token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, method+" "+path)
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, method+" "+path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		_, _ = io.Copy(io.Discard, resp.Body)
		return sentinel.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "decode "+path+" response")
	}
	return nil
}

// APIError is a non-2xx response of the profile API.
type APIError struct {
	Status int
	Body   httputil.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Body.ErrorDescription != "" {
		return fmt.Sprintf("profile api: %d %s: %s", e.Status, e.Body.Error, e.Body.ErrorDescription)
	}
	return fmt.Sprintf("profile api: %d %s", e.Status, e.Body.Error)
}

// DomainCode maps the status back to a domain code.
func (e *APIError) DomainCode() dErrors.Code {
	switch e.Status {
	case http.StatusBadRequest:
		return dErrors.CodeBadRequest
	case http.StatusUnauthorized:
		return dErrors.CodeUnauthorized
	case http.StatusForbidden:
		return dErrors.CodeForbidden
	case http.StatusNotFound:
		return dErrors.CodeNotFound
	case http.StatusConflict:
		return dErrors.CodeConflict
	case http.StatusUnprocessableEntity:
		return dErrors.CodeValidation
	case http.StatusTooManyRequests:
		return dErrors.CodeRateLimited
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return dErrors.CodeUnavailable
	case http.StatusGatewayTimeout:
		return dErrors.CodeTimeout
	}
	return dErrors.CodeInternal
}

func (e *APIError) completeFailure() *models.CompleteFailure {
	failure := &models.CompleteFailure{Reason: e.Body.ErrorDescription, Violations: e.Body.Violations, Err: e}
	if failure.Reason == "" {
		failure.Reason = "rejected by server"
	}
	for _, m := range e.Body.Missing {
		var ref models.FieldRef
		if err := ref.UnmarshalText([]byte(m)); err == nil {
			failure.Missing = append(failure.Missing, ref)
		}
	}
	return failure
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &apiErr.Body); err != nil || apiErr.Body.Error == "" {
		apiErr.Body.Error = http.StatusText(resp.StatusCode)
		apiErr.Body.ErrorDescription = strings.TrimSpace(string(raw))
	}
	return apiErr
}

// retryable reports whether a failed call may succeed when repeated.
func retryable(err error) bool {
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeUnavailable, dErrors.CodeTimeout, dErrors.CodeInternal, dErrors.CodeRateLimited:
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
		}
		return true
	}
	return false
}

func endSpan(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		span.SetAttributes(attribute.Bool("profile.found", false))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
