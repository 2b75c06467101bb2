// Package bioverify is the HTTP client for the analysis API.
package bioverify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/bioverify/internal/config"
	"github.com/kiranshivaraju/bioverify/pkg/models"
)

// Sentinel errors for analysis API failures.
var (
	// ErrUnreachable means the request never produced an HTTP response.
	ErrUnreachable = errors.New("analysis api unreachable")
	// ErrTimeout means the transport gave up waiting for a response.
	ErrTimeout = errors.New("analysis api timeout")
	// ErrServer means the API answered with a non-success status.
	ErrServer = errors.New("analysis api error")
)

// APIError is a non-success response. Message is the server's detail text
// when it sent one, otherwise a generic status-coded message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return ErrServer }

// Client is the interface for talking to the analysis API.
type Client interface {
	CreateAnalysis(ctx context.Context, req SubmitRequest) (*models.Submission, error)
	GetAnalysis(ctx context.Context, id string) (*models.AnalysisJob, error)
	ListAnalyses(ctx context.Context, limit, offset int) ([]models.AnalysisJob, error)
	GetEvidence(ctx context.Context, id string) (*models.EvidenceBundle, error)
	Health(ctx context.Context) (*models.Health, error)
}

// SubmitRequest describes a video upload.
type SubmitRequest struct {
	Filename   string
	Video      io.Reader
	PolicyName string
}

// HTTPClient implements Client over the API's JSON/HTTP interface.
type HTTPClient struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewHTTPClient creates a client from its configuration. Construct it once
// and pass it to whatever needs it.
func NewHTTPClient(cfg config.APIConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		authToken: cfg.AuthToken,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPClient) CreateAnalysis(ctx context.Context, req SubmitRequest) (*models.Submission, error) {
	if req.Video == nil {
		return nil, fmt.Errorf("submit: video is required")
	}

	u := c.baseURL + "/analyses"
	if req.PolicyName != "" {
		u += "?" + url.Values{"policy_name": {req.PolicyName}}.Encode()
	}

	body, contentType := streamMultipart(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	var sub models.Submission
	if err := c.do(httpReq, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *HTTPClient) GetAnalysis(ctx context.Context, id string) (*models.AnalysisJob, error) {
	if id == "" {
		return nil, fmt.Errorf("get analysis: id is required")
	}
	u := fmt.Sprintf("%s/analyses/%s", c.baseURL, url.PathEscape(id))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	var job models.AnalysisJob
	if err := c.do(httpReq, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *HTTPClient) ListAnalyses(ctx context.Context, limit, offset int) ([]models.AnalysisJob, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	u := c.baseURL + "/analyses"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	var jobs []models.AnalysisJob
	if err := c.do(httpReq, &jobs); err != nil {
		return nil, err
	}
	if jobs == nil {
		return []models.AnalysisJob{}, nil
	}
	return jobs, nil
}

func (c *HTTPClient) GetEvidence(ctx context.Context, id string) (*models.EvidenceBundle, error) {
	if id == "" {
		return nil, fmt.Errorf("get evidence: id is required")
	}
	u := fmt.Sprintf("%s/analyses/%s/evidence", c.baseURL, url.PathEscape(id))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	var bundle models.EvidenceBundle
	if err := c.do(httpReq, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (c *HTTPClient) Health(ctx context.Context) (*models.Health, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	var h models.Health
	if err := c.do(httpReq, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// do sends req with the bearer token and decodes a 2xx JSON body into out.
func (c *HTTPClient) do(req *http.Request, out any) error {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// decodeAPIError surfaces the server's message verbatim when the body carries
// one ({"detail": "..."} or {"error": {"message": "..."}}).
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("server returned status %d", resp.StatusCode),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return apiErr
	}

	var detail string
	if json.Unmarshal(payload.Detail, &detail) == nil && detail != "" {
		apiErr.Message = detail
	} else if payload.Error.Message != "" {
		apiErr.Message = payload.Error.Message
	}
	return apiErr
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// streamMultipart encodes the upload through a pipe so the video is never
// buffered in memory.
func streamMultipart(req SubmitRequest) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		filename := req.Filename
		if filename == "" {
			filename = "input.mp4"
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename=%q`, filepath.Base(filename)))
		header.Set("Content-Type", videoContentType(filename))

		part, err := mw.CreatePart(header)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, req.Video); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	return pr, mw.FormDataContentType()
}

// videoContentType guesses the part's type from the file extension. The API
// rejects parts that are not video/*.
func videoContentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); strings.HasPrefix(ct, "video/") {
		return ct
	}
	return "video/mp4"
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
