// Package backend is a REST client for the document QA service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragqa/internal/domain"
)

const (
	pathListDocs  = "/list_docs"
	pathUploadPDF = "/upload_pdf"
	pathStatic    = "/static/"

	uploadField = "file"
	// maxErrorBody caps how much of a failed response is read for its message.
	maxErrorBody = 64 << 10
)

var (
	_ domain.Backend         = (*Client)(nil)
	_ domain.ArtifactFetcher = (*Client)(nil)
)

// Client talks to the backend over HTTP. It is safe for concurrent use.
type Client struct {
	baseURL       string
	client        *http.Client
	timeout       time.Duration
	uploadTimeout time.Duration
	log           *zap.Logger
}

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	UploadTimeout time.Duration
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	uploadTimeout := cfg.UploadTimeout
	if uploadTimeout == 0 {
		uploadTimeout = 10 * time.Minute
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		client:        hc,
		timeout:       timeout,
		uploadTimeout: uploadTimeout,
		log:           log,
	}
}

// BaseURL returns the resolved backend address.
func (c *Client) BaseURL() string { return c.baseURL }

type listDocsResponse struct {
	Docs []string `json:"docs"`
}

type uploadResponse struct {
	DocID string `json:"doc_id"`
}

type askRequest struct {
	Question string `json:"question"`
	DocID    string `json:"doc_id"`
}

type askResponse struct {
	Answer  string `json:"answer"`
	Context string `json:"context,omitempty"`
	DocID   string `json:"doc_id,omitempty"`
}

type errorResponse struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

// ListDocuments returns the backend's corpus. A missing docs field is an empty corpus.
func (c *Client) ListDocuments(ctx context.Context) ([]domain.DocumentID, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp listDocsResponse
	if err := c.doJSON(ctx, "list documents", http.MethodGet, pathListDocs, nil, &resp); err != nil {
		return nil, err
	}
	ids := make([]domain.DocumentID, 0, len(resp.Docs))
	for _, d := range resp.Docs {
		if d = strings.TrimSpace(d); d != "" {
			ids = append(ids, domain.DocumentID(d))
		}
	}
	return ids, nil
}

// Upload sends the file as multipart field "file" and returns the assigned id.
func (c *Client) Upload(ctx context.Context, file domain.File) (domain.DocumentID, error) {
	const op = "upload"
	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(uploadField, file.Name)
	if err != nil {
		return "", domain.NewTransportError(op, 0, "", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return "", domain.NewTransportError(op, 0, "", err)
	}
	if err := mw.Close(); err != nil {
		return "", domain.NewTransportError(op, 0, "", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathUploadPDF, &body)
	if err != nil {
		return "", domain.NewTransportError(op, 0, "", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp uploadResponse
	if err := c.do(req, op, &resp); err != nil {
		return "", err
	}
	id := strings.TrimSpace(resp.DocID)
	if id == "" {
		return "", domain.NewTransportError(op, 0, "upload response missing doc_id", nil)
	}
	return domain.DocumentID(id), nil
}

// Ask posts a routed question to the endpoint chosen by the caller.
func (c *Client) Ask(ctx context.Context, req domain.AskRequest) (domain.AnswerResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := req.Endpoint
	if endpoint != domain.EndpointAsk && endpoint != domain.EndpointAskAny {
		return domain.AnswerResult{}, domain.NewTransportError("ask", 0, fmt.Sprintf("unsupported endpoint %q", endpoint), nil)
	}
	payload := askRequest{Question: req.Question, DocID: string(req.DocumentID)}
	var resp askResponse
	if err := c.doJSON(ctx, "ask", http.MethodPost, endpoint, payload, &resp); err != nil {
		return domain.AnswerResult{}, err
	}
	return domain.AnswerResult{
		Answer:            resp.Answer,
		MatchedExcerpt:    resp.Context,
		MatchedDocumentID: domain.DocumentID(strings.TrimSpace(resp.DocID)),
	}, nil
}

// ArtifactURL is the address of the original file behind a document.
func (c *Client) ArtifactURL(id domain.DocumentID) string {
	return ArtifactURL(c.baseURL, id)
}

// ArtifactURL builds <base>/static/<id>.pdf with the id path-escaped.
func ArtifactURL(baseURL string, id domain.DocumentID) string {
	if id == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + pathStatic + url.PathEscape(string(id)) + ".pdf"
}

// FetchArtifact streams the original file to w.
func (c *Client) FetchArtifact(ctx context.Context, id domain.DocumentID, w io.Writer) (int64, error) {
	const op = "fetch artifact"
	if id == "" {
		return 0, domain.ErrUnknownDocument
	}
	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ArtifactURL(id), nil)
	if err != nil {
		return 0, domain.NewTransportError(op, 0, "", err)
	}
	c.tagRequest(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, domain.NewTransportError(op, 0, "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, statusError(op, resp)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, domain.NewTransportError(op, 0, "", err)
	}
	return n, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	c.tagRequest(req)
	return req, nil
}

func (c *Client) tagRequest(req *http.Request) {
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("Accept", "application/json")
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return domain.NewTransportError(op, 0, "", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return domain.NewTransportError(op, 0, "", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	start := time.Now()
	reqID := req.Header.Get("X-Request-ID")
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("backend request failed",
			zap.String("op", op), zap.String("request_id", reqID), zap.Error(err))
		return domain.NewTransportError(op, 0, "", err)
	}
	defer resp.Body.Close()
	c.log.Debug("backend response",
		zap.String("op", op),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 300 {
		return statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewTransportError(op, resp.StatusCode, "empty response body", err)
		}
		return domain.NewTransportError(op, 0, "malformed response: "+err.Error(), err)
	}
	return nil
}

// statusError turns a non-2xx response into a TransportError, preferring the
// backend's own error text.
func statusError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return domain.NewTransportError(op, resp.StatusCode, backendMessage(data), nil)
}

func backendMessage(data []byte) string {
	var er errorResponse
	if err := json.Unmarshal(data, &er); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(er.Error); msg != "" {
		return msg
	}
	if len(er.Detail) > 0 {
		var s string
		if err := json.Unmarshal(er.Detail, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
