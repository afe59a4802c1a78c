// Package translate talks to the speech-translation backend.
package translate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/speaktranslate/internal/metrics"
)

const (
	translatePath = "/translate"
	userAgent     = "speaktranslate/1.0"

	// Form field names expected by the backend
	fieldAudio      = "input_audio"
	fieldSourceLang = "source_lang"
	fieldTargetLang = "target_lang"
	audioFileName   = "recording.wav"
	audioMimeType   = "audio/wav"
)

// Client sends recordings to POST {base_url}/translate
type Client struct {
	config     Config
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// Config contains translation client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Request is one recording to translate. Language codes are sent verbatim.
type Request struct {
	Audio      []byte
	SourceLang string
	TargetLang string
}

// Response is a decoded successful reply
type Response struct {
	RequestID          string
	Audio              []byte
	MimeType           string
	EnglishTranslation string // still entity-encoded, empty when absent
}

// wireResponse is the JSON body of a 2xx reply
type wireResponse struct {
	Audio              string `json:"audio"`
	MimeType           string `json:"mimetype"`
	EnglishTranslation string `json:"english_translation,omitempty"`
}

// NewClient creates a new translation HTTP client
func NewClient(config Config, m *metrics.Metrics) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		metrics: m,
	}, nil
}

// URL returns the translate endpoint
func (c *Client) URL() string {
	return c.config.BaseURL + translatePath
}

// Translate submits a recording. Failures are not retried.
func (c *Client) Translate(ctx context.Context, req *Request) (*Response, error) {
	requestID := uuid.NewString()
	start := time.Now()

	resp, err := c.doRequest(ctx, requestID, req)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.ObserveTranslation(outcomeOf(err), elapsed, 0)
		slog.Error("Translation request failed", "request_id", requestID, "elapsed", elapsed, "error", err)
		return nil, err
	}

	c.metrics.ObserveTranslation(metrics.OutcomeSuccess, elapsed, len(resp.Audio))
	slog.Info("Translation received", "request_id", requestID, "elapsed", elapsed, "mimetype", resp.MimeType, "bytes", len(resp.Audio))
	return resp, nil
}

func (c *Client) doRequest(ctx context.Context, requestID string, req *Request) (*Response, error) {
	body, contentType, err := createMultipartBody(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	url := c.URL()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)

	slog.Info("Calling translation API", "url", url, "request_id", requestID,
		"source_lang", req.SourceLang, "target_lang", req.TargetLang, "audio_size", len(req.Audio))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	slog.Debug("Translation response status", "request_id", requestID, "status", resp.Status)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Translation API error", "request_id", requestID, "status", resp.Status, "body", string(respBody))
		return nil, &ServerError{StatusCode: resp.StatusCode, Status: statusLine(resp), Body: string(respBody)}
	}

	return decodeResponse(requestID, respBody)
}

// createMultipartBody builds the form: input_audio file, source_lang, target_lang
func createMultipartBody(req *Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fieldAudio, audioFileName),
	}
	header["Content-Type"] = []string{audioMimeType}

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := writer.WriteField(fieldSourceLang, req.SourceLang); err != nil {
		return nil, "", fmt.Errorf("failed to write field %s: %w", fieldSourceLang, err)
	}
	if err := writer.WriteField(fieldTargetLang, req.TargetLang); err != nil {
		return nil, "", fmt.Errorf("failed to write field %s: %w", fieldTargetLang, err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func decodeResponse(requestID string, body []byte) (*Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &DecodeError{Field: "body", Err: err}
	}

	audio, err := base64.StdEncoding.DecodeString(wire.Audio)
	if err != nil {
		return nil, &DecodeError{Field: "audio", Err: err}
	}

	return &Response{
		RequestID:          requestID,
		Audio:              audio,
		MimeType:           wire.MimeType,
		EnglishTranslation: wire.EnglishTranslation,
	}, nil
}

// statusLine renders "<code> <reason>" even when the server sent no reason phrase
func statusLine(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
