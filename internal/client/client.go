// Package client talks to a remote sermo HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sermohq/sermo/internal/whisper"
)

// Response is the JSON contract of the upload endpoint.
type Response struct {
	Text                string   `json:"text"`
	Model               string   `json:"model"`
	DetectedLanguage    *string  `json:"detected_language"`
	LanguageProbability *float64 `json:"language_probability"`
	Seconds             float64  `json:"seconds"`
	Bytes               int64    `json:"bytes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client posts audio files to a remote server's upload endpoint.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

// Transcribe uploads the file at audioPath and returns the shaped result.
// The request body is streamed, large files are never buffered in memory.
func (c *Client) Transcribe(ctx context.Context, audioPath, model string, opts whisper.Options) (whisper.Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return whisper.Result{}, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(audioPath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	endpoint, err := c.endpointURL(model, opts)
	if err != nil {
		return whisper.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return whisper.Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return whisper.Result{}, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return whisper.Result{}, decodeError(resp)
	}

	var body Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return whisper.Result{}, fmt.Errorf("decode response: %w", err)
	}

	result := whisper.Result{Text: body.Text, Seconds: body.Seconds}
	if body.DetectedLanguage != nil {
		result.DetectedLanguage = *body.DetectedLanguage
	}
	if body.LanguageProbability != nil {
		result.LanguageProbability = *body.LanguageProbability
	}
	return result, nil
}

// Health checks the server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) endpointURL(model string, opts whisper.Options) (string, error) {
	base, err := url.Parse(c.BaseURL + "/v1/transcribe")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	query := base.Query()
	if model != "" {
		query.Set("model", model)
	}
	if language := strings.TrimSpace(opts.Language); language != "" && language != "auto" {
		query.Set("language", language)
	}
	if opts.BeamSize > 0 {
		query.Set("beam_size", strconv.Itoa(opts.BeamSize))
	}
	query.Set("vad_filter", strconv.FormatBool(opts.VADFilter))
	base.RawQuery = query.Encode()

	return base.String(), nil
}

func decodeError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body errorResponse
	if err := json.Unmarshal(payload, &body); err == nil && body.Error != "" {
		return fmt.Errorf("server rejected request (status %d): %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server rejected request: status %d", resp.StatusCode)
}
