package datalab

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"papers/internal/logger"
)

// ErrTimeout indicates polling gave up before the conversion finished.
var ErrTimeout = errors.New("datalab: conversion did not complete in time")

// Client submits PDFs to the layout-analysis (marker) endpoint and
// saves finished extractions into the paper cache.
type Client struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
}

// New creates a client for the layout service.
func New(baseURL, apiKey string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	return &Client{baseURL: baseURL, apiKey: apiKey, http: rc}
}

// SubmitResponse is the envelope of a conversion request.
type SubmitResponse struct {
	Success         bool   `json:"success"`
	RequestID       string `json:"request_id"`
	RequestCheckURL string `json:"request_check_url"`
	Error           string `json:"error"`
}

// Result is a finished conversion: the layout-analysis JSON document
// plus extracted images keyed by file name (base64-encoded).
type Result struct {
	Status    string            `json:"status"`
	Success   bool              `json:"success"`
	JSON      json.RawMessage   `json:"json"`
	Images    map[string]string `json:"images"`
	PageCount int               `json:"page_count"`
	Error     string            `json:"error"`
}

// Submit uploads a PDF for layout analysis with JSON block output.
func (c *Client) Submit(ctx context.Context, pdfPath string) (*SubmitResponse, error) {
	file, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("opening pdf %s: %w", pdfPath, err)
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(pdfPath))
	if err != nil {
		return nil, fmt.Errorf("datalab: building upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("datalab: reading pdf: %w", err)
	}
	_ = mw.WriteField("output_format", "json")
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("datalab: building upload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/marker", body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("datalab: building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datalab: request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("datalab: decoding response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("datalab: submission rejected: %s", parsed.Error)
	}
	return &parsed, nil
}

// Poll checks the conversion until it completes or the context ends.
func (c *Client) Poll(ctx context.Context, checkURL string, interval time.Duration) (*Result, error) {
	if interval == 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
		if err != nil {
			return nil, fmt.Errorf("datalab: building poll request: %w", err)
		}
		req.Header.Set("X-Api-Key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("datalab: poll failed: %w", err)
		}
		var result Result
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("datalab: decoding poll response: %w", err)
		}

		if result.Status == "complete" {
			if !result.Success {
				return nil, fmt.Errorf("datalab: conversion failed: %s", result.Error)
			}
			return &result, nil
		}
		logger.Debug().Str("status", result.Status).Msg("conversion pending")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// SaveToCache writes a finished extraction into the cache directory for
// the item key: <root>/<key>/<key>.json plus decoded images/.
func SaveToCache(cacheRoot, itemKey string, result *Result) (string, error) {
	dir := filepath.Join(cacheRoot, itemKey)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, itemKey+".json"), result.JSON, 0644); err != nil {
		return "", fmt.Errorf("writing extraction: %w", err)
	}
	if len(result.Images) > 0 {
		imagesDir := filepath.Join(dir, "images")
		if err := os.MkdirAll(imagesDir, 0755); err != nil {
			return "", fmt.Errorf("creating images directory: %w", err)
		}
		for name, encoded := range result.Images {
			data, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				logger.Warn().Str("image", name).Err(err).Msg("skipping undecodable image")
				continue
			}
			if err := os.WriteFile(filepath.Join(imagesDir, filepath.Base(name)), data, 0644); err != nil {
				return "", fmt.Errorf("writing image %s: %w", name, err)
			}
		}
	}
	return dir, nil
}

// WriteMeta writes the companion meta.json used to seed ingest params.
func WriteMeta(cacheRoot, itemKey string, meta any) error {
	dir := filepath.Join(cacheRoot, itemKey)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding meta: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), raw, 0644)
}
