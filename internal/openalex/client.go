package openalex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrNotFound indicates the addressed entity does not exist upstream.
var ErrNotFound = errors.New("openalex: not found")

// Client is a minimal OpenAlex API client. GET responses are cached on
// disk as a best-effort optimization when a cache directory is set.
type Client struct {
	baseURL string
	mailto  string
	http    *retryablehttp.Client

	cacheDir  string
	cacheOnce sync.Once
	cacheOK   bool
}

// New creates a client. mailto joins the polite pool when non-empty;
// cacheDir enables the on-disk response cache when non-empty.
func New(baseURL, mailto, cacheDir string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	return &Client{
		baseURL:  baseURL,
		mailto:   mailto,
		http:     rc,
		cacheDir: cacheDir,
	}
}

// ListWorks lists works with full-text search, filters, sorting,
// pagination, sampling, field selection, and grouping.
func (c *Client) ListWorks(ctx context.Context, params *ListParams) (*ListWorksResponse, error) {
	var resp ListWorksResponse
	if err := c.getJSON(ctx, "/works", params.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetWork fetches a single work by OpenAlex ID or by "doi:<bare-doi>".
func (c *Client) GetWork(ctx context.Context, id string, params *GetParams) (*Work, error) {
	var work Work
	if err := c.getJSON(ctx, "/works/"+url.PathEscape(id), params.Encode(), &work); err != nil {
		return nil, err
	}
	return &work, nil
}

// AutocompleteWorks returns typeahead suggestions for works.
func (c *Client) AutocompleteWorks(ctx context.Context, q string) (*AutocompleteResponse, error) {
	v := url.Values{}
	v.Set("q", q)
	var resp AutocompleteResponse
	if err := c.getJSON(ctx, "/autocomplete/works", v, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FindWorks performs semantic search over works by conceptual
// similarity.
func (c *Client) FindWorks(ctx context.Context, params *FindWorksParams) (*FindWorksResponse, error) {
	var resp FindWorksResponse
	if err := c.getJSON(ctx, "/find/works", params.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if c.mailto != "" {
		query.Set("mailto", c.mailto)
	}
	u := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}

	if body, ok := c.cacheRead(u); ok {
		if json.Unmarshal(body, out) == nil {
			return nil
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("openalex: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("openalex: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("openalex: %s returned %d: %s", path, resp.StatusCode, string(b))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openalex: reading response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("openalex: decoding response: %w", err)
	}
	c.cacheWrite(u, body)
	return nil
}

func (c *Client) cachePath(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(c.cacheDir, hex.EncodeToString(sum[:])+".json")
}

func (c *Client) ensureCache() bool {
	c.cacheOnce.Do(func() {
		if c.cacheDir == "" {
			return
		}
		c.cacheOK = os.MkdirAll(c.cacheDir, 0755) == nil
	})
	return c.cacheOK
}

func (c *Client) cacheRead(u string) ([]byte, bool) {
	if !c.ensureCache() {
		return nil, false
	}
	body, err := os.ReadFile(c.cachePath(u))
	if err != nil {
		return nil, false
	}
	return body, true
}

func (c *Client) cacheWrite(u string, body []byte) {
	if !c.ensureCache() {
		return
	}
	_ = os.WriteFile(c.cachePath(u), body, 0644)
}
