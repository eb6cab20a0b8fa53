package zotero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrNotFound indicates the addressed item does not exist upstream.
var ErrNotFound = errors.New("zotero: not found")

// Client is a read-only client for a user's reference library.
type Client struct {
	baseURL string
	apiKey  string
	userID  string
	http    *retryablehttp.Client
}

// New creates a client for the given user library.
func New(baseURL, apiKey, userID string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	return &Client{baseURL: baseURL, apiKey: apiKey, userID: userID, http: rc}
}

// LooksLikeItemKey reports whether the input has the shape of an item
// key: exactly eight uppercase alphanumeric characters.
func LooksLikeItemKey(input string) bool {
	if len(input) != 8 {
		return false
	}
	for _, c := range input {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// ItemListParams are the query parameters of item list endpoints.
type ItemListParams struct {
	Q         string
	QMode     string
	Tag       string
	ItemType  string
	ItemKey   string
	Since     *int
	Sort      string
	Direction string
	Limit     *int
	Start     *int
}

// Encode renders the parameters as URL query values.
func (p *ItemListParams) Encode() url.Values {
	v := url.Values{}
	if p == nil {
		return v
	}
	if p.Q != "" {
		v.Set("q", p.Q)
	}
	if p.QMode != "" {
		v.Set("qmode", p.QMode)
	}
	if p.Tag != "" {
		v.Set("tag", p.Tag)
	}
	if p.ItemType != "" {
		v.Set("itemType", p.ItemType)
	}
	if p.ItemKey != "" {
		v.Set("itemKey", p.ItemKey)
	}
	if p.Since != nil {
		v.Set("since", strconv.Itoa(*p.Since))
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	if p.Direction != "" {
		v.Set("direction", p.Direction)
	}
	if p.Limit != nil {
		v.Set("limit", strconv.Itoa(*p.Limit))
	}
	if p.Start != nil {
		v.Set("start", strconv.Itoa(*p.Start))
	}
	return v
}

func (c *Client) userPath(suffix string) string {
	return fmt.Sprintf("%s/users/%s%s", c.baseURL, c.userID, suffix)
}

// GetItem fetches a single item by key.
func (c *Client) GetItem(ctx context.Context, key string) (*Item, error) {
	var item Item
	if err := c.getJSON(ctx, c.userPath("/items/"+url.PathEscape(key)), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems lists all items in the library.
func (c *Client) ListItems(ctx context.Context, params *ItemListParams) ([]Item, error) {
	var items []Item
	if err := c.getJSON(ctx, c.userPath("/items"), params.Encode(), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListTopItems lists top-level items (excluding notes and attachments
// nested under parents).
func (c *Client) ListTopItems(ctx context.Context, params *ItemListParams) ([]Item, error) {
	var items []Item
	if err := c.getJSON(ctx, c.userPath("/items/top"), params.Encode(), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListItemChildren lists the child items (attachments, notes) of one
// item.
func (c *Client) ListItemChildren(ctx context.Context, key string, params *ItemListParams) ([]Item, error) {
	var items []Item
	if err := c.getJSON(ctx, c.userPath("/items/"+url.PathEscape(key)+"/children"), params.Encode(), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListItemTags lists the tags attached to one item.
func (c *Client) ListItemTags(ctx context.Context, key string) ([]Tag, error) {
	var tags []Tag
	if err := c.getJSON(ctx, c.userPath("/items/"+url.PathEscape(key)+"/tags"), nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// ListCollections lists the library's collections.
func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	var cols []Collection
	if err := c.getJSON(ctx, c.userPath("/collections"), nil, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

// ListCollectionItems lists the items of one collection.
func (c *Client) ListCollectionItems(ctx context.Context, key string, params *ItemListParams) ([]Item, error) {
	var items []Item
	if err := c.getJSON(ctx, c.userPath("/collections/"+url.PathEscape(key)+"/items"), params.Encode(), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ItemFullText fetches the indexed full text of an attachment item.
func (c *Client) ItemFullText(ctx context.Context, key string) (string, error) {
	var payload struct {
		Content string `json:"content"`
	}
	if err := c.getJSON(ctx, c.userPath("/items/"+url.PathEscape(key)+"/fulltext"), nil, &payload); err != nil {
		return "", err
	}
	return payload.Content, nil
}

// FileViewURL returns the URL at which an item's primary PDF attachment
// can be viewed.
func (c *Client) FileViewURL(key string) string {
	return c.userPath("/items/" + url.PathEscape(key) + "/file/view")
}

// PrimaryPDFAttachment returns the first child of the item whose
// content type is application/pdf, or nil if none exists.
func (c *Client) PrimaryPDFAttachment(ctx context.Context, key string) (*Item, error) {
	children, err := c.ListItemChildren(ctx, key, &ItemListParams{ItemType: "attachment"})
	if err != nil {
		return nil, err
	}
	for i := range children {
		ct := children[i].Data.ContentType
		if ct != nil && *ct == "application/pdf" {
			return &children[i], nil
		}
	}
	return nil, nil
}

func (c *Client) getJSON(ctx context.Context, u string, query url.Values, out any) error {
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("zotero: building request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Zotero-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("zotero: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, u)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("zotero: %s returned %d: %s", u, resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("zotero: decoding response: %w", err)
	}
	return nil
}
