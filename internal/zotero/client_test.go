package zotero

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestLooksLikeItemKey(t *testing.T) {
	for _, in := range []string{"ABCD1234", "A1B2C3D4", "ZZZZZZZZ"} {
		if !LooksLikeItemKey(in) {
			t.Errorf("LooksLikeItemKey(%q) = false", in)
		}
	}
	for _, in := range []string{"abcd1234", "ABC123", "ABCD12345", "ABCD-123", ""} {
		if LooksLikeItemKey(in) {
			t.Errorf("LooksLikeItemKey(%q) = true", in)
		}
	}
}

func TestItemListParams_Encode(t *testing.T) {
	p := &ItemListParams{
		Q:         "deep learning",
		QMode:     "everything",
		Tag:       "ml",
		ItemType:  "journalArticle",
		ItemKey:   "ABCD1234",
		Since:     intPtr(100),
		Sort:      "dateModified",
		Direction: "desc",
		Limit:     intPtr(5),
		Start:     intPtr(10),
	}
	v := p.Encode()
	want := map[string]string{
		"q":         "deep learning",
		"qmode":     "everything",
		"tag":       "ml",
		"itemType":  "journalArticle",
		"itemKey":   "ABCD1234",
		"since":     "100",
		"sort":      "dateModified",
		"direction": "desc",
		"limit":     "5",
		"start":     "10",
	}
	for key, wantVal := range want {
		if got := v.Get(key); got != wantVal {
			t.Errorf("%s = %q, want %q", key, got, wantVal)
		}
	}
}

func TestGetItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Zotero-API-Key"); got != "secret" {
			t.Errorf("api key header = %q", got)
		}
		if r.URL.Path != "/users/u1/items/ABCD1234" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"key": "ABCD1234",
			"data": map[string]any{
				"itemType": "journalArticle",
				"title":    "A Paper",
				"DOI":      "10.1145/123",
			},
			"meta": map[string]any{"parsedDate": "2020-01-02"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", "u1")
	item, err := c.GetItem(context.Background(), "ABCD1234")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item.Key != "ABCD1234" || *item.Data.Title != "A Paper" {
		t.Errorf("item = %+v", item)
	}
	if item.Meta.ParsedDate == nil || *item.Meta.ParsedDate != "2020-01-02" {
		t.Errorf("parsed date = %v", item.Meta.ParsedDate)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	c := New(srv.URL, "", "u1")
	if _, err := c.GetItem(context.Background(), "MISSING1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestListTopItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/u1/items/top" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("qmode"); got != "everything" {
			t.Errorf("qmode = %q", got)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"key": "AAAA1111", "data": map[string]any{"title": "Hit"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "", "u1")
	limit := 1
	items, err := c.ListTopItems(context.Background(), &ItemListParams{Q: "10.1/x", QMode: "everything", Limit: &limit})
	if err != nil {
		t.Fatalf("ListTopItems failed: %v", err)
	}
	if len(items) != 1 || items[0].Key != "AAAA1111" {
		t.Errorf("items = %+v", items)
	}
}

func TestPrimaryPDFAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/u1/items/AAAA1111/children" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"key": "NOTE0001", "data": map[string]any{"itemType": "note"}},
			{"key": "PDFA0001", "data": map[string]any{
				"itemType": "attachment", "contentType": "application/pdf", "filename": "paper.pdf",
			}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "", "u1")
	att, err := c.PrimaryPDFAttachment(context.Background(), "AAAA1111")
	if err != nil {
		t.Fatalf("PrimaryPDFAttachment failed: %v", err)
	}
	if att == nil || att.Key != "PDFA0001" {
		t.Errorf("attachment = %+v", att)
	}
}

func TestFileViewURL(t *testing.T) {
	c := New("https://api.zotero.org", "", "u1")
	want := "https://api.zotero.org/users/u1/items/ABCD1234/file/view"
	if got := c.FileViewURL("ABCD1234"); got != want {
		t.Errorf("FileViewURL = %q, want %q", got, want)
	}
}
