package openalex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestListParams_Encode(t *testing.T) {
	p := &ListParams{
		Search:  "gpu rendering",
		Filter:  "publication_year:2020",
		Sort:    "cited_by_count:desc",
		Page:    intPtr(2),
		PerPage: intPtr(25),
		Cursor:  "abc",
		Sample:  intPtr(10),
		Seed:    intPtr(42),
		Select:  []string{"id", "doi"},
		GroupBy: "publication_year",
	}
	v := p.Encode()
	want := map[string]string{
		"search":   "gpu rendering",
		"filter":   "publication_year:2020",
		"sort":     "cited_by_count:desc",
		"page":     "2",
		"per-page": "25",
		"cursor":   "abc",
		"sample":   "10",
		"seed":     "42",
		"select":   "id,doi",
		"group_by": "publication_year",
	}
	for key, wantVal := range want {
		if got := v.Get(key); got != wantVal {
			t.Errorf("%s = %q, want %q", key, got, wantVal)
		}
	}
}

func TestListParams_EncodeEmpty(t *testing.T) {
	if got := (&ListParams{}).Encode().Encode(); got != "" {
		t.Errorf("empty params encoded to %q", got)
	}
	var nilParams *ListParams
	if got := nilParams.Encode().Encode(); got != "" {
		t.Errorf("nil params encoded to %q", got)
	}
}

func TestListWorks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("mailto"); got != "dev@example.org" {
			t.Errorf("mailto = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"meta": map[string]any{"count": 1, "per_page": 25},
			"results": []map[string]any{{
				"id":               "https://openalex.org/W1",
				"display_name":     "First Work",
				"publication_year": 2022,
			}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "dev@example.org", "")
	resp, err := c.ListWorks(context.Background(), &ListParams{Search: "first"})
	if err != nil {
		t.Fatalf("ListWorks failed: %v", err)
	}
	if resp.Meta.Count != 1 || len(resp.Results) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if *resp.Results[0].DisplayName != "First Work" {
		t.Errorf("display name = %v", resp.Results[0].DisplayName)
	}
}

func TestGetWork_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	_, err := c.GetWork(context.Background(), "W999", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestDiskCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "https://openalex.org/W1",
		})
	}))
	defer srv.Close()

	cacheDir := filepath.Join(t.TempDir(), "oa-cache")
	c := New(srv.URL, "", cacheDir)

	if _, err := c.GetWork(context.Background(), "W1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetWork(context.Background(), "W1", nil); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("second fetch should come from the disk cache, got %d upstream calls", calls)
	}
}
