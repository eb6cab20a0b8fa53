package selection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"papers/internal/openalex"
	"papers/internal/zotero"
)

func openAlexStub(t *testing.T, handler http.HandlerFunc) *openalex.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return openalex.New(srv.URL, "", "")
}

func zoteroStub(t *testing.T, handler http.HandlerFunc) *zotero.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return zotero.New(srv.URL, "test-key", "u1")
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

func dupWork() map[string]any {
	return map[string]any{
		"id":               "https://openalex.org/W300",
		"doi":              "https://doi.org/10.300/dup",
		"display_name":     "Dup Paper",
		"publication_year": 2020,
		"authorships": []map[string]any{
			{"author": map[string]any{"display_name": "Auth"}},
		},
		"primary_location": map[string]any{
			"source": map[string]any{"issn": []string{"0028-0836"}},
		},
	}
}

func TestResolve_DOIWithoutZotero(t *testing.T) {
	oa := openAlexStub(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/works/") {
			http.NotFound(w, r)
			return
		}
		writeJSON(t, w, dupWork())
	})
	r := &Resolver{OpenAlex: oa}

	entry, err := r.Resolve(context.Background(), "10.300/dup")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := &Entry{
		OpenAlexID: strPtr("W300"),
		DOI:        strPtr("10.300/dup"),
		Title:      strPtr("Dup Paper"),
		Authors:    []string{"Auth"},
		Year:       intPtr(2020),
		ISSN:       []string{"0028-0836"},
	}
	if !reflect.DeepEqual(entry, want) {
		t.Errorf("entry mismatch:\ngot  %+v\nwant %+v", entry, want)
	}

	// a second add of the same DOI is caught by the dedup predicate
	if !EntryMatchesDOI(entry, "10.300/dup") {
		t.Error("resolved entry should match its own DOI")
	}
}

func TestResolve_WorkID(t *testing.T) {
	var requestedPath string
	oa := openAlexStub(t, func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		writeJSON(t, w, dupWork())
	})
	r := &Resolver{OpenAlex: oa}

	entry, err := r.Resolve(context.Background(), "https://openalex.org/W300")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if requestedPath != "/works/W300" {
		t.Errorf("URL wrapper should be stripped before the lookup, got path %q", requestedPath)
	}
	if entry.OpenAlexID == nil || *entry.OpenAlexID != "W300" {
		t.Errorf("openalex id = %v", entry.OpenAlexID)
	}
}

func TestResolve_FreeTextSearch(t *testing.T) {
	oa := openAlexStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("search"); got != "dup paper" {
			t.Errorf("search param = %q", got)
		}
		if got := r.URL.Query().Get("per-page"); got != "1" {
			t.Errorf("per-page param = %q", got)
		}
		writeJSON(t, w, map[string]any{
			"meta":    map[string]any{"count": 1, "per_page": 1},
			"results": []any{dupWork()},
		})
	})
	r := &Resolver{OpenAlex: oa}

	entry, err := r.Resolve(context.Background(), "dup paper")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if entry.Title == nil || *entry.Title != "Dup Paper" {
		t.Errorf("title = %v", entry.Title)
	}
}

func TestResolve_ZoteroKeyTakesPrecedence(t *testing.T) {
	z := zoteroStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/u1/items/ABCD1234" {
			http.NotFound(w, r)
			return
		}
		writeJSON(t, w, map[string]any{
			"key": "ABCD1234",
			"data": map[string]any{
				"title": "Local Copy Title",
				"creators": []map[string]any{
					{"creatorType": "author", "firstName": "Ada", "lastName": "Lovelace"},
					{"creatorType": "author", "name": "The ACM Collective"},
				},
				"date": "2019-03",
				"DOI":  "https://doi.org/10.1145/123.456",
				"ISSN": "1234-5678",
			},
			"meta": map[string]any{"parsedDate": "2019-03-01"},
		})
	})
	oa := openAlexStub(t, func(w http.ResponseWriter, r *http.Request) {
		// an 8-char key is not a DOI or work id; the scholarly side
		// falls back to free-text search and finds nothing
		writeJSON(t, w, map[string]any{
			"meta":    map[string]any{"count": 0, "per_page": 1},
			"results": []any{},
		})
	})
	r := &Resolver{OpenAlex: oa, Zotero: z}

	entry, err := r.Resolve(context.Background(), "ABCD1234")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if entry.ZoteroKey == nil || *entry.ZoteroKey != "ABCD1234" {
		t.Errorf("zotero key = %v", entry.ZoteroKey)
	}
	if entry.Title == nil || *entry.Title != "Local Copy Title" {
		t.Errorf("title = %v", entry.Title)
	}
	if !reflect.DeepEqual(entry.Authors, []string{"Ada Lovelace", "The ACM Collective"}) {
		t.Errorf("authors = %v", entry.Authors)
	}
	if entry.Year == nil || *entry.Year != 2019 {
		t.Errorf("year = %v", entry.Year)
	}
	if entry.DOI == nil || *entry.DOI != "10.1145/123.456" {
		t.Errorf("DOI should be prefix-stripped, got %v", entry.DOI)
	}
	if !reflect.DeepEqual(entry.ISSN, []string{"1234-5678"}) {
		t.Errorf("issn = %v", entry.ISSN)
	}
}

func TestResolve_FreeTextAmbiguousZoteroSkipped(t *testing.T) {
	z := zoteroStub(t, func(w http.ResponseWriter, r *http.Request) {
		// two hits: the resolver must not auto-pick
		writeJSON(t, w, []map[string]any{
			{"key": "AAAA1111", "data": map[string]any{"title": "One"}},
			{"key": "BBBB2222", "data": map[string]any{"title": "Two"}},
		})
	})
	oa := openAlexStub(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"meta":    map[string]any{"count": 1, "per_page": 1},
			"results": []any{dupWork()},
		})
	})
	r := &Resolver{OpenAlex: oa, Zotero: z}

	entry, err := r.Resolve(context.Background(), "some ambiguous title")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	// zotero is skipped for the initial step, but the DOI retry may
	// still attach a key; title must come from the scholarly side
	if entry.Title == nil || *entry.Title != "Dup Paper" {
		t.Errorf("title = %v", entry.Title)
	}
}

func TestResolve_CannotResolve(t *testing.T) {
	oa := openAlexStub(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"meta":    map[string]any{"count": 0, "per_page": 1},
			"results": []any{},
		})
	})
	r := &Resolver{OpenAlex: oa}

	_, err := r.Resolve(context.Background(), "nothing matches this")
	if !errors.Is(err, ErrCannotResolve) {
		t.Errorf("want ErrCannotResolve, got %v", err)
	}
}
