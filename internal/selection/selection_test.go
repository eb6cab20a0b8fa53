package selection

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }

func TestValidateName(t *testing.T) {
	valid := []string{"thesis", "my-reading", "q1_2026", "ABC123"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}
	invalid := []string{"", "has space", "slash/name", "dot.name", "émigré"}
	for _, name := range invalid {
		if err := ValidateName(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	sel := &Selection{
		Name: "thesis",
		Entries: []Entry{{
			ZoteroKey:  strPtr("ABCD1234"),
			OpenAlexID: strPtr("W123"),
			DOI:        strPtr("10.1145/123.456"),
			Title:      strPtr("A Paper"),
			Authors:    []string{"Ada Lovelace"},
			Year:       intPtr(2020),
			ISSN:       []string{"0028-0836"},
			ISBN:       []string{"978-0-00-000000-0"},
		}},
	}
	if err := store.Save(sel); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := store.Load("thesis")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(sel, loaded) {
		t.Errorf("round trip mismatch:\nsaved  %+v\nloaded %+v", sel, loaded)
	}
}

func TestLoad_NotFound(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Load("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Save(&Selection{Name: "gone"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should be ErrNotFound, got %v", err)
	}
}

func TestListNames_SortedAndExcludesState(t *testing.T) {
	store := NewStore(t.TempDir())
	for _, name := range []string{"zebra", "alpha", "middle"} {
		if err := store.Save(&Selection{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.SaveState(State{Active: strPtr("alpha")}); err != nil {
		t.Fatal(err)
	}
	got := store.ListNames()
	want := []string{"alpha", "middle", "zebra"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListNames() = %v, want %v", got, want)
	}
}

func TestResolve(t *testing.T) {
	store := NewStore(t.TempDir())
	for _, name := range []string{"zebra", "alpha", "middle"} {
		if err := store.Save(&Selection{Name: name}); err != nil {
			t.Fatal(err)
		}
	}

	if got, err := store.Resolve("2"); err != nil || got != "middle" {
		t.Errorf("Resolve(2) = %q, %v", got, err)
	}
	if got, err := store.Resolve("ALPHA"); err != nil || got != "alpha" {
		t.Errorf("Resolve(ALPHA) = %q, %v", got, err)
	}
	if _, err := store.Resolve("0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(0) should be ErrNotFound, got %v", err)
	}
	if _, err := store.Resolve("4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(len+1) should be ErrNotFound, got %v", err)
	}
	if _, err := store.Resolve("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(nope) should be ErrNotFound, got %v", err)
	}

	// index resolution is a bijection with the sorted listing
	names := store.ListNames()
	for i, want := range names {
		got, err := store.Resolve(string(rune('1' + i)))
		if err != nil || got != want {
			t.Errorf("Resolve(%d) = %q, %v; want %q", i+1, got, err, want)
		}
	}
}

func TestState(t *testing.T) {
	store := NewStore(t.TempDir())
	if st := store.LoadState(); st.Active != nil {
		t.Errorf("fresh state should have no active selection, got %v", *st.Active)
	}
	if err := store.SaveState(State{Active: strPtr("thesis")}); err != nil {
		t.Fatal(err)
	}
	if got := store.ActiveName(); got != "thesis" {
		t.Errorf("ActiveName() = %q", got)
	}
	if err := store.SaveState(State{}); err != nil {
		t.Fatal(err)
	}
	if got := store.ActiveName(); got != "" {
		t.Errorf("cleared ActiveName() = %q", got)
	}
}

func TestAtomicWrite_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	if err := store.Save(&Selection{Name: "clean"}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "papers", "selections"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestNormalizeDOI(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://doi.org/10.1145/ABC", "10.1145/abc"},
		{"http://doi.org/10.1145/abc", "10.1145/abc"},
		{"doi:10.1145/Abc", "10.1145/abc"},
		{"10.1145/abc", "10.1145/abc"},
	}
	for _, tt := range tests {
		got := NormalizeDOI(tt.in)
		if got != tt.want {
			t.Errorf("NormalizeDOI(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if again := NormalizeDOI(got); again != got {
			t.Errorf("NormalizeDOI not idempotent: %q -> %q", got, again)
		}
	}
}

func TestLooksLikeDOI(t *testing.T) {
	for _, in := range []string{"10.1145/123", "https://doi.org/10.300/dup", "doi:10.1/x"} {
		if !LooksLikeDOI(in) {
			t.Errorf("LooksLikeDOI(%q) = false", in)
		}
	}
	for _, in := range []string{"10.1145", "W123", "some title", ""} {
		if LooksLikeDOI(in) {
			t.Errorf("LooksLikeDOI(%q) = true", in)
		}
	}
}

func TestLooksLikeOpenAlexWorkID(t *testing.T) {
	for _, in := range []string{"W300", "W123456789", "https://openalex.org/W300"} {
		if !LooksLikeOpenAlexWorkID(in) {
			t.Errorf("LooksLikeOpenAlexWorkID(%q) = false", in)
		}
	}
	for _, in := range []string{"W", "w300", "W30a", "A300", ""} {
		if LooksLikeOpenAlexWorkID(in) {
			t.Errorf("LooksLikeOpenAlexWorkID(%q) = true", in)
		}
	}
}

func TestEntryMatches(t *testing.T) {
	entry := &Entry{
		ZoteroKey:  strPtr("ABCD1234"),
		OpenAlexID: strPtr("W300"),
		DOI:        strPtr("10.300/Dup"),
		Title:      strPtr("Dup Paper"),
	}

	if !EntryMatchesKey(entry, "ABCD1234") || EntryMatchesKey(entry, "OTHER123") {
		t.Error("key matching broken")
	}
	if !EntryMatchesOpenAlex(entry, "W300") || EntryMatchesOpenAlex(entry, "W301") {
		t.Error("openalex matching broken")
	}
	if !EntryMatchesDOI(entry, "https://doi.org/10.300/DUP") {
		t.Error("DOI matching should normalize both sides")
	}
	if EntryMatchesDOI(entry, "10.300/other") {
		t.Error("DOI matching matched wrong DOI")
	}

	if !EntryMatchesRemoveInput(entry, "ABCD1234") {
		t.Error("remove by key failed")
	}
	if !EntryMatchesRemoveInput(entry, "https://openalex.org/W300") {
		t.Error("remove by URL-wrapped work id failed")
	}
	if !EntryMatchesRemoveInput(entry, "doi:10.300/dup") {
		t.Error("remove by DOI failed")
	}
	if !EntryMatchesRemoveInput(entry, "dup paper") {
		t.Error("remove by title substring failed")
	}
	if EntryMatchesRemoveInput(entry, "unrelated words") {
		t.Error("remove matched unrelated input")
	}
}
