package selection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"papers/internal/openalex"
	"papers/internal/zotero"
)

// Resolver turns a free-form input (item key, DOI, work ID, or free
// text) into a selection entry by combining reference-manager and
// scholarly-service lookups. A nil Zotero client is not an error; it
// degrades resolution to scholarly-only.
type Resolver struct {
	OpenAlex *openalex.Client
	Zotero   *zotero.Client
}

// Resolve classifies the trimmed input and fills an entry
// opportunistically. The reference-manager and scholarly lookups run in
// parallel; merge order is fixed so results are deterministic.
func (r *Resolver) Resolve(ctx context.Context, input string) (*Entry, error) {
	input = strings.TrimSpace(input)
	isKey := zotero.LooksLikeItemKey(input)
	isDOI := LooksLikeDOI(input)
	isOAID := LooksLikeOpenAlexWorkID(input)

	var zItem *zotero.Item
	var oaWork *openalex.Work

	g, gctx := errgroup.WithContext(ctx)
	if r.Zotero != nil {
		g.Go(func() error {
			item, err := r.zoteroLookup(gctx, input, isKey, isDOI, isOAID)
			if err != nil {
				return err
			}
			zItem = item
			return nil
		})
	}
	g.Go(func() error {
		work, err := r.openAlexLookup(gctx, input, isDOI, isOAID)
		if err != nil {
			return err
		}
		oaWork = work
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var entry Entry
	if zItem != nil {
		key := zItem.Key
		entry.ZoteroKey = &key
		fillFromZoteroItem(&entry, zItem)
	}
	if oaWork != nil {
		fillFromWork(&entry, oaWork)

		// The reference manager came up empty but the scholarly side
		// found a DOI: retry through it. Failures here are swallowed;
		// this step is best-effort enrichment only.
		if entry.ZoteroKey == nil && r.Zotero != nil && entry.DOI != nil {
			if item, err := r.zoteroSearchDOI(ctx, *entry.DOI); err == nil && item != nil {
				key := item.Key
				entry.ZoteroKey = &key
				if entry.ISBN == nil {
					if isbn := item.Data.ISBN; isbn != nil && *isbn != "" {
						entry.ISBN = []string{*isbn}
					}
				}
			}
		}
	}

	if entry.ZoteroKey == nil && entry.OpenAlexID == nil && entry.DOI == nil && entry.Title == nil {
		return nil, fmt.Errorf("%w: %q", ErrCannotResolve, input)
	}
	return &entry, nil
}

func (r *Resolver) zoteroLookup(ctx context.Context, input string, isKey, isDOI, isOAID bool) (*zotero.Item, error) {
	switch {
	case isKey:
		item, err := r.Zotero.GetItem(ctx, input)
		if errors.Is(err, zotero.ErrNotFound) {
			return nil, nil
		}
		return item, err
	case isDOI:
		return r.zoteroSearchDOI(ctx, input)
	case isOAID:
		return nil, nil
	default:
		// free text: auto-pick only when the match is unambiguous
		limit := 1
		items, err := r.Zotero.ListTopItems(ctx, &zotero.ItemListParams{Q: input, Limit: &limit})
		if err != nil {
			return nil, err
		}
		if len(items) == 1 {
			return &items[0], nil
		}
		return nil, nil
	}
}

func (r *Resolver) zoteroSearchDOI(ctx context.Context, doi string) (*zotero.Item, error) {
	limit := 1
	items, err := r.Zotero.ListTopItems(ctx, &zotero.ItemListParams{
		Q:     StripDOIPrefix(doi),
		QMode: "everything",
		Limit: &limit,
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *Resolver) openAlexLookup(ctx context.Context, input string, isDOI, isOAID bool) (*openalex.Work, error) {
	switch {
	case isDOI:
		work, err := r.OpenAlex.GetWork(ctx, "doi:"+StripDOIPrefix(input), nil)
		if errors.Is(err, openalex.ErrNotFound) {
			return nil, nil
		}
		return work, err
	case isOAID:
		id := strings.TrimPrefix(input, "https://openalex.org/")
		work, err := r.OpenAlex.GetWork(ctx, id, nil)
		if errors.Is(err, openalex.ErrNotFound) {
			return nil, nil
		}
		return work, err
	default:
		perPage := 1
		resp, err := r.OpenAlex.ListWorks(ctx, &openalex.ListParams{Search: input, PerPage: &perPage})
		if err != nil {
			return nil, err
		}
		if len(resp.Results) == 0 {
			return nil, nil
		}
		return &resp.Results[0], nil
	}
}

func fillFromZoteroItem(entry *Entry, item *zotero.Item) {
	if entry.Title == nil && item.Data.Title != nil {
		entry.Title = item.Data.Title
	}
	if entry.Authors == nil {
		var authors []string
		for _, c := range item.Data.Creators {
			if c.FirstName != nil && c.LastName != nil {
				name := strings.TrimSpace(*c.FirstName + " " + *c.LastName)
				if name != "" {
					authors = append(authors, name)
					continue
				}
			}
			if c.Name != nil && *c.Name != "" {
				authors = append(authors, *c.Name)
			}
		}
		if len(authors) > 0 {
			entry.Authors = authors
		}
	}
	if entry.Year == nil {
		date := item.Meta.ParsedDate
		if date == nil {
			date = item.Data.Date
		}
		if date != nil {
			first, _, _ := strings.Cut(*date, "-")
			if y, err := strconv.Atoi(first); err == nil {
				entry.Year = &y
			}
		}
	}
	if entry.DOI == nil && item.Data.DOI != nil {
		doi := StripDOIPrefix(*item.Data.DOI)
		entry.DOI = &doi
	}
	if entry.ISSN == nil && item.Data.ISSN != nil && *item.Data.ISSN != "" {
		entry.ISSN = []string{*item.Data.ISSN}
	}
	if entry.ISBN == nil && item.Data.ISBN != nil && *item.Data.ISBN != "" {
		entry.ISBN = []string{*item.Data.ISBN}
	}
}

func fillFromWork(entry *Entry, work *openalex.Work) {
	if entry.OpenAlexID == nil {
		id := strings.TrimPrefix(work.ID, "https://openalex.org/")
		entry.OpenAlexID = &id
	}
	if entry.DOI == nil && work.DOI != nil {
		doi := StripDOIPrefix(*work.DOI)
		entry.DOI = &doi
	}
	if entry.Title == nil {
		if work.DisplayName != nil {
			entry.Title = work.DisplayName
		} else if work.Title != nil {
			entry.Title = work.Title
		}
	}
	if entry.Authors == nil {
		var names []string
		for _, a := range work.Authorships {
			if a.Author != nil && a.Author.DisplayName != nil {
				names = append(names, *a.Author.DisplayName)
			}
		}
		if len(names) > 0 {
			entry.Authors = names
		}
	}
	if entry.Year == nil && work.PublicationYear != nil {
		entry.Year = work.PublicationYear
	}
	if entry.ISSN == nil && work.PrimaryLocation != nil && work.PrimaryLocation.Source != nil {
		if issn := work.PrimaryLocation.Source.ISSN; len(issn) > 0 {
			entry.ISSN = issn
		}
	}
}
