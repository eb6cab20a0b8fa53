package openalex

import (
	"net/url"
	"strconv"
	"strings"
)

// ListParams are the query parameters of entity list endpoints.
type ListParams struct {
	Search  string
	Filter  string
	Sort    string
	Page    *int
	PerPage *int
	Cursor  string
	Sample  *int
	Seed    *int
	Select  []string
	GroupBy string
}

// Encode renders the parameters as URL query values.
func (p *ListParams) Encode() url.Values {
	v := url.Values{}
	if p == nil {
		return v
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.Filter != "" {
		v.Set("filter", p.Filter)
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	if p.Page != nil {
		v.Set("page", strconv.Itoa(*p.Page))
	}
	if p.PerPage != nil {
		v.Set("per-page", strconv.Itoa(*p.PerPage))
	}
	if p.Cursor != "" {
		v.Set("cursor", p.Cursor)
	}
	if p.Sample != nil {
		v.Set("sample", strconv.Itoa(*p.Sample))
	}
	if p.Seed != nil {
		v.Set("seed", strconv.Itoa(*p.Seed))
	}
	if len(p.Select) > 0 {
		v.Set("select", strings.Join(p.Select, ","))
	}
	if p.GroupBy != "" {
		v.Set("group_by", p.GroupBy)
	}
	return v
}

// GetParams are the query parameters of single-entity endpoints.
type GetParams struct {
	Select []string
}

// Encode renders the parameters as URL query values.
func (p *GetParams) Encode() url.Values {
	v := url.Values{}
	if p == nil {
		return v
	}
	if len(p.Select) > 0 {
		v.Set("select", strings.Join(p.Select, ","))
	}
	return v
}

// FindWorksParams are the inputs of the semantic find endpoint.
type FindWorksParams struct {
	Query   string
	PerPage *int
}

// Encode renders the parameters as URL query values.
func (p *FindWorksParams) Encode() url.Values {
	v := url.Values{}
	if p == nil {
		return v
	}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	if p.PerPage != nil {
		v.Set("per-page", strconv.Itoa(*p.PerPage))
	}
	return v
}
