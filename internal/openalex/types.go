package openalex

// Work is a scholarly work as returned by the API. Only the fields the
// application reads are decoded; unknown fields are dropped.
type Work struct {
	ID              string       `json:"id"`
	DOI             *string      `json:"doi"`
	Title           *string      `json:"title"`
	DisplayName     *string      `json:"display_name"`
	PublicationYear *int         `json:"publication_year"`
	PublicationDate *string      `json:"publication_date"`
	Language        *string      `json:"language"`
	Type            *string      `json:"type"`
	CitedByCount    int          `json:"cited_by_count"`
	Authorships     []Authorship `json:"authorships"`
	PrimaryLocation *Location    `json:"primary_location"`
	AbstractIndex   map[string][]int `json:"abstract_inverted_index"`
}

// Authorship links a work to one of its authors.
type Authorship struct {
	AuthorPosition string  `json:"author_position"`
	Author         *Author `json:"author"`
}

// Author is the author projection embedded in authorships.
type Author struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"display_name"`
	Orcid       *string `json:"orcid"`
}

// Location is where a work was published.
type Location struct {
	IsOA   *bool   `json:"is_oa"`
	Source *Source `json:"source"`
}

// Source is a venue (journal, conference, repository).
type Source struct {
	ID          string   `json:"id"`
	DisplayName *string  `json:"display_name"`
	ISSN        []string `json:"issn"`
	Type        *string  `json:"type"`
}

// Meta is the paging envelope on list responses.
type Meta struct {
	Count      int     `json:"count"`
	Page       *int    `json:"page"`
	PerPage    int     `json:"per_page"`
	NextCursor *string `json:"next_cursor"`
}

// ListWorksResponse is the envelope of GET /works.
type ListWorksResponse struct {
	Meta    Meta   `json:"meta"`
	Results []Work `json:"results"`
}

// GroupByResult is one bucket of a group_by aggregation.
type GroupByResult struct {
	Key         string `json:"key"`
	KeyDisplay  string `json:"key_display_name"`
	Count       int    `json:"count"`
}

// AutocompleteResult is one typeahead suggestion.
type AutocompleteResult struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Hint        *string `json:"hint"`
	CitedByCount int    `json:"cited_by_count"`
	EntityType  string  `json:"entity_type"`
}

// AutocompleteResponse is the envelope of GET /autocomplete/*.
type AutocompleteResponse struct {
	Meta    Meta                 `json:"meta"`
	Results []AutocompleteResult `json:"results"`
}

// FindWorksResponse is the envelope of the semantic find endpoint.
type FindWorksResponse struct {
	Meta    Meta   `json:"meta"`
	Results []Work `json:"results"`
}
