package rag

import (
	"fmt"
	"strings"
)

// FilterBuilder composes an AND-joined SQL WHERE clause from optional
// filter components. Every user-originating string passes through
// single-quote doubling before it reaches the clause.
type FilterBuilder struct {
	clauses []string
}

func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{}
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// PaperIDs adds a paper_id IN (...) clause. No-op for an empty slice.
func (f *FilterBuilder) PaperIDs(ids []string) *FilterBuilder {
	if len(ids) == 0 {
		return f
	}
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "'" + escapeSQL(id) + "'"
	}
	f.clauses = append(f.clauses, fmt.Sprintf("paper_id IN (%s)", strings.Join(quoted, ", ")))
	return f
}

// ChapterIdx adds an equality clause on chapter_idx.
func (f *FilterBuilder) ChapterIdx(idx int) *FilterBuilder {
	f.clauses = append(f.clauses, fmt.Sprintf("chapter_idx = %d", idx))
	return f
}

// SectionIdx adds an equality clause on section_idx.
func (f *FilterBuilder) SectionIdx(idx int) *FilterBuilder {
	f.clauses = append(f.clauses, fmt.Sprintf("section_idx = %d", idx))
	return f
}

// EqStr adds an equality clause on a string column.
func (f *FilterBuilder) EqStr(col, val string) *FilterBuilder {
	f.clauses = append(f.clauses, fmt.Sprintf("%s = '%s'", col, escapeSQL(val)))
	return f
}

// YearRange adds year bounds; nil bounds are skipped.
func (f *FilterBuilder) YearRange(min, max *int) *FilterBuilder {
	if min != nil {
		f.clauses = append(f.clauses, fmt.Sprintf("year >= %d", *min))
	}
	if max != nil {
		f.clauses = append(f.clauses, fmt.Sprintf("year <= %d", *max))
	}
	return f
}

// TagsAny adds a clause matching rows whose tags list contains any of
// the given tags. The tags column holds a JSON array of strings.
func (f *FilterBuilder) TagsAny(tags []string) *FilterBuilder {
	if len(tags) == 0 {
		return f
	}
	conditions := make([]string, len(tags))
	for i, t := range tags {
		conditions[i] = fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(tags) WHERE value = '%s')", escapeSQL(t))
	}
	if len(conditions) == 1 {
		f.clauses = append(f.clauses, conditions[0])
	} else {
		f.clauses = append(f.clauses, "("+strings.Join(conditions, " OR ")+")")
	}
	return f
}

// Build returns the final WHERE clause string, or "" if no filters were
// added.
func (f *FilterBuilder) Build() string {
	return strings.Join(f.clauses, " AND ")
}

// ValidateScope checks that scope parameters form a valid hierarchy:
// section_idx requires chapter_idx; chapter_idx requires paper_id.
func ValidateScope(chapterIdx, sectionIdx *int, paperID string) error {
	if sectionIdx != nil && chapterIdx == nil {
		return fmt.Errorf("%w: section_idx requires chapter_idx", ErrScope)
	}
	if chapterIdx != nil && paperID == "" {
		return fmt.Errorf("%w: chapter_idx requires paper_id", ErrScope)
	}
	return nil
}
