package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"papers/internal/rag"
	"papers/internal/selection"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("105"))
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
	scoreStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170"))
)

func yearStr(year *int) string {
	if year == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *year)
}

// SearchResults renders semantic-search hits with position context.
func SearchResults(results []rag.SearchResult) string {
	if len(results) == 0 {
		return dimStyle.Render("no results") + "\n"
	}
	var b strings.Builder
	for i, r := range results {
		c := r.Chunk
		b.WriteString(headerStyle.Render(fmt.Sprintf("%d. %s", i+1, c.ChunkID)))
		b.WriteString(scoreStyle.Render(fmt.Sprintf("  (distance %.4f)", r.Score)))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("   %s · %s > %s · chunk %d/%d",
			c.Title, c.ChapterTitle, c.SectionTitle, c.ChunkIdx+1, c.Position.TotalChunksInSection)))
		b.WriteString("\n   " + c.Text + "\n")
		for _, f := range c.ReferencedFigures {
			b.WriteString(dimStyle.Render(fmt.Sprintf("   ↳ %s [%s] %s", f.FigureID, f.FigureType, f.Caption)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Figures renders figure-search results.
func Figures(figures []rag.FigureResult) string {
	if len(figures) == 0 {
		return dimStyle.Render("no figures") + "\n"
	}
	var b strings.Builder
	for _, f := range figures {
		b.WriteString(headerStyle.Render(f.FigureID))
		b.WriteString(fmt.Sprintf(" [%s] %s\n", f.FigureType, f.Caption))
		if f.ImagePath != nil {
			b.WriteString(dimStyle.Render("   " + *f.ImagePath))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Outline renders a paper outline as an indented tree.
func Outline(o *rag.PaperOutline) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(o.Title) + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s · %s · %d chunks, %d figures",
		strings.Join(o.Authors, ", "), yearStr(o.Year), o.TotalChunks, o.TotalFigures)))
	b.WriteString("\n")
	for _, ch := range o.Chapters {
		b.WriteString(fmt.Sprintf("ch%d  %s", ch.ChapterIdx, ch.ChapterTitle))
		if ch.FigureCount > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  (%d figures)", ch.FigureCount)))
		}
		b.WriteString("\n")
		for _, sec := range ch.Sections {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  s%d  %s (%d chunks)", sec.SectionIdx, sec.SectionTitle, sec.ChunkCount)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Papers renders the corpus listing.
func Papers(papers []rag.PaperSummary) string {
	if len(papers) == 0 {
		return dimStyle.Render("no papers indexed") + "\n"
	}
	var b strings.Builder
	for _, p := range papers {
		b.WriteString(headerStyle.Render(p.Title) + "\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s · %s · %s · %d chunks, %d figures",
			p.PaperID, strings.Join(p.Authors, ", "), yearStr(p.Year), p.ChunkCount, p.FigureCount)))
		b.WriteString("\n")
	}
	return b.String()
}

// Tags renders the tag aggregation.
func Tags(tags []rag.TagSummary) string {
	if len(tags) == 0 {
		return dimStyle.Render("no tags") + "\n"
	}
	var b strings.Builder
	for _, t := range tags {
		b.WriteString(fmt.Sprintf("%-30s %d\n", t.Tag, t.PaperCount))
	}
	return b.String()
}

// Selection renders one selection and its entries.
func Selection(sel *selection.Selection, active bool) string {
	var b strings.Builder
	name := sel.Name
	if active {
		name += " (active)"
	}
	b.WriteString(titleStyle.Render(name) + "\n")
	if len(sel.Entries) == 0 {
		b.WriteString(dimStyle.Render("  empty") + "\n")
		return b.String()
	}
	for i, e := range sel.Entries {
		title := "(untitled)"
		if e.Title != nil {
			title = *e.Title
		}
		b.WriteString(fmt.Sprintf("%2d. %s\n", i+1, title))
		var ids []string
		if e.ZoteroKey != nil {
			ids = append(ids, "zotero:"+*e.ZoteroKey)
		}
		if e.OpenAlexID != nil {
			ids = append(ids, *e.OpenAlexID)
		}
		if e.DOI != nil {
			ids = append(ids, "doi:"+*e.DOI)
		}
		if e.Year != nil {
			ids = append(ids, fmt.Sprintf("%d", *e.Year))
		}
		if len(ids) > 0 {
			b.WriteString(dimStyle.Render("    " + strings.Join(ids, " · ")))
			b.WriteString("\n")
		}
	}
	return b.String()
}
