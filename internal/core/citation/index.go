// Package citation links an answer's evidence list to the markers shown under
// the answer and resolves a clicked marker back to its record.
package citation

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

// Index is immutable once built.
type Index struct {
	sources []domain.Evidence
	byIndex map[int]int
}

// New builds an index over sources. Evidence indices must be unique.
func New(sources []domain.Evidence) (*Index, error) {
	idx := &Index{
		sources: append([]domain.Evidence(nil), sources...),
		byIndex: make(map[int]int, len(sources)),
	}
	for pos, ev := range idx.sources {
		if prev, ok := idx.byIndex[ev.Index]; ok {
			return nil, domain.WrapError(domain.ErrInvalidInput, "build citation index",
				fmt.Errorf("evidence index %d repeated at positions %d and %d", ev.Index, prev, pos))
		}
		idx.byIndex[ev.Index] = pos
	}
	return idx, nil
}

func (x *Index) Len() int {
	return len(x.sources)
}

func (x *Index) Sources() []domain.Evidence {
	return append([]domain.Evidence(nil), x.sources...)
}

func (x *Index) Resolve(index int) (domain.Evidence, bool) {
	pos, ok := x.byIndex[index]
	if !ok {
		return domain.Evidence{}, false
	}
	return x.sources[pos], true
}

// MustResolve is for markers generated from this index. A miss means the
// marker and the evidence list disagree, which is a data-contract bug.
func (x *Index) MustResolve(index int) domain.Evidence {
	ev, ok := x.Resolve(index)
	if !ok {
		panic(fmt.Sprintf("citation: marker index %d has no evidence (have %d sources)", index, len(x.sources)))
	}
	return ev
}

// Marker is the clickable affordance rendered under a completed answer.
type Marker struct {
	Index int                 `json:"index"`
	Kind  domain.EvidenceKind `json:"type"`
	Page  domain.Page         `json:"page"`
	Icon  string              `json:"icon"`
	Label string              `json:"label"`
	Title string              `json:"title"`
}

// Markers returns one marker per evidence record, in source order.
func (x *Index) Markers() []Marker {
	markers := make([]Marker, 0, len(x.sources))
	for _, ev := range x.sources {
		markers = append(markers, Marker{
			Index: ev.Index,
			Kind:  ev.Kind,
			Page:  ev.Page,
			Icon:  kindIcon(ev.Kind),
			Label: kindLabel(ev.Kind) + " · p." + ev.Page.String(),
			Title: "Page " + ev.Page.String() + " | Score: " + formatScore(ev.Score),
		})
	}
	return markers
}

func kindIcon(kind domain.EvidenceKind) string {
	switch kind {
	case domain.EvidenceTable:
		return "📈"
	case domain.EvidenceImage:
		return "📉"
	case domain.EvidenceText:
		return "📝"
	default:
		return "📌"
	}
}

func kindLabel(kind domain.EvidenceKind) string {
	if kind == domain.EvidenceImage {
		return "Chart"
	}
	s := string(kind)
	if s == "" {
		return "Source"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// RenderMarkersHTML renders the citation strip for the answer bubble. It is empty
// when there is no evidence.
func RenderMarkersHTML(markers []Marker) string {
	if len(markers) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<div class="msg-citations">📎 Sources: `)
	for _, m := range markers {
		fmt.Fprintf(&b, `<button class="citation-tag type-%s" data-index="%d" title="%s">%s %s</button>`,
			html.EscapeString(string(m.Kind)), m.Index, html.EscapeString(m.Title), m.Icon, html.EscapeString(m.Label))
	}
	b.WriteString(`</div>`)
	return b.String()
}

// RenderSourceCard renders the evidence viewer card for one record.
func RenderSourceCard(ev domain.Evidence) string {
	bodyClass := "source-card-body"
	if ev.Kind == domain.EvidenceTable {
		bodyClass += " table-content"
	}
	return fmt.Sprintf(`<div class="source-card"><div class="source-card-header"><span>%s %s</span><span>%s · Page %s</span><span>score: %s</span></div><div class="%s">%s</div></div>`,
		kindIcon(ev.Kind),
		strings.ToUpper(kindLabel(ev.Kind)),
		html.EscapeString(ev.Company),
		ev.Page.String(),
		formatScore(ev.Score),
		bodyClass,
		html.EscapeString(ev.Preview),
	)
}
