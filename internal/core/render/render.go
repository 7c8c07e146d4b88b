// Package render converts accumulated answer text into a small, safe subset
// of HTML. It is not a Markdown implementation: only fenced and inline code,
// bold, italic, pipe tables, bullet lists and paragraphs are recognised.
//
// Render is pure. It is called again with the whole text every time a token
// arrives, so an unfinished construct (an open fence, a lone "**") is left as
// literal text until the closing delimiter streams in.
package render

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	escaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		// NUL delimits protected spans below and never reaches the output.
		"\x00", "\uFFFD",
	)

	fencePattern      = regexp.MustCompile("(?s)```(.*?)```")
	fenceLangPattern  = regexp.MustCompile(`^([A-Za-z0-9_+#.-]+)\n`)
	inlineCodePattern = regexp.MustCompile("`([^`\n]+)`")
	boldPattern       = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicPattern     = regexp.MustCompile(`\*([^*\s][^*\n]*)\*`)
	separatorPattern  = regexp.MustCompile(`^[\s|:-]+$`)
	bulletPattern     = regexp.MustCompile(`^[-*] (.+)$`)
	placeholderRegexp = regexp.MustCompile(`\x00([FC])([0-9]+)\x00`)
)

// Render returns the markup for text. Empty input yields empty output.
func Render(text string) string {
	if text == "" {
		return ""
	}

	var spans protected
	html := escaper.Replace(text)
	html = fencePattern.ReplaceAllStringFunc(html, func(m string) string {
		return spans.add('F', renderFence(fencePattern.FindStringSubmatch(m)[1]))
	})
	html = inlineCodePattern.ReplaceAllStringFunc(html, func(m string) string {
		return spans.add('C', "<code>"+inlineCodePattern.FindStringSubmatch(m)[1]+"</code>")
	})
	html = boldPattern.ReplaceAllString(html, "<strong>$1</strong>")
	html = italicPattern.ReplaceAllString(html, "<em>$1</em>")

	lines := strings.Split(html, "\n")
	lines = renderTables(lines)
	lines = renderLists(lines)
	html = renderParagraphs(lines)

	return spans.restore(html)
}

func renderFence(body string) string {
	if m := fenceLangPattern.FindStringSubmatch(body); m != nil {
		return `<pre><code class="language-` + m[1] + `">` + body[len(m[0]):] + "</code></pre>"
	}
	return "<pre><code>" + strings.TrimPrefix(body, "\n") + "</code></pre>"
}

// protected holds already-rendered code so later stages cannot rewrite its
// contents. Each span is replaced by a NUL-delimited placeholder.
type protected struct {
	spans []string
}

func (p *protected) add(kind byte, markup string) string {
	p.spans = append(p.spans, markup)
	return "\x00" + string(kind) + strconv.Itoa(len(p.spans)-1) + "\x00"
}

func (p *protected) restore(html string) string {
	if len(p.spans) == 0 {
		return html
	}
	return placeholderRegexp.ReplaceAllStringFunc(html, func(m string) string {
		sub := placeholderRegexp.FindStringSubmatch(m)
		idx, err := strconv.Atoi(sub[2])
		if err != nil || idx >= len(p.spans) {
			return ""
		}
		return p.spans[idx]
	})
}

func isFencePlaceholder(line string) bool {
	m := placeholderRegexp.FindStringSubmatch(strings.TrimSpace(line))
	return m != nil && m[1] == "F" && len(m[0]) == len(strings.TrimSpace(line))
}

// renderTables collapses every run of two or more lines containing "|" into
// a single <table> line. A one-line run is not a table.
func renderTables(lines []string) []string {
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); {
		if !strings.Contains(lines[i], "|") {
			out = append(out, lines[i])
			i++
			continue
		}
		j := i
		for j < len(lines) && strings.Contains(lines[j], "|") {
			j++
		}
		if j-i < 2 {
			out = append(out, lines[i:j]...)
		} else {
			out = append(out, renderTable(lines[i:j]))
		}
		i = j
	}
	return out
}

func renderTable(rows []string) string {
	var b strings.Builder
	b.WriteString("<table>")
	header := true
	for _, row := range rows {
		if strings.TrimSpace(row) == "" || separatorPattern.MatchString(row) {
			continue
		}
		tag := "td"
		if header {
			tag = "th"
			header = false
		}
		b.WriteString("<tr>")
		for _, cell := range splitCells(row) {
			b.WriteString("<" + tag + ">" + strings.TrimSpace(cell) + "</" + tag + ">")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}

func splitCells(row string) []string {
	row = strings.TrimSpace(row)
	row = strings.TrimPrefix(row, "|")
	row = strings.TrimSuffix(row, "|")
	return strings.Split(row, "|")
}

// renderLists turns bullet lines into <li> items and wraps each contiguous
// run of items in one <ul>.
func renderLists(lines []string) []string {
	out := make([]string, 0, len(lines))
	var items []string
	flush := func() {
		if len(items) == 0 {
			return
		}
		out = append(out, "<ul>"+strings.Join(items, "")+"</ul>")
		items = nil
	}
	for _, line := range lines {
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			items = append(items, "<li>"+m[1]+"</li>")
			continue
		}
		flush()
		out = append(out, line)
	}
	flush()
	return out
}

// renderParagraphs wraps blank-line separated runs in <p>, joining lines of
// a run with <br/>. Block elements produced by earlier stages stand alone.
func renderParagraphs(lines []string) string {
	var b strings.Builder
	var run []string
	flush := func() {
		if len(run) == 0 {
			return
		}
		b.WriteString("<p>" + strings.Join(run, "<br/>") + "</p>")
		run = nil
	}
	for _, line := range lines {
		switch {
		case strings.TrimSpace(line) == "":
			flush()
		case isBlock(line):
			flush()
			b.WriteString(strings.TrimSpace(line))
		default:
			run = append(run, line)
		}
	}
	flush()
	return b.String()
}

func isBlock(line string) bool {
	return strings.HasPrefix(line, "<table>") || strings.HasPrefix(line, "<ul>") || isFencePlaceholder(line)
}
