package render

import (
	"io"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestRenderCases(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty",
			in:   "",
			want: "",
		},
		{
			name: "bold and inline code",
			in:   "**bold** and `code`",
			want: "<p><strong>bold</strong> and <code>code</code></p>",
		},
		{
			name: "html is escaped before markup",
			in:   "<script>alert(1)</script> **x** & y",
			want: "<p>&lt;script&gt;alert(1)&lt;/script&gt; <strong>x</strong> &amp; y</p>",
		},
		{
			name: "bold is matched before italic",
			in:   "**x** and *y*",
			want: "<p><strong>x</strong> and <em>y</em></p>",
		},
		{
			name: "code span contents are not formatted",
			in:   "`**not bold**`",
			want: "<p><code>**not bold**</code></p>",
		},
		{
			name: "table with separator row",
			in:   "| A | B |\n|---|:-:|\n| 1 | **2** |",
			want: "<table><tr><th>A</th><th>B</th></tr><tr><td>1</td><td><strong>2</strong></td></tr></table>",
		},
		{
			name: "single pipe line is not a table",
			in:   "a | b",
			want: "<p>a | b</p>",
		},
		{
			name: "bullets wrapped once per run",
			in:   "Intro\n- one\n* two\n\nAfter",
			want: "<p>Intro</p><ul><li>one</li><li>two</li></ul><p>After</p>",
		},
		{
			name: "separate runs get separate lists",
			in:   "- a\ntext\n- b",
			want: "<ul><li>a</li></ul><p>text</p><ul><li>b</li></ul>",
		},
		{
			name: "paragraphs and soft breaks",
			in:   "line1\nline2\n\npara2",
			want: "<p>line1<br/>line2</p><p>para2</p>",
		},
		{
			name: "open fence stays literal",
			in:   "```go\nfmt",
			want: "<p>```go<br/>fmt</p>",
		},
		{
			name: "closed fence becomes a code block",
			in:   "```go\nif a < b {\n\n}\n```",
			want: "<pre><code class=\"language-go\">if a &lt; b {\n\n}\n</code></pre>",
		},
		{
			name: "fence without language",
			in:   "See:\n```\nx | y\n- z\n```\nend",
			want: "<p>See:</p><pre><code>x | y\n- z\n</code></pre><p>end</p>",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(tc.in); got != tc.want {
				t.Fatalf("Render(%q)\n got: %s\nwant: %s", tc.in, got, tc.want)
			}
		})
	}
}

const streamedSample = "Revenue **grew** by *12%* in `Q4`.\n\n" +
	"| Year | Revenue |\n|------|---------|\n| 2024 | 5 <b> |\n\n" +
	"- first <script>alert(1)</script>\n- second\n\n" +
	"```python\nprint('a|b')\n```\nDone & dusted"

func TestRenderIsDeterministicForEveryPrefix(t *testing.T) {
	for i := 0; i <= len(streamedSample); i++ {
		prefix := streamedSample[:i]
		first := Render(prefix)
		if second := Render(prefix); second != first {
			t.Fatalf("prefix %d rendered differently:\n%s\n%s", i, first, second)
		}
	}
}

func TestRenderNeverInjectsMarkupForAnyPrefix(t *testing.T) {
	for i := 0; i <= len(streamedSample); i++ {
		markup := Render(streamedSample[:i])
		assertBalanced(t, markup)
	}
}

func TestRenderCompletedSampleStructure(t *testing.T) {
	markup := Render(streamedSample)
	for _, want := range []string{
		"<strong>grew</strong>",
		"<em>12%</em>",
		"<code>Q4</code>",
		"<th>Year</th>",
		"<td>5 &lt;b&gt;</td>",
		"<li>first &lt;script&gt;alert(1)&lt;/script&gt;</li>",
		"<pre><code class=\"language-python\">print('a|b')\n</code></pre>",
		"<p>Done &amp; dusted</p>",
	} {
		if !strings.Contains(markup, want) {
			t.Fatalf("expected %q in %s", want, markup)
		}
	}
}

var allowedTags = map[string]bool{
	"p": true, "br": true, "strong": true, "em": true, "code": true, "pre": true,
	"table": true, "tr": true, "th": true, "td": true, "ul": true, "li": true,
}

func assertBalanced(t *testing.T, markup string) {
	t.Helper()
	z := html.NewTokenizer(strings.NewReader(markup))
	var stack []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				t.Fatalf("tokenize %q: %v", markup, z.Err())
			}
			if len(stack) != 0 {
				t.Fatalf("unclosed tags %v in %q", stack, markup)
			}
			return
		case html.StartTagToken:
			tok := z.Token()
			if !allowedTags[tok.Data] {
				t.Fatalf("unexpected tag <%s> in %q", tok.Data, markup)
			}
			stack = append(stack, tok.Data)
		case html.EndTagToken:
			tok := z.Token()
			if len(stack) == 0 || stack[len(stack)-1] != tok.Data {
				t.Fatalf("mismatched </%s> in %q (open: %v)", tok.Data, markup, stack)
			}
			stack = stack[:len(stack)-1]
		case html.SelfClosingTagToken:
			if tok := z.Token(); tok.Data != "br" {
				t.Fatalf("unexpected self-closing <%s> in %q", tok.Data, markup)
			}
		}
	}
}
