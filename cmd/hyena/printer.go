package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/hyena-client/internal/core/citation"
	"github.com/kirillkom/hyena-client/internal/core/domain"
	"github.com/kirillkom/hyena-client/internal/core/render"
)

// terminalObserver prints streamed text as it arrives. With html set it
// prints only the final rendered markup.
type terminalObserver struct {
	w       io.Writer
	html    bool
	printed int
}

func (o *terminalObserver) OnRender(answer *domain.Answer, _ string) {
	if o.html {
		return
	}
	raw := answer.RawText()
	if len(raw) > o.printed {
		fmt.Fprint(o.w, raw[o.printed:])
		o.printed = len(raw)
	}
}

func (o *terminalObserver) OnReplace(answer *domain.Answer, _ string) {
	if o.html {
		return
	}
	if o.printed > 0 {
		fmt.Fprintln(o.w, "\n\n[stream interrupted, showing full answer]")
	}
	fmt.Fprint(o.w, answer.RawText())
	o.printed = len(answer.RawText())
}

func (o *terminalObserver) OnComplete(answer *domain.Answer) {
	if o.html {
		fmt.Fprintln(o.w, render.Render(answer.RawText()))
		if idx, err := citation.New(answer.Sources); err == nil {
			if strip := citation.RenderMarkersHTML(idx.Markers()); strip != "" {
				fmt.Fprintln(o.w, strip)
			}
		}
		return
	}
	fmt.Fprintln(o.w)
	printSources(o.w, answer.Sources)
}

func printSources(w io.Writer, sources []domain.Evidence) {
	idx, err := citation.New(sources)
	if err != nil || idx.Len() == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, m := range idx.Markers() {
		ev := idx.MustResolve(m.Index)
		line := fmt.Sprintf("  [%d] %s %s  (%s)", m.Index, m.Icon, m.Label, m.Title)
		if ev.Company != "" {
			line += "  " + ev.Company
		}
		fmt.Fprintln(w, line)
		if preview := strings.TrimSpace(ev.Preview); preview != "" {
			fmt.Fprintln(w, "      "+truncate(strings.Join(strings.Fields(preview), " "), 160))
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// terminalNotifier prints terminal document events and counts them.
type terminalNotifier struct {
	mu     sync.Mutex
	w      io.Writer
	events []domain.DocumentEvent
}

func (n *terminalNotifier) NotifyDocument(_ context.Context, event domain.DocumentEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	_, err := fmt.Fprintln(n.w, event.Summary())
	return err
}

func (n *terminalNotifier) failures() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.events {
		if e.Kind != domain.EventCompleted {
			count++
		}
	}
	return count
}
