package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/hyena-client/internal/core/citation"
	"github.com/kirillkom/hyena-client/internal/core/domain"
	"github.com/kirillkom/hyena-client/internal/core/render"
)

type snapshotEvent struct {
	AnswerID string `json:"answer_id"`
	Markup   string `json:"markup"`
}

type completeEvent struct {
	AnswerID      string            `json:"answer_id"`
	State         string            `json:"state"`
	Markup        string            `json:"markup"`
	FellBack      bool              `json:"fell_back"`
	Sources       []domain.Evidence `json:"sources"`
	Citations     []citation.Marker `json:"citations"`
	CitationsHTML string            `json:"citations_html"`
}

type errorEvent struct {
	AnswerID string `json:"answer_id,omitempty"`
	Error    string `json:"error"`
}

// answerStream relays answer snapshots as server-sent events:
//
//	event: render    after each token
//	event: replace   when the fallback text supersedes the stream
//	event: complete  once, with the citation markers
//	event: error     when both stream and fallback failed
//
// Headers are written on the first event, so an error before any token can
// still be returned as a plain JSON response. A failed answer emits no
// complete event; the handler reports the failure.
type answerStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	err     error
}

func newAnswerStream(w http.ResponseWriter) *answerStream {
	flusher, _ := w.(http.Flusher)
	return &answerStream{w: w, flusher: flusher}
}

func (s *answerStream) OnRender(answer *domain.Answer, markup string) {
	s.emit("render", snapshotEvent{AnswerID: answer.ID, Markup: markup})
}

func (s *answerStream) OnReplace(answer *domain.Answer, markup string) {
	s.emit("replace", snapshotEvent{AnswerID: answer.ID, Markup: markup})
}

func (s *answerStream) OnComplete(answer *domain.Answer) {
	if answer.State == domain.AnswerFailed {
		return
	}
	event := completeEvent{
		AnswerID: answer.ID,
		State:    string(answer.State),
		Markup:   render.Render(answer.RawText()),
		FellBack: answer.FellBack,
		Sources:  answer.Sources,
	}
	if idx, err := citation.New(answer.Sources); err == nil {
		event.Citations = idx.Markers()
		event.CitationsHTML = citation.RenderMarkersHTML(event.Citations)
	}
	if event.Sources == nil {
		event.Sources = []domain.Evidence{}
	}
	s.emit("complete", event)
}

func (s *answerStream) fail(answer *domain.Answer, err error) {
	event := errorEvent{Error: err.Error()}
	if answer != nil {
		event.AnswerID = answer.ID
	}
	s.emit("error", event)
}

func (s *answerStream) done() {
	if !s.started || s.err != nil {
		return
	}
	if _, err := io.WriteString(s.w, "data: [DONE]\n\n"); err != nil {
		s.err = err
		return
	}
	s.flush()
}

func (s *answerStream) emit(name string, payload any) {
	if s.err != nil {
		return
	}
	if !s.started {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.err = err
		return
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, raw); err != nil {
		s.err = err
		return
	}
	s.flush()
}

func (s *answerStream) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
