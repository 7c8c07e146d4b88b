package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/hyena-client/internal/core/domain"
	"github.com/kirillkom/hyena-client/internal/core/ports"
	"github.com/kirillkom/hyena-client/internal/core/render"
	"github.com/kirillkom/hyena-client/internal/core/stream"
)

// AskUseCase delivers one answer: it streams tokens when it can, falls back
// to a single non-streaming query when the stream fails, and resolves the
// evidence list once the stream has finished.
type AskUseCase struct {
	opener   ports.StreamOpener
	querier  ports.QueryService
	consumer *stream.Consumer
	metrics  AskMetrics
	logger   *slog.Logger
}

func NewAskUseCase(
	opener ports.StreamOpener,
	querier ports.QueryService,
	consumer *stream.Consumer,
	metrics AskMetrics,
	logger *slog.Logger,
) *AskUseCase {
	if consumer == nil {
		consumer = stream.NewConsumer(stream.Options{})
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AskUseCase{
		opener:   opener,
		querier:  querier,
		consumer: consumer,
		metrics:  metrics,
		logger:   logger,
	}
}

// Ask returns the answer in its final state. The error is non-nil only when
// both the stream and the fallback failed, or when the input is rejected.
func (uc *AskUseCase) Ask(
	ctx context.Context,
	question string,
	filters domain.QueryFilters,
	observer ports.AnswerObserver,
) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is required"))
	}
	if observer == nil {
		observer = nopObserver{}
	}

	start := time.Now()
	answer := domain.NewAnswer(uuid.NewString(), question, filters)
	req := domain.NewQueryRequest(question, filters)
	logger := uc.logger.With("answer_id", answer.ID)

	streamErr := uc.stream(ctx, req, answer, observer)
	if streamErr == nil {
		uc.resolveEvidence(ctx, req, answer, logger)
		uc.metrics.ObserveAnswer(outcomeStreamed, time.Since(start))
		observer.OnComplete(answer)
		return answer, nil
	}

	if !domain.IsStreamFailure(streamErr) {
		_ = answer.Fail(streamErr)
		uc.metrics.ObserveAnswer(outcomeFailed, time.Since(start))
		observer.OnComplete(answer)
		return answer, streamErr
	}

	logger.Warn("stream_fallback", "error", streamErr, "streamed_bytes", len(answer.RawText()))
	uc.metrics.ObserveFallback()

	result, err := uc.querier.Query(ctx, req)
	if err != nil {
		err = fmt.Errorf("fallback query: %w", err)
		_ = answer.Fail(err)
		logger.Error("fallback_failed", "error", err)
		uc.metrics.ObserveAnswer(outcomeFailed, time.Since(start))
		observer.OnComplete(answer)
		return answer, err
	}
	if err := answer.ReplaceWithFallback(result.Answer, result.Sources); err != nil {
		return answer, err
	}
	observer.OnReplace(answer, render.Render(answer.RawText()))
	uc.metrics.ObserveAnswer(outcomeFallback, time.Since(start))
	observer.OnComplete(answer)
	return answer, nil
}

func (uc *AskUseCase) stream(
	ctx context.Context,
	req domain.QueryRequest,
	answer *domain.Answer,
	observer ports.AnswerObserver,
) error {
	body, err := uc.opener.OpenStream(ctx, req)
	if err != nil {
		var transportErr *domain.TransportError
		if errors.As(err, &transportErr) || ctx.Err() != nil {
			return err
		}
		return &domain.TransportError{Operation: "open stream", Err: err}
	}
	defer body.Close()

	return uc.consumer.Consume(ctx, body, func(token string) error {
		if err := answer.AppendToken(token); err != nil {
			return err
		}
		uc.metrics.ObserveToken()
		observer.OnRender(answer, render.Render(answer.RawText()))
		return nil
	})
}

// resolveEvidence issues the single post-stream evidence lookup. Its failure
// leaves the answer complete without sources.
func (uc *AskUseCase) resolveEvidence(ctx context.Context, req domain.QueryRequest, answer *domain.Answer, logger *slog.Logger) {
	_ = answer.AwaitEvidence()

	result, err := uc.querier.Query(ctx, req)
	if err != nil {
		logger.Warn("evidence_fetch_failed", "error", err)
		uc.metrics.ObserveEvidenceFailure()
		_ = answer.Complete(nil)
		return
	}
	_ = answer.Complete(result.Sources)
}

type nopObserver struct{}

func (nopObserver) OnRender(*domain.Answer, string)  {}
func (nopObserver) OnReplace(*domain.Answer, string) {}
func (nopObserver) OnComplete(*domain.Answer)        {}
