package ports

import (
	"context"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

// AnswerObserver receives render snapshots while an answer is assembled.
type AnswerObserver interface {
	// OnRender is called after every streamed token with the markup of the
	// whole accumulated text.
	OnRender(answer *domain.Answer, markup string)
	// OnReplace is called when the fallback result supersedes streamed text.
	OnReplace(answer *domain.Answer, markup string)
	// OnComplete is called once the answer reaches a final state.
	OnComplete(answer *domain.Answer)
}

// Asker is the inbound contract for question answering.
type Asker interface {
	Ask(ctx context.Context, question string, filters domain.QueryFilters, observer AnswerObserver) (*domain.Answer, error)
}

// DocumentIngestor is the inbound contract for upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, req domain.UploadRequest) (*domain.Document, error)
}

// DocumentReader is the inbound read model for the local document list.
type DocumentReader interface {
	List(filter domain.DocumentFilter) []domain.Document
	Get(id string) (domain.Document, bool)
}
