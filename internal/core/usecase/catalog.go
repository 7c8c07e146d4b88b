package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

// CatalogUseCase keeps the local document list in step with the backend.
type CatalogUseCase struct {
	docs     documentLister
	registry *DocumentRegistry
	poller   *Poller
}

type documentLister interface {
	List(ctx context.Context) ([]domain.Document, error)
	Delete(ctx context.Context, documentID string) error
}

func NewCatalogUseCase(docs documentLister, registry *DocumentRegistry, poller *Poller) *CatalogUseCase {
	return &CatalogUseCase{
		docs:     docs,
		registry: registry,
		poller:   poller,
	}
}

// Refresh replaces the local list with the backend listing.
func (uc *CatalogUseCase) Refresh(ctx context.Context) error {
	docs, err := uc.docs.List(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	uc.registry.Replace(docs)
	return nil
}

// Delete removes the document on the backend, stops any poll for it and
// drops it from the local list.
func (uc *CatalogUseCase) Delete(ctx context.Context, documentID string) error {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "delete document", errors.New("document id is required"))
	}
	if err := uc.docs.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if uc.poller != nil {
		uc.poller.Cancel(documentID)
	}
	uc.registry.Remove(documentID)
	return nil
}

func (uc *CatalogUseCase) List(filter domain.DocumentFilter) []domain.Document {
	return uc.registry.List(filter)
}

func (uc *CatalogUseCase) Get(id string) (domain.Document, bool) {
	return uc.registry.Get(id)
}
