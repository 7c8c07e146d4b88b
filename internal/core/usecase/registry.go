package usecase

import (
	"sort"
	"sync"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

// DocumentListener observes registry changes. removed is true when the
// document left the registry.
type DocumentListener func(doc domain.Document, removed bool)

// DocumentRegistry is the in-memory document list shared by the poller and
// the full-list refresh. Merges and replaces apply in lock order; the last
// write wins.
type DocumentRegistry struct {
	mu    sync.RWMutex
	docs  map[string]*domain.Document
	order []string

	listeners []DocumentListener
}

func NewDocumentRegistry() *DocumentRegistry {
	return &DocumentRegistry{
		docs: make(map[string]*domain.Document),
	}
}

// Subscribe registers a listener. Listeners run after the lock is released.
func (r *DocumentRegistry) Subscribe(listener DocumentListener) {
	if listener == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, listener)
	r.mu.Unlock()
}

// Put inserts doc or overwrites the stored entry with the same id.
func (r *DocumentRegistry) Put(doc domain.Document) {
	r.mu.Lock()
	r.putLocked(doc)
	listeners := r.listeners
	r.mu.Unlock()

	notify(listeners, doc, false)
}

// Merge overwrites the status fields of a document with a server report,
// creating the entry when it is unknown.
func (r *DocumentRegistry) Merge(id string, report domain.StatusReport) domain.Document {
	r.mu.Lock()
	doc, ok := r.docs[id]
	if !ok {
		doc = &domain.Document{ID: id}
		r.docs[id] = doc
		r.order = append(r.order, id)
	}
	doc.ApplyStatus(report)
	merged := *doc
	listeners := r.listeners
	r.mu.Unlock()

	notify(listeners, merged, false)
	return merged
}

// Replace swaps the whole list for a fresh server listing.
func (r *DocumentRegistry) Replace(docs []domain.Document) {
	r.mu.Lock()
	previous := r.docs
	r.docs = make(map[string]*domain.Document, len(docs))
	r.order = r.order[:0]
	for _, doc := range docs {
		r.putLocked(doc)
	}
	var dropped []domain.Document
	for id, doc := range previous {
		if _, ok := r.docs[id]; !ok {
			dropped = append(dropped, *doc)
		}
	}
	listeners := r.listeners
	r.mu.Unlock()

	for _, doc := range docs {
		notify(listeners, doc, false)
	}
	for _, doc := range dropped {
		notify(listeners, doc, true)
	}
}

func (r *DocumentRegistry) Remove(id string) bool {
	r.mu.Lock()
	doc, ok := r.docs[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.docs, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	removed := *doc
	listeners := r.listeners
	r.mu.Unlock()

	notify(listeners, removed, true)
	return true
}

func (r *DocumentRegistry) Get(id string) (domain.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return domain.Document{}, false
	}
	return *doc, true
}

// List returns matching documents in insertion order.
func (r *DocumentRegistry) List(filter domain.DocumentFilter) []domain.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Document, 0, len(r.order))
	for _, id := range r.order {
		doc := r.docs[id]
		if filter.Match(*doc) {
			out = append(out, *doc)
		}
	}
	return out
}

// Companies returns the distinct company names, sorted.
func (r *DocumentRegistry) Companies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.docs))
	out := make([]string, 0, len(r.docs))
	for _, doc := range r.docs {
		if doc.Company == "" {
			continue
		}
		if _, ok := seen[doc.Company]; ok {
			continue
		}
		seen[doc.Company] = struct{}{}
		out = append(out, doc.Company)
	}
	sort.Strings(out)
	return out
}

// Years returns the distinct years, newest first.
func (r *DocumentRegistry) Years() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[int]struct{}, len(r.docs))
	out := make([]int, 0, len(r.docs))
	for _, doc := range r.docs {
		if doc.Year == 0 {
			continue
		}
		if _, ok := seen[doc.Year]; ok {
			continue
		}
		seen[doc.Year] = struct{}{}
		out = append(out, doc.Year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func (r *DocumentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

func (r *DocumentRegistry) putLocked(doc domain.Document) {
	if _, ok := r.docs[doc.ID]; !ok {
		r.order = append(r.order, doc.ID)
	}
	stored := doc
	r.docs[doc.ID] = &stored
}

func notify(listeners []DocumentListener, doc domain.Document, removed bool) {
	for _, listener := range listeners {
		listener(doc, removed)
	}
}
