// Package memory provides in-process repositories for development and tests.
// They honour the same company scoping and error contract as the Postgres
// repositories.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// entity is a company-owned model addressed through its pointer type.
type entity[T any] interface {
	*T
	models.Tenanted
}

// table is a map of entities keyed by ID. Values are copied on the way in
// and out so callers never share memory with the store.
type table[T any, PT entity[T]] struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*T

	// unique, when set, rejects a row that collides with an existing one.
	unique func(existing, candidate *T) error
}

func newTable[T any, PT entity[T]]() *table[T, PT] {
	return &table[T, PT]{rows: make(map[uuid.UUID]*T)}
}

// clone copies v, including the slices, maps and pointers of entities that
// carry them.
func clone[T any](v *T) *T {
	c := *v
	switch e := any(&c).(type) {
	case *models.KnowledgeChunk:
		e.Embedding = slices.Clone(e.Embedding)
		e.Metadata = cloneMap(e.Metadata)
	case *models.GeneratedBid:
		e.ManualReviewNotes = clonePtr(e.ManualReviewNotes)
		e.AIGeneratedContent = models.BidContent{
			MatchedSpecs:         slices.Clone(e.AIGeneratedContent.MatchedSpecs),
			QualificationChecks:  slices.Clone(e.AIGeneratedContent.QualificationChecks),
			DeviationTable:       slices.Clone(e.AIGeneratedContent.DeviationTable),
			ManualReviewSections: slices.Clone(e.AIGeneratedContent.ManualReviewSections),
		}
	case *models.Qualification:
		e.ExpiryDate = clonePtr(e.ExpiryDate)
	case *models.OperationLog:
		e.UserID = clonePtr(e.UserID)
		e.ResourceID = clonePtr(e.ResourceID)
		e.ChangedFields = maps.Clone(e.ChangedFields)
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// cloneMap copies JSON-shaped metadata, descending into nested maps and slices.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func (t *table[T, PT]) Create(_ context.Context, e *T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := PT(e).Record()
	if _, ok := t.rows[rec.ID]; ok {
		return apperrors.ErrConflict
	}
	if err := t.checkUnique(e); err != nil {
		return err
	}
	t.rows[rec.ID] = clone(e)
	return nil
}

func (t *table[T, PT]) Get(_ context.Context, companyID, id uuid.UUID) (*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.rows[id]
	if !ok || PT(row).Record().CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}
	return clone(row), nil
}

func (t *table[T, PT]) List(_ context.Context, companyID uuid.UUID, page models.Page) ([]*T, error) {
	return t.filter(companyID, page, nil), nil
}

// filter returns the matching rows of companyID newest first, windowed by page.
func (t *table[T, PT]) filter(companyID uuid.UUID, page models.Page, match func(*T) bool) []*T {
	matched := t.matching(companyID, match)
	page = page.Normalize(models.DefaultPageLimit)
	if page.Offset >= len(matched) {
		return []*T{}
	}
	end := min(page.Offset+page.Limit, len(matched))
	return matched[page.Offset:end]
}

// matching returns copies of every matching row of companyID, newest first.
func (t *table[T, PT]) matching(companyID uuid.UUID, match func(*T) bool) []*T {
	t.mu.RLock()
	matched := make([]*T, 0)
	for _, row := range t.rows {
		if PT(row).Record().CompanyID != companyID {
			continue
		}
		if match != nil && !match(row) {
			continue
		}
		matched = append(matched, clone(row))
	}
	t.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *T) int {
		ra, rb := PT(a).Record(), PT(b).Record()
		if c := rb.CreatedAt.Compare(ra.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(ra.ID, rb.ID)
	})
	return matched
}

// oldestFirst returns copies of every matching row of companyID, oldest first.
func (t *table[T, PT]) oldestFirst(companyID uuid.UUID, match func(*T) bool) []*T {
	rows := t.matching(companyID, match)
	slices.SortFunc(rows, func(a, b *T) int {
		ra, rb := PT(a).Record(), PT(b).Record()
		if c := ra.CreatedAt.Compare(rb.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(ra.ID, rb.ID)
	})
	return rows
}

func (t *table[T, PT]) Update(_ context.Context, e *T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := PT(e).Record()
	existing, ok := t.rows[rec.ID]
	if !ok || PT(existing).Record().CompanyID != rec.CompanyID {
		return apperrors.ErrNotFound
	}
	if err := t.checkUnique(e); err != nil {
		return err
	}

	updated := clone(e)
	PT(updated).Record().CreatedAt = PT(existing).Record().CreatedAt
	t.rows[rec.ID] = updated
	return nil
}

func (t *table[T, PT]) Delete(_ context.Context, companyID, id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.rows[id]
	if !ok || PT(row).Record().CompanyID != companyID {
		return apperrors.ErrNotFound
	}
	delete(t.rows, id)
	return nil
}

// checkUnique must be called with mu held.
func (t *table[T, PT]) checkUnique(candidate *T) error {
	if t.unique == nil {
		return nil
	}
	id := PT(candidate).Record().ID
	for rowID, row := range t.rows {
		if rowID == id {
			continue
		}
		if err := t.unique(row, candidate); err != nil {
			return err
		}
	}
	return nil
}

func compareIDs(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
