package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

func record(companyID uuid.UUID, created time.Time) models.TenantRecord {
	return models.TenantRecord{ID: uuid.New(), CompanyID: companyID, CreatedAt: created, UpdatedAt: created}
}

func TestTable_CompanyIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	companyA, companyB := uuid.New(), uuid.New()

	p := &models.Project{TenantRecord: record(companyA, time.Now()), Name: "a"}
	require.NoError(t, store.Projects.Create(ctx, p))

	_, err := store.Projects.Get(ctx, companyB, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	foreign := *p
	foreign.CompanyID = companyB
	foreign.Name = "hijacked"
	assert.ErrorIs(t, store.Projects.Update(ctx, &foreign), apperrors.ErrNotFound)
	assert.ErrorIs(t, store.Projects.Delete(ctx, companyB, p.ID), apperrors.ErrNotFound)

	list, err := store.Projects.List(ctx, companyB, models.Page{})
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := store.Projects.Get(ctx, companyA, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
}

func TestTable_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	companyID := uuid.New()

	p := &models.Project{TenantRecord: record(companyID, time.Now()), Name: "original"}
	require.NoError(t, store.Projects.Create(ctx, p))
	p.Name = "mutated after create"

	got, err := store.Projects.Get(ctx, companyID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Name)

	chunk := &models.KnowledgeChunk{
		TenantRecord: record(companyID, time.Now()),
		Content:      "passage",
		Embedding:    []float32{1, 2, 3},
		Metadata:     map[string]any{"k": "v", "nested": map[string]any{"page": 1}},
	}
	require.NoError(t, store.Knowledge.Create(ctx, chunk))
	chunk.Embedding[0] = 42
	chunk.Metadata["k"] = "mutated"
	chunk.Metadata["nested"].(map[string]any)["page"] = 99

	gotChunk, err := store.Knowledge.Get(ctx, companyID, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, gotChunk.Embedding)
	assert.Equal(t, "v", gotChunk.Metadata["k"])
	assert.Equal(t, 1, gotChunk.Metadata["nested"].(map[string]any)["page"])

	gotChunk.Embedding[1] = 7
	again, err := store.Knowledge.Get(ctx, companyID, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, float32(2), again.Embedding[1])

	notes := "check gantry"
	bid := &models.GeneratedBid{
		TenantRecord:       record(companyID, time.Now()),
		TaskID:             uuid.New(),
		Status:             models.BidStatusDraft,
		ManualReviewNotes:  &notes,
		AIGeneratedContent: models.BidContent{DeviationTable: []models.DeviationRow{{ParamName: "detector rows", Deviation: models.DeviationNone}}},
	}
	require.NoError(t, store.GeneratedBids.Create(ctx, bid))
	bid.AIGeneratedContent.DeviationTable[0].Deviation = models.DeviationNegative
	*bid.ManualReviewNotes = "mutated"

	gotBid, err := store.GeneratedBids.Get(ctx, companyID, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviationNone, gotBid.AIGeneratedContent.DeviationTable[0].Deviation)
	assert.Equal(t, "check gantry", *gotBid.ManualReviewNotes)
}

func TestTable_ListOrderAndPaging(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	companyID := uuid.New()
	base := time.Now()

	var ids []uuid.UUID
	for i := range 5 {
		tmpl := &models.BidTemplate{TenantRecord: record(companyID, base.Add(time.Duration(i)*time.Second)), Name: "t"}
		require.NoError(t, store.Templates.Create(ctx, tmpl))
		ids = append(ids, tmpl.ID)
	}

	page, err := store.Templates.List(ctx, companyID, models.Page{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[3], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	beyond, err := store.Templates.List(ctx, companyID, models.Page{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestListAll_UnpagedOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	companyID, projectID := uuid.New(), uuid.New()
	base := time.Now()

	total := models.MaxPageLimit + 3
	for i := range total {
		created := base.Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, store.RFPItems.Create(ctx, &models.RFPItem{TenantRecord: record(companyID, created), ProjectID: projectID}))
		require.NoError(t, store.ProductSpecs.Create(ctx, &models.ProductSpec{TenantRecord: record(companyID, created), ProductModel: "CT-64"}))
	}
	require.NoError(t, store.RFPItems.Create(ctx, &models.RFPItem{TenantRecord: record(companyID, base), ProjectID: uuid.New()}))
	require.NoError(t, store.ProductSpecs.Create(ctx, &models.ProductSpec{TenantRecord: record(companyID, base), ProductModel: "MR-3T"}))

	items, err := store.RFPItems.ListAllByProject(ctx, companyID, projectID)
	require.NoError(t, err)
	require.Len(t, items, total)
	assert.True(t, items[0].CreatedAt.Before(items[total-1].CreatedAt))

	specs, err := store.ProductSpecs.ListAllByModel(ctx, companyID, "CT-64")
	require.NoError(t, err)
	assert.Len(t, specs, total)

	every, err := store.ProductSpecs.ListAllByModel(ctx, companyID, "")
	require.NoError(t, err)
	assert.Len(t, every, total+1)
}

func TestUserRepository_UniqueUsernamePerCompany(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	companyA, companyB := uuid.New(), uuid.New()

	require.NoError(t, store.Users.Create(ctx, &models.User{TenantRecord: record(companyA, time.Now()), Username: "alice"}))
	err := store.Users.Create(ctx, &models.User{TenantRecord: record(companyA, time.Now()), Username: "alice"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateUsername)
	require.NoError(t, store.Users.Create(ctx, &models.User{TenantRecord: record(companyB, time.Now()), Username: "alice"}))

	found, err := store.Users.GetByUsername(ctx, companyB, "alice")
	require.NoError(t, err)
	assert.Equal(t, companyB, found.CompanyID)
}

func TestBidTaskRepository_TransitionRace(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	companyID := uuid.New()

	task := &models.BidGenerationTask{TenantRecord: record(companyID, time.Now()), Status: models.TaskStatusProcessing, Progress: 30}
	require.NoError(t, store.Tasks.Create(ctx, task))

	active := []models.TaskStatus{models.TaskStatusPending, models.TaskStatusProcessing}
	results := make(chan error, 10)
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			target := models.TaskStatusCompleted
			if i%2 == 0 {
				target = models.TaskStatusCancelled
			}
			_, err := store.Tasks.Transition(ctx, companyID, task.ID, active, func(t *models.BidGenerationTask) {
				t.Status = target
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrTaskTerminal)
	}
	assert.Equal(t, 1, wins)
}

func TestBidTaskRepository_ProgressNeverDecreases(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	companyID := uuid.New()

	task := &models.BidGenerationTask{TenantRecord: record(companyID, time.Now()), Status: models.TaskStatusProcessing, Progress: 50}
	require.NoError(t, store.Tasks.Create(ctx, task))

	updated, err := store.Tasks.Transition(ctx, companyID, task.ID, []models.TaskStatus{models.TaskStatusProcessing},
		func(t *models.BidGenerationTask) { t.Progress = 10 })
	require.NoError(t, err)
	assert.Equal(t, 50, updated.Progress)

	_, err = store.Tasks.Transition(ctx, companyID, task.ID, []models.TaskStatus{models.TaskStatusPending},
		func(t *models.BidGenerationTask) {})
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatus)
}

func TestKnowledgeChunkRepository_SearchSimilar(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	companyID := uuid.New()

	near := &models.KnowledgeChunk{TenantRecord: record(companyID, time.Now()), Content: "near", Embedding: []float32{1, 0.1}}
	far := &models.KnowledgeChunk{TenantRecord: record(companyID, time.Now()), Content: "far", Embedding: []float32{0, 1}}
	bare := &models.KnowledgeChunk{TenantRecord: record(companyID, time.Now()), Content: "bare"}
	other := &models.KnowledgeChunk{TenantRecord: record(uuid.New(), time.Now()), Content: "other", Embedding: []float32{1, 0}}
	for _, c := range []*models.KnowledgeChunk{near, far, bare, other} {
		require.NoError(t, store.Knowledge.Create(ctx, c))
	}

	hits, err := store.Knowledge.SearchSimilar(ctx, companyID, []float32{1, 0}, "", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].Chunk.Content)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	top1, err := store.Knowledge.SearchSimilar(ctx, companyID, []float32{1, 0}, "", 1)
	require.NoError(t, err)
	assert.Len(t, top1, 1)
}

func TestOperationLogRepository_Query(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	companyID := uuid.New()
	base := time.Now()

	for i, op := range []string{models.OperationCreate, models.OperationUpdate, models.OperationDelete} {
		require.NoError(t, store.OperationLogs.Create(ctx, &models.OperationLog{
			ID: uuid.New(), CompanyID: companyID, OperationType: op,
			ResourceType: models.ResourceProject, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.OperationLogs.Create(ctx, &models.OperationLog{
		ID: uuid.New(), CompanyID: uuid.New(), OperationType: models.OperationCreate, CreatedAt: base,
	}))

	all, err := store.OperationLogs.Query(ctx, companyID, models.LogFilter{}, models.Page{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.OperationDelete, all[0].OperationType)

	creates, err := store.OperationLogs.Query(ctx, companyID, models.LogFilter{OperationType: models.OperationCreate}, models.Page{})
	require.NoError(t, err)
	assert.Len(t, creates, 1)
}
