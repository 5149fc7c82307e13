package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

func createDraftBid(t *testing.T, env *testEnv, caller models.Caller) *models.GeneratedBid {
	t.Helper()
	bid := &models.GeneratedBid{
		TenantRecord: newRecord(caller),
		ProjectID:    uuid.New(),
		TaskID:       uuid.New(),
		TemplateID:   uuid.New(),
		FileURL:      "local://bid.md",
		Status:       models.BidStatusDraft,
	}
	require.NoError(t, env.store.GeneratedBids.Create(context.Background(), bid))
	return bid
}

func strPtr(s string) *string { return &s }

func TestBidService_Review(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewBidService(env.store.GeneratedBids, env.audit, env.tx, env.logger)
	bid := createDraftBid(t, env, env.adminA)

	reviewed, err := svc.Review(ctx, env.operatorA, bid.ID, ReviewInput{Status: models.BidStatusReviewed, Notes: strPtr("pricing checked")})
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusReviewed, reviewed.Status)
	assert.Equal(t, "pricing checked", *reviewed.ManualReviewNotes)

	// Moving backwards is allowed.
	back, err := svc.Review(ctx, env.operatorA, bid.ID, ReviewInput{Status: models.BidStatusDraft})
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusDraft, back.Status)
	assert.Equal(t, "pricing checked", *back.ManualReviewNotes, "notes kept when none supplied")

	entries := env.logsFor(t, env.adminA.CompanyID, bid.ID)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, models.OperationUpdate, e.OperationType)
		assert.Equal(t, models.ResourceGeneratedBid, e.ResourceType)
	}
}

func TestBidService_ReviewRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	svc := NewBidService(env.store.GeneratedBids, env.audit, env.tx, env.logger)
	bid := createDraftBid(t, env, env.adminA)

	_, err := svc.Review(context.Background(), env.adminA, bid.ID, ReviewInput{Status: "approved"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatus)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Empty(t, env.logsFor(t, env.adminA.CompanyID, bid.ID))
}

func TestBidService_FinalizedNeedsJustification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewBidService(env.store.GeneratedBids, env.audit, env.tx, env.logger)
	bid := createDraftBid(t, env, env.adminA)

	_, err := svc.Review(ctx, env.adminA, bid.ID, ReviewInput{Status: models.BidStatusFinalized})
	require.NoError(t, err)

	_, err = svc.Review(ctx, env.adminA, bid.ID, ReviewInput{Status: models.BidStatusReviewed})
	assert.ErrorIs(t, err, apperrors.ErrJustificationRequired)

	_, err = svc.Review(ctx, env.adminA, bid.ID, ReviewInput{Status: models.BidStatusReviewed, Notes: strPtr("   ")})
	assert.ErrorIs(t, err, apperrors.ErrJustificationRequired)

	reopened, err := svc.Review(ctx, env.adminA, bid.ID, ReviewInput{Status: models.BidStatusReviewed, Notes: strPtr("customer changed the delivery date")})
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusReviewed, reopened.Status)
}

func TestBidService_TenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewBidService(env.store.GeneratedBids, env.audit, env.tx, env.logger)
	bid := createDraftBid(t, env, env.adminA)

	_, err := svc.Get(ctx, env.adminB, bid.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Review(ctx, env.adminB, bid.ID, ReviewInput{Status: models.BidStatusReviewed})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.GetByTask(ctx, env.adminB, bid.TaskID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	got, err := svc.GetByTask(ctx, env.operatorA, bid.TaskID)
	require.NoError(t, err)
	assert.Equal(t, bid.ID, got.ID)
}
