package database

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

type scopeKey struct{}

type fakeScoper struct {
	err      error
	opened   uuid.UUID
	released bool
}

func (f *fakeScoper) WithTenantScope(ctx context.Context, companyID uuid.UUID) (context.Context, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.opened = companyID
	return context.WithValue(ctx, scopeKey{}, companyID), func() { f.released = true }, nil
}

func (f *fakeScoper) WithoutTenantScope(ctx context.Context) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

func TestWithTenantContext_ScopesToCallerCompany(t *testing.T) {
	scoper := &fakeScoper{}
	caller := models.Caller{UserID: uuid.New(), CompanyID: uuid.New(), Role: models.RoleOperator}

	var seen any
	h := WithTenantContext(scoper, zap.NewNop())(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context().Value(scopeKey{})
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req = req.WithContext(models.WithCaller(req.Context(), caller))
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, caller.CompanyID, scoper.opened)
	assert.Equal(t, caller.CompanyID, seen)
	assert.True(t, scoper.released)
}

func TestWithTenantContext_NoCaller(t *testing.T) {
	scoper := &fakeScoper{}
	called := false
	h := WithTenantContext(scoper, zap.NewNop())(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/projects", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
	assert.Equal(t, uuid.Nil, scoper.opened)
}

func TestWithTenantContext_ScopeFailureIsMasked(t *testing.T) {
	scoper := &fakeScoper{err: errors.New("dial postgres://bid:hunter2@db:5432: refused")}
	caller := models.Caller{UserID: uuid.New(), CompanyID: uuid.New(), Role: models.RoleAdmin}

	h := WithTenantContext(scoper, zap.NewNop())(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req = req.WithContext(models.WithCaller(req.Context(), caller))
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.Contains(t, rec.Body.String(), "internal_error")
}
