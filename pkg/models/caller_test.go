package models

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
)

func TestCaller_Validate(t *testing.T) {
	assert.NoError(t, Caller{UserID: uuid.New(), CompanyID: uuid.New(), Role: RoleOperator}.Validate())
	assert.ErrorIs(t, Caller{CompanyID: uuid.New()}.Validate(), apperrors.ErrUnauthorized)
	assert.ErrorIs(t, Caller{UserID: uuid.New()}.Validate(), apperrors.ErrUnauthorized)
}

func TestWithCaller_RoundTrip(t *testing.T) {
	c := Caller{UserID: uuid.New(), CompanyID: uuid.New(), Role: RoleAdmin}
	ctx := WithCaller(context.Background(), c)

	got, ok := GetCaller(ctx)
	require.True(t, ok)
	assert.Equal(t, c, got)
	assert.True(t, got.IsAdmin())

	_, ok = GetCaller(context.Background())
	assert.False(t, ok)
}

func TestIsValidRole(t *testing.T) {
	assert.True(t, IsValidRole(RoleManager))
	assert.False(t, IsValidRole("superuser"))
	assert.False(t, IsValidRole(""))
}

func TestPage_Normalize(t *testing.T) {
	assert.Equal(t, Page{Limit: DefaultPageLimit}, Page{}.Normalize(DefaultPageLimit))
	assert.Equal(t, Page{Limit: MaxPageLimit, Offset: 10}, Page{Limit: 10000, Offset: 10}.Normalize(DefaultPageLimit))
	assert.Equal(t, Page{Limit: 5}, Page{Limit: 5, Offset: -3}.Normalize(DefaultPageLimit))
}
