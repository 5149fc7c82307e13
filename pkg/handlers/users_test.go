package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

func TestUserHandler_RequiresAdmin(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/users", tokenOperatorA, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	rec = api.do(t, http.MethodPost, "/api/users", tokenOperatorA, map[string]any{
		"username": "mallory", "password": "password123", "role": "admin",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserHandler_CreateHidesPassword(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/users", tokenAdminA, map[string]any{
		"username": "carol", "password": "s3cret-pass", "role": "manager",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "s3cret-pass")
	assert.NotContains(t, rec.Body.String(), "password")

	var user models.User
	decodeData(t, rec, &user)
	assert.Equal(t, models.RoleManager, user.Role)
}

func TestUserHandler_DuplicateUsernameConflicts(t *testing.T) {
	api := newTestAPI(t)
	body := map[string]any{"username": "dave", "password": "password123", "role": "operator"}

	rec := api.do(t, http.MethodPost, "/api/users", tokenAdminA, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/users", tokenAdminA, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorCode(t, rec))

	// Same username in another company is fine.
	rec = api.do(t, http.MethodPost, "/api/users", tokenAdminB, body)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUserHandler_UpdateRole(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/users", tokenAdminA, map[string]any{
		"username": "erin", "password": "password123", "role": "operator",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var user models.User
	decodeData(t, rec, &user)

	path := "/api/users/" + user.ID.String() + "/role"
	rec = api.do(t, http.MethodPut, path, tokenAdminA, UpdateRoleRequest{Role: models.RoleManager})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &user)
	assert.Equal(t, models.RoleManager, user.Role)

	rec = api.do(t, http.MethodPut, path, tokenAdminA, UpdateRoleRequest{Role: "superuser"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPut, path, tokenAdminB, UpdateRoleRequest{Role: models.RoleAdmin})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
