package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

func TestResourcePath(t *testing.T) {
	tests := []struct {
		resource string
		want     string
	}{
		{models.ResourceProject, "/api/projects"},
		{models.ResourceRFPItem, "/api/rfp-items"},
		{models.ResourceProductSpec, "/api/product-specs"},
		{models.ResourceKnowledgeChunk, "/api/knowledge-chunks"},
		{models.ResourceBidTemplate, "/api/bid-templates"},
		{models.ResourceQualification, "/api/qualifications"},
	}
	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			assert.Equal(t, tt.want, ResourcePath(tt.resource))
		})
	}
}

func TestResourceHandler_ProjectLifecycle(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/projects", tokenOperatorA, map[string]any{"name": "CT scanner tender"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Project
	decodeData(t, rec, &created)
	assert.Equal(t, api.operatorA.CompanyID, created.CompanyID)
	assert.Equal(t, api.operatorA.UserID, created.OwnerID)
	assert.Equal(t, models.ProjectStatusParsing, created.Status)

	path := "/api/projects/" + created.ID.String()

	rec = api.do(t, http.MethodGet, path, tokenAdminA, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPut, path, tokenAdminA, map[string]any{"name": "CT scanner tender (rev 2)", "status": models.ProjectStatusInProgress})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.Project
	decodeData(t, rec, &updated)
	assert.Equal(t, "CT scanner tender (rev 2)", updated.Name)
	assert.Equal(t, created.OwnerID, updated.OwnerID)

	rec = api.do(t, http.MethodGet, "/api/projects", tokenAdminA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse[models.Project]
	decodeData(t, rec, &list)
	assert.Equal(t, 1, list.Count)

	rec = api.do(t, http.MethodDelete, path, tokenAdminA, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, path, tokenAdminA, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestResourceHandler_OtherCompanyGetsNotFound(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/product-specs", tokenAdminA, map[string]any{
		"product_model": "CT-64", "param_name": "detector rows", "param_value": "64", "is_core_param": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var spec models.ProductSpec
	decodeData(t, rec, &spec)

	path := "/api/product-specs/" + spec.ID.String()
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec = api.do(t, method, path, tokenAdminB, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
	}
	rec = api.do(t, http.MethodPut, path, tokenAdminB, map[string]any{"param_value": "128"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/product-specs", tokenAdminB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse[models.ProductSpec]
	decodeData(t, rec, &list)
	assert.Empty(t, list.Items)
}

func TestResourceHandler_SpoofedCompanyIsIgnored(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/projects", tokenAdminA, map[string]any{
		"name":       "spoof",
		"company_id": api.adminB.CompanyID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Project
	decodeData(t, rec, &created)
	assert.Equal(t, api.adminA.CompanyID, created.CompanyID)
}

func TestResourceHandler_RequiresAuthentication(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/projects", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResourceHandler_BadRequests(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/projects/not-a-uuid", tokenAdminA, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_id", errorCode(t, rec))

	rec = api.do(t, http.MethodPost, "/api/projects", tokenAdminA, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/projects?limit=abc", tokenAdminA, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProjectHandler_RFPItemsAndDeviationTable(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/projects", tokenAdminA, map[string]any{"name": "CT"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var project models.Project
	decodeData(t, rec, &project)

	rec = api.do(t, http.MethodPost, "/api/rfp-items", tokenAdminA, map[string]any{
		"project_id":      project.ID,
		"section_type":    "technical",
		"content":         "Detector rows at least 64",
		"extracted_key":   "Detector rows",
		"extracted_value": "64",
		"operator":        ">=",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/product-specs", tokenAdminA, map[string]any{
		"product_model": "CT-128", "param_name": "detector_rows", "param_value": "128",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	base := "/api/projects/" + project.ID.String()
	rec = api.do(t, http.MethodGet, base+"/rfp-items", tokenAdminA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items ListResponse[models.RFPItem]
	decodeData(t, rec, &items)
	assert.Len(t, items.Items, 1)

	rec = api.do(t, http.MethodGet, base+"/deviation-table?product_model=CT-128", tokenAdminA, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var table DeviationTableResponse
	decodeData(t, rec, &table)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, models.DeviationPositive, table.Rows[0].Deviation)

	rec = api.do(t, http.MethodGet, base+"/deviation-table", tokenAdminB, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
