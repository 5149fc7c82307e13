package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		required string
		offered  string
		want     models.Deviation
	}{
		{">= better", ">=", "64", "128", models.DeviationPositive},
		{">= equal", ">=", "64", "64", models.DeviationNone},
		{">= worse", ">=", "64", "32", models.DeviationNegative},
		{"> equal fails", ">", "64", "64", models.DeviationNegative},
		{"> better", ">", "64", "65", models.DeviationPositive},
		{"<= better", "<=", "0.5 mm", "0.35 mm", models.DeviationPositive},
		{"<= equal", "<=", "0.5", "0.5", models.DeviationNone},
		{"<= worse", "<=", "0.5", "0.6", models.DeviationNegative},
		{"< equal fails", "<", "10", "10", models.DeviationNegative},
		{"= equal", "=", "220V", "220 V", models.DeviationNone},
		{"empty operator differs", "", "50Hz", "60Hz", models.DeviationNegative},
		{"text equal ignoring case", "", "DICOM 3.0", "dicom 3.0", models.DeviationNone},
		{"text differs", "", "Yes", "No", models.DeviationNegative},
		{"text versus number", ">=", "high", "128", models.DeviationNegative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, remark := compareValues(tt.op, tt.required, tt.offered)
			assert.Equal(t, tt.want, got)
			if got == models.DeviationNegative {
				assert.NotEmpty(t, remark)
			}
		})
	}
}

func TestComputeDeviationTable(t *testing.T) {
	items := []*models.RFPItem{
		{ExtractedKey: "Detector_Rows", ExtractedValue: "64", Operator: ">="},
		{ExtractedKey: "gantry aperture", ExtractedValue: "78 cm", Operator: ">="},
		{SectionType: "commercial", Content: "Payment within 30 days"},
	}
	specs := []*models.ProductSpec{
		{ParamName: "detector rows", ParamValue: "64", IsCoreParam: false},
		{ParamName: "Detector Rows", ParamValue: "128", IsCoreParam: true},
	}

	rows := ComputeDeviationTable(items, specs)
	require.Len(t, rows, 2, "items without an extracted key are skipped")

	assert.Equal(t, "Detector_Rows", rows[0].ParamName)
	assert.Equal(t, ">=64", rows[0].TenderValue)
	assert.Equal(t, "128", rows[0].OfferedValue, "core parameter wins")
	assert.Equal(t, models.DeviationPositive, rows[0].Deviation)

	assert.Equal(t, models.DeviationNegative, rows[1].Deviation)
	assert.Equal(t, "no matching product parameter", rows[1].Remark)
	assert.Empty(t, rows[1].OfferedValue)
}

func TestDeviationService_Table(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProject(t, env.adminA, "CT tender")

	items := NewRFPItemService(env.store.RFPItems, env.store.Projects, env.audit, env.tx, env.logger)
	_, err := items.Create(ctx, env.adminA, &models.RFPItem{ProjectID: p.ID, SectionType: "technical", Content: "rows", ExtractedKey: "detector rows", ExtractedValue: "64", Operator: ">="})
	require.NoError(t, err)

	specs := NewProductSpecService(env.store.ProductSpecs, env.audit, env.tx, env.logger)
	_, err = specs.Create(ctx, env.adminA, &models.ProductSpec{ProductModel: "CT-64", ParamName: "detector rows", ParamValue: "64"})
	require.NoError(t, err)
	_, err = specs.Create(ctx, env.adminA, &models.ProductSpec{ProductModel: "CT-128", ParamName: "detector rows", ParamValue: "128"})
	require.NoError(t, err)

	svc := NewDeviationService(env.store, env.audit, env.logger)

	rows, err := svc.Table(ctx, env.operatorA, p.ID, "CT-64")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.DeviationNone, rows[0].Deviation)

	rows, err = svc.Table(ctx, env.operatorA, p.ID, "CT-128")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.DeviationPositive, rows[0].Deviation)

	_, err = svc.Table(ctx, env.adminB, p.ID, "CT-64")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	var generated int
	for _, e := range env.logsFor(t, env.adminA.CompanyID, p.ID) {
		if e.ResourceType == models.ResourceDeviationTable {
			assert.Equal(t, models.OperationGenerate, e.OperationType)
			generated++
		}
	}
	assert.Equal(t, 2, generated)
}

func TestDeviationService_Table_ReadsEveryProductSpec(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.createProject(t, env.adminA, "CT tender")

	items := NewRFPItemService(env.store.RFPItems, env.store.Projects, env.audit, env.tx, env.logger)
	_, err := items.Create(ctx, env.adminA, &models.RFPItem{ProjectID: p.ID, SectionType: "technical", Content: "rows", ExtractedKey: "detector rows", ExtractedValue: "64", Operator: ">="})
	require.NoError(t, err)

	// The only matching parameter is the oldest row, behind a full page of newer ones.
	base := time.Now().Add(-time.Hour)
	spec := func(offset int, name, value string) *models.ProductSpec {
		created := base.Add(time.Duration(offset) * time.Second)
		return &models.ProductSpec{
			TenantRecord: models.TenantRecord{ID: uuid.New(), CompanyID: env.adminA.CompanyID, CreatedAt: created, UpdatedAt: created},
			ProductModel: "CT-64",
			ParamName:    name,
			ParamValue:   value,
		}
	}
	require.NoError(t, env.store.ProductSpecs.Create(ctx, spec(0, "detector rows", "128")))
	for i := 1; i <= models.MaxPageLimit; i++ {
		require.NoError(t, env.store.ProductSpecs.Create(ctx, spec(i, fmt.Sprintf("param %d", i), "1")))
	}

	rows, err := NewDeviationService(env.store, env.audit, env.logger).Table(ctx, env.operatorA, p.ID, "CT-64")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "128", rows[0].OfferedValue)
	assert.Equal(t, models.DeviationPositive, rows[0].Deviation)
}
