package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/repositories"
)

// DeviationService builds technical deviation tables.
type DeviationService interface {
	// Table compares the project's RFP requirements with the parameters of
	// productModel. An empty productModel considers every product.
	Table(ctx context.Context, caller models.Caller, projectID uuid.UUID, productModel string) ([]models.DeviationRow, error)
}

type deviationService struct {
	projects repositories.ProjectRepository
	items    repositories.RFPItemRepository
	specs    repositories.ProductSpecRepository
	audit    AuditService
	logger   *zap.Logger
}

// NewDeviationService creates a DeviationService.
func NewDeviationService(store *repositories.Store, audit AuditService, logger *zap.Logger) DeviationService {
	return &deviationService{
		projects: store.Projects,
		items:    store.RFPItems,
		specs:    store.ProductSpecs,
		audit:    audit,
		logger:   logger.Named("deviation-service"),
	}
}

func (s *deviationService) Table(ctx context.Context, caller models.Caller, projectID uuid.UUID, productModel string) ([]models.DeviationRow, error) {
	if err := authorize(caller, false); err != nil {
		return nil, err
	}
	project, err := s.projects.Get(ctx, caller.CompanyID, projectID)
	if err != nil {
		return nil, err
	}

	items, err := s.items.ListAllByProject(ctx, caller.CompanyID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list rfp items: %w", err)
	}
	specs, err := s.specs.ListAllByModel(ctx, caller.CompanyID, productModel)
	if err != nil {
		return nil, fmt.Errorf("list product specs: %w", err)
	}

	table := ComputeDeviationTable(items, specs)

	content := fmt.Sprintf("generated deviation table for %s (%d rows)", project.Name, len(table))
	if productModel != "" {
		content += " against " + productModel
	}
	if err := s.audit.Log(ctx, caller, Operation{
		Type:       models.OperationGenerate,
		Resource:   models.ResourceDeviationTable,
		ResourceID: resourceRef(projectID),
		Content:    content,
	}); err != nil {
		return nil, err
	}
	return table, nil
}

var (
	numberPattern    = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
	separatorPattern = regexp.MustCompile(`[\s_\-]+`)
)

// normalizeParam folds case and separators so "Detector_Rows" matches "detector rows".
func normalizeParam(name string) string {
	return separatorPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
}

// ComputeDeviationTable compares every RFP item carrying an extracted key
// with the product parameter of the same normalized name.
func ComputeDeviationTable(items []*models.RFPItem, specs []*models.ProductSpec) []models.DeviationRow {
	byName := make(map[string]*models.ProductSpec, len(specs))
	for _, spec := range specs {
		key := normalizeParam(spec.ParamName)
		// A core parameter wins over a non-core one of the same name.
		if current, ok := byName[key]; !ok || (spec.IsCoreParam && !current.IsCoreParam) {
			byName[key] = spec
		}
	}

	rows := make([]models.DeviationRow, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ExtractedKey) == "" {
			continue
		}
		row := models.DeviationRow{
			ParamName:   item.ExtractedKey,
			TenderValue: item.Operator + item.ExtractedValue,
		}

		spec, ok := byName[normalizeParam(item.ExtractedKey)]
		if !ok {
			row.Deviation = models.DeviationNegative
			row.Remark = "no matching product parameter"
			rows = append(rows, row)
			continue
		}

		row.OfferedValue = spec.ParamValue
		row.Deviation, row.Remark = compareValues(item.Operator, item.ExtractedValue, spec.ParamValue)
		rows = append(rows, row)
	}
	return rows
}

// compareValues classifies offered against required under op.
func compareValues(op, required, offered string) (models.Deviation, string) {
	req, reqOK := firstNumber(required)
	off, offOK := firstNumber(offered)

	if !reqOK || !offOK {
		if strings.EqualFold(strings.TrimSpace(required), strings.TrimSpace(offered)) {
			return models.DeviationNone, ""
		}
		return models.DeviationNegative, "values are not numeric, compare manually"
	}

	switch op {
	case ">=", ">":
		switch {
		case off > req:
			return models.DeviationPositive, ""
		case off == req && op == ">=":
			return models.DeviationNone, ""
		}
		return models.DeviationNegative, fmt.Sprintf("offered %s does not satisfy %s%s", offered, op, required)
	case "<=", "<":
		switch {
		case off < req:
			return models.DeviationPositive, ""
		case off == req && op == "<=":
			return models.DeviationNone, ""
		}
		return models.DeviationNegative, fmt.Sprintf("offered %s does not satisfy %s%s", offered, op, required)
	default:
		if off == req {
			return models.DeviationNone, ""
		}
		return models.DeviationNegative, fmt.Sprintf("offered %s differs from required %s", offered, required)
	}
}

func firstNumber(s string) (float64, bool) {
	m := numberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	return v, err == nil
}
