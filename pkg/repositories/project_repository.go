package repositories

import (
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// ProjectRepository stores bid projects.
type ProjectRepository interface {
	TenantRepository[models.Project]
}

type projectRepository struct {
	*pgTable[models.Project]
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository() ProjectRepository {
	return &projectRepository{pgTable: newPgTable("projects",
		[]string{"name", "status", "rfp_file_url", "owner_id"},
		func(p *models.Project) *models.TenantRecord { return &p.TenantRecord },
		func(p *models.Project) []any {
			return []any{p.Name, p.Status, p.RFPFileURL, p.OwnerID}
		},
		scanProject,
	)}
}

var _ ProjectRepository = (*projectRepository)(nil)

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.CompanyID, &p.CreatedAt, &p.UpdatedAt, &p.Name, &p.Status, &p.RFPFileURL, &p.OwnerID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
