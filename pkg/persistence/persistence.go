// Package persistence abstracts storage of workflow documents saved by the
// editor. The engine never touches it; it consumes a frozen snapshot.
package persistence

import (
	"context"

	"github.com/cyohn55/agentic-visual-scripting/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
