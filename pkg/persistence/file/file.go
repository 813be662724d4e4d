// Package file stores workflow documents as JSON files, one per workflow,
// under <root>/workflows.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cyohn55/agentic-visual-scripting/pkg/models"
	"github.com/cyohn55/agentic-visual-scripting/pkg/persistence"
)

const dirPerm = 0o755
const filePerm = 0o644

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string
}

// NewPersistence creates a file-backed store rooted at the given directory.
// A "file://" prefix is accepted and stripped.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.TrimPrefix(root, "file://")}
}

func (p *Persistence) workflowsDir() string {
	return filepath.Join(p.root, "workflows")
}

func (p *Persistence) workflowPath(id string) string {
	return filepath.Join(p.workflowsDir(), id+".json")
}

// Workflows returns all stored workflows sorted by id.
func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	entries, err := fs.Glob(os.DirFS(p.workflowsDir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	sort.Strings(entries)

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		id := strings.TrimSuffix(entry, ".json")

		workflow, err := p.WorkflowByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// SaveWorkflow validates the document against the workflow schema and
// writes it, creating the store directory on first use.
func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	if err := os.MkdirAll(p.workflowsDir(), dirPerm); err != nil {
		return fmt.Errorf("failed to create workflow directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode workflow %s: %w", workflow.ID, err)
	}

	violations, err := models.ValidateWorkflowDocument(data)
	if err != nil {
		return err
	}

	if len(violations) > 0 {
		return fmt.Errorf("workflow %s violates schema: %s", workflow.ID, strings.Join(violations, "; "))
	}

	if err := os.WriteFile(p.workflowPath(workflow.ID), data, filePerm); err != nil {
		return fmt.Errorf("failed to write workflow %s: %w", workflow.ID, err)
	}

	return nil
}

// WorkflowByID loads one workflow document.
func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	data, err := os.ReadFile(p.workflowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("failed to decode workflow %s: %w", id, err)
	}

	return &workflow, nil
}

// DeleteWorkflow removes the document; deleting a missing workflow is an
// ErrWorkflowNotFound.
func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	err := os.Remove(p.workflowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
		}

		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close is a no-op for the file store.
func (p *Persistence) Close(ctx context.Context) error {
	return nil
}
