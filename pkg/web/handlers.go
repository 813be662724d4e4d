package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/cyohn55/agentic-visual-scripting/pkg/engine"
	"github.com/cyohn55/agentic-visual-scripting/pkg/models"
	"github.com/cyohn55/agentic-visual-scripting/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type APIHandlers struct {
	store     persistence.Persistence
	engine    *engine.Engine
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAPIHandlers(
	store persistence.Persistence,
	eng *engine.Engine,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		store:     store,
		engine:    eng,
		validator: validate,
		logger:    logger,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.store.Workflows(c.Context())
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	id := req.ID
	if id == "" {
		id = "wf-" + uuid.New().String()[:8]
	}

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		Variables:   req.Variables,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.store.SaveWorkflow(c.Context(), workflow); err != nil {
		return handleStoreError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	workflow, err := h.store.WorkflowByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	if err := h.store.DeleteWorkflow(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ExecuteWorkflow starts a run over the stored document's graph. The run
// proceeds asynchronously; its progress is observable through the context
// and history endpoints.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	workflow, err := h.store.WorkflowByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	var req ExecuteWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	h.engine.SeedVariables(workflow.Variables)
	h.engine.SeedVariables(req.Variables)

	// The run outlives this request; don't tie it to the request context.
	if err := h.engine.ExecuteWorkflow(context.Background(), workflow.Nodes, workflow.Edges); err != nil {
		return conflict(c, err.Error())
	}

	h.logger.Info("run started via API", "workflow_id", id)

	return c.Status(fiber.StatusAccepted).JSON(RunResponse{Context: h.engine.Context()})
}

func (h *APIHandlers) PauseRun(c fiber.Ctx) error {
	h.engine.Pause()

	return c.JSON(RunResponse{Context: h.engine.Context()})
}

func (h *APIHandlers) ResumeRun(c fiber.Ctx) error {
	h.engine.Resume()

	return c.JSON(RunResponse{Context: h.engine.Context()})
}

func (h *APIHandlers) StopRun(c fiber.Ctx) error {
	h.engine.Stop()

	return c.JSON(RunResponse{Context: h.engine.Context()})
}

func (h *APIHandlers) ResetRun(c fiber.Ctx) error {
	h.engine.Reset()

	return c.JSON(RunResponse{Context: h.engine.Context()})
}

func (h *APIHandlers) GetRunContext(c fiber.Ctx) error {
	return c.JSON(RunResponse{Context: h.engine.Context()})
}

func (h *APIHandlers) GetRunHistory(c fiber.Ctx) error {
	return c.JSON(HistoryResponse{Steps: h.engine.History()})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.store.HealthCheck(c.Context()); err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
