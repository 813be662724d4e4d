package main

import (
	"context"
	"fmt"

	"github.com/cyohn55/agentic-visual-scripting/pkg/log"
	"github.com/cyohn55/agentic-visual-scripting/pkg/models"
	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"
)

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate a workflow file without executing it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the workflow JSON file",
				Required: true,
				Sources:  cli.EnvVars("WORKFLOW_FILE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("validate")

			workflow, err := loadWorkflowFile(command.String("file"))
			if err != nil {
				return err
			}

			validate := validator.New(validator.WithRequiredStructEnabled())
			if err := validate.Struct(workflow); err != nil {
				return fmt.Errorf("workflow failed validation: %w", err)
			}

			hasStart := false

			for _, node := range workflow.Nodes {
				if node.Kind == models.NodeKindStart {
					hasStart = true

					break
				}
			}

			if !hasStart {
				logger.Warn("workflow has no start node and will not execute", "workflow_id", workflow.ID)
			}

			logger.Info("workflow is valid",
				"workflow_id", workflow.ID,
				"name", workflow.Name,
				"nodes", len(workflow.Nodes),
				"edges", len(workflow.Edges),
			)

			return nil
		},
	}
}
