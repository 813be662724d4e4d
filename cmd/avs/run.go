package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/cyohn55/agentic-visual-scripting/pkg/channels/gochannel"
	"github.com/cyohn55/agentic-visual-scripting/pkg/engine"
	"github.com/cyohn55/agentic-visual-scripting/pkg/eventbus"
	"github.com/cyohn55/agentic-visual-scripting/pkg/log"
	"github.com/cyohn55/agentic-visual-scripting/pkg/models"
	"github.com/cyohn55/agentic-visual-scripting/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Execute a workflow file to completion and print its trace",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the workflow JSON file",
				Required: true,
				Sources:  cli.EnvVars("WORKFLOW_FILE"),
			},
			&cli.DurationFlag{
				Name:  "node-delay",
				Usage: "Pacing delay between node visits",
				Value: engine.DefaultNodeDelay,
			},
			&cli.IntFlag{
				Name:  "max-steps",
				Usage: "Abort after this many node visits (0 = unbounded)",
				Value: 0,
			},
			&cli.BoolFlag{
				Name:  "tracing",
				Usage: "Export OTLP traces for the run",
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

			logger := log.WithModule("run")

			workflow, err := loadWorkflowFile(command.String("file"))
			if err != nil {
				return err
			}

			pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
			if err != nil {
				return fmt.Errorf("failed to create event channel: %w", err)
			}

			bus := eventbus.NewWatermillEventBus(pub, sub)
			defer func() {
				if err := bus.Close(); err != nil {
					logger.Error("failed to close event bus", "error", err)
				}
			}()

			opts := []engine.Option{
				engine.WithLogger(log.WithModule("engine")),
				engine.WithNodeDelay(command.Duration("node-delay")),
				engine.WithMaxSteps(command.Int("max-steps")),
				engine.WithPublisher(bus),
				engine.WithObserver(engine.NewLoggingObserver(logger)),
			}

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "avs")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				// Parent span for the whole invocation; the engine's run and
				// node spans nest under it through the context.
				var span trace.Span
				ctx, span = otelhelper.StartSpan(ctx, tracer, "workflow.execute",
					attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
					attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
				)
				defer span.End()

				opts = append(opts, engine.WithTracer(tracer))
			}

			eng := engine.New(opts...)
			eng.SeedVariables(workflow.Variables)

			logger.Info("executing workflow", "workflow_id", workflow.ID, "name", workflow.Name)

			if err := eng.ExecuteWorkflow(ctx, workflow.Nodes, workflow.Edges); err != nil {
				return err
			}

			eng.Wait()

			for _, step := range eng.History() {
				logger.Info("step",
					"node_id", step.NodeID,
					"action", step.Action,
					"input", step.Input,
					"output", step.Output,
				)
			}

			snapshot := eng.Context()
			for _, message := range snapshot.Errors {
				logger.Warn("run error", "error", message)
			}

			logger.Info("run finished",
				"run_id", snapshot.RunID,
				"path", strings.Join(snapshot.ExecutionPath, " -> "),
				"errors", len(snapshot.Errors),
			)

			return nil
		},
	}
}

func loadWorkflowFile(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	violations, err := models.ValidateWorkflowDocument(data)
	if err != nil {
		return nil, err
	}

	if len(violations) > 0 {
		return nil, fmt.Errorf("workflow file is invalid: %s", strings.Join(violations, "; "))
	}

	var workflow models.Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("failed to decode workflow file: %w", err)
	}

	return &workflow, nil
}
