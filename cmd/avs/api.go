package main

import (
	"context"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/cyohn55/agentic-visual-scripting/pkg/channels/gochannel"
	"github.com/cyohn55/agentic-visual-scripting/pkg/engine"
	"github.com/cyohn55/agentic-visual-scripting/pkg/eventbus"
	"github.com/cyohn55/agentic-visual-scripting/pkg/log"
	"github.com/cyohn55/agentic-visual-scripting/pkg/persistence/file"
	"github.com/cyohn55/agentic-visual-scripting/pkg/web"
	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"
)

func APICommand() *cli.Command {
	return &cli.Command{
		Name:    "api",
		Aliases: []string{"a"},
		Usage:   "Serve the workflow REST API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   9091,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory for workflow file storage",
				Value:   "./data",
				Sources: cli.EnvVars("DATA_DIR"),
			},
			&cli.DurationFlag{
				Name:  "node-delay",
				Usage: "Pacing delay between node visits",
				Value: engine.DefaultNodeDelay,
			},
			&cli.IntFlag{
				Name:  "max-steps",
				Usage: "Abort runs after this many node visits (0 = unbounded)",
				Value: 0,
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

			logger := log.WithModule("api")

			logger.Info("Initializing workflow API")

			store := file.NewPersistence(command.String("data-dir"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.Error("failed to close persistence", "error", err)
				}
			}()

			pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
			if err != nil {
				return err
			}

			bus := eventbus.NewWatermillEventBus(pub, sub)
			defer func() {
				if err := bus.Close(); err != nil {
					logger.Error("failed to close event bus", "error", err)
				}
			}()

			eng := engine.New(
				engine.WithLogger(log.WithModule("engine")),
				engine.WithNodeDelay(command.Duration("node-delay")),
				engine.WithMaxSteps(command.Int("max-steps")),
				engine.WithPublisher(bus),
			)

			validate := validator.New(validator.WithRequiredStructEnabled())
			handlers := web.NewAPIHandlers(store, eng, validate, logger)
			app := web.NewApp(handlers)

			port := command.Int("port")
			logger.Info("Starting API server", "port", port)

			return app.Listen(":" + strconv.Itoa(port))
		},
	}
}
