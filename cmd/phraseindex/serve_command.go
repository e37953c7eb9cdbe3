package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"phraseindex/internal/api"
	"phraseindex/internal/config"
	"phraseindex/internal/daemon"
	"phraseindex/internal/intake"
	"phraseindex/internal/logging"
	"phraseindex/internal/pipeline"
	"phraseindex/internal/preflight"
	"phraseindex/internal/queue"
	"phraseindex/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var noAPI bool
	var withIntake bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow manager, admin API and optional intake consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			for _, check := range preflight.Failed(preflight.RunAll(cmd.Context(), cfg)) {
				logger.Warn("preflight check failed",
					logging.String("check", check.Name),
					logging.String("detail", check.Detail),
				)
			}
			return ctx.withPipeline(logger, func(cfg *config.Config, store *queue.Store, pipe *pipeline.Pipeline) error {
				mgr := workflow.NewManager(cfg, store, pipe, pipe.Scheduler(), logger)

				var opts []daemon.Option
				if cfg.API.Enabled && !noAPI {
					opts = append(opts, daemon.WithAPIServer(api.New(api.Options{
						Bind:         cfg.API.Bind,
						Store:        store,
						Processor:    pipe,
						Scheduler:    pipe.Scheduler(),
						Workflow:     mgr,
						StuckTimeout: cfg.StuckTimeout(),
						Logger:       logger,
					})))
				}
				if cfg.Intake.Enabled || withIntake {
					consumer, err := intake.Dial(cfg, intake.NewHandler(store, logger), logger)
					if err != nil {
						return err
					}
					opts = append(opts, daemon.WithIntake(consumer))
				}

				d, err := daemon.New(cfg, store, logger, mgr, opts...)
				if err != nil {
					return err
				}
				runCtx := cmd.Context()
				if err := d.Start(runCtx); err != nil {
					return err
				}
				defer d.Stop()

				<-runCtx.Done()
				logger.Info("phraseindex shutting down")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noAPI, "no-api", false, "Do not serve the admin API")
	cmd.Flags().BoolVar(&withIntake, "intake", false, "Consume discovery messages even if intake.enabled is false")
	return cmd
}
