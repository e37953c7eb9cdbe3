package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"phraseindex/internal/config"
	"phraseindex/internal/pipeline"
	"phraseindex/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the chunk queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueDrainCommand(ctx))
	queueCmd.AddCommand(newQueueCleanupCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var videoID int64

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show chunk counts per video",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				var statuses []queue.QueueStatus
				if videoID > 0 {
					status, err := store.ChunkStatus(cmd.Context(), videoID)
					if err != nil {
						return err
					}
					statuses = append(statuses, status)
				} else {
					var err error
					statuses, err = store.ChunkStatusByVideo(cmd.Context())
					if err != nil {
						return err
					}
				}
				out := cmd.OutOrStdout()
				if len(statuses) == 0 || (len(statuses) == 1 && statuses[0].Total == 0) {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Video", "Total", "Pending", "Completed", "Failed", "Last Processed"},
					buildQueueStatusRows(statuses),
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&videoID, "video", 0, "Limit to one video ID")
	return cmd
}

func buildQueueStatusRows(statuses []queue.QueueStatus) [][]string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, []string{
			strconv.FormatInt(s.VideoID, 10),
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Pending),
			strconv.Itoa(s.Completed),
			strconv.Itoa(s.Failed),
			formatTimestamp(s.LastProcessedAt),
		})
	}
	return rows
}

func newQueueDrainCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Drain pending chunks of every video under one budget",
		Long: "Drain writes pending chunks for every video that has them, skipping videos owned by\n" +
			"another run. Video statuses are settled by the next continue or workflow tick.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.fileLogger()
			if err != nil {
				return err
			}
			return ctx.withPipeline(logger, func(_ *config.Config, _ *queue.Store, pipe *pipeline.Pipeline) error {
				results, err := pipe.Scheduler().DrainAll(cmd.Context())
				out := cmd.OutOrStdout()
				if len(results) == 0 && err == nil {
					fmt.Fprintln(out, "No pending chunks")
					return nil
				}
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					state := "drained"
					if r.Skipped {
						state = "skipped"
					} else if r.BudgetExceeded {
						state = "budget"
					}
					rows = append(rows, []string{
						strconv.FormatInt(r.VideoID, 10),
						state,
						strconv.Itoa(r.Completed),
						strconv.Itoa(r.Failed),
						strconv.Itoa(r.Inserted),
						strconv.Itoa(r.Pending),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Video", "Result", "Completed", "Failed", "Inserted", "Pending"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight},
				))
				return err
			})
		},
	}
}

func newQueueCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete completed and failed chunks past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.fileLogger()
			if err != nil {
				return err
			}
			return ctx.withPipeline(logger, func(_ *config.Config, _ *queue.Store, pipe *pipeline.Pipeline) error {
				removed, err := pipe.Scheduler().Purge(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired chunks\n", removed)
				return nil
			})
		},
	}
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	var videoID int64

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Move failed chunks back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				reset, err := store.ResetFailedChunks(cmd.Context(), videoID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed chunks\n", reset)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&videoID, "video", 0, "Limit to one video ID")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var videoID int64

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every chunk of a video",
		RunE: func(cmd *cobra.Command, args []string) error {
			if videoID <= 0 {
				return errVideoIDRequired
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				cleared, err := store.ClearChunks(cmd.Context(), videoID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d chunks for video %d\n", cleared, videoID)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&videoID, "video", 0, "Video ID (required)")
	return cmd
}
