package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"phraseindex/internal/config"
	"phraseindex/internal/queue"
)

func newRecoverCommand(ctx *commandContext) *cobra.Command {
	recoverCmd := &cobra.Command{
		Use:   "recover",
		Short: "Recover from interrupted runs",
	}
	recoverCmd.AddCommand(newRecoverResetStuckCommand(ctx))
	recoverCmd.AddCommand(newRecoverClearPhrasesCommand(ctx))
	return recoverCmd
}

func newRecoverResetStuckCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return videos stuck in processing to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				limit := timeout
				if !cmd.Flags().Changed("older-than") {
					limit = cfg.StuckTimeout()
				}
				reset, err := store.ResetStuckVideos(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d stuck videos\n", reset)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "older-than", 0, "Processing age before a video counts as stuck (default workflow.stuck_timeout_minutes)")
	return cmd
}

func newRecoverClearPhrasesCommand(ctx *commandContext) *cobra.Command {
	var videoID int64

	cmd := &cobra.Command{
		Use:   "clear-phrases",
		Short: "Delete every phrase and chunk of a video so it can be reindexed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if videoID <= 0 {
				return errVideoIDRequired
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				video, err := store.GetVideo(cmd.Context(), videoID)
				if err != nil {
					return err
				}
				if video == nil {
					return fmt.Errorf("video %d not found", videoID)
				}
				if video.Status == queue.VideoProcessing {
					return fmt.Errorf("video %d is processing; reset it first", videoID)
				}
				phrases, err := store.ClearPhrases(cmd.Context(), videoID)
				if err != nil {
					return err
				}
				chunks, err := store.ClearChunks(cmd.Context(), videoID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d phrases and %d chunks for video %d\n", phrases, chunks, videoID)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&videoID, "video", 0, "Video ID (required)")
	return cmd
}
