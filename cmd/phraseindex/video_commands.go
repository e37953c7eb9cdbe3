package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"phraseindex/internal/config"
	"phraseindex/internal/pipeline"
	"phraseindex/internal/queue"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:   "videos",
		Short: "Register and list videos",
	}
	videosCmd.AddCommand(newVideosListCommand(ctx))
	videosCmd.AddCommand(newVideosAddCommand(ctx))
	videosCmd.AddCommand(newVideosRetryCommand(ctx))
	return videosCmd
}

func newVideosListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.VideoStatus, 0, len(statusFlags))
			for _, raw := range statusFlags {
				status, err := queue.ParseVideoStatus(raw)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				videos, err := store.ListVideos(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(videos) == 0 {
					fmt.Fprintln(out, "No videos")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "YouTube ID", "Status", "Stage", "Title", "Updated"},
					buildVideoRows(videos, shouldColorize(out)),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func buildVideoRows(videos []*queue.Video, colorize bool) [][]string {
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		updated := v.UpdatedAt
		rows = append(rows, []string{
			strconv.FormatInt(v.ID, 10),
			v.YouTubeID,
			colorStatus(string(v.Status), colorize),
			v.ProgressStage,
			truncate(v.Title, 40),
			formatTimestamp(&updated),
		})
	}
	return rows
}

func truncate(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-1]) + "…"
}

func newVideosAddCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "add <youtube-id|url>",
		Short: "Register a video as pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			youtubeID, err := pipeline.ParseYouTubeID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				video, err := store.AddVideo(cmd.Context(), youtubeID, strings.TrimSpace(title))
				if errors.Is(err, queue.ErrDuplicateVideo) {
					return fmt.Errorf("video %s is already registered", youtubeID)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered video %d (%s)\n", video.ID, video.YouTubeID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Optional title")
	return cmd
}

func newVideosRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [video-id...]",
		Short: "Move failed, partial and no-subtitle videos back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				reset, err := store.RetryVideos(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d videos to pending\n", reset)
				return nil
			})
		},
	}
}
