package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"phraseindex/internal/config"
	"phraseindex/internal/pipeline"
	"phraseindex/internal/queue"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <youtube-id|url|video-id>",
		Short: "Acquire, merge and index captions for one video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.fileLogger()
			if err != nil {
				return err
			}
			return ctx.withPipeline(logger, func(_ *config.Config, _ *queue.Store, pipe *pipeline.Pipeline) error {
				result, err := pipe.Run(cmd.Context(), videoRefFromArg(args[0]))
				out := cmd.OutOrStdout()
				if result.VideoID != 0 {
					printRunResult(out, result, shouldColorize(out))
				}
				return err
			})
		},
	}
}

func newContinueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "continue <video-id>",
		Short: "Drain queued chunks of a partially indexed video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			logger, err := ctx.fileLogger()
			if err != nil {
				return err
			}
			return ctx.withPipeline(logger, func(_ *config.Config, _ *queue.Store, pipe *pipeline.Pipeline) error {
				result, err := pipe.Continue(cmd.Context(), id)
				out := cmd.OutOrStdout()
				if result.VideoID != 0 {
					printRunResult(out, result, shouldColorize(out))
				}
				return err
			})
		},
	}
}

// videoRefFromArg treats purely numeric arguments as internal IDs.
func videoRefFromArg(arg string) pipeline.VideoRef {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil && id > 0 {
		return pipeline.VideoRef{ID: id}
	}
	return pipeline.VideoRef{YouTubeID: arg}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid video id %q", arg)
	}
	return id, nil
}

var errVideoIDRequired = errors.New("--video is required")
