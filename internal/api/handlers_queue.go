package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"phraseindex/internal/queue"
	"phraseindex/internal/services"
)

func (s *Server) queueStatus(c echo.Context) error {
	ctx := c.Request().Context()
	videoID, err := optionalVideoID(c)
	if err != nil {
		return s.fail(c, err)
	}
	overall, err := s.opts.Scheduler.Status(ctx, videoID)
	if err != nil {
		return s.fail(c, err)
	}
	resp := QueueStatusResponse{Overall: FromQueueStatus(overall)}
	if videoID == 0 {
		perVideo, err := s.opts.Store.ChunkStatusByVideo(ctx)
		if err != nil {
			return s.fail(c, err)
		}
		resp.Videos = make([]QueueStatus, 0, len(perVideo))
		for _, status := range perVideo {
			resp.Videos = append(resp.Videos, FromQueueStatus(status))
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) queueCleanup(c echo.Context) error {
	removed, err := s.opts.Scheduler.Purge(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, CountResponse{Affected: removed})
}

func (s *Server) queueReset(c echo.Context) error {
	videoID, err := optionalVideoID(c)
	if err != nil {
		return s.fail(c, err)
	}
	reset, err := s.opts.Scheduler.Reset(c.Request().Context(), videoID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, CountResponse{Affected: reset})
}

func (s *Server) queueClear(c echo.Context) error {
	videoID, err := requiredVideoID(c)
	if err != nil {
		return s.fail(c, err)
	}
	cleared, err := s.opts.Scheduler.Clear(c.Request().Context(), videoID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, CountResponse{Affected: cleared})
}

func (s *Server) resetStuck(c echo.Context) error {
	timeout := s.opts.StuckTimeout
	if raw := c.QueryParam("timeout_minutes"); raw != "" {
		minutes, err := time.ParseDuration(raw + "m")
		if err != nil || minutes < 0 {
			return s.fail(c, services.Wrap(services.ErrValidation, "api", "reset-stuck", "invalid timeout_minutes", err))
		}
		timeout = minutes
	}
	reset, err := s.opts.Store.ResetStuckVideos(c.Request().Context(), timeout)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, CountResponse{Affected: reset})
}

func (s *Server) clearPhrases(c echo.Context) error {
	ctx := c.Request().Context()
	videoID, err := requiredVideoID(c)
	if err != nil {
		return s.fail(c, err)
	}
	video, err := s.opts.Store.GetVideo(ctx, videoID)
	if err != nil {
		return s.fail(c, err)
	}
	if video == nil {
		return s.fail(c, services.Wrap(services.ErrNotFound, "api", "clear-phrases", "video not found", nil))
	}
	if video.Status == queue.VideoProcessing {
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "video is processing"})
	}
	phrases, err := s.opts.Store.ClearPhrases(ctx, videoID)
	if err != nil {
		return s.fail(c, err)
	}
	chunks, err := s.opts.Scheduler.Clear(ctx, videoID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, ClearPhrasesResponse{VideoID: videoID, Phrases: phrases, Chunks: chunks})
}

func requiredVideoID(c echo.Context) (int64, error) {
	videoID, err := optionalVideoID(c)
	if err != nil {
		return 0, err
	}
	if videoID == 0 {
		return 0, services.Wrap(services.ErrValidation, "api", "", "video_id is required", nil)
	}
	return videoID, nil
}
