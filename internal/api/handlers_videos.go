package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"phraseindex/internal/pipeline"
	"phraseindex/internal/queue"
	"phraseindex/internal/services"
)

func (s *Server) health(c echo.Context) error {
	ctx := c.Request().Context()
	health, err := s.opts.Store.CheckHealth(ctx)
	if err != nil {
		return s.fail(c, err)
	}
	resp := HealthResponse{
		Status:        "ok",
		Database:      health.DBPath,
		SchemaVersion: health.SchemaVersion,
		MissingTables: health.MissingTables,
	}
	if len(health.MissingTables) > 0 || !health.IntegrityCheck {
		resp.Status = "degraded"
	}
	if s.opts.Workflow != nil {
		status := FromStatusSummary(s.opts.Workflow.Status(ctx))
		resp.Workflow = &status
	}
	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

func (s *Server) listVideos(c echo.Context) error {
	var statuses []queue.VideoStatus
	if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := queue.ParseVideoStatus(part)
			if err != nil {
				return s.fail(c, services.Wrap(services.ErrValidation, "api", "list", err.Error(), nil))
			}
			statuses = append(statuses, status)
		}
	}
	videos, err := s.opts.Store.ListVideos(c.Request().Context(), statuses...)
	if err != nil {
		return s.fail(c, err)
	}
	out := make([]Video, 0, len(videos))
	for _, video := range videos {
		out = append(out, FromVideo(video))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) addVideo(c echo.Context) error {
	var req AddVideoRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, services.Wrap(services.ErrValidation, "api", "add", "invalid request body", err))
	}
	youtubeID, err := pipeline.ParseYouTubeID(req.Video)
	if err != nil {
		return s.fail(c, err)
	}
	video, err := s.opts.Store.AddVideo(c.Request().Context(), youtubeID, strings.TrimSpace(req.Title))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, FromVideo(video))
}

func (s *Server) processVideo(c echo.Context) error {
	id, err := videoIDParam(c)
	if err != nil {
		return s.fail(c, err)
	}
	if s.opts.Processor == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "processing is not available"})
	}
	result, err := s.opts.Processor.Run(c.Request().Context(), pipeline.VideoRef{ID: id})
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			return c.JSON(status, FromRunResult(result))
		}
		return s.fail(c, err)
	}
	code := http.StatusOK
	if result.Status == pipeline.StatusSkipped {
		code = http.StatusConflict
	}
	return c.JSON(code, FromRunResult(result))
}

func (s *Server) videoStatus(c echo.Context) error {
	ctx := c.Request().Context()
	video, err := s.lookupVideo(c)
	if err != nil {
		return s.fail(c, err)
	}
	count, err := s.opts.Store.CountPhrases(ctx, video.ID)
	if err != nil {
		return s.fail(c, err)
	}
	chunks, err := s.opts.Store.ChunkStatus(ctx, video.ID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, VideoStatus{
		Video:       FromVideo(video),
		PhraseCount: count,
		Stuck:       s.stuck(video),
		Queue:       FromQueueStatus(chunks),
	})
}

func (s *Server) retryVideo(c echo.Context) error {
	video, err := s.lookupVideo(c)
	if err != nil {
		return s.fail(c, err)
	}
	affected, err := s.opts.Store.RetryVideos(c.Request().Context(), video.ID)
	if err != nil {
		return s.fail(c, err)
	}
	if affected == 0 {
		return c.JSON(http.StatusConflict, ErrorResponse{Error: fmt.Sprintf("video %d is %s and cannot be retried", video.ID, video.Status)})
	}
	return c.JSON(http.StatusOK, CountResponse{Affected: affected})
}

func (s *Server) stuck(video *queue.Video) bool {
	if video.Status != queue.VideoProcessing || s.opts.StuckTimeout <= 0 {
		return false
	}
	return s.now().Sub(video.UpdatedAt) > s.opts.StuckTimeout
}

func (s *Server) lookupVideo(c echo.Context) (*queue.Video, error) {
	id, err := videoIDParam(c)
	if err != nil {
		return nil, err
	}
	video, err := s.opts.Store.GetVideo(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "", fmt.Sprintf("video %d", id), nil)
	}
	return video, nil
}

func videoIDParam(c echo.Context) (int64, error) {
	return parseVideoID(c.Param("id"))
}

func parseVideoID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, services.Wrap(services.ErrValidation, "api", "", fmt.Sprintf("invalid video id %q", raw), nil)
	}
	return id, nil
}

// optionalVideoID reads video_id from the query string; zero means all videos.
func optionalVideoID(c echo.Context) (int64, error) {
	raw := strings.TrimSpace(c.QueryParam("video_id"))
	if raw == "" {
		return 0, nil
	}
	return parseVideoID(raw)
}
