package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Video describes a registered video.
type Video struct {
	ID              int64  `json:"id"`
	YouTubeID       string `json:"youtube_id"`
	Title           string `json:"title,omitempty"`
	Status          string `json:"status"`
	Stage           string `json:"stage,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	LastProcessedAt string `json:"last_processed_at,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// VideoStatus extends Video with progress details.
type VideoStatus struct {
	Video
	PhraseCount int         `json:"phrase_count"`
	Stuck       bool        `json:"stuck"`
	Queue       QueueStatus `json:"queue"`
}

// QueueStatus aggregates chunk counts.
type QueueStatus struct {
	VideoID         int64  `json:"video_id,omitempty"`
	Total           int    `json:"total"`
	Pending         int    `json:"pending"`
	Completed       int    `json:"completed"`
	Failed          int    `json:"failed"`
	FirstCreated    string `json:"first_created,omitempty"`
	LastProcessedAt string `json:"last_processed_at,omitempty"`
}

// QueueStatusResponse wraps overall and per-video chunk counts.
type QueueStatusResponse struct {
	Overall QueueStatus   `json:"overall"`
	Videos  []QueueStatus `json:"videos,omitempty"`
}

// RunResult mirrors a pipeline invocation outcome.
type RunResult struct {
	VideoID        int64  `json:"video_id"`
	Status         string `json:"status"`
	PhrasesIndexed int    `json:"phrases_indexed"`
	Strategy       string `json:"strategy,omitempty"`
	Duplicates     int    `json:"duplicates"`
	ChunksQueued   int    `json:"chunks_queued"`
	ChunksFailed   int    `json:"chunks_failed"`
	Pending        int    `json:"pending_chunks"`
	Message        string `json:"message,omitempty"`
}

// WorkflowStatus summarises the polling manager.
type WorkflowStatus struct {
	Running    bool           `json:"running"`
	Ticks      int            `json:"ticks"`
	LastTick   string         `json:"last_tick,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
	LastResult *RunResult     `json:"last_result,omitempty"`
	Videos     map[string]int `json:"videos"`
	Chunks     QueueStatus    `json:"chunks"`
}

// HealthResponse reports database state and, when running, the workflow.
type HealthResponse struct {
	Status        string          `json:"status"`
	Database      string          `json:"database"`
	SchemaVersion int             `json:"schema_version"`
	MissingTables []string        `json:"missing_tables,omitempty"`
	Workflow      *WorkflowStatus `json:"workflow,omitempty"`
}

// AddVideoRequest registers a video by ID or URL.
type AddVideoRequest struct {
	Video string `json:"video"`
	Title string `json:"title"`
}

// CountResponse reports how many rows an action touched.
type CountResponse struct {
	Affected int64 `json:"affected"`
}

// ClearPhrasesResponse reports a phrase wipe.
type ClearPhrasesResponse struct {
	VideoID int64 `json:"video_id"`
	Phrases int64 `json:"phrases"`
	Chunks  int64 `json:"chunks"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
