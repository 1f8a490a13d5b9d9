package api

import "crate/internal/catalog"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueEntry describes a persisted queue entry in a transport-friendly format.
type QueueEntry struct {
	ID            int64          `json:"id"`
	Artist        string         `json:"artist"`
	Title         string         `json:"title,omitempty"`
	CatalogText   string         `json:"catalog_text,omitempty"`
	State         string         `json:"state"`
	Attempts      int            `json:"attempts"`
	Exhaustions   int            `json:"exhaustions,omitempty"`
	LastAttemptAt string         `json:"last_attempt_at,omitempty"`
	NextAttemptAt string         `json:"next_attempt_at,omitempty"`
	Match         *catalog.Match `json:"match,omitempty"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     string         `json:"created_at,omitempty"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
}

// QueueItem is one ranked playable position.
type QueueItem struct {
	Position   int           `json:"position"`
	EntryID    int64         `json:"entry_id"`
	Artist     string        `json:"artist"`
	Title      string        `json:"title,omitempty"`
	Kind       string        `json:"kind"`
	Confidence float64       `json:"confidence"`
	Score      float64       `json:"score"`
	Match      catalog.Match `json:"match"`
}

// QueueSummary counts every entry, playable or not.
type QueueSummary struct {
	Total      int `json:"total"`
	Playable   int `json:"playable"`
	Track      int `json:"track"`
	Release    int `json:"release"`
	Unresolved int `json:"unresolved"`
	Retrying   int `json:"retrying"`
	Errored    int `json:"errored"`
	Pending    int `json:"pending"`
	InFlight   int `json:"in_flight"`
}

// NextResponse is the up-next page.
type NextResponse struct {
	Items        []QueueItem  `json:"items"`
	Summary      QueueSummary `json:"summary"`
	CatalogError string       `json:"catalog_error,omitempty"`
}

// QueueListResponse wraps a collection of queue entries.
type QueueListResponse struct {
	Entries []QueueEntry `json:"entries"`
}

// QueueEntryResponse wraps a single queue entry.
type QueueEntryResponse struct {
	Entry QueueEntry `json:"entry"`
}

// QueueStatsResponse provides queue accounting.
type QueueStatsResponse struct {
	Summary QueueSummary `json:"summary"`
}

// HealthResponse reports server and database status.
type HealthResponse struct {
	Status        string `json:"status"`
	QueueDBPath   string `json:"queue_db_path"`
	SchemaVersion int    `json:"schema_version"`
	Entries       int    `json:"entries"`
	// States counts entries per state.
	States map[string]int `json:"states,omitempty"`
}

// ClearResponse reports how many entries DELETE /api/queue removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// AddEntryRequest is the body of POST /api/queue. At least one field must be
// non-empty after trimming; the service enforces that.
type AddEntryRequest struct {
	Artist      string `json:"artist" validate:"max=256"`
	Title       string `json:"title" validate:"max=256"`
	CatalogText string `json:"catalog_text" validate:"max=128"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
