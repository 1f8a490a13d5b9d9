package api

import (
	"strconv"
	"strings"
	"time"

	"crate/internal/catalog"
	"crate/internal/digging"
	"crate/internal/queue"
	"crate/internal/ranker"
)

// FromEntry converts a queue record to its API representation.
func FromEntry(entry *queue.Entry) QueueEntry {
	if entry == nil {
		return QueueEntry{}
	}
	dto := QueueEntry{
		ID:            entry.ID,
		Artist:        entry.Artist,
		Title:         entry.Title,
		CatalogText:   entry.CatalogText,
		State:         string(entry.State),
		Attempts:      entry.Attempts,
		Exhaustions:   entry.Exhaustions,
		LastAttemptAt: formatOptional(entry.LastAttemptAt),
		NextAttemptAt: formatOptional(entry.NextAttemptAt),
		Error:         UserMessage(entry.LastError),
	}
	if entry.Match != nil {
		m := *entry.Match
		dto.Match = &m
	}
	if !entry.CreatedAt.IsZero() {
		dto.CreatedAt = entry.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !entry.UpdatedAt.IsZero() {
		dto.UpdatedAt = entry.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromEntries converts queue records into DTOs. The result is never nil so
// an empty queue encodes as [].
func FromEntries(entries []*queue.Entry) []QueueEntry {
	out := make([]QueueEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromItems converts ranked items into DTOs.
func FromItems(items []ranker.Item) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, QueueItem{
			Position:   item.Position,
			EntryID:    item.EntryID,
			Artist:     item.Artist,
			Title:      item.Title,
			Kind:       string(item.Kind),
			Confidence: item.Confidence,
			Score:      item.Score,
			Match:      item.Match,
		})
	}
	return out
}

// FromSummary converts queue accounting into its DTO.
func FromSummary(summary ranker.Summary, inFlight int) QueueSummary {
	return QueueSummary{
		Total:      summary.Total,
		Playable:   summary.Playable,
		Track:      summary.Track,
		Release:    summary.Release,
		Unresolved: summary.Unresolved,
		Retrying:   summary.Retrying,
		Errored:    summary.Errored,
		Pending:    summary.Pending,
		InFlight:   inFlight,
	}
}

// FromPage builds the up-next response. catalogErr is the non-fatal error
// UpNext returned alongside the page, if any.
func FromPage(page digging.Page, catalogErr error) NextResponse {
	resp := NextResponse{
		Items:   FromItems(page.Items),
		Summary: FromSummary(page.Summary, page.InFlight),
	}
	if catalogErr != nil {
		resp.CatalogError = UserMessage(catalogErr.Error())
	}
	return resp
}

// UserMessage filters error text before it is shown to a user. Retry
// exhaustion is internal scheduling state, not a failure, so it maps to "".
func UserMessage(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == catalog.ErrRetriesExhausted.Error() {
		return ""
	}
	return trimmed
}

// ParseLimit reads a page size from a query parameter. Missing or
// non-numeric values give the default; numbers are clamped.
func ParseLimit(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return digging.DefaultLimit
	}
	return digging.ClampLimit(value)
}

// ExportFilename names the export download for the given day.
func ExportFilename(now time.Time) string {
	return "crate-queue-" + now.Format("20060102") + ".json"
}

func formatOptional(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
