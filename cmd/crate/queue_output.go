package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"crate/internal/api"
)

func describeEntry(entry api.QueueEntry) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{entry.Artist, entry.Title, entry.CatalogText} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return "(empty)"
	}
	return strings.Join(parts, " / ")
}

func printEntries(cmd *cobra.Command, entries []api.QueueEntry) {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		release := ""
		if entry.Match != nil {
			release = entry.Match.ReleaseTitle
		}
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			colorize(cmd, entry.State, stateColor(entry.State)),
			entry.Artist,
			entry.Title,
			release,
			strconv.Itoa(entry.Attempts),
			entry.NextAttemptAt,
			entry.Error,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "State", "Artist", "Title", "Release", "Attempts", "Next Attempt", "Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
}

func printNext(cmd *cobra.Command, page api.NextResponse) {
	out := cmd.OutOrStdout()
	if len(page.Items) == 0 {
		fmt.Fprintln(out, "Nothing playable yet")
	} else {
		rows := make([][]string, 0, len(page.Items))
		for _, item := range page.Items {
			year := ""
			if item.Match.Year > 0 {
				year = strconv.Itoa(item.Match.Year)
			}
			rows = append(rows, []string{
				strconv.Itoa(item.Position),
				strconv.FormatInt(item.EntryID, 10),
				colorize(cmd, item.Kind, kindColor(item.Kind)),
				item.Artist,
				item.Title,
				item.Match.ReleaseTitle,
				year,
				strconv.FormatFloat(item.Confidence, 'f', 2, 64),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"#", "ID", "Kind", "Artist", "Title", "Release", "Year", "Confidence"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
		))
	}
	printSummary(out, page.Summary)
}

func kindColor(kind string) string {
	if kind == "track" {
		return ansiGreen
	}
	return ansiBlue
}

func printSummary(out io.Writer, s api.QueueSummary) {
	fmt.Fprintf(out, "Total %d | playable %d (track %d, release %d) | unresolved %d | retrying %d | error %d | pending %d | in flight %d\n",
		s.Total, s.Playable, s.Track, s.Release, s.Unresolved, s.Retrying, s.Errored, s.Pending, s.InFlight)
}
