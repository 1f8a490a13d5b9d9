package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"crate/internal/api"
	"crate/internal/fileutil"
	"crate/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the digging queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueNextCommand(ctx))
	queueCmd.AddCommand(newQueueExportCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var title, catalogText string
	cmd := &cobra.Command{
		Use:   "add <artist>",
		Short: "Add an entry to the queue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.AddEntryRequest{Title: title, CatalogText: catalogText}
			if len(args) == 1 {
				req.Artist = args[0]
			}
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				entry, err := access.Add(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Entry %d queued: %s\n", entry.ID, describeEntry(entry))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Track or release title")
	cmd.Flags().StringVar(&catalogText, "catno", "", "Catalog number")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries in creation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				entries, err := access.List(cmd.Context(), states)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), entries)
				}
				printEntries(cmd, entries)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Filter by state (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newQueueNextCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Resolve due entries and show what to play next",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				page, err := access.Next(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if page.CatalogError != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "warn: %s\n", page.CatalogError)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), page)
				}
				printNext(cmd, page)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum items to return (default 24, max 100)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newQueueExportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every entry as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				entries, err := access.Export(cmd.Context())
				if err != nil {
					return err
				}
				if strings.TrimSpace(outputPath) == "" {
					return writeJSON(cmd.OutOrStdout(), entries)
				}
				return writeExportFile(cmd.OutOrStdout(), outputPath, entries)
			})
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func writeExportFile(out io.Writer, path string, entries []api.QueueEntry) error {
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return writeJSON(w, entries)
	})
	if err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	fmt.Fprintf(out, "Exported %d entries to %s\n", len(entries), path)
	return nil
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					if err := access.Remove(cmd.Context(), id); err != nil {
						if queueaccess.IsNotFound(err) {
							fmt.Fprintf(out, "Entry %d not found\n", id)
							continue
						}
						return err
					}
					fmt.Fprintf(out, "Entry %d removed\n", id)
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>...",
		Short: "Clear backoff so entries are looked up on the next call",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					if _, err := access.Retry(cmd.Context(), id); err != nil {
						if queueaccess.IsNotFound(err) {
							fmt.Fprintf(out, "Entry %d not found\n", id)
							continue
						}
						return err
					}
					fmt.Fprintf(out, "Entry %d reset for retry\n", id)
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("clear removes the whole queue; pass --yes to confirm")
			}
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				removed, err := access.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm removal of every entry")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue accounting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				summary, err := access.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), summary)
				}
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid entry id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
