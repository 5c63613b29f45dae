package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"world-state-engine/internal/adapters/audit"
)

var errStopDump = errors.New("limit reached")

func AuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the audit trail",
	}
	cmd.AddCommand(auditDumpCmd())
	cmd.AddCommand(auditQueryCmd())
	return cmd
}

func auditDumpCmd() *cobra.Command {
	var (
		dir       string
		kind      string
		aggregate string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print journal records in write order",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := audit.Files(dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), dimLabel("no journal files in "+dir))
				return nil
			}

			out := cmd.OutOrStdout()
			printed := 0
			for _, path := range files {
				err := audit.ReadFile(path, func(rec audit.Record) error {
					if kind != "" && string(rec.Kind) != kind {
						return nil
					}
					if aggregate != "" && rec.AggregateID != aggregate {
						return nil
					}
					if err := writeLine(out, rec); err != nil {
						return err
					}
					printed++
					if limit > 0 && printed >= limit {
						return errStopDump
					}
					return nil
				})
				if errors.Is(err, errStopDump) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "data/audit", "journal directory")
	cmd.Flags().StringVar(&kind, "kind", "", "only records of this event kind")
	cmd.Flags().StringVar(&aggregate, "aggregate", "", "only records for this aggregate id")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many records (0 = all)")

	return cmd
}

func auditQueryCmd() *cobra.Command {
	var (
		indexPath string
		kind      string
		aggregate string
		since     string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the SQLite audit index",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := audit.Filter{Kind: kind, AggregateID: aggregate, Limit: limit}
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("--since must be RFC3339: %w", err)
				}
				filter.Since = t
			}

			if _, err := os.Stat(indexPath); err != nil {
				return fmt.Errorf("audit index: %w", err)
			}
			index, err := audit.OpenIndex(indexPath)
			if err != nil {
				return err
			}
			defer index.Close()

			events, err := index.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, ev := range events {
				if err := writeLine(out, ev); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.ErrOrStderr(), dimLabel(fmt.Sprintf("%d events", len(events))))
			return nil
		},
	}

	cmd.Flags().StringVar(&indexPath, "index", "data/audit/index.sqlite", "audit index database")
	cmd.Flags().StringVar(&kind, "kind", "", "only events of this kind")
	cmd.Flags().StringVar(&aggregate, "aggregate", "", "only events for this aggregate id")
	cmd.Flags().StringVar(&since, "since", "", "only events at or after this RFC3339 time")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events")

	return cmd
}

func writeLine(w io.Writer, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", line)
	return err
}
