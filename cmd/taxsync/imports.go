package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/importer/decode"
	"github.com/taxsyncpro/taxsync/internal/imports"
	"github.com/taxsyncpro/taxsync/internal/ingest"
)

// mappingFlags lets a user override individual column roles.
type mappingFlags struct {
	date, amount, vendor, description, category string
}

func (m *mappingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&m.date, "date-col", "", "column holding the receipt date")
	cmd.Flags().StringVar(&m.amount, "amount-col", "", "column holding the amount")
	cmd.Flags().StringVar(&m.vendor, "vendor-col", "", "column holding the vendor")
	cmd.Flags().StringVar(&m.description, "description-col", "", "column holding the description")
	cmd.Flags().StringVar(&m.category, "category-col", "", "column holding a category hint")
}

// mapping returns nil when no override flag was given.
func (m *mappingFlags) mapping() *entity.ColumnMapping {
	out := entity.ColumnMapping{
		Date:        m.date,
		Amount:      m.amount,
		Vendor:      m.vendor,
		Description: m.description,
		Category:    m.category,
	}
	if out == (entity.ColumnMapping{}) {
		return nil
	}
	return &out
}

func clientFlag(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

func (c *cli) analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze FILE",
		Short: "Show the columns, inferred mapping and category preview of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := decode.NewFileSource(args[0])
			if err != nil {
				return err
			}
			prep, err := c.app.Imports.Analyze(cmd.Context(), src)
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			if ok, err := c.printJSON(out, prep.Analysis); ok {
				return err
			}

			a := prep.Analysis
			fmt.Fprintf(out, "%s: %s, %s rows (mapping from %s)\n\n",
				prep.FileName, humanize.IBytes(uint64(prep.Size)), humanize.Comma(int64(a.TotalRows)), prep.MappingSource)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COLUMN\tROLE\tDISTINCT\tSAMPLES")
			for _, col := range a.Columns {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", col.Name, roleOf(a.Mapping, col.Name), col.Distinct, strings.Join(col.Samples, " | "))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if missing := a.Mapping.Missing(); len(missing) > 0 {
				fmt.Fprintf(out, "\nunmapped required roles: %v\n", missing)
			}
			if a.Amounts != nil {
				fmt.Fprintf(out, "\namounts: %d values, total %.2f, mean %.2f, min %.2f, max %.2f\n",
					a.Amounts.Count, a.Amounts.Sum, a.Amounts.Mean, a.Amounts.Min, a.Amounts.Max)
			}
			if len(a.CategoryCounts) > 0 {
				fmt.Fprintln(out, "\ncategories:")
				names := make([]string, 0, len(a.CategoryCounts))
				for name := range a.CategoryCounts {
					names = append(names, name)
				}
				sort.Slice(names, func(i, j int) bool {
					if a.CategoryCounts[names[i]] != a.CategoryCounts[names[j]] {
						return a.CategoryCounts[names[i]] > a.CategoryCounts[names[j]]
					}
					return names[i] < names[j]
				})
				for _, name := range names {
					fmt.Fprintf(out, "  %-24s %d\n", name, a.CategoryCounts[name])
				}
			}
			return nil
		},
	}
}

func roleOf(m entity.ColumnMapping, column string) string {
	var roles []string
	for _, role := range entity.Roles {
		if m.Get(role) == column {
			roles = append(roles, string(role))
		}
	}
	if len(roles) == 0 {
		return "-"
	}
	return strings.Join(roles, ",")
}

func (c *cli) importCmd() *cobra.Command {
	var (
		clientID int64
		force    bool
		mf       mappingFlags
	)
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import every row of a CSV or Excel file as a receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := decode.NewFileSource(args[0])
			if err != nil {
				return err
			}
			outcome, err := c.app.Imports.ImportFile(cmd.Context(), src, imports.ImportOptions{
				ClientID: clientFlag(clientID),
				Force:    force,
				Mapping:  mf.mapping(),
			})
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			if ok, err := c.printJSON(out, outcome); ok {
				return err
			}
			if outcome.Skipped {
				fmt.Fprintf(out, "%s was already imported on %s (batch %s); use --force to import it again\n",
					outcome.FileName, outcome.DuplicateOf.StartedAt.Format(time.DateOnly), outcome.DuplicateOf.ID)
				return nil
			}
			fmt.Fprintf(out, "%s (batch %s, mapping from %s)\n", outcome.Result.Summary, outcome.Batch.ID, outcome.MappingSource)
			return nil
		},
	}
	cmd.Flags().Int64Var(&clientID, "client", 0, "client id stamped on every imported receipt")
	cmd.Flags().BoolVar(&force, "force", false, "import even if the same file was imported before")
	mf.register(cmd)
	return cmd
}

func (c *cli) importDirCmd() *cobra.Command {
	var (
		clientID int64
		force    bool
		move     bool
	)
	cmd := &cobra.Command{
		Use:   "import-dir DIR",
		Short: "Import every spreadsheet under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, stats, err := c.app.Ingestor.IngestDirectory(cmd.Context(), args[0], ingest.Options{
				ClientID:      clientFlag(clientID),
				Force:         force,
				SkipHidden:    true,
				MoveProcessed: move,
			})
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			if ok, err := c.printJSON(out, map[string]any{"files": results, "stats": stats}); ok {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tRESULT")
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%s\n", r.SourcePath, describe(r))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d files, %d imported, %d already imported, %d failed, %s receipts\n",
				stats.Matched, stats.Succeeded, stats.Deduplicated, stats.Failed, humanize.Comma(int64(stats.Receipts)))
			if stats.Failed > 0 {
				return fmt.Errorf("%d files failed to import", stats.Failed)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&clientID, "client", 0, "client id stamped on every imported receipt")
	cmd.Flags().BoolVar(&force, "force", false, "import files even if they were imported before")
	cmd.Flags().BoolVar(&move, "move", false, "move imported files into a processed/ subdirectory")
	return cmd
}

func describe(r ingest.IngestionResult) string {
	switch {
	case r.Err != "":
		return "failed: " + r.Err
	case r.Deduplicated:
		return "already imported"
	default:
		return fmt.Sprintf("imported %d", r.Imported)
	}
}

func (c *cli) watchCmd() *cobra.Command {
	var (
		clientID int64
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Import spreadsheets as they are dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.app.Config.Import
			inbox := ingest.NewInbox(args[0], cfg.Debounce, c.app.Ingestor, ingest.Options{
				ClientID: clientFlag(clientID),
				Force:    force,
			}, c.app.Logger)
			return inbox.Run(cmd.Context())
		},
	}
	cmd.Flags().Int64Var(&clientID, "client", 0, "client id stamped on every imported receipt")
	cmd.Flags().BoolVar(&force, "force", false, "import files even if they were imported before")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent import batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			batches, err := c.app.Imports.History(cmd.Context(), limit)
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			if ok, err := c.printJSON(out, batches); ok {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BATCH\tSTARTED\tFILE\tSTATUS\tROWS\tIMPORTED")
			for _, b := range batches {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
					b.ID, humanize.Time(b.StartedAt), b.FileName, b.Status, b.RowCount, b.ImportedCount)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of batches to show")
	return cmd
}

func (c *cli) presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the column mappings remembered per header layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := c.app.Presets.List()
			out := cmd.OutOrStdout()
			if ok, err := c.printJSON(out, list); ok {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "UPDATED\tHEADERS\tDATE\tAMOUNT\tVENDOR")
			for _, p := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", humanize.Time(p.UpdatedAt),
					strings.Join(p.Headers, ", "), p.Mapping.Date, p.Mapping.Amount, p.Mapping.Vendor)
			}
			return tw.Flush()
		},
	}
}
