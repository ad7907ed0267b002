package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tordrt/schemaguard"
)

var (
	forceRebuild bool
	showFormat   string
	showTables   string
	showSummary  bool
	outputFile   string
	exportDir    string
	exportFormat string
	statsLimit   int
	historyLimit int
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Build and inspect the schema catalog",
}

var catalogBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the catalog, or reuse the cached one while the live schema is unchanged",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, engine *schemaguard.Engine) error {
			snap, err := engine.BuildCatalog(ctx, forceRebuild)
			if err != nil {
				return err
			}
			source := "rebuilt"
			if snap.FromDisk {
				source = "loaded from cache"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog %s: %d tables, %d columns, fingerprint %s\n",
				source, len(snap.Cards), snap.ColumnCount(), snap.Fingerprint)
			return nil
		})
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the catalog as text or markdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, engine *schemaguard.Engine) error {
			w := cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() {
					if err := f.Close(); err != nil {
						fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
					}
				}()
				w = f
			}

			if showSummary {
				summary, err := engine.Summary(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(w, summary)
				return err
			}
			return engine.Describe(ctx, w, showFormat, parseTableList(showTables)...)
		})
	},
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write an overview plus one file per table into a directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportDir == "" {
			return fmt.Errorf("--output-dir is required")
		}
		return withEngine(cmd, func(ctx context.Context, engine *schemaguard.Engine) error {
			if err := engine.Export(ctx, exportDir, exportFormat); err != nil {
				return fmt.Errorf("failed to export catalog: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog written to %s\n", exportDir)
			return nil
		})
	},
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the database size, largest tables, scan activity and unused indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, engine *schemaguard.Engine) error {
			stats, err := engine.Stats(ctx, statsLimit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "database\t%s\t%s\n", stats.Database.Name, stats.Database.Pretty)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "TABLE\tSIZE\tROWS (approx)")
			for _, t := range stats.LargestTables {
				fmt.Fprintf(w, "%s.%s\t%s\t%d\n", t.Schema, t.Table, t.Pretty, t.ApproxRows)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "TABLE\tSEQ SCANS\tINDEX SCANS\tLIVE ROWS")
			for _, t := range stats.SeqScans {
				fmt.Fprintf(w, "%s.%s\t%d\t%d\t%d\n", t.Schema, t.Table, t.SeqScan, t.IdxScan, t.LiveRows)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "UNUSED INDEX\tTABLE\tSIZE")
			for _, idx := range stats.UnusedIndexes {
				fmt.Fprintf(w, "%s.%s\t%s\t%s\n", idx.Schema, idx.Index, idx.Table, idx.Pretty)
			}
			return w.Flush()
		})
	},
}

var catalogHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent catalog rebuilds (requires --history-path)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, engine *schemaguard.Engine) error {
			records, err := engine.History(ctx, historyLimit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BUILT AT\tREASON\tTABLES\tCOLUMNS\tFINGERPRINT")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.12s\n",
					rec.BuiltAt.Format("2006-01-02 15:04:05"), rec.Reason, rec.Tables, rec.Columns, rec.Fingerprint)
			}
			return w.Flush()
		})
	},
}

func init() {
	catalogBuildCmd.Flags().BoolVar(&forceRebuild, "force", false, "Rebuild even when the cache matches the live schema")

	catalogShowCmd.Flags().StringVarP(&showFormat, "format", "f", "text", "Output format: text, markdown or slim (JSON names and types)")
	catalogShowCmd.Flags().StringVarP(&showTables, "tables", "t", "", "Specific tables as schema.table (comma-separated, optional)")
	catalogShowCmd.Flags().BoolVar(&showSummary, "summary", false, "Print the compact overview used in identifier hints")
	catalogShowCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	catalogExportCmd.Flags().StringVarP(&exportDir, "output-dir", "d", "", "Output directory")
	catalogExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "markdown", "Output format: text or markdown")

	catalogStatsCmd.Flags().IntVar(&statsLimit, "limit", 10, "Number of tables to list")
	catalogHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of builds to list")

	catalogCmd.AddCommand(catalogBuildCmd, catalogShowCmd, catalogExportCmd, catalogStatsCmd, catalogHistoryCmd)
}
