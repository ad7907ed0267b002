package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tordrt/schemaguard"
	"github.com/tordrt/schemaguard/internal/resolver"
)

var (
	paramPairs []string
	strict     bool
	jsonOutput bool
)

// errRejected marks a statement that failed validation; the details are already printed
var errRejected = errors.New("statement rejected")

var validateCmd = &cobra.Command{
	Use:   "validate [sql]",
	Short: "Check that a statement only references existing tables and columns",
	Long: `Previews the statement with the query planner and cross-checks every table and column it
touches against the catalog. Reads the statement from stdin when no argument (or "-") is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sql, err := readStatement(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		params, err := parseParams(paramPairs)
		if err != nil {
			return err
		}

		return withEngine(cmd, func(ctx context.Context, engine *schemaguard.Engine) error {
			if strict {
				return runEnsure(ctx, cmd.OutOrStdout(), engine, sql, params)
			}
			ok, res, err := engine.ValidateIdentifiers(ctx, sql, params)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !ok {
				return errRejected
			}
			return nil
		})
	},
}

func runEnsure(ctx context.Context, w io.Writer, engine *schemaguard.Engine, sql string, params map[string]any) error {
	verdict, err := engine.EnsureValidIdentifiers(ctx, sql, params)
	var idErr *schemaguard.IdentifierError
	if errors.As(err, &idErr) {
		fmt.Fprintf(w, "rejected: %s\n\n%s\n", idErr.Message, idErr.Hint)
		return errRejected
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w, verdict.SQL)
	if len(verdict.Params) > 0 {
		return writeJSON(w, verdict.Params)
	}
	return nil
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <utterance>",
	Short: "Rank the tables a request most likely refers to",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, engine *schemaguard.Engine) error {
			res, err := engine.Resolve(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				schemaguard.Resolution
				Decision schemaguard.Decision `json:"decision"`
			}{res, resolver.Decide(res)})
		})
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <utterance>",
	Short: "Answer a count or list request with a fixed template",
	Long: `Resolves the request to a table and runs the count or list template when the match is
clear. Ambiguous requests print a clarification question; anything else is reported as
needing a full query planner.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, engine *schemaguard.Engine) error {
			out, err := engine.Shortcut(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printShortcut(cmd.OutOrStdout(), out)
			return nil
		})
	},
}

func printShortcut(w io.Writer, out *schemaguard.ShortcutResult) {
	d := out.Decision
	switch {
	case out.Facts != nil:
		fmt.Fprintln(w, out.Facts.Text)
	case out.Count != nil:
		fmt.Fprintf(w, "%s.%s: %d rows\n", out.Count.Schema, out.Count.Table, out.Count.Count)
	case out.List != nil:
		fmt.Fprintf(w, "%s.%s.%s:\n", out.List.Schema, out.List.Table, out.List.Column)
		for _, row := range out.List.Rows {
			fmt.Fprintf(w, "  %v\n", row[out.List.Column])
		}
	case d.Action == resolver.ActionClarify:
		fmt.Fprintln(w, d.Message)
	default:
		fmt.Fprintf(w, "no template applies (%s)\n", d.Reason)
	}
}

func init() {
	validateCmd.Flags().StringArrayVarP(&paramPairs, "param", "p", nil, "Bind parameter as name=value (repeatable)")
	validateCmd.Flags().BoolVar(&strict, "strict", false, "Print the approved statement, or the rejection with a corrective hint")

	askCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full decision as JSON")
}
