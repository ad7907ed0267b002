package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tordrt/schemaguard"
	"github.com/tordrt/schemaguard/internal/config"
)

var (
	cfgFile         string
	dbURL           string
	schemas         []string
	catalogDir      string
	historyPath     string
	planTimeout     time.Duration
	templateTimeout time.Duration
	defaultLimit    int
	listLimit       int
	verbose         bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "schemaguard",
	Short: "Keep SQL grounded in the live database schema",
	Long: `schemaguard reflects a PostgreSQL database into a cached catalog, checks that SQL only
references tables and columns that exist, and answers simple count and list requests
with fixed templates.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: schemaguard.yaml in the working directory)")
	flags.StringVar(&dbURL, "database-url", "", "PostgreSQL connection string (default: $DATABASE_URL_RO, then $DATABASE_URL)")
	flags.StringSliceVar(&schemas, "schemas", nil, "Schemas to reflect (comma-separated, default: public)")
	flags.StringVar(&catalogDir, "catalog-dir", "", "Directory for the cached catalog (default: .schemaguard)")
	flags.StringVar(&historyPath, "history-path", "", "SQLite file recording catalog rebuilds (optional)")
	flags.DurationVar(&planTimeout, "plan-timeout", 0, "Statement timeout for plan previews (default: 5s)")
	flags.DurationVar(&templateTimeout, "template-timeout", 0, "Statement timeout for count/list templates (default: 2s)")
	flags.IntVar(&defaultLimit, "default-limit", 0, "Value bound to an unset :limit (default: 10)")
	flags.IntVar(&listLimit, "list-limit", 0, "Rows returned by the list template (default: 50)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(catalogCmd, validateCmd, resolveCmd, askCmd)
}

// openEngine loads configuration for cmd and connects
func openEngine(cmd *cobra.Command) (*schemaguard.Engine, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	engine, err := schemaguard.Open(cmd.Context(), schemaguard.OptionsFromConfig(cfg, logger))
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// withEngine runs fn against an opened engine and closes it afterwards
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, engine *schemaguard.Engine) error) error {
	engine, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to close database connection: %v\n", err)
		}
	}()
	return fn(cmd.Context(), engine)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseTableList splits a comma-separated list and trims each entry
func parseTableList(tables string) []string {
	if tables == "" {
		return nil
	}
	list := strings.Split(tables, ",")
	for i, t := range list {
		list[i] = strings.TrimSpace(t)
	}
	return list
}

// parseParams turns name=value pairs into bind parameters. Integers, floats and
// booleans are converted; everything else stays a string.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q (expected name=value)", pair)
		}
		params[name] = parseValue(value)
	}
	return params, nil
}

func parseValue(value string) any {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}

// readStatement takes the statement from args, or from in when args is empty or "-"
func readStatement(args []string, in io.Reader) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read statement: %w", err)
	}
	sql := strings.TrimSpace(string(b))
	if sql == "" {
		return "", fmt.Errorf("no statement given")
	}
	return sql, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
