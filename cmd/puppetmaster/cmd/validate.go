package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/puppetmaster/internal/blacklist"
	"github.com/dbsmedya/puppetmaster/internal/config"
	"github.com/dbsmedya/puppetmaster/internal/database"
	"github.com/dbsmedya/puppetmaster/internal/lock"
	"github.com/dbsmedya/puppetmaster/internal/logger"
	"github.com/dbsmedya/puppetmaster/internal/signal"
	"github.com/dbsmedya/puppetmaster/internal/store"
)

var validateDB bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration, ruleset and blacklist",
	Long: `Validate checks the configuration file and compiles every rule pattern
so problems surface before an analysis run.

Checks performed:
  - Configuration syntax and field values
  - Ruleset loading and pattern compilation
  - Blacklist loading
  - Results database connectivity and table engines (with --db)

Example:
  puppetmaster validate --config puppetmaster.yaml --db`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDB, "db", false,
		"Also connect to the results database")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(GetCLIOverrides())
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "\n=== Configuration Validation ===\n")
	_, _ = fmt.Fprintf(out, "Config file: %s\n", GetConfigFile())
	_, _ = fmt.Fprintf(out, "Input: %s (%s, %d workers)\n", cfg.Input.Dir, cfg.Input.Pattern, cfg.Input.Workers)
	_, _ = fmt.Fprintf(out, "Clustering: %s\n", cfg.Clustering.Algorithm)

	rs, err := signal.Load(cfg.Rules)
	if err != nil {
		return fmt.Errorf("ruleset invalid: %w", err)
	}
	source := cfg.Rules.File
	if source == "" {
		source = "built-in"
	}
	_, _ = fmt.Fprintf(out, "Ruleset: %s (%d rules, %d noise patterns)\n", source, rs.Len(), len(rs.NoisePatterns()))

	bl, err := blacklist.Load(cfg.Blacklist)
	if err != nil {
		return fmt.Errorf("blacklist invalid: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Blacklist: %d domains\n", bl.Len())

	if validateDB {
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		ctx := context.Background()
		mgr := database.NewManager(&cfg.Results.Database, log)
		if err := mgr.Connect(ctx); err != nil {
			return fmt.Errorf("results database unreachable: %w", err)
		}
		defer func() { _ = mgr.Close() }()
		_, _ = fmt.Fprintf(out, "Results database: %s@%s/%s reachable\n",
			cfg.Results.Database.User, cfg.Results.Database.Host, cfg.Results.Database.Database)

		if err := checkResults(ctx, out, mgr.DB, cfg.Results, log); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintln(out, "=== Validation Complete ===")
	return nil
}

// checkResults inspects the results tables and reports a save of the
// configured label that is currently in progress.
func checkResults(ctx context.Context, out io.Writer, db *sql.DB, rc config.ResultsConfig, log *logger.Logger) error {
	st, err := store.New(db, rc.TablePrefix, log)
	if err != nil {
		return err
	}
	missing, err := st.Preflight(ctx)
	if err != nil {
		return fmt.Errorf("results store preflight failed: %w", err)
	}
	if len(missing) > 0 {
		_, _ = fmt.Fprintf(out, "Results tables to be created: %s\n", strings.Join(missing, ", "))
	}

	running, err := lock.IsRunning(ctx, db, rc.Label)
	if err != nil {
		return err
	}
	if running {
		_, _ = fmt.Fprintf(out, "Run %q: a save is in progress on another instance\n", rc.Label)
	}
	return nil
}
