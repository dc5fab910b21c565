package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/puppetmaster/internal/blacklist"
	"github.com/dbsmedya/puppetmaster/internal/config"
	"github.com/dbsmedya/puppetmaster/internal/database"
	"github.com/dbsmedya/puppetmaster/internal/lock"
	"github.com/dbsmedya/puppetmaster/internal/logger"
	"github.com/dbsmedya/puppetmaster/internal/metrics"
	"github.com/dbsmedya/puppetmaster/internal/pipeline"
	"github.com/dbsmedya/puppetmaster/internal/report"
	"github.com/dbsmedya/puppetmaster/internal/signal"
	"github.com/dbsmedya/puppetmaster/internal/store"
)

var (
	analyzeInput    string
	analyzeReports  string
	analyzeLabel    string
	analyzeStore    bool
	analyzeNoColor  bool
	analyzeLimit    int
	analyzeTextfile string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a directory of scan exports",
	Long: `Analyze reads every export in the input directory, classifies signals,
builds scored connections between domains, clusters them and ranks hubs.

Outputs:
  - Summary tables on standard output
  - CSV reports when a report directory is set
  - A Prometheus textfile when metrics.textfile is set
  - A snapshot in the MySQL results store when results are enabled

Example:
  puppetmaster analyze --config puppetmaster.yaml --input ./exports --reports ./out`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeInput, "input", "i", "",
		"Override export directory")
	analyzeCmd.Flags().StringVarP(&analyzeReports, "reports", "o", "",
		"Write CSV reports to this directory")
	analyzeCmd.Flags().StringVar(&analyzeLabel, "label", "",
		"Override the results store label")
	analyzeCmd.Flags().BoolVar(&analyzeStore, "store", false,
		"Save the run to the results store even if results.enabled is false")
	analyzeCmd.Flags().BoolVar(&analyzeNoColor, "no-color", false,
		"Disable colored output")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 10,
		"Rows per summary table")
	analyzeCmd.Flags().StringVar(&analyzeTextfile, "metrics-textfile", "",
		"Override the Prometheus textfile path")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	o := GetCLIOverrides()
	o.InputDir = analyzeInput
	o.ReportDir = analyzeReports
	o.Label = analyzeLabel

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	if analyzeTextfile != "" {
		cfg.Metrics.Textfile = analyzeTextfile
	}
	if analyzeStore {
		cfg.Results.Enabled = true
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.WithRun(cfg.Results.Label)

	log.Infow("Starting analysis", "config", GetConfigFile(), "input", cfg.Input.Dir)

	ctx, stop := database.SignalContext(context.Background(), func(sig os.Signal) {
		log.Warnw("Received shutdown signal - stopping analysis", "signal", sig.String())
	})
	defer stop()

	res, err := analyze(ctx, cfg, log)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Analysis cancelled by user")
			return nil
		}
		return err
	}

	opts := report.SummaryOptions{
		Color: !analyzeNoColor && color.SupportColor(),
		Limit: analyzeLimit,
	}
	return publish(ctx, cmd.OutOrStdout(), cfg, res, opts, log)
}

// analyze loads the ruleset and blacklist named by cfg and runs the pipeline.
func analyze(ctx context.Context, cfg *config.Config, log *logger.Logger) (*pipeline.Result, error) {
	rs, err := signal.Load(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to load ruleset: %w", err)
	}

	bl, err := blacklist.Load(cfg.Blacklist)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}

	p, err := pipeline.New(cfg, rs, bl, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	res, err := p.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	return res, nil
}

// publish writes the summary and every configured output of res.
func publish(ctx context.Context, out io.Writer, cfg *config.Config, res *pipeline.Result, opts report.SummaryOptions, log *logger.Logger) error {
	if err := report.Summary(out, res, opts); err != nil {
		return fmt.Errorf("failed to print summary: %w", err)
	}

	if cfg.Report.Dir != "" {
		paths, err := report.NewWriter(cfg.Report.Dir, log).WriteAll(res)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "\nReports written to %s (%d files)\n", cfg.Report.Dir, len(paths))
	}

	if cfg.Metrics.Textfile != "" {
		m := metrics.New(cfg.Results.Label)
		m.Observe(res)
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
		log.Infow("Metrics written", "textfile", cfg.Metrics.Textfile)
	}

	if cfg.Results.Enabled {
		mgr := database.NewManager(&cfg.Results.Database, log)
		if err := mgr.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to results database: %w", err)
		}
		defer func() { _ = mgr.Close() }()

		if err := persist(ctx, mgr.DB, cfg.Results, res, log); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Saved run %q to results store\n", cfg.Results.Label)
	}

	return nil
}

// persist replaces the stored snapshot of the configured label under its
// advisory lock and verifies what was written.
func persist(ctx context.Context, db *sql.DB, rc config.ResultsConfig, res *pipeline.Result, log *logger.Logger) error {
	st, err := store.New(db, rc.TablePrefix, log)
	if err != nil {
		return err
	}

	err = lock.With(ctx, db, rc.Label, lock.TimeoutShort, func(ctx context.Context) error {
		if err := st.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := st.SaveRun(ctx, rc.Label, res); err != nil {
			return err
		}

		v, err := st.VerifyRun(ctx, rc.Label, res)
		if err != nil {
			return err
		}
		if !v.OK() {
			return fmt.Errorf("stored run %q does not match the analysis result", rc.Label)
		}
		return nil
	})
	if errors.Is(err, lock.ErrLockTimeout) {
		return fmt.Errorf("run %q is being saved by another instance: %w", rc.Label, err)
	}
	return err
}
