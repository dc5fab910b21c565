package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/puppetmaster/internal/report"
	"github.com/dbsmedya/puppetmaster/internal/signal"
)

var rulesVerbose bool

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the effective classification ruleset",
	Long: `Rules prints every classification rule in evaluation order, from the
file named by rules.file or the built-in set.

Example:
  puppetmaster rules --verbose`,
	RunE: runRules,
}

func init() {
	rulesCmd.Flags().BoolVarP(&rulesVerbose, "verbose", "v", false,
		"Print the patterns and exclusions of each rule")

	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(GetCLIOverrides())
	if err != nil {
		return err
	}

	rs, err := signal.Load(cfg.Rules)
	if err != nil {
		return fmt.Errorf("failed to load ruleset: %w", err)
	}

	out := cmd.OutOrStdout()
	t := report.NewTable(out, "#", "Type", "Tier", "Module", "Patterns", "Excludes", "Description")
	for i, r := range rs.Rules() {
		t.Add(
			strconv.Itoa(i+1),
			string(r.Type),
			r.Tier.String(),
			r.Module,
			strconv.Itoa(len(r.Patterns())),
			strconv.Itoa(len(r.Exclusions())),
			r.Description,
		)
	}
	if err := t.Render(); err != nil {
		return err
	}

	if !rulesVerbose {
		return nil
	}

	for _, r := range rs.Rules() {
		_, _ = fmt.Fprintf(out, "\n[%s]\n", r.Type)
		if len(r.DataTypes) > 0 {
			_, _ = fmt.Fprintf(out, "  data types: %s\n", strings.Join(r.DataTypes, ", "))
		}
		for _, p := range r.Patterns() {
			_, _ = fmt.Fprintf(out, "  match   %s\n", p)
		}
		for _, p := range r.Exclusions() {
			_, _ = fmt.Fprintf(out, "  exclude %s\n", p)
		}
	}
	if noise := rs.NoisePatterns(); len(noise) > 0 {
		_, _ = fmt.Fprintf(out, "\n[noise]\n")
		for _, p := range noise {
			_, _ = fmt.Fprintf(out, "  %s\n", p)
		}
	}
	return nil
}
