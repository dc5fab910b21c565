package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/puppetmaster/internal/blacklist"
	"github.com/dbsmedya/puppetmaster/internal/domainname"
	"github.com/dbsmedya/puppetmaster/internal/report"
)

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Inspect the effective domain blacklist",
	Long: `Blacklist inspects the domains dropped before classification: the
built-in platform list, the blacklist.file entries and blacklist.domains.

Example:
  puppetmaster blacklist check cdn.facebook.com example.com`,
}

var blacklistCheckCmd = &cobra.Command{
	Use:   "check DOMAIN...",
	Short: "Report whether each domain is blacklisted",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBlacklistCheck,
}

var blacklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every blacklisted domain",
	Args:  cobra.NoArgs,
	RunE:  runBlacklistList,
}

func init() {
	blacklistCmd.AddCommand(blacklistCheckCmd)
	blacklistCmd.AddCommand(blacklistListCmd)
	rootCmd.AddCommand(blacklistCmd)
}

func loadBlacklist() (*blacklist.Blacklist, error) {
	cfg, err := loadConfig(GetCLIOverrides())
	if err != nil {
		return nil, err
	}
	bl, err := blacklist.Load(cfg.Blacklist)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}
	return bl, nil
}

func runBlacklistCheck(cmd *cobra.Command, args []string) error {
	bl, err := loadBlacklist()
	if err != nil {
		return err
	}

	t := report.NewTable(cmd.OutOrStdout(), "Domain", "Status")
	for _, arg := range args {
		d, ok := domainname.Sanitize(arg)
		switch {
		case !ok:
			t.Add(arg, "invalid")
		case bl.Contains(d):
			t.Add(d, "blocked")
		default:
			t.Add(d, "allowed")
		}
	}
	return t.Render()
}

func runBlacklistList(cmd *cobra.Command, args []string) error {
	bl, err := loadBlacklist()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, d := range bl.Sorted() {
		_, _ = fmt.Fprintln(out, d)
	}
	return nil
}
