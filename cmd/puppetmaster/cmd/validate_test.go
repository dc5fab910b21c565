package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/puppetmaster/internal/config"
	"github.com/dbsmedya/puppetmaster/internal/lock"
	"github.com/dbsmedya/puppetmaster/internal/logger"
)

func TestValidateCommandStructure(t *testing.T) {
	assert.Equal(t, "validate", validateCmd.Use)
	assert.Contains(t, validateCmd.Short, "Validate")
	assert.Contains(t, validateCmd.Long, "Checks performed")
	assert.Contains(t, validateCmd.Long, "puppetmaster validate")
	assert.NotNil(t, validateCmd.RunE)
	assert.NotNil(t, validateCmd.Flags().Lookup("db"))
}

func TestRunValidate(t *testing.T) {
	saveFlags(t)
	cfgFile, _ = writeWorkspace(t)

	var buf bytes.Buffer
	validateCmd.SetOut(&buf)
	t.Cleanup(func() { validateCmd.SetOut(nil) })

	require.NoError(t, runValidate(validateCmd, nil))

	out := buf.String()
	assert.Contains(t, out, "2 rules, 1 noise patterns")
	assert.Contains(t, out, "Blacklist: 0 domains")
	assert.Contains(t, out, "Validation Complete")
}

func TestRunValidateBadRuleset(t *testing.T) {
	saveFlags(t)
	cfgFile = writeConfig(t, "rules:\n  file: /nonexistent/rules.yaml\n")

	var buf bytes.Buffer
	validateCmd.SetOut(&buf)
	t.Cleanup(func() { validateCmd.SetOut(nil) })

	err := runValidate(validateCmd, nil)
	assert.ErrorContains(t, err, "ruleset invalid")
}

func TestRunValidateBadConfig(t *testing.T) {
	saveFlags(t)
	cfgFile = writeConfig(t, "input:\n  workers: -1\n")

	err := runValidate(validateCmd, nil)
	assert.ErrorContains(t, err, "input.workers")
}

func TestCheckResults(t *testing.T) {
	tests := []struct {
		name     string
		tables   [][2]string
		isFree   int
		wantOut  []string
		wantNone []string
	}{
		{
			name:     "fresh schema and idle label",
			isFree:   1,
			wantOut:  []string{"Results tables to be created: pm_cluster_members, pm_clusters, pm_hubs, pm_connections, pm_signals, pm_runs"},
			wantNone: []string{"save is in progress"},
		},
		{
			name: "existing schema and busy label",
			tables: [][2]string{
				{"pm_cluster_members", "InnoDB"}, {"pm_clusters", "InnoDB"}, {"pm_hubs", "InnoDB"},
				{"pm_connections", "InnoDB"}, {"pm_signals", "InnoDB"}, {"pm_runs", "InnoDB"},
			},
			isFree:   0,
			wantOut:  []string{`Run "weekly": a save is in progress on another instance`},
			wantNone: []string{"to be created"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			rc := config.DefaultConfig().Results
			rc.Label = "weekly"

			rows := sqlmock.NewRows([]string{"TABLE_NAME", "ENGINE"})
			for _, r := range tt.tables {
				rows.AddRow(r[0], r[1])
			}
			mock.ExpectQuery(q("SELECT TABLE_NAME, ENGINE FROM information_schema.TABLES")).WillReturnRows(rows)
			mock.ExpectQuery(q("SELECT IS_FREE_LOCK(?)")).
				WithArgs(lock.Name("weekly")).
				WillReturnRows(sqlmock.NewRows([]string{"IS_FREE_LOCK"}).AddRow(tt.isFree))

			var buf bytes.Buffer
			require.NoError(t, checkResults(context.Background(), &buf, db, rc, logger.NewNop()))
			for _, s := range tt.wantOut {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.wantNone {
				assert.NotContains(t, buf.String(), s)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCheckResultsLockQueryFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(q("SELECT TABLE_NAME, ENGINE")).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "ENGINE"}))
	mock.ExpectQuery(q("SELECT IS_FREE_LOCK(?)")).WillReturnError(errors.New("gone away"))

	var buf bytes.Buffer
	err = checkResults(context.Background(), &buf, db, config.DefaultConfig().Results, logger.NewNop())
	assert.ErrorContains(t, err, "IS_FREE_LOCK")
}
