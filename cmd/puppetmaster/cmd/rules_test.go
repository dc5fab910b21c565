package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRulesCommandStructure(t *testing.T) {
	assert.Equal(t, "rules", rulesCmd.Use)
	assert.NotEmpty(t, rulesCmd.Short)
	assert.NotNil(t, rulesCmd.RunE)
	assert.NotNil(t, rulesCmd.Flags().Lookup("verbose"))
}

func TestRunRules(t *testing.T) {
	saveFlags(t)
	cfgFile, _ = writeWorkspace(t)

	var buf bytes.Buffer
	rulesCmd.SetOut(&buf)
	t.Cleanup(func() { rulesCmd.SetOut(nil) })

	require.NoError(t, runRules(rulesCmd, nil))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	assert.Contains(t, lines[2], "google_analytics")
	assert.Contains(t, lines[2], "SMOKING_GUN")
	assert.Contains(t, lines[3], "email")
	assert.Contains(t, lines[3], "Contact address")
	assert.NotContains(t, buf.String(), "[noise]")
}

func TestRunRulesVerbose(t *testing.T) {
	saveFlags(t)
	cfgFile, _ = writeWorkspace(t)
	rulesVerbose = true

	var buf bytes.Buffer
	rulesCmd.SetOut(&buf)
	t.Cleanup(func() { rulesCmd.SetOut(nil) })

	require.NoError(t, runRules(rulesCmd, nil))

	out := buf.String()
	assert.Contains(t, out, "[email]")
	assert.Contains(t, out, "exclude ^noreply@")
	assert.Contains(t, out, "[noise]")
	assert.Contains(t, out, `example\.invalid`)
}

func TestRunRulesBuiltin(t *testing.T) {
	saveFlags(t)
	t.Chdir(t.TempDir())
	cfgFile = defaultConfigFile

	var buf bytes.Buffer
	rulesCmd.SetOut(&buf)
	t.Cleanup(func() { rulesCmd.SetOut(nil) })

	require.NoError(t, runRules(rulesCmd, nil))
	assert.Contains(t, buf.String(), "google_analytics")
	assert.Contains(t, buf.String(), "ssl_fingerprint")
}
