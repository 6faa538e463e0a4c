package proctor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPolicyDefaults(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), p)
}

func TestLoadPolicyFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	body := "tab_switch_weight: 20\nidle_window: 15s\ntyping_max_wpm: 65\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("PROCTOR_MAX_RISK_SCORE", "90")

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 20, p.TabSwitchWeight)
	assert.Equal(t, 15*time.Second, p.IdleWindow)
	assert.Equal(t, 65.0, p.TypingMaxWPM)
	assert.Equal(t, 90, p.MaxRiskScore)
	assert.Equal(t, 3, p.IdleWeight, "unset keys keep defaults")
}

func TestLoadPolicyRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_tab_switches": 3, "termination_tab_switches": 3}`), 0o600))

	_, err := LoadPolicy(path)
	assert.Error(t, err)
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
