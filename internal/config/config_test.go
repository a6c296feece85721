package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/webeye/internal/dom"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		s, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, dom.DefaultActionTimeout, s.BrowserActionTimeout)
		assert.Equal(t, 3*time.Second, s.Select2Settle)
		assert.Equal(t, dom.SettleFixed, s.Select2SettleMode)
		assert.Equal(t, "unique_id", s.IDAttr)
		assert.False(t, s.Headless)
	})

	t.Run("Env", func(t *testing.T) {
		t.Setenv("BROWSER_ACTION_TIMEOUT_MS", "1500")
		t.Setenv("SELECT2_SETTLE_MODE", "Poll")
		t.Setenv("AGENT_HEADLESS", "true")
		s, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 1500*time.Millisecond, s.BrowserActionTimeout)
		assert.Equal(t, dom.SettlePoll, s.Select2SettleMode)
		assert.True(t, s.Headless)
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "webeye.yaml")
		require.NoError(t, os.WriteFile(path, []byte("select2_settle_ms: 250\nid_attr: data-eye\n"), 0o600))
		s, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 250*time.Millisecond, s.Select2Settle)
		assert.Equal(t, "data-eye", s.IDAttr)
	})

	t.Run("BadMode", func(t *testing.T) {
		t.Setenv("SELECT2_SETTLE_MODE", "events")
		_, err := Load("")
		require.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestSettingsDOM(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	cfg := s.DOM()
	assert.Equal(t, 3*time.Second, cfg.SettleDelay)
	assert.NotNil(t, cfg.ReadOptions)

	s.Select2Settle = 0
	assert.Equal(t, time.Duration(-1), s.DOM().SettleDelay)
}
