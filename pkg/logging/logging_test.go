package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	t.Run("level filters debug", func(t *testing.T) {
		var out bytes.Buffer
		log := New(Config{Level: "info", Output: &out})

		log.Debugf("hidden %d", 1)
		log.WithField("check", "check_2fa_status").Warnf("skipping entry")

		require.NotContains(t, out.String(), "hidden")
		require.Contains(t, out.String(), "skipping entry")
		require.Contains(t, out.String(), "check=check_2fa_status")
		require.False(t, log.IsDebug())
	})

	t.Run("debug flag wins over level", func(t *testing.T) {
		var out bytes.Buffer
		log := New(Config{Level: "error", Debug: true, Output: &out})
		log.Debugf("page %d fetched", 2)
		require.Contains(t, out.String(), "page 2 fetched")
		require.True(t, log.IsDebug())
	})

	t.Run("bad level falls back to info", func(t *testing.T) {
		var out bytes.Buffer
		log := New(Config{Level: "loud", Output: &out, JSON: true})
		log.Infof("ready")
		require.Contains(t, out.String(), `"msg":"ready"`)
	})
}
