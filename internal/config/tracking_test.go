package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fibertrack/internal/tracto"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTrackingOverlay(t *testing.T) {
	t.Run("partial overlay keeps defaults", func(t *testing.T) {
		path := writeConfig(t, "tracking.json", `{"step_width": 0.5, "max_iterations": 100}`)

		o, err := LoadTrackingOverlay(path)
		require.NoError(t, err)

		def := tracto.DefaultTrackerConfig()
		cfg := o.Apply(def)
		assert.Equal(t, 0.5, cfg.StepWidth)
		assert.Equal(t, 100, cfg.MaxIterations)
		assert.Equal(t, def.ProbabilityThreshold, cfg.ProbabilityThreshold)
		assert.Equal(t, def.WindowDepth, cfg.WindowDepth)
		assert.Equal(t, def.Workers, cfg.Workers)
	})

	t.Run("full overlay", func(t *testing.T) {
		path := writeConfig(t, "tracking.json", `{
			"step_width": 2.0,
			"max_iterations": 500,
			"probability_threshold": 0.9,
			"min_length": 10,
			"max_length": 300,
			"window_depth": 4,
			"workers": 8
		}`)

		o, err := LoadTrackingOverlay(path)
		require.NoError(t, err)

		cfg := o.Apply(tracto.DefaultTrackerConfig())
		assert.Equal(t, 2.0, cfg.StepWidth)
		assert.Equal(t, 500, cfg.MaxIterations)
		assert.Equal(t, 0.9, cfg.ProbabilityThreshold)
		assert.Equal(t, 10.0, cfg.MinLength)
		assert.Equal(t, 300.0, cfg.MaxLength)
		assert.Equal(t, 4, cfg.WindowDepth)
		assert.Equal(t, 8, cfg.Workers)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		cases := map[string]string{
			"negative step":  `{"step_width": -1}`,
			"zero iters":     `{"max_iterations": 0}`,
			"threshold":      `{"probability_threshold": 1.5}`,
			"negative min":   `{"min_length": -0.1}`,
			"zero depth":     `{"window_depth": 0}`,
			"zero workers":   `{"workers": 0}`,
			"malformed json": `{"step_width": `,
		}
		for name, body := range cases {
			path := writeConfig(t, "tracking.json", body)
			_, err := LoadTrackingOverlay(path)
			assert.Error(t, err, name)
		}
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		path := writeConfig(t, "tracking.yaml", `{}`)
		_, err := LoadTrackingOverlay(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTrackingOverlay(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})
}
