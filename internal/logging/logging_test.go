package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	root, err := NewWithWriter(Config{Level: "info"}, &buf)
	require.NoError(t, err)

	l := Component(root, "planning")
	l.Info().Msg("plan created")
	assert.Contains(t, buf.String(), `"component":"planning"`)
	assert.Contains(t, buf.String(), "plan created")

	buf.Reset()
	l.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}
