package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("AUTOCODE_TEST_DIR", "/var/data")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "db"), ExpandPath("~/db"))
	assert.Equal(t, "/var/data/autocode.db", ExpandPath("$AUTOCODE_TEST_DIR/autocode.db"))
	assert.Equal(t, "/plain/path", ExpandPath("/plain/path"))
}
