package sources

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256File(t *testing.T) {
	content := []byte("epstein-files-structured-full test payload for hashing")
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	got, err := sha256File(path)
	require.NoError(t, err)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestSHA256File_MissingFile(t *testing.T) {
	_, err := sha256File(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	assert.Error(t, err)
}

func TestTorrentMagnets_HaveRequiredFields(t *testing.T) {
	require.NotEmpty(t, torrentMagnets)
	for _, m := range torrentMagnets {
		assert.NotEmpty(t, m.magnet)
		assert.NotEmpty(t, m.sourceID)
		assert.NotEmpty(t, m.filename)
		assert.NotEmpty(t, m.title)
	}
}
