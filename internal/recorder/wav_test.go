package recorder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderSizeInvariant(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page_0001_224_0_1_42_5004.wav")

	rec, err := Open(path, 8000)
	require.NoError(t, err)

	samples := make([]int16, 40000)
	require.NoError(t, rec.Append(samples))
	require.NoError(t, rec.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, rec.Samples()*2+44, info.Size())
}

func TestRecorderPlaceholderHeaderValidIfNeverClosed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page_0002_224_0_1_42_5004.wav")

	rec, err := Open(path, 8000)
	require.NoError(t, err)
	require.NoError(t, rec.Append(make([]int16, 100)))
	// Simulate a crash: no Close() call. The header on disk still has
	// RIFF/WAVE/fmt chunks, just stale data-size fields.

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, info.Size(), int64(44))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(raw[0:4]))
	assert.Equal(t, "WAVE", string(raw[8:12]))
}
