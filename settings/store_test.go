package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
)

func TestOpen_WritesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")

	s, err := Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	require.FileExists(t, path)
	require.Equal(t, Default(), s.Get())
	require.Equal(t, uint64(1), s.Generation())
}

func TestOpen_RejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")

	bad := toFile(Default())
	bad.Axes.StepsPerMM[0] = 0
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, toml.NewEncoder(f).Encode(bad))
	require.NoError(t, f.Close())

	_, err = Open(path, nil)
	require.Error(t, err)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")

	s, err := Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Watch())

	changed := Default()
	changed.JunctionDeviationMM = 0.05
	require.NoError(t, s.save(changed))

	require.Eventually(t, func() bool {
		return s.Get().JunctionDeviationMM == 0.05
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, uint64(2), s.Generation())
}

func TestWatch_KeepsPreviousSnapshotOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")

	s, err := Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Watch())

	bad := toFile(Default())
	bad.Axes.StepsPerMM[0] = 0
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, toml.NewEncoder(f).Encode(bad))
	require.NoError(t, f.Close())

	// Give the watcher goroutine time to see and reject the bad write;
	// the snapshot must stay at the last-good generation throughout.
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, Default(), s.Get())
	require.Equal(t, uint64(1), s.Generation())
}
