package checkpoint

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	cat, err := NewCatalog(db)
	require.NoError(t, err)
	return cat
}

func TestCatalog(t *testing.T) {
	cat := newTestCatalog(t)

	_, err := cat.Latest()
	assert.ErrorIs(t, err, ErrNoCheckpoints)

	t0 := time.Unix(1700000000, 0)
	entries := []Entry{
		{Step: 10, Time: 0.1, Dt: 0.01, Path: "chk00010", Particles: 5,
			Levels: 1, WrittenAt: t0},
		{Step: 30, Time: 0.3, Dt: 0.01, Path: "chk00030", Particles: 5,
			Levels: 2, WrittenAt: t0.Add(2 * time.Second)},
		{Step: 20, Time: 0.2, Dt: 0.01, Path: "chk00020", Particles: 4,
			Levels: 1, WrittenAt: t0.Add(time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, cat.Record(e))
	}

	latest, err := cat.Latest()
	require.NoError(t, err)
	assert.Equal(t, "chk00030", latest.Path)
	assert.Equal(t, 2, latest.Levels)
	assert.True(t, latest.WrittenAt.Equal(entries[1].WrittenAt))

	all, err := cat.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{10, 20, 30}, []int{all[0].Step, all[1].Step,
		all[2].Step})

	// Rewriting a bundle replaces its record.
	entries[1].Particles = 7
	require.NoError(t, cat.Record(entries[1]))
	all, err = cat.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(7), all[2].Particles)
}

func TestResolve(t *testing.T) {
	path, err := Resolve("chk00100", nil)
	require.NoError(t, err)
	assert.Equal(t, "chk00100", path)

	_, err = Resolve("latest", nil)
	assert.Error(t, err)

	cat := newTestCatalog(t)
	_, err = Resolve("latest", cat)
	assert.ErrorIs(t, err, ErrNoCheckpoints)

	require.NoError(t, cat.Record(Entry{Step: 4, Path: "chk00004",
		WrittenAt: time.Now()}))
	path, err = Resolve(" Latest", cat)
	require.NoError(t, err)
	assert.Equal(t, "chk00004", path)
}

func TestWriterCatalog(t *testing.T) {
	dir := t.TempDir()
	cat, err := OpenCatalog(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	ts := newTestSim(t, 1, false)
	w := NewWriter(filepath.Join(dir, "chk"), cat)
	for _, step := range []int{5, 10} {
		_, err := w.Write(ts.s, ts.ps, Scalars{step, float64(step) / 10, 0.1})
		require.NoError(t, err)
	}

	path, err := Resolve("latest", cat)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chk00010"), path)

	snap, err := Restart(path, ts.p, Options{})
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Scalars.Step)
	assert.Equal(t, ts.ps.Len(), snap.Particles.Len())
}
