package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/syftbackup/internal/engine"
	"github.com/openmined/syftbackup/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

func openCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := New(filepath.Join(t.TempDir(), ".data", "catalog.db"))
	require.NoError(t, c.Open())
	t.Cleanup(func() { c.Close() })
	return c
}

func record(prefix string, kind generation.Kind, at time.Time) *Record {
	id := generation.NewIdentity(prefix, generation.RoleSignatures, kind, at)
	return &Record{
		ID:            id,
		SignatureName: prefix + "-signatures-" + string(kind),
		ContentName:   prefix + "-content-" + string(kind),
		PassID:        "pass-" + at.Format("150405"),
		Stats:         engine.Stats{ExaminedFiles: 3, NewFiles: 2, NewBytes: 1024},
	}
}

func TestCatalogAddAssignsSequence(t *testing.T) {
	c := openCatalog(t)

	first := record("home", generation.KindFull, t0)
	second := record("home", generation.KindIncremental, t0.Add(time.Hour))
	other := record("work", generation.KindFull, t0)

	require.NoError(t, c.Add(first))
	require.NoError(t, c.Add(other))
	require.NoError(t, c.Add(second))

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), other.Seq)
	assert.Equal(t, int64(3), second.Seq)
	assert.False(t, first.CreatedAt.IsZero())
}

func TestCatalogAddDuplicate(t *testing.T) {
	c := openCatalog(t)

	require.NoError(t, c.Add(record("home", generation.KindFull, t0)))
	assert.Error(t, c.Add(record("home", generation.KindFull, t0)))
}

func TestCatalogGet(t *testing.T) {
	c := openCatalog(t)
	rec := record("home", generation.KindFull, t0)
	require.NoError(t, c.Add(rec))

	got, err := c.Get("home", generation.KindFull, t0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Seq, got.Seq)
	assert.True(t, got.ID.Equal(rec.ID))
	assert.Equal(t, rec.Stats, got.Stats)
	assert.Equal(t, rec.PassID, got.PassID)
	assert.Equal(t, rec.SignatureName, got.SignatureName)

	missing, err := c.Get("home", generation.KindIncremental, t0)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCatalogListAndDelete(t *testing.T) {
	c := openCatalog(t)
	for i, kind := range []generation.Kind{generation.KindFull, generation.KindIncremental, generation.KindIncremental} {
		require.NoError(t, c.Add(record("home", kind, t0.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, c.Add(record("work", generation.KindFull, t0)))

	list, err := c.List("home")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, rec := range list {
		assert.Equal(t, int64(i+1), rec.Seq)
	}

	require.NoError(t, c.Delete("home", generation.KindIncremental, t0.Add(time.Hour)))
	require.NoError(t, c.Delete("home", generation.KindIncremental, t0.Add(48*time.Hour)))

	list, err = c.List("home")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []int64{1, 3}, []int64{list[0].Seq, list[1].Seq})
}

func TestCatalogSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	c := New(path)
	require.NoError(t, c.Open())
	require.NoError(t, c.Add(record("home", generation.KindFull, t0)))
	require.NoError(t, c.Close())

	c = New(path)
	require.NoError(t, c.Open())
	defer c.Close()

	next := record("home", generation.KindIncremental, t0.Add(time.Minute))
	require.NoError(t, c.Add(next))
	assert.Equal(t, int64(2), next.Seq)
}

func TestCatalogNotOpen(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "catalog.db"))

	assert.ErrorIs(t, c.Add(record("home", generation.KindFull, t0)), ErrNotOpen)
	_, err := c.List("home")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, c.Close(), ErrNotOpen)
}
