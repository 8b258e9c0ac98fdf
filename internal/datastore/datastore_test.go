package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jiangyuyi/feather-trace/internal/conf"
)

func openTestStore(t *testing.T) Interface {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	ds := New(settings)
	require.NotNil(t, ds)
	require.NoError(t, ds.Open())
	t.Cleanup(func() {
		require.NoError(t, ds.Close())
	})
	return ds
}

func TestNewWithoutSQLite(t *testing.T) {
	assert.Nil(t, New(&conf.Settings{}), "no enabled backend yields no datastore")
}

func TestSavePhotoAndMediaExists(t *testing.T) {
	ds := openTestStore(t)

	exists, err := ds.MediaExists("100_abc")
	require.NoError(t, err)
	assert.False(t, exists)

	photo := &Photo{
		FilePath:       "/archive/20231001_a.jpg",
		Filename:       "20231001_a.jpg",
		OriginalPath:   "/photos/trip/a.jpg",
		FileHash:       "100_abc",
		CapturedDate:   "20231001",
		LocationTag:    "Tokyo",
		CommonName:     "树麻雀",
		ScientificName: "Passer montanus",
		Confidence:     0.92,
	}
	require.NoError(t, ds.SavePhoto(photo))
	assert.NotZero(t, photo.ID)

	exists, err = ds.MediaExists("100_abc")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = ds.MediaExists("")
	require.NoError(t, err)
	assert.False(t, exists, "an empty fingerprint never matches")
}

func TestUpdatePhotoSpecies(t *testing.T) {
	ds := openTestStore(t)

	photo := &Photo{FileHash: "1_a", ScientificName: "Unresolved", CommonName: "未识别"}
	require.NoError(t, ds.SavePhoto(photo))

	require.NoError(t, ds.UpdatePhotoSpecies(photo.ID, "Pica pica", "喜鹊"))

	store := ds.(*SQLiteStore)
	var updated Photo
	require.NoError(t, store.DB.First(&updated, photo.ID).Error)
	assert.Equal(t, "Pica pica", updated.ScientificName)
	assert.Equal(t, "喜鹊", updated.CommonName)
	assert.InDelta(t, 1.0, updated.Confidence, 1e-9,
		"manual corrections are recorded as fully confident")
}

func TestTaxonomyRoundTrip(t *testing.T) {
	ds := openTestStore(t)

	count, err := ds.CountTaxa()
	require.NoError(t, err)
	assert.Zero(t, count)

	inserted, err := ds.InsertTaxa([]Taxonomy{
		{ScientificName: "Passer montanus", ChineseName: "树麻雀", FamilyCN: "雀科"},
		{ScientificName: "Pica pica", ChineseName: "喜鹊"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Re-inserting the same names writes nothing.
	inserted, err = ds.InsertTaxa([]Taxonomy{{ScientificName: "Pica pica"}})
	require.NoError(t, err)
	assert.Zero(t, inserted)

	labels, err := ds.GetAllLabels()
	require.NoError(t, err)
	assert.Equal(t, []string{"Passer montanus", "Pica pica"}, labels,
		"labels come back in insertion order")

	taxon, err := ds.GetTaxon("Passer montanus")
	require.NoError(t, err)
	assert.Equal(t, "树麻雀", taxon.ChineseName)

	_, err = ds.GetTaxon("Aptenodytes forsteri")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestScanHistory(t *testing.T) {
	ds := openTestStore(t)

	for _, status := range []string{"completed", "failed", "completed"} {
		require.NoError(t, ds.SaveScanHistory(&ScanHistory{
			RangeStart:     "20240101",
			RangeEnd:       "20240131",
			ProcessedCount: 5,
			Status:         status,
		}))
	}

	scans, err := ds.GetRecentScans(2)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, "completed", scans[0].Status)
	assert.Equal(t, "failed", scans[1].Status, "newest first")
}
