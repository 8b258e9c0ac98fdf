package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jiangyuyi/feather-trace/internal/datastore"
	"github.com/jiangyuyi/feather-trace/internal/recognition"
	"github.com/jiangyuyi/feather-trace/internal/scanner"
	"github.com/jiangyuyi/feather-trace/internal/storage"
	"github.com/jiangyuyi/feather-trace/internal/taxonomy"
)

// memProvider tracks moves and existing paths in memory. It is safe for
// concurrent use, matching the concurrency of coordinator flushes.
type memProvider struct {
	mu       sync.Mutex
	existing map[string]bool
	moves    map[string]string // src -> dst
}

func newMemProvider() *memProvider {
	return &memProvider{existing: map[string]bool{}, moves: map[string]string{}}
}

func (m *memProvider) List(string, bool) ([]storage.Entry, error) { return nil, nil }
func (m *memProvider) Exists(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existing[p]
}
func (m *memProvider) ReadBytes(string) ([]byte, error) { return nil, nil }
func (m *memProvider) WriteBytes(string, []byte) error { return nil }
func (m *memProvider) Delete(string) error { return nil }
func (m *memProvider) LocalPath(p string) (string, bool) { return p, true }

func (m *memProvider) Move(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moves[src] = dst
	m.existing[dst] = true
	return nil
}

// memStore implements datastore.Interface in memory for archiver tests.
type memStore struct {
	mu     sync.Mutex
	photos []*datastore.Photo
	taxa   map[string]*datastore.Taxonomy
}

func newMemStore() *memStore {
	return &memStore{taxa: map[string]*datastore.Taxonomy{}}
}

func (m *memStore) Open() error { return nil }
func (m *memStore) Close() error { return nil }

func (m *memStore) SavePhoto(photo *datastore.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos = append(m.photos, photo)
	return nil
}

func (m *memStore) MediaExists(fileHash string) (bool, error) {
	for _, p := range m.photos {
		if p.FileHash == fileHash {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UpdatePhotoSpecies(uint, string, string) error { return nil }

func (m *memStore) GetAllLabels() ([]string, error) { return nil, nil }

func (m *memStore) GetTaxon(scientificName string) (*datastore.Taxonomy, error) {
	if taxon, ok := m.taxa[scientificName]; ok {
		return taxon, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) InsertTaxa([]datastore.Taxonomy) (int, error) { return 0, nil }
func (m *memStore) CountTaxa() (int64, error) { return int64(len(m.taxa)), nil }

func (m *memStore) SaveScanHistory(*datastore.ScanHistory) error { return nil }
func (m *memStore) GetRecentScans(int) ([]datastore.ScanHistory, error) { return nil, nil }

func newTestArchiver(provider *memProvider, ds *memStore) *Archiver {
	gen := NewPathGenerator("{date}_{location}_{species_cn}_{filename}", "/archive")
	return NewArchiver(provider, ds, taxonomy.NewLookup(ds), NoopWriter{}, gen, nil, 70, 30)
}

func testBatchItem() *recognition.BatchItem {
	return &recognition.BatchItem{
		SourceEntry: storage.Entry{Path: "/photos/trip/IMG_0001.jpg", Name: "IMG_0001.jpg"},
		Metadata: scanner.ParsedMetadata{
			CapturedDate:    "20231001",
			LocationTag:     "Qinghai",
			SourceStructure: "trip",
		},
		CropFilePath:     "/tmp/crop_1.jpg",
		Fingerprint:      "1234_abcd",
		ImageWidth:       4000,
		ImageHeight:      3000,
		DetectionsInFile: 1,
	}
}

func TestHandleResultArchivesIdentifiedPhoto(t *testing.T) {
	provider := newMemProvider()
	ds := newMemStore()
	ds.taxa["Passer montanus"] = &datastore.Taxonomy{
		ScientificName: "Passer montanus",
		ChineseName:    "树麻雀",
		FamilyCN:       "雀科",
	}
	a := newTestArchiver(provider, ds)

	predictions := []recognition.Prediction{
		{Label: "Passer montanus", Confidence: 0.92},
		{Label: "Pica pica", Confidence: 0.05},
	}
	err := a.HandleResult(context.Background(), testBatchItem(), predictions)
	require.NoError(t, err)

	want := filepath.Join("/archive", "20231001_Qinghai_树麻雀_IMG_0001.jpg")
	assert.Equal(t, want, provider.moves["/tmp/crop_1.jpg"],
		"the crop is moved to the rendered archive path")

	require.Len(t, ds.photos, 1)
	photo := ds.photos[0]
	assert.Equal(t, "Passer montanus", photo.ScientificName)
	assert.Equal(t, "树麻雀", photo.CommonName)
	assert.Equal(t, "1234_abcd", photo.FileHash)
	assert.Equal(t, "/photos/trip/IMG_0001.jpg", photo.OriginalPath)
	assert.Contains(t, photo.CandidatesJSON, "Pica pica",
		"the full ranked list is persisted")
}

func TestHandleResultUnknownSpecies(t *testing.T) {
	provider := newMemProvider()
	ds := newMemStore()
	a := newTestArchiver(provider, ds)

	err := a.HandleResult(context.Background(), testBatchItem(), nil)
	require.NoError(t, err)

	require.Len(t, ds.photos, 1)
	assert.Equal(t, UnknownTaxon, ds.photos[0].ScientificName)
	assert.Equal(t, "未知鸟种", ds.photos[0].CommonName)
}

func TestHandleResultLowConfidenceIsUnresolved(t *testing.T) {
	provider := newMemProvider()
	ds := newMemStore()
	a := newTestArchiver(provider, ds)

	predictions := []recognition.Prediction{{Label: "Passer montanus", Confidence: 0.10}}
	err := a.HandleResult(context.Background(), testBatchItem(), predictions)
	require.NoError(t, err)

	require.Len(t, ds.photos, 1)
	assert.Equal(t, UnresolvedTaxon, ds.photos[0].ScientificName)
	assert.Equal(t, "未识别", ds.photos[0].CommonName)
	assert.Contains(t, ds.photos[0].CandidatesJSON, "Passer montanus",
		"the rejected candidates are still recorded for later review")
}

func TestHandleResultResolvesCollisions(t *testing.T) {
	provider := newMemProvider()
	ds := newMemStore()
	a := newTestArchiver(provider, ds)

	item1 := testBatchItem()
	item2 := testBatchItem()
	item2.CropFilePath = "/tmp/crop_2.jpg"

	require.NoError(t, a.HandleResult(context.Background(), item1, nil))
	require.NoError(t, a.HandleResult(context.Background(), item2, nil))

	dst1 := provider.moves["/tmp/crop_1.jpg"]
	dst2 := provider.moves["/tmp/crop_2.jpg"]
	assert.NotEqual(t, dst1, dst2, "identical metadata never overwrites an archived photo")
	assert.Equal(t, filepath.Join("/archive", "20231001_Qinghai_未知鸟种_IMG_0001.jpg"), dst1)
}

func TestHandleResultConcurrentSameName(t *testing.T) {
	provider := newMemProvider()
	ds := newMemStore()
	a := newTestArchiver(provider, ds)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		item := testBatchItem()
		item.CropFilePath = fmt.Sprintf("/tmp/crop_%d.jpg", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.HandleResult(context.Background(), item, nil))
		}()
	}
	wg.Wait()

	destinations := map[string]bool{}
	for _, dst := range provider.moves {
		destinations[dst] = true
	}
	assert.Len(t, destinations, n,
		"concurrent results rendering the same base path land on distinct files")
	require.Len(t, ds.photos, n)
}

func TestHandleResultFallsBackToScientificName(t *testing.T) {
	provider := newMemProvider()
	ds := newMemStore() // no taxa imported
	a := newTestArchiver(provider, ds)

	predictions := []recognition.Prediction{{Label: "Passer montanus", Confidence: 0.92}}
	require.NoError(t, a.HandleResult(context.Background(), testBatchItem(), predictions))

	require.Len(t, ds.photos, 1)
	assert.Equal(t, "Passer montanus", ds.photos[0].CommonName,
		"without a localized name the scientific name is used")
}

func TestHandleResultMultiDetectionNames(t *testing.T) {
	provider := newMemProvider()
	ds := newMemStore()
	a := newTestArchiver(provider, ds)

	item := testBatchItem()
	item.DetectionIndex = 1
	item.DetectionsInFile = 3

	require.NoError(t, a.HandleResult(context.Background(), item, nil))

	dst := provider.moves["/tmp/crop_1.jpg"]
	assert.Contains(t, dst, "IMG_0001_02",
		"multi-detection files carry the detection index in the name")
}
