package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/jiangyuyi/feather-trace/internal/datastore"
)

// fakeStore implements datastore.Interface for taxonomy tests.
type fakeStore struct {
	taxa []datastore.Taxonomy
}

func (f *fakeStore) Open() error { return nil }
func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) SavePhoto(*datastore.Photo) error { return nil }
func (f *fakeStore) MediaExists(string) (bool, error) { return false, nil }
func (f *fakeStore) UpdatePhotoSpecies(uint, string, string) error { return nil }

func (f *fakeStore) GetAllLabels() ([]string, error) {
	labels := make([]string, 0, len(f.taxa))
	for _, t := range f.taxa {
		labels = append(labels, t.ScientificName)
	}
	return labels, nil
}

func (f *fakeStore) GetTaxon(scientificName string) (*datastore.Taxonomy, error) {
	for i := range f.taxa {
		if f.taxa[i].ScientificName == scientificName {
			return &f.taxa[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) InsertTaxa(taxa []datastore.Taxonomy) (int, error) {
	inserted := 0
	for _, taxon := range taxa {
		if existing, _ := f.GetTaxon(taxon.ScientificName); existing != nil {
			continue
		}
		f.taxa = append(f.taxa, taxon)
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) CountTaxa() (int64, error) { return int64(len(f.taxa)), nil }

func (f *fakeStore) SaveScanHistory(*datastore.ScanHistory) error { return nil }
func (f *fakeStore) GetRecentScans(int) ([]datastore.ScanHistory, error) { return nil, nil }

func writeSpreadsheet(t *testing.T, header []string, rows [][]string) string {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "ioc.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestImportFromExcel(t *testing.T) {
	path := writeSpreadsheet(t,
		[]string{"学名", "中文名", "科拉丁名", "科中文名"},
		[][]string{
			{"Passer montanus", "树麻雀", "Passeridae", "雀科"},
			{"Pica pica", "喜鹊", "Corvidae", "鸦科"},
			{"", "skipped row", "", ""},
		})

	ds := &fakeStore{}
	inserted, err := ImportFromExcel(ds, path)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	taxon, err := ds.GetTaxon("Passer montanus")
	require.NoError(t, err)
	assert.Equal(t, "树麻雀", taxon.ChineseName)
	assert.Equal(t, "雀科", taxon.FamilyCN)
	assert.Equal(t, "Passer", taxon.GenusSci,
		"genus falls back to the first word of the binomial")
}

func TestImportFromExcelEnglishHeaders(t *testing.T) {
	path := writeSpreadsheet(t,
		[]string{"Scientific Name", "English Name", "Family"},
		[][]string{{"Cygnus olor", "Mute Swan", "Anatidae"}})

	ds := &fakeStore{}
	inserted, err := ImportFromExcel(ds, path)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	taxon, err := ds.GetTaxon("Cygnus olor")
	require.NoError(t, err)
	assert.Equal(t, "Mute Swan", taxon.EnglishName)
	assert.Equal(t, "Anatidae", taxon.FamilySci)
}

func TestImportFromExcelSkipsDuplicates(t *testing.T) {
	path := writeSpreadsheet(t,
		[]string{"学名"},
		[][]string{{"Passer montanus"}})

	ds := &fakeStore{}
	_, err := ImportFromExcel(ds, path)
	require.NoError(t, err)

	inserted, err := ImportFromExcel(ds, path)
	require.NoError(t, err)
	assert.Zero(t, inserted, "re-importing the same spreadsheet inserts nothing")
}

func TestImportFromExcelMissingScientificColumn(t *testing.T) {
	path := writeSpreadsheet(t,
		[]string{"中文名"},
		[][]string{{"树麻雀"}})

	_, err := ImportFromExcel(&fakeStore{}, path)
	require.Error(t, err)
}

func TestLoadLabelsAutoImports(t *testing.T) {
	path := writeSpreadsheet(t,
		[]string{"学名"},
		[][]string{{"Passer montanus"}, {"Pica pica"}})

	labels, err := LoadLabels(&fakeStore{}, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Passer montanus", "Pica pica"}, labels)
}

func TestLoadLabelsEmptyTableWithoutSpreadsheet(t *testing.T) {
	_, err := LoadLabels(&fakeStore{}, filepath.Join(t.TempDir(), "missing.xlsx"))
	require.Error(t, err, "an empty taxonomy with no spreadsheet is fatal")
}

func TestLoadNameList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.txt")
	content := "# domestic species\nPasser montanus\n\n  Pica pica  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	names := LoadNameList(path)
	assert.Equal(t, []string{"Passer montanus", "Pica pica"}, names)
}

func TestLoadNameListMissingFile(t *testing.T) {
	assert.Nil(t, LoadNameList(filepath.Join(t.TempDir(), "nope.txt")))
}
