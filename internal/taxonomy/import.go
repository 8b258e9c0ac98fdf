package taxonomy

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jiangyuyi/feather-trace/internal/datastore"
	"github.com/jiangyuyi/feather-trace/internal/errors"
	"github.com/jiangyuyi/feather-trace/internal/logging"
)

// Column headers recognized in the IOC spreadsheet. Both the English IOC
// export headers and the Chinese checklist headers are accepted.
var columnAliases = map[string][]string{
	"scientific": {"Scientific Name", "scientific_name", "学名", "拉丁名"},
	"chinese":    {"Chinese Name", "chinese_name", "中文名", "中文种名"},
	"english":    {"English Name", "english_name", "英文名"},
	"genus":      {"Genus", "genus", "属拉丁名"},
	"family":     {"Family", "family", "科拉丁名"},
	"family_cn":  {"Family (Chinese)", "family_cn", "科中文名"},
	"order":      {"Order", "order", "目拉丁名"},
	"order_cn":   {"Order (Chinese)", "order_cn", "目中文名"},
}

// ImportFromExcel reads the IOC world bird list spreadsheet and inserts its
// rows into the taxonomy table. Returns the number of new rows.
func ImportFromExcel(ds datastore.Interface, path string) (int, error) {
	logger := logging.ForService("taxonomy")

	f, err := excelize.OpenFile(path)
	if err != nil {
		return 0, errors.New(fmt.Errorf("opening spreadsheet: %w", err)).
			Component("taxonomy").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("closing spreadsheet", "error", cerr)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, errors.Newf("spreadsheet %s has no sheets", path).
			Component("taxonomy").
			Category(errors.CategoryTaxonomy).
			Build()
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return 0, errors.New(fmt.Errorf("reading sheet %s: %w", sheets[0], err)).
			Component("taxonomy").
			Category(errors.CategoryTaxonomy).
			Build()
	}
	if len(rows) < 2 {
		return 0, errors.Newf("spreadsheet %s has no data rows", path).
			Component("taxonomy").
			Category(errors.CategoryTaxonomy).
			Build()
	}

	columns := resolveColumns(rows[0])
	if _, ok := columns["scientific"]; !ok {
		return 0, errors.Newf("spreadsheet %s has no scientific-name column", path).
			Component("taxonomy").
			Category(errors.CategoryTaxonomy).
			Build()
	}

	taxa := make([]datastore.Taxonomy, 0, len(rows)-1)
	for _, row := range rows[1:] {
		sci := cellAt(row, columns, "scientific")
		if sci == "" {
			continue
		}
		taxon := datastore.Taxonomy{
			ScientificName: sci,
			ChineseName:    cellAt(row, columns, "chinese"),
			EnglishName:    cellAt(row, columns, "english"),
			GenusSci:       cellAt(row, columns, "genus"),
			FamilySci:      cellAt(row, columns, "family"),
			FamilyCN:       cellAt(row, columns, "family_cn"),
			OrderSci:       cellAt(row, columns, "order"),
			OrderCN:        cellAt(row, columns, "order_cn"),
		}
		if taxon.GenusSci == "" {
			// Genus is the first word of the binomial.
			if idx := strings.IndexByte(sci, ' '); idx > 0 {
				taxon.GenusSci = sci[:idx]
			}
		}
		taxa = append(taxa, taxon)
	}

	inserted, err := ds.InsertTaxa(taxa)
	if err != nil {
		return inserted, errors.New(fmt.Errorf("inserting taxonomy rows: %w", err)).
			Component("taxonomy").
			Category(errors.CategoryDatabase).
			Build()
	}

	logger.Info("taxonomy import finished", "rows", len(taxa), "inserted", inserted)
	return inserted, nil
}

func resolveColumns(header []string) map[string]int {
	columns := make(map[string]int)
	for i, cell := range header {
		name := strings.TrimSpace(cell)
		for key, aliases := range columnAliases {
			for _, alias := range aliases {
				if strings.EqualFold(name, alias) {
					if _, seen := columns[key]; !seen {
						columns[key] = i
					}
				}
			}
		}
	}
	return columns
}

func cellAt(row []string, columns map[string]int, key string) string {
	idx, ok := columns[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
