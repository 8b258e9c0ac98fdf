package taxonomy

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/jiangyuyi/feather-trace/internal/datastore"
	"github.com/jiangyuyi/feather-trace/internal/errors"
	"github.com/jiangyuyi/feather-trace/internal/logging"
)

// LoadLabels returns all scientific names from the taxonomy table. When the
// table is empty it attempts a one-time auto-import from the configured IOC
// spreadsheet before giving up. An empty label set is configuration-fatal
// for the pipeline.
func LoadLabels(ds datastore.Interface, iocSpreadsheetPath string) ([]string, error) {
	logger := logging.ForService("taxonomy")

	count, err := ds.CountTaxa()
	if err != nil {
		return nil, errors.New(fmt.Errorf("counting taxonomy rows: %w", err)).
			Component("taxonomy").
			Category(errors.CategoryDatabase).
			Build()
	}

	if count == 0 {
		logger.Warn("taxonomy table is empty, attempting auto-import", "path", iocSpreadsheetPath)
		if _, err := os.Stat(iocSpreadsheetPath); err != nil {
			return nil, errors.Newf("taxonomy table is empty and spreadsheet %s is missing", iocSpreadsheetPath).
				Component("taxonomy").
				Category(errors.CategoryLabelLoad).
				Build()
		}
		imported, err := ImportFromExcel(ds, iocSpreadsheetPath)
		if err != nil {
			return nil, err
		}
		logger.Info("taxonomy auto-import completed", "imported", imported)
	}

	labels, err := ds.GetAllLabels()
	if err != nil {
		return nil, errors.New(fmt.Errorf("loading taxonomy labels: %w", err)).
			Component("taxonomy").
			Category(errors.CategoryLabelLoad).
			Build()
	}
	if len(labels) == 0 {
		return nil, errors.Newf("no taxonomy labels available").
			Component("taxonomy").
			Category(errors.CategoryLabelLoad).
			Build()
	}

	logger.Info("taxonomy labels loaded", "count", len(labels))
	return labels, nil
}

// LoadNameList reads a newline-separated name list such as the domestic
// allowlist or the foreign-country list. A missing file yields an empty
// list, not an error; the candidate selector degrades accordingly.
func LoadNameList(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			names = append(names, line)
		}
	}
	return names
}
