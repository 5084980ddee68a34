package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/starford/ferry/internal/apperr"
)

// readSheet returns all rows of the named sheet, header first. CSV files
// have a single implicit sheet and ignore the name.
func readSheet(path, sheet string) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return readCSV(path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		var missing excelize.ErrSheetNotExist
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: sheet %q not found in %s", apperr.ErrConfiguration, sheet, filepath.Base(path))
		}
		return nil, fmt.Errorf("dataset: read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: read csv: %w", err)
	}
	return rows, nil
}

// header maps the configured column names onto sheet column indexes.
type header struct {
	match, filename, outputFolder, renameTemplate, extensionOverride int
}

func parseHeader(row []string, cols Columns) (header, error) {
	index := make(map[string]int, len(row))
	for i, name := range row {
		name = strings.TrimSpace(name)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	find := func(name string, required bool) (int, error) {
		if i, ok := index[strings.TrimSpace(name)]; ok {
			return i, nil
		}
		if required {
			return -1, fmt.Errorf("%w: column %q missing from reference dataset", apperr.ErrConfiguration, name)
		}
		return -1, nil
	}

	var h header
	var err error
	if h.match, err = find(cols.Match, true); err != nil {
		return h, err
	}
	if h.outputFolder, err = find(cols.OutputFolder, true); err != nil {
		return h, err
	}
	if h.filename, err = find(cols.Filename, false); err != nil {
		return h, err
	}
	if h.renameTemplate, err = find(cols.RenameTemplate, false); err != nil {
		return h, err
	}
	if h.extensionOverride, err = find(cols.ExtensionOverride, false); err != nil {
		return h, err
	}
	return h, nil
}
