// Package testutil provides shared test helpers for watched folders and
// reference workbooks.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// Header is the header row of the standard routing workbook.
var Header = []string{"Filename pattern", "Filename", "Output folder", "Name of file after copy", "Change filetype to"}

// Workspace is a temporary watched folder with its error subfolder and an
// output folder rows can point at.
type Workspace struct {
	Root  string
	Watch string
	Error string
	Out   string
}

// NewWorkspace creates the watched, error and output folders under t.TempDir().
func NewWorkspace(t *testing.T) Workspace {
	t.Helper()
	root := t.TempDir()
	ws := Workspace{
		Root:  root,
		Watch: filepath.Join(root, "watch"),
		Error: filepath.Join(root, "watch", "Error"),
		Out:   filepath.Join(root, "out"),
	}
	for _, dir := range []string{ws.Watch, ws.Error, ws.Out} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return ws
}

// WriteFile writes content to dir/name and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// WriteWorkbook saves rows (header first) as sheet of a new .xlsx at path.
func WriteWorkbook(t *testing.T, path, sheet string, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatal(err)
		}
	}
	for r, row := range rows {
		for c, value := range row {
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetCellStr(sheet, name, value); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
