// Package models defines the value types passed between the ferry components.
package models

import (
	"path/filepath"
	"strings"
)

// WatchedFile is one entry of a watched-directory snapshot.
type WatchedFile struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Ext  string `json:"ext"`
}

// NewWatchedFile builds a WatchedFile from a full path.
func NewWatchedFile(path string) WatchedFile {
	name := filepath.Base(path)
	return WatchedFile{
		Path: path,
		Name: name,
		Ext:  filepath.Ext(name),
	}
}

// Stem returns the file name without its extension.
func (f WatchedFile) Stem() string {
	return strings.TrimSuffix(f.Name, f.Ext)
}

// ReferenceRow is one matched record of the reference dataset.
type ReferenceRow struct {
	// Filename is the exact source filename, used to break ties between
	// several rows matching the same pattern.
	Filename          string `json:"filename"`
	OutputFolder      string `json:"output_folder"`
	RenameTemplate    string `json:"rename_template,omitempty"`
	ExtensionOverride string `json:"extension_override,omitempty"`
}

// Outcome is where a file goes and what it is called there.
type Outcome struct {
	Folder   string `json:"folder"`
	Filename string `json:"filename"`
}

// Path joins the destination folder and filename.
func (o Outcome) Path() string {
	return filepath.Join(o.Folder, o.Filename)
}
