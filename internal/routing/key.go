package routing

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Wildcard stands for "any sequence" in a lookup pattern.
const Wildcard = "%"

// tokenRe finds the variable part of a filename: a run of at least four
// digits, optionally continued by digits, dashes or underscores.
var tokenRe = regexp.MustCompile(`[0-9]{4}[-_0-9]*`)

// Key is how a filename is presented to the reference dataset.
type Key struct {
	Filename string `json:"filename"`
	Base     string `json:"base"`
	Ext      string `json:"ext"`
	Token    string `json:"token,omitempty"`
	Pattern  string `json:"pattern"`
}

// KeyFor derives the lookup key for a base filename. When the name carries a
// token the first occurrence is replaced by a single Wildcard.
func KeyFor(filename string) Key {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	working := base
	token := tokenRe.FindString(base)
	if token != "" {
		working = strings.Replace(base, token, Wildcard, 1)
	}

	return Key{
		Filename: filename,
		Base:     base,
		Ext:      ext,
		Token:    token,
		Pattern:  strings.TrimSpace(working) + ext,
	}
}
