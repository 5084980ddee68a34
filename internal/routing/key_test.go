package routing

import (
	"strings"
	"testing"
)

func TestKeyFor_ExtractsToken(t *testing.T) {
	cases := []struct {
		name    string
		token   string
		pattern string
	}{
		{"Report2024-03-15.pdf", "2024-03-15", "Report%.pdf"},
		{"invoice_12345.csv", "12345", "invoice_%.csv"},
		{"Batch 2024_01_02_final.txt", "2024_01_02_", "Batch %final.txt"},
		{"20240101 export.xlsx", "20240101", "% export.xlsx"},
		{"a1234b5678.dat", "1234", "a%b5678.dat"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			k := KeyFor(c.name)
			if k.Token != c.token {
				t.Errorf("token = %q, want %q", k.Token, c.token)
			}
			if k.Pattern != c.pattern {
				t.Errorf("pattern = %q, want %q", k.Pattern, c.pattern)
			}
			if n := strings.Count(k.Pattern, Wildcard); n != 1 {
				t.Errorf("pattern has %d wildcards, want 1", n)
			}
		})
	}
}

func TestKeyFor_NoToken(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
	}{
		{"Report.pdf", "Report.pdf"},
		{"ab123.txt", "ab123.txt"},
		{"  padded  .csv", "padded.csv"},
		{"noext", "noext"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			k := KeyFor(c.name)
			if k.Token != "" {
				t.Errorf("token = %q, want none", k.Token)
			}
			if k.Pattern != c.pattern {
				t.Errorf("pattern = %q, want %q", k.Pattern, c.pattern)
			}
		})
	}
}

func TestKeyFor_TokenOnlyInStem(t *testing.T) {
	k := KeyFor("report.12345")
	if k.Ext != ".12345" || k.Token != "" || k.Pattern != "report.12345" {
		t.Errorf("key = %+v", k)
	}
}

func TestKeyFor_Empty(t *testing.T) {
	for _, name := range []string{"", "   "} {
		if p := KeyFor(name).Pattern; p != "" {
			t.Errorf("KeyFor(%q).Pattern = %q, want empty", name, p)
		}
	}
}
