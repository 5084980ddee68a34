package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Path  string `yaml:"path"`
	Sheet string `yaml:"sheet"`
	Level string `yaml:"level"`
}

func (s *sample) Validate() error {
	if s.Path == "" {
		return errors.New("path: cannot be blank")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("FERRY_TEST_INBOX", "/srv/inbox")
	p := writeConfig(t, "path: ${FERRY_TEST_INBOX}\nlevel: ${FERRY_TEST_UNSET:-debug}\n")

	cfg := &sample{Sheet: "Sheet1"}
	if err := Load(p, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != "/srv/inbox" {
		t.Errorf("path = %q", cfg.Path)
	}
	if cfg.Level != "debug" {
		t.Errorf("level = %q, want fallback", cfg.Level)
	}
	if cfg.Sheet != "Sheet1" {
		t.Errorf("sheet default lost: %q", cfg.Sheet)
	}
}

func TestLoad_Validates(t *testing.T) {
	p := writeConfig(t, "sheet: Routing\n")
	if err := Load(p, &sample{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &sample{}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not exist", err)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FERRY_TEST_SET", "x")
	t.Setenv("FERRY_TEST_EMPTY", "")
	tests := map[string]string{
		"${FERRY_TEST_SET}":          "x",
		"$FERRY_TEST_SET/y":          "x/y",
		"${FERRY_TEST_SET:-z}":       "x",
		"${FERRY_TEST_EMPTY:-z}":     "z",
		"${FERRY_TEST_MISSING}":      "",
		"${FERRY_TEST_MISSING:-a:b}": "a:b",
	}
	for in, want := range tests {
		if got := ExpandEnv(in); got != want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}
