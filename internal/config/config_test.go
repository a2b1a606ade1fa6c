package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"ifgstack/internal/config"
	"ifgstack/internal/services"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(tempHome, ".config", "ifgstack", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	wantState := filepath.Join(tempHome, ".local", "state", "ifgstack")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Catalog.Backend != config.CatalogSQLite {
		t.Fatalf("unexpected catalog backend: %q", cfg.Catalog.Backend)
	}
	if cfg.Catalog.SQLitePath != filepath.Join(wantState, "catalog.db") {
		t.Fatalf("unexpected sqlite path: %q", cfg.Catalog.SQLitePath)
	}
	if cfg.LedgerPath() != filepath.Join(wantState, "ledger.db") {
		t.Fatalf("unexpected ledger path: %q", cfg.LedgerPath())
	}
	if cfg.Bundle.IDPrefix != "" || cfg.Bundle.ThumbnailSize != 250 {
		t.Fatalf("unexpected bundle defaults: %+v", cfg.Bundle)
	}
	if cfg.StageTimeout() != 0 {
		t.Fatalf("expected unbounded stage timeout, got %s", cfg.StageTimeout())
	}
	if cfg.Publish.Enabled {
		t.Fatal("expected publish disabled by default")
	}
}

func TestLoadCustomConfigAndEnvFallbacks(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("IFGSTACK_CATALOG_URL", "http://grq.local:9200/")
	t.Setenv("MINIO_ACCESS_KEY", "access")
	t.Setenv("MINIO_SECRET_KEY", "secret")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `[catalog]
backend = "HTTP"

[stages]
timeout_seconds = 3600

[bundle]
id_prefix = "filtered-ifg-stack_"

[publish]
enabled = true
endpoint = "s3.local:9000"
bucket = "products"

[logging]
format = "JSON"
level = "Debug"
dir = "~/logs"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Catalog.Backend != config.CatalogHTTP || cfg.Catalog.URL != "http://grq.local:9200" {
		t.Fatalf("unexpected catalog: %+v", cfg.Catalog)
	}
	if cfg.Publish.AccessKey != "access" || cfg.Publish.SecretKey != "secret" {
		t.Fatalf("expected minio credentials from env, got %+v", cfg.Publish)
	}
	if cfg.StageTimeout().Hours() != 1 {
		t.Fatalf("unexpected stage timeout: %s", cfg.StageTimeout())
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging not normalized: %+v", cfg.Logging)
	}
	if cfg.Logging.Dir != filepath.Join(tempHome, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Logging.Dir)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "http without url", content: "[catalog]\nbackend = \"http\"\n", want: "catalog.url"},
		{name: "unknown backend", content: "[catalog]\nbackend = \"redis\"\n", want: "catalog.backend"},
		{name: "empty filter", content: "[filter]\ncommand = []\n", want: "filter.command"},
		{name: "publish without bucket", content: "[publish]\nenabled = true\nendpoint = \"x:9000\"\n", want: "publish.bucket"},
		{name: "bad format", content: "[logging]\nformat = \"xml\"\n", want: "logging.format"},
		{name: "prefix with slash", content: "[bundle]\nid_prefix = \"a/b\"\n", want: "bundle.id_prefix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("IFGSTACK_CATALOG_URL", "")
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, services.ErrConfig) {
				t.Fatalf("expected ErrConfig marker, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestSampleConfigDecodes(t *testing.T) {
	cfg := config.Default()
	if err := toml.Unmarshal([]byte(config.SampleConfig()), &cfg); err != nil {
		t.Fatalf("sample config does not decode: %v", err)
	}
	if cfg.Bundle.ThumbnailSize != 250 || cfg.Bundle.TimeAxisCommand != "h5dump" {
		t.Fatalf("unexpected sample bundle section %+v", cfg.Bundle)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if string(data) != config.SampleConfig() {
		t.Fatal("sample content mismatch")
	}
}

func TestRequiredBinariesIncludesFilter(t *testing.T) {
	cfg := config.Default()
	got := cfg.RequiredBinaries()
	want := []string{"filter-ifgs", "python2", "PrepIgramStackWrapper.py", "ProcessStackWrapper.py", "h5dump"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("RequiredBinaries = %v, want %v", got, want)
	}
}
