package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func boolPtr(v bool) *bool { return &v }

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apinline.toml")
	if err := os.WriteFile(path, []byte(`
variablePrefix = "PODR"
requestTimeout = 2500
retryCount = 4
retryDelay = "250ms"

[[endpoints]]
url = "https://api.example.com/v1/top-podcasts"
outputFile = "top.json"
typeReference = "PodcastList"
fallbackData = { items = [] }

[endpoints.requestOptions]
method = "POST"
headers = { Authorization = "Bearer x" }
`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.VariablePrefix != "PODR" {
		t.Fatalf("VariablePrefix = %q, want PODR", cfg.VariablePrefix)
	}
	if got := cfg.RequestTimeout.Std(); got != 2500*time.Millisecond {
		t.Fatalf("RequestTimeout = %v, want 2.5s", got)
	}
	if got := cfg.RetryDelay.Std(); got != 250*time.Millisecond {
		t.Fatalf("RetryDelay = %v, want 250ms", got)
	}
	if cfg.RetryCount == nil || *cfg.RetryCount != 4 {
		t.Fatalf("RetryCount = %v, want 4", cfg.RetryCount)
	}
	if len(cfg.Endpoints) != 1 {
		t.Fatalf("len(Endpoints) = %d, want 1", len(cfg.Endpoints))
	}
	ep := cfg.Endpoints[0]
	if ep.RequestOptions == nil || ep.RequestOptions.Method != "POST" {
		t.Fatalf("RequestOptions = %+v, want POST", ep.RequestOptions)
	}
	if ep.RequestOptions.Headers["Authorization"] != "Bearer x" {
		t.Fatalf("Headers = %v", ep.RequestOptions.Headers)
	}
	fallback, ok, err := FallbackJSON(ep)
	if err != nil || !ok {
		t.Fatalf("FallbackJSON = %s, %v, %v", fallback, ok, err)
	}
	if string(fallback) != `{"items":[]}` {
		t.Fatalf("fallback = %s, want {\"items\":[]}", fallback)
	}
}

func TestLoad_YAMLNormalizesFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apinline.yaml")
	if err := os.WriteFile(path, []byte(`
requestTimeout: 3s
endpoints:
  - url: https://api.example.com/feed
    outputFile: feed.json
    fallbackData:
      episodes:
        - id: 1
          title: Pilot
`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := cfg.RequestTimeout.Std(); got != 3*time.Second {
		t.Fatalf("RequestTimeout = %v, want 3s", got)
	}
	fallback, ok, err := FallbackJSON(cfg.Endpoints[0])
	if err != nil || !ok {
		t.Fatalf("FallbackJSON = %s, %v, %v", fallback, ok, err)
	}
	if string(fallback) != `{"episodes":[{"id":1,"title":"Pilot"}]}` {
		t.Fatalf("fallback = %s", fallback)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apinline.json")
	if err := os.WriteFile(path, []byte(`{
  "saveAsFile": false,
  "endpoints": [{"url": "https://api.example.com/a", "variableName": "A"}]
}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.SaveAsFile == nil || *cfg.SaveAsFile {
		t.Fatalf("SaveAsFile = %v, want false", cfg.SaveAsFile)
	}
	if cfg.Endpoints[0].VariableName != "A" {
		t.Fatalf("VariableName = %q", cfg.Endpoints[0].VariableName)
	}
}

func TestLoad_ErrorsOnMissingFileAndUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatal("Load of missing file returned nil error")
	}
	ini := filepath.Join(dir, "config.ini")
	if err := os.WriteFile(ini, []byte("x=1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(ini); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load(.ini) error = %v, want ErrInvalidConfig", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Endpoint{URL: "https://api.example.com/a", OutputFile: "a.json"}

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"no endpoints", Config{}, "at least one endpoint"},
		{"missing url", Config{Endpoints: []Endpoint{{OutputFile: "a.json"}}}, "missing a url"},
		{"relative url", Config{Endpoints: []Endpoint{{URL: "/v1/a", OutputFile: "a.json"}}}, "absolute http(s)"},
		{"duplicate url", Config{Endpoints: []Endpoint{valid, {URL: valid.URL, OutputFile: "b.json"}}}, "share url"},
		{"missing output file", Config{Endpoints: []Endpoint{{URL: "https://api.example.com/a"}}}, "no outputFile"},
		{"duplicate output file", Config{Endpoints: []Endpoint{valid, {URL: "https://api.example.com/b", OutputFile: "./a.json"}}}, "both write"},
		{"escaping output file", Config{Endpoints: []Endpoint{{URL: "https://api.example.com/a", OutputFile: "../a.json"}}}, "escapes outputPath"},
		{"manifest collision", Config{Endpoints: []Endpoint{{URL: "https://api.example.com/a", OutputFile: "globals.json"}}}, "manifestFile"},
		{"negative retries", Config{Endpoints: []Endpoint{valid}, RetryCount: func() *int { n := -1; return &n }()}, "retryCount"},
		{"no file needed", Config{Endpoints: []Endpoint{{URL: "https://api.example.com/a", SaveAsFile: boolPtr(false)}}}, ""},
		{"global save off", Config{SaveAsFile: boolPtr(false), Endpoints: []Endpoint{{URL: "https://api.example.com/a"}}}, ""},
		{"valid", Config{Endpoints: []Endpoint{valid}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestManifest(t *testing.T) {
	if got := (Config{}).Manifest(); got != DefaultManifestFile {
		t.Fatalf("Manifest() = %q, want %q", got, DefaultManifestFile)
	}
	if got := (Config{ManifestFile: "off"}).Manifest(); got != "" {
		t.Fatalf("Manifest() = %q, want empty", got)
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/apinline.toml")
	if err != nil {
		t.Fatalf("ExpandPath returned error: %v", err)
	}
	if got != filepath.Join(home, "apinline.toml") {
		t.Fatalf("ExpandPath = %q, want %q", got, filepath.Join(home, "apinline.toml"))
	}
	if _, err := ExpandPath("   "); err == nil {
		t.Fatal("ExpandPath(blank) returned nil error")
	}
}
