package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig marks every configuration problem detected before any
// network activity happens.
var ErrInvalidConfig = errors.New("invalid inliner configuration")

// Format identifies the encoding of a configuration document.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

const (
	DefaultVariablePrefix      = "API_DATA"
	DefaultRequestTimeout      = 5 * time.Second
	DefaultRetryCount          = 2
	DefaultOutputPath          = "api-data"
	DefaultDeclarationFilePath = "api-inliner.d.ts"
	DefaultType                = "any"
	DefaultManifestFile        = "globals.json"
)

// RequestOptions are passed through to the HTTP request for one endpoint.
type RequestOptions struct {
	Method  string            `toml:"method" yaml:"method" json:"method,omitempty"`
	Headers map[string]string `toml:"headers" yaml:"headers" json:"headers,omitempty"`
	Body    string            `toml:"body" yaml:"body" json:"body,omitempty"`
}

// Endpoint describes one remote JSON resource. Pointer fields are unset when
// nil and fall back to the global value, then to the built-in default.
type Endpoint struct {
	URL                string          `toml:"url" yaml:"url" json:"url"`
	OutputFile         string          `toml:"outputFile" yaml:"outputFile" json:"outputFile,omitempty"`
	FallbackData       any             `toml:"fallbackData" yaml:"fallbackData" json:"fallbackData,omitempty"`
	InlineAsVariable   *bool           `toml:"inlineAsVariable" yaml:"inlineAsVariable" json:"inlineAsVariable,omitempty"`
	VariableName       string          `toml:"variableName" yaml:"variableName" json:"variableName,omitempty"`
	SaveAsFile         *bool           `toml:"saveAsFile" yaml:"saveAsFile" json:"saveAsFile,omitempty"`
	RequestOptions     *RequestOptions `toml:"requestOptions" yaml:"requestOptions" json:"requestOptions,omitempty"`
	TypeReference      string          `toml:"typeReference" yaml:"typeReference" json:"typeReference,omitempty"`
	AlwaysFetchFromAPI *bool           `toml:"alwaysFetchFromApi" yaml:"alwaysFetchFromApi" json:"alwaysFetchFromApi,omitempty"`
	Production         *bool           `toml:"production" yaml:"production" json:"production,omitempty"`
}

// Config is the global inliner configuration.
type Config struct {
	Endpoints           []Endpoint `toml:"endpoints" yaml:"endpoints" json:"endpoints"`
	Production          *bool      `toml:"production" yaml:"production" json:"production,omitempty"`
	AlwaysFetchFromAPI  *bool      `toml:"alwaysFetchFromApi" yaml:"alwaysFetchFromApi" json:"alwaysFetchFromApi,omitempty"`
	InlineAsVariable    *bool      `toml:"inlineAsVariable" yaml:"inlineAsVariable" json:"inlineAsVariable,omitempty"`
	SaveAsFile          *bool      `toml:"saveAsFile" yaml:"saveAsFile" json:"saveAsFile,omitempty"`
	VariablePrefix      string     `toml:"variablePrefix" yaml:"variablePrefix" json:"variablePrefix,omitempty"`
	RequestTimeout      Duration   `toml:"requestTimeout" yaml:"requestTimeout" json:"requestTimeout,omitempty"`
	RetryCount          *int       `toml:"retryCount" yaml:"retryCount" json:"retryCount,omitempty"`
	RetryDelay          Duration   `toml:"retryDelay" yaml:"retryDelay" json:"retryDelay,omitempty"`
	OutputPath          string     `toml:"outputPath" yaml:"outputPath" json:"outputPath,omitempty"`
	EmitDeclarationFile *bool      `toml:"emitDeclarationFile" yaml:"emitDeclarationFile" json:"emitDeclarationFile,omitempty"`
	DeclarationFilePath string     `toml:"declarationFilePath" yaml:"declarationFilePath" json:"declarationFilePath,omitempty"`
	DefaultType         string     `toml:"defaultType" yaml:"defaultType" json:"defaultType,omitempty"`
	ManifestFile        string     `toml:"manifestFile" yaml:"manifestFile" json:"manifestFile,omitempty"`
}

// Load reads the configuration file at path, choosing the decoder from the
// file extension, and validates the result.
func Load(path string) (Config, error) {
	resolved, err := expandPath(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	format, err := formatFor(resolved)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte, format Format) (Config, error) {
	var cfg Config
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse toml: %v", ErrInvalidConfig, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse yaml: %v", ErrInvalidConfig, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse json: %v", ErrInvalidConfig, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: unsupported format %q", ErrInvalidConfig, format)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("%w: at least one endpoint is required", ErrInvalidConfig)
	}
	if c.RetryCount != nil && *c.RetryCount < 0 {
		return fmt.Errorf("%w: retryCount must not be negative", ErrInvalidConfig)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("%w: requestTimeout must not be negative", ErrInvalidConfig)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retryDelay must not be negative", ErrInvalidConfig)
	}

	manifest := c.Manifest()
	seenURL := make(map[string]int, len(c.Endpoints))
	seenFile := make(map[string]int, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		raw := strings.TrimSpace(ep.URL)
		if raw == "" {
			return fmt.Errorf("%w: endpoint %d is missing a url", ErrInvalidConfig, i)
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: endpoint %d url %q is not an absolute http(s) url", ErrInvalidConfig, i, raw)
		}
		if prev, ok := seenURL[raw]; ok {
			return fmt.Errorf("%w: endpoints %d and %d share url %q", ErrInvalidConfig, prev, i, raw)
		}
		seenURL[raw] = i

		if !c.saves(ep) {
			continue
		}
		if strings.TrimSpace(ep.OutputFile) == "" {
			return fmt.Errorf("%w: endpoint %q saves to a file but has no outputFile", ErrInvalidConfig, raw)
		}
		file := filepath.Clean(strings.TrimSpace(ep.OutputFile))
		if filepath.IsAbs(file) || file == ".." || strings.HasPrefix(file, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%w: endpoint %q outputFile %q escapes outputPath", ErrInvalidConfig, raw, ep.OutputFile)
		}
		if prev, ok := seenFile[file]; ok {
			return fmt.Errorf("%w: endpoints %d and %d both write %q", ErrInvalidConfig, prev, i, file)
		}
		if manifest != "" && file == filepath.Clean(manifest) {
			return fmt.Errorf("%w: endpoint %q outputFile collides with manifestFile %q", ErrInvalidConfig, raw, manifest)
		}
		seenFile[file] = i
	}
	return nil
}

// saves resolves the saveAsFile flag for validation only; the endpoint
// resolver owns the full decision.
func (c Config) saves(ep Endpoint) bool {
	if ep.SaveAsFile != nil {
		return *ep.SaveAsFile
	}
	if c.SaveAsFile != nil {
		return *c.SaveAsFile
	}
	return true
}

// Manifest returns the globals manifest file name; empty disables it.
func (c Config) Manifest() string {
	switch strings.TrimSpace(c.ManifestFile) {
	case "":
		return DefaultManifestFile
	case "-", "none", "off":
		return ""
	default:
		return strings.TrimSpace(c.ManifestFile)
	}
}

// FallbackJSON returns the endpoint's fallback value encoded as compact JSON.
// ok is false when the endpoint declares no fallback.
func FallbackJSON(ep Endpoint) (json.RawMessage, bool, error) {
	if ep.FallbackData == nil {
		return nil, false, nil
	}
	data, err := json.Marshal(normalize(ep.FallbackData))
	if err != nil {
		return nil, false, fmt.Errorf("encode fallback for %s: %w", ep.URL, err)
	}
	return json.RawMessage(data), true, nil
}

// normalize turns YAML-decoded map[any]any values into JSON-encodable maps.
func normalize(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

func formatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unrecognised config extension %q", ErrInvalidConfig, filepath.Ext(path))
	}
}

// ExpandPath resolves a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
