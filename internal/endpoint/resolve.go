package endpoint

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cascadiacollections/apinline/internal/config"
)

// Decision is the resolved, immutable view of one endpoint: every optional
// setting has been settled through endpoint, global and default tiers.
type Decision struct {
	URL                    string
	ShouldFetchFromAPI     bool
	ShouldSaveAsFile       bool
	ShouldInlineAsVariable bool
	VariableName           string
	// OutputPath is {outputDir}/{outputPath}/{outputFile}; empty when the
	// endpoint is not published as a file.
	OutputPath    string
	TypeReference string
	Method        string
	Headers       map[string]string
	Body          string
	Timeout       time.Duration
	RetryCount    int
	RetryDelay    time.Duration
}

// Resolve settles the effective settings for ep. outputDir is the build
// output directory that outputPath is relative to.
func Resolve(cfg config.Config, ep config.Endpoint, outputDir string) Decision {
	production := pick(ep.Production, cfg.Production, false)
	alwaysFetch := pick(ep.AlwaysFetchFromAPI, cfg.AlwaysFetchFromAPI, true)

	d := Decision{
		URL:                    ep.URL,
		ShouldFetchFromAPI:     alwaysFetch || production,
		ShouldSaveAsFile:       pick(ep.SaveAsFile, cfg.SaveAsFile, true),
		ShouldInlineAsVariable: pick(ep.InlineAsVariable, cfg.InlineAsVariable, true),
		TypeReference:          firstNonEmpty(ep.TypeReference, cfg.DefaultType, config.DefaultType),
		Method:                 http.MethodGet,
		Timeout:                config.DefaultRequestTimeout,
		RetryCount:             pick(nil, cfg.RetryCount, config.DefaultRetryCount),
		RetryDelay:             cfg.RetryDelay.Std(),
	}
	if cfg.RequestTimeout > 0 {
		d.Timeout = cfg.RequestTimeout.Std()
	}

	if name := strings.TrimSpace(ep.VariableName); name != "" {
		d.VariableName = name
	} else {
		d.VariableName = VariableName(ep.URL, firstNonEmpty(cfg.VariablePrefix, config.DefaultVariablePrefix))
	}

	if d.ShouldSaveAsFile && strings.TrimSpace(ep.OutputFile) != "" {
		d.OutputPath = filepath.Join(dataDir(cfg, outputDir), strings.TrimSpace(ep.OutputFile))
	}

	if opts := ep.RequestOptions; opts != nil {
		if m := strings.TrimSpace(opts.Method); m != "" {
			d.Method = strings.ToUpper(m)
		}
		if len(opts.Headers) > 0 {
			d.Headers = make(map[string]string, len(opts.Headers))
			for k, v := range opts.Headers {
				d.Headers[k] = v
			}
		}
		d.Body = opts.Body
	}
	return d
}

// ResolveAll resolves every configured endpoint in declaration order.
func ResolveAll(cfg config.Config, outputDir string) []Decision {
	out := make([]Decision, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		out = append(out, Resolve(cfg, ep, outputDir))
	}
	return out
}

// OutputDir returns the configured outputPath or its default.
func OutputDir(cfg config.Config) string {
	return firstNonEmpty(cfg.OutputPath, config.DefaultOutputPath)
}

// ManifestPath returns where the globals manifest is written, or empty when
// the manifest is disabled.
func ManifestPath(cfg config.Config, outputDir string) string {
	name := cfg.Manifest()
	if name == "" {
		return ""
	}
	return filepath.Join(dataDir(cfg, outputDir), name)
}

// dataDir is where endpoint files and the manifest are written. A relative
// outputPath lives under outputDir; an absolute one is used as is.
func dataDir(cfg config.Config, outputDir string) string {
	dir := OutputDir(cfg)
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(outputDir, dir)
}

// DeclarationPath returns the declaration file location. Relative paths are
// taken relative to outputDir.
func DeclarationPath(cfg config.Config, outputDir string) string {
	p := firstNonEmpty(cfg.DeclarationFilePath, config.DefaultDeclarationFilePath)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(outputDir, p)
}

// EmitsDeclarations reports whether the declaration file is enabled.
func EmitsDeclarations(cfg config.Config) bool {
	return pick(nil, cfg.EmitDeclarationFile, true)
}

// pick returns the first set value of the endpoint and global tiers, else def.
func pick[T any](endpoint, global *T, def T) T {
	if endpoint != nil {
		return *endpoint
	}
	if global != nil {
		return *global
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
