package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "APINLINE"

// Option keys shared by flags, environment variables and defaults.
const (
	keyConfig      = "config"
	keySource      = "src"
	keyOutput      = "out"
	keyWatch       = "watch"
	keyProduction  = "production"
	keyHTML        = "html"
	keyPoll        = "poll"
	keyVerbose     = "verbose"
	keyNoDashboard = "no-dashboard"
	keyPrefs       = "prefs"
)

// Options configure a build run.
type Options struct {
	ConfigPath string
	SourceDir  string
	OutputDir  string
	Watch      bool
	// Production forces the production flag of the inliner config on.
	Production  bool
	HTML        bool
	Poll        time.Duration
	Verbose     bool
	NoDashboard bool
	PrefsPath   string
}

// BindFlags registers the build flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.StringP(keyConfig, "c", "apinline.toml", "inliner configuration file (.toml, .yaml or .json)")
	fs.String(keySource, "src", "source directory copied into the output")
	fs.StringP(keyOutput, "o", "dist", "output directory")
	fs.BoolP(keyWatch, "w", false, "rebuild when the source tree or configuration changes")
	fs.Bool(keyProduction, false, "production build; always fetch from the API")
	fs.Bool(keyHTML, true, "inject inline scripts into HTML documents")
	fs.Duration(keyPoll, time.Second, "watch mode change check interval")
	fs.BoolP(keyVerbose, "v", false, "debug logging")
	fs.Bool(keyNoDashboard, false, "plain log output in watch mode")
	fs.String(keyPrefs, "", "dashboard preferences file (default ~/.config/apinline/prefs.toml)")
}

// LoadOptions merges defaults, APINLINE_* environment variables and flags.
// Flags set on the command line win over the environment.
func LoadOptions(fs *pflag.FlagSet) (Options, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			if err := v.BindPFlag(f.Name, f); err != nil {
				bindErr = fmt.Errorf("bind flag --%s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return Options{}, bindErr
		}
	}

	opts := Options{
		ConfigPath:  v.GetString(keyConfig),
		SourceDir:   v.GetString(keySource),
		OutputDir:   v.GetString(keyOutput),
		Watch:       v.GetBool(keyWatch),
		Production:  v.GetBool(keyProduction),
		HTML:        v.GetBool(keyHTML),
		Poll:        v.GetDuration(keyPoll),
		Verbose:     v.GetBool(keyVerbose),
		NoDashboard: v.GetBool(keyNoDashboard),
		PrefsPath:   v.GetString(keyPrefs),
	}
	if strings.TrimSpace(opts.ConfigPath) == "" {
		return Options{}, errors.New("config path is required")
	}
	if opts.Poll <= 0 {
		opts.Poll = time.Second
	}
	return opts, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyConfig, "apinline.toml")
	v.SetDefault(keySource, "src")
	v.SetDefault(keyOutput, "dist")
	v.SetDefault(keyHTML, true)
	v.SetDefault(keyPoll, time.Second)
}
