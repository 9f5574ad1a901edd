// Package app is the composition root of apinline.
//
// Run loads the inliner configuration, builds the compiler and the inliner
// plugin around a shared state.Store and performs a single build or a watch
// loop. In watch mode on a terminal the dashboard from package ui reads the
// same store and tails the build log, which is redirected to
// <out>/.apinline/build.log while the dashboard owns the screen. Quitting
// the dashboard cancels the watch.
//
// LoadOptions merges flags, APINLINE_* environment variables and defaults
// through viper, so APINLINE_PRODUCTION=true turns on production builds in
// CI without changing the command line.
//
// Configuration and filesystem errors are returned and make the process
// exit non-zero. Endpoint failures never are; the plugin falls back and
// logs them.
//
// Access runs the runtime access hook from the command line, resolving a
// variable against a globals manifest or the published data files.
package app
