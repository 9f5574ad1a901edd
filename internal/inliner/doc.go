// Package inliner fetches the configured API endpoints during a build and
// publishes their data.
//
// Every pass resolves each endpoint, fetches it concurrently with retries
// and falls back to configured data (or {}) when the fetch fails. Results go
// to the shared state.Store, to one JSON file per endpoint and to a globals
// manifest. Once tapped into a compiler.Compiler, the plugin also inlines
// the data into HTML heads as window globals and writes a TypeScript
// declaration file after emit.
//
// Only file system errors fail a build.
package inliner
