// Package access is the runtime side of the inliner: it resolves a variable
// from the published globals and falls back to fetching its JSON data file.
package access
