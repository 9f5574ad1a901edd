// Package config loads and validates the inliner configuration.
//
// # Overview
//
// A configuration lists the remote JSON endpoints to bake into the build plus
// global settings that every endpoint inherits unless it overrides them.
// Files may be TOML, YAML or JSON; the extension picks the decoder and all
// three use the same camelCase keys.
//
// # Precedence
//
// Optional settings are pointers or zero values. An unset endpoint field
// falls back to the global field, and an unset global field falls back to
// the built-in default. The endpoint package performs that resolution; this
// package only stores what the user wrote.
//
// # Default Values
//
//   - variablePrefix: API_DATA
//   - requestTimeout: 5000 (milliseconds, or a duration string like "5s")
//   - retryCount: 2 (three attempts in total)
//   - retryDelay: 0 (retries are immediate)
//   - outputPath: api-data
//   - declarationFilePath: api-inliner.d.ts
//   - defaultType: any
//   - manifestFile: globals.json ("off" disables it)
//   - alwaysFetchFromApi, inlineAsVariable, saveAsFile, emitDeclarationFile: true
//   - production: false
//
// # TOML Format
//
//	variablePrefix = "API_DATA"
//	retryCount = 3
//
//	[[endpoints]]
//	url = "https://api.example.com/v1/top-podcasts"
//	outputFile = "top-podcasts.json"
//	typeReference = "PodcastList"
//	fallbackData = { items = [] }
//
// # Validation
//
// Validate fails fast with ErrInvalidConfig before any request is made: the
// endpoint list must be non-empty, every url must be an absolute http(s)
// URL and unique, and every endpoint that writes a file needs its own
// outputFile under outputPath.
package config
