// Package state holds the data fetched for each endpoint during a pass.
//
// # Overview
//
// The Store is the single place where endpoint results meet their
// consumers: the file publisher, the script injector, the declaration
// emitter and the watch dashboard. It is keyed by endpoint URL and holds at
// most one Entry per URL.
//
//	Producers (one goroutine per endpoint):   Consumers:
//	┌──────────────────────┐                ┌─────────────────────┐
//	│ fetch / fallback     │                │ inject.Tags()       │
//	│        ↓             │   (RWMutex)    │ declare.Emit()      │
//	│ store.Put(entry)     │───────────────→│ store.Snapshot()    │
//	└──────────────────────┘                └─────────────────────┘
//
// # Ordering
//
// Endpoints are processed concurrently, so completion order is arbitrary.
// Declare fixes the iteration order to the configured endpoint order before
// a pass starts; Entries and Snapshot always follow it. This keeps injected
// scripts and generated declarations stable from build to build.
//
// # Overwrite Semantics
//
// Every pass re-populates the entries. Put replaces the whole Entry for a
// URL, so processing the same endpoint twice with the same outcome leaves
// exactly one entry with that outcome.
//
// # Pass Bookkeeping
//
// BeginPass and EndPass track the pass counter, the phase, the last pass
// duration and consecutive failures. Failed passes keep the previous
// entries and record the error, mirroring how the dashboard keeps showing
// the last good data while a rebuild is failing.
//
// # Defensive Copying
//
// Put, Get, Entries and Snapshot copy JSON payloads and header maps, so
// callers may mutate what they receive without racing the writers.
//
// # Testing Considerations
//
// The zero value is ready to use:
//
//	store := &state.Store{}
package state
