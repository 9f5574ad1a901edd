// Package compiler is a minimal static-site build host with plugin hooks.
//
// A build copies every regular file of the source tree into the output
// directory. Plugins observe and change builds through Hooks:
//
//	Run:    BeforeRun → ThisCompilation → HTML alter → emit → AfterEmit
//	Watch:  WatchRun  → ThisCompilation → HTML alter → emit → AfterEmit
//
// The HTML stage exists only when Options.HTML is set; Compilation.HTML
// returns nil otherwise, and plugins that depend on it must tolerate that.
//
// Watch polls file sizes and modification times on a fixed interval.
// Failed rebuilds back off exponentially up to 30 seconds.
package compiler
