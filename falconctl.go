// Package falconctl orchestrates table extractions performed by the
// firebird_peregrine_falcon extractor.
package falconctl

// Version is the falconctl release, overridden at build time with -ldflags.
var Version = "0.1.0-dev"
