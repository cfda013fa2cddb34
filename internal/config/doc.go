// Package config defines the YAML configuration document consumed by the
// hvacctl commands and provides helpers to load, validate and save it.
//
// Every field is typed and defaulted at load time; a malformed document
// is rejected before a cycle runs rather than discovered mid-decision.
package config
