// Package config loads clustercored's YAML configuration file: node
// identity and storage location, the action client's address, and the
// tunables SPEC_FULL.md's configuration table exposes (AAS poll
// interval, target merge policy). Durations are written as strings
// (e.g. "10s") since gopkg.in/yaml.v3 has no built-in time.Duration
// decoding.
package config
