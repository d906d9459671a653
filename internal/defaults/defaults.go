// Package defaults provides embedded copies of the example config and
// env files for the memorytest init subcommand.
package defaults

import _ "embed"

// ConfigYAML is the example configuration file.
//
//go:embed config.example.yaml
var ConfigYAML []byte

// EnvExample is the example .env file. init writes it out as
// .env.example so it never shadows a real .env.
//
//go:embed env.example
var EnvExample []byte
