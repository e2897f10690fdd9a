// Package config provides snapkeep configuration.
//
//   - spec.go: Config struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation
//   - load.go: Loading through internal/infra/confloader
//
// Stale-record age and rotation count have global defaults. A project that
// needs different values points --config at its own file.
package config
