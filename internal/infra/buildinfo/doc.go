// Package buildinfo reports the version of the running binary.
//
// Release builds inject values via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/snapkeep/internal/infra/buildinfo.Version=v1.0.0"
//
// Without ldflags the module version and VCS stamp recorded by the Go
// toolchain are used where available.
package buildinfo
