// Package confloader provides configuration loading mechanism.
//
// This package implements a flexible configuration loader that supports
// multiple sources using koanf as the underlying library.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables (SNAPKEEP_SECTION_KEY)
//  3. .env files
//  4. Configuration file (YAML)
//  5. Default values
//
// Watcher reports changes to the configuration file so long-running
// commands can reload it.
package confloader
