// Package config loads and validates YAML service configuration. Load
// starts from defaults so a config file only needs to override the values
// it cares about.
package config
