// Package config provides configuration types and loading utilities for the
// stanza agent runtime. This file defines the interface every configuration
// section implements.
package config

// Section is implemented by every configuration block so that defaulting and
// validation can cascade uniformly from the root Config.
type Section interface {
	// Validate checks if the configuration is valid and returns an error if not
	Validate() error

	// SetDefaults sets default values for any unset fields
	SetDefaults()
}
