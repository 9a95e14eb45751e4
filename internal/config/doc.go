// Package config provides configuration structures and utilities for queuelab.
// It defines the command line options, the .queuelab file format with its
// scenarios and asset jobs, and the built-in scenarios used when no file is
// present.
package config
