package config

import "time"

// Config holds the application configuration.
type Config struct {
	// DBPath is the path of the SQLite database file.
	DBPath string

	// Model is the Gemini model used for extraction.
	Model string

	// APIVersion is the Gemini API version.
	APIVersion string

	// Workers bounds the number of files preprocessed and extracted concurrently.
	Workers int

	// ExtractTimeout is the per-file deadline for the external extraction call.
	ExtractTimeout time.Duration
}
