// Package dedup suppresses duplicate and spurious transcription results.
// It keeps the most recently accepted transcript and rejects candidates that
// are too short or already contained in it.
package dedup
