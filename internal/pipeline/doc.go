// Package pipeline drives the capture, segmentation, transcription and
// deduplication stages as a single background loop. A Driver owns one
// capture device at a time and emits accepted transcripts on a channel;
// inference runs inline in the loop so at most one request is in flight.
package pipeline
