// Package vad provides energy-based Voice Activity Detection.
// It partitions a buffer prefix into fixed-size windows, scores each window
// by mean absolute amplitude, and reports the sample range spanning all
// windows above an adaptive threshold.
package vad
