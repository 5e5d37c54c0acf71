// Package audio provides the sample-domain building blocks of the pipeline.
// It implements the capture-to-driver frame queue, the accumulating sample
// buffer, speech segment extraction, and float32/PCM-16 WAV encoding.
package audio
