package transcription

import "context"

// Transcriber converts an audio segment into text. Samples are mono float32
// PCM at the pipeline sample rate. Implementations return the raw recognized
// text; trimming and deduplication happen downstream.
//
// The pipeline issues at most one Transcribe call at a time, so
// implementations do not need internal request limiting.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, language string) (string, error)
}
