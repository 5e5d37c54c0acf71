// Package transcription turns audio segments into text. It defines the
// Transcriber interface consumed by the pipeline and provides three
// implementations: an HTTP client for self-hosted speech-to-text services,
// an OpenAI API client, and a native whisper.cpp backend.
package transcription
