// A stub speech-to-text server for local development. It accepts the same
// multipart upload the HTTP transcription backend sends and answers with a
// canned transcript, so the pipeline can be exercised without a real model.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/skypro1111/live-transcription-service/internal/audio"
)

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

var (
	responseText = flag.String("text", "this is a stub transcription of the uploaded segment", "Transcript to return")
	delay        = flag.Duration("delay", 200*time.Millisecond, "Simulated processing time")
	addr         = flag.String("addr", ":9090", "Listen address")
)

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	sampleRate := r.FormValue("sample_rate")
	language := r.FormValue("language")
	model := r.FormValue("model")

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	pcm, wavRate, err := audio.DecodeWAV(audioData)
	if err != nil {
		log.Printf("rejecting upload %s: %v", header.Filename, err)
		http.Error(w, "Invalid WAV payload", http.StatusBadRequest)
		return
	}

	samples := audio.PCM16ToFloat32(pcm)
	var peak float32
	for _, s := range samples {
		if s > peak {
			peak = s
		} else if -s > peak {
			peak = -s
		}
	}
	duration := float64(len(samples)) / float64(wavRate)

	log.Printf("transcription request: file=%s samples=%d rate=%d duration=%.2fs peak=%.3f sample_rate=%s language=%s model=%s",
		header.Filename, len(samples), wavRate, duration, peak, sampleRate, language, model)

	// Simulate processing time
	time.Sleep(*delay)

	response := transcriptionResponse{
		Text:     *responseText,
		Language: language,
		Duration: duration,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("transcription response sent: %q", response.Text)
}

func main() {
	flag.Parse()

	http.HandleFunc("/transcribe", transcribeHandler)

	log.Printf("Stub transcription server listening on %s", *addr)
	log.Printf("Endpoint: http://localhost%s/transcribe", *addr)

	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
