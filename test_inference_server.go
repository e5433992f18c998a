package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"
)

type TranscriptionChunk struct {
	Text      string     `json:"text"`
	Timestamp [2]float64 `json:"timestamp"`
}

type TranscriptionResponse struct {
	Text   string               `json:"text"`
	Chunks []TranscriptionChunk `json:"chunks"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var supportedModels = map[string]bool{
	"openai/whisper-tiny":      true,
	"openai/whisper-tiny.en":   true,
	"openai/whisper-base":      true,
	"openai/whisper-base.en":   true,
	"openai/whisper-small":     true,
	"openai/whisper-small.en":  true,
	"openai/whisper-medium":    true,
	"openai/whisper-medium.en": true,
	"openai/whisper-large-v3":  true,
}

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form
	err := r.ParseMultipartForm(32 << 20) // 32 MB
	if err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	model := r.FormValue("model")
	sampleRate := r.FormValue("sample_rate")
	requestID := r.FormValue("request_id")
	chunkLength := r.FormValue("chunk_length_s")
	strideLength := r.FormValue("stride_length_s")
	language := r.FormValue("language")

	// Get audio file
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

	log.Printf("🎤 TRANSCRIPTION REQUEST RECEIVED:")
	log.Printf("  Request ID: %s", requestID)
	log.Printf("  Model: %s", model)
	log.Printf("  Sample Rate: %s Hz", sampleRate)
	log.Printf("  Chunk Length: %s s", chunkLength)
	log.Printf("  Stride Length: %s s", strideLength)
	log.Printf("  Language: %s", language)
	log.Printf("  Filename: %s", header.Filename)
	log.Printf("  Audio Size: %d bytes", len(audioData))

	// Simulate model loading failure for unknown models
	if !supportedModels[model] {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error: "failed to load model " + model,
			Code:  "model_load_error",
		})
		log.Printf("❌ MODEL LOAD ERROR SENT: unknown model '%s'", model)
		return
	}

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	// Create fake transcription response
	response := TranscriptionResponse{
		Text: "Це тестова транскрипція аудіо файлу з українською мовою",
		Chunks: []TranscriptionChunk{
			{Text: "Це тестова транскрипція", Timestamp: [2]float64{0.0, 2.5}},
			{Text: "аудіо файлу з українською мовою", Timestamp: [2]float64{2.5, 5.0}},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ TRANSCRIPTION RESPONSE SENT: '%s'", response.Text)
	log.Println("---")
}

func main() {
	http.HandleFunc("/transcribe", transcribeHandler)

	port := ":9000"
	log.Printf("🚀 Test Inference Server starting on port %s", port)
	log.Printf("📡 Endpoint: http://localhost%s/transcribe", port)
	log.Println("💡 Update your config to use: http://localhost:9000/transcribe")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
