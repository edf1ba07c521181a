package tts

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// DefaultSpeaker is used when a synthesis request names no voice.
const DefaultSpeaker = "aidar"

// Handler proxies the speech endpoints to the upstream synthesis service.
type Handler struct {
	client *Client
}

// NewHandler creates a Handler backed by client.
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// Register mounts the speech routes on the given router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/speak", h.HandleSpeak).Methods(http.MethodPost)
	r.HandleFunc("/api/speakers", h.HandleSpeakers).Methods(http.MethodGet)
	r.HandleFunc("/api/health", h.HandleHealth).Methods(http.MethodGet)
}

type speakRequest struct {
	Text    string `json:"text"`
	Speaker string `json:"speaker"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

// HandleSpeak synthesizes the posted text and returns it as a one-off WAV
// attachment. The download name carries a random suffix so browsers never
// reuse a cached clip for different text.
func (h *Handler) HandleSpeak(w http.ResponseWriter, r *http.Request) {
	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		log.Printf("Rejected synthesis request from %s: missing 'text'", r.RemoteAddr)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing 'text' in request"})
		return
	}

	speaker := req.Speaker
	if speaker == "" {
		speaker = DefaultSpeaker
	}

	audio, err := h.client.Synthesize(r.Context(), req.Text, speaker)
	if err != nil {
		log.Printf("Speech synthesis failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=speech_%s_%s.wav", speaker, suffix))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	if _, err := w.Write(audio); err != nil {
		log.Printf("Error writing audio response: %v", err)
	}
}

// HandleSpeakers lists the voices available upstream.
func (h *Handler) HandleSpeakers(w http.ResponseWriter, r *http.Request) {
	speakers, err := h.client.Speakers(r.Context())
	if err != nil {
		log.Printf("Speaker listing failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"speakers": speakers})
}

// HandleHealth reports whether the upstream synthesis service is reachable
// and ready.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "TTS server is running"})
}
