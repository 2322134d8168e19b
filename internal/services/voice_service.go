package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/vamo-app/backend/internal/middleware"
)

// VoiceNoteService turns a founder's recorded update into text they can send
// to the builder chat.
type VoiceNoteService struct {
	client *speech.Client
}

type TranscribeRequest struct {
	Audio        string `json:"audio" validate:"required"`
	Encoding     string `json:"encoding"`
	SampleRate   int    `json:"sampleRate"`
	LanguageCode string `json:"languageCode"`
}

type TranscribeResponse struct {
	Transcript string  `json:"transcript"`
	Confidence float32 `json:"confidence"`
	Duration   float64 `json:"durationSeconds"`
}

func NewVoiceNoteService() *VoiceNoteService {
	ctx := context.Background()
	client, err := speech.NewClient(ctx)
	if err != nil {
		log.Printf("Warning: Failed to initialize speech client: %v", err)
		return &VoiceNoteService{client: nil}
	}
	return &VoiceNoteService{client: client}
}

func (s *VoiceNoteService) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// TranscribeVoiceNote transcribes a recorded founder update
// @Summary Transcribe a voice note
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TranscribeRequest true "Base64 audio"
// @Success 200 {object} TranscribeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /chat/transcribe [post]
func (s *VoiceNoteService) TranscribeVoiceNote(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		SendErrorResponse(w, CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 10 * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req TranscribeRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, CodeValidation, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if req.Audio == "" {
		SendErrorResponse(w, CodeValidation, "Audio is required", http.StatusBadRequest, nil)
		return
	}

	if req.Encoding == "" {
		req.Encoding = "WEBM_OPUS"
	}
	if req.SampleRate == 0 {
		req.SampleRate = 48000
	}
	if req.LanguageCode == "" {
		req.LanguageCode = "en-US"
	}

	start := time.Now()
	transcript, confidence, err := s.Transcribe(r.Context(), req)
	if err != nil {
		log.Printf("[VOICE] Transcription failed for user %s: %v", userID, err)
		SendErrorResponse(w, CodeInternal, "Failed to transcribe audio", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[VOICE] Transcribed voice note for user %s, confidence: %.2f", userID, confidence)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TranscribeResponse{
		Transcript: transcript,
		Confidence: confidence,
		Duration:   time.Since(start).Seconds(),
	})
}

func (s *VoiceNoteService) Transcribe(ctx context.Context, req TranscribeRequest) (string, float32, error) {
	if s.client == nil {
		return "", 0, errors.New("speech client not configured")
	}

	audioBytes, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return "", 0, fmt.Errorf("failed to decode audio: %w", err)
	}
	if len(audioBytes) == 0 {
		return "", 0, errors.New("audio data is empty")
	}

	encoding, err := parseEncoding(req.Encoding)
	if err != nil {
		return "", 0, err
	}

	speechReq := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            int32(req.SampleRate),
			LanguageCode:               req.LanguageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{
				Content: audioBytes,
			},
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := s.client.Recognize(timeoutCtx, speechReq)
	if err != nil {
		return "", 0, fmt.Errorf("recognition failed: %w", err)
	}

	if len(resp.Results) == 0 || len(resp.Results[0].Alternatives) == 0 {
		return "", 0, errors.New("no transcription results")
	}

	best := resp.Results[0].Alternatives[0]
	return best.Transcript, best.Confidence, nil
}

func parseEncoding(name string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch name {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio encoding: %s", name)
	}
}
