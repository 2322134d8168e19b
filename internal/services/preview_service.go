package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// previewTimeout caps the outbound embeddability probe; a slow or dead site
// must not stall the builder UI.
const previewTimeout = 2500 * time.Millisecond

const previewCacheTTL = 10 * time.Minute

// PreviewService checks whether a project URL can be rendered in an iframe.
type PreviewService struct {
	redis  *redis.Client
	client *http.Client
}

func NewPreviewService(redisClient *redis.Client) *PreviewService {
	return &PreviewService{
		redis:  redisClient,
		client: &http.Client{Timeout: previewTimeout},
	}
}

type PreviewResult struct {
	CanEmbed bool   `json:"canEmbed"`
	Error    string `json:"error,omitempty"`
}

// CheckEmbeddability reports whether a URL allows iframe embedding
// @Summary Check URL embeddability
// @Tags preview
// @Produce json
// @Security BearerAuth
// @Param url query string true "URL to probe"
// @Success 200 {object} PreviewResult
// @Failure 400 {object} ErrorResponse
// @Router /preview [get]
func (s *PreviewService) CheckEmbeddability(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		SendErrorResponse(w, CodeValidation, "Missing url parameter", http.StatusBadRequest, nil)
		return
	}
	if _, err := url.ParseRequestURI(target); err != nil {
		SendErrorResponse(w, CodeValidation, "Invalid url parameter", http.StatusBadRequest, nil)
		return
	}

	ctx := r.Context()
	cacheKey := fmt.Sprintf("preview:%s", target)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var result PreviewResult
			if json.Unmarshal(cached, &result) == nil {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(result)
				return
			}
		}
	}

	result := s.probe(ctx, target)

	if s.redis != nil {
		if payload, err := json.Marshal(result); err == nil {
			if err := s.redis.Set(ctx, cacheKey, payload, previewCacheTTL).Err(); err != nil {
				log.Printf("[PREVIEW] Cache write failed: %v", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// probe issues a HEAD request and inspects the frame-blocking headers. Any
// network failure is reported as not embeddable, never as an HTTP error.
func (s *PreviewService) probe(ctx context.Context, target string) PreviewResult {
	probeCtx, cancel := context.WithTimeout(ctx, previewTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, target, nil)
	if err != nil {
		return PreviewResult{CanEmbed: false, Error: "Failed to verify embeddability"}
	}
	req.Header.Set("User-Agent", "Vamo-Preview-Bot/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return PreviewResult{CanEmbed: false, Error: "Failed to verify embeddability"}
	}
	defer resp.Body.Close()

	xfo := strings.ToLower(resp.Header.Get("X-Frame-Options"))
	if xfo == "deny" || xfo == "sameorigin" {
		return PreviewResult{CanEmbed: false}
	}

	csp := strings.ToLower(resp.Header.Get("Content-Security-Policy"))
	if strings.Contains(csp, "frame-ancestors 'none'") || strings.Contains(csp, "frame-ancestors 'self'") {
		return PreviewResult{CanEmbed: false}
	}

	return PreviewResult{CanEmbed: true}
}
