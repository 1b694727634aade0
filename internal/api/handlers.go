package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/flickerlabs/flicker-relay/internal/classify"
	"github.com/flickerlabs/flicker-relay/internal/identity"
	"github.com/flickerlabs/flicker-relay/internal/imaging"
	"github.com/flickerlabs/flicker-relay/internal/ledger"
	"github.com/flickerlabs/flicker-relay/internal/metrics"
	"github.com/flickerlabs/flicker-relay/internal/provider"
	"github.com/flickerlabs/flicker-relay/internal/ratelimit"
)

// User-facing error strings. Internal detail goes to logs, never to the
// response body.
const (
	msgRateLimited     = "Rate limit exceeded. Please wait a moment and try again."
	msgInvalidRequest  = "Please provide a message or an image."
	msgGenerationError = "Generation failed. Please try again later."
)

type chatHandler struct {
	ledger   *ledger.Ledger
	limiter  *ratelimit.Manager
	provider provider.Provider
	metrics  *metrics.Metrics
	settings SettingsProvider
	model    string
}

func newChatHandler(opts Options) *chatHandler {
	return &chatHandler{
		ledger:   opts.Ledger,
		limiter:  opts.Limiter,
		provider: opts.Provider,
		metrics:  opts.Metrics,
		settings: opts.Settings,
		model:    opts.Model,
	}
}

type chatRequest struct {
	Message string `json:"message"`
	Image   string `json:"image"`
}

// Chat serves POST /. The admission sequence is fixed: fingerprint, rate
// check, validation, classification, quota check, provider call, commit.
// The cheap in-memory check runs first and the ledger is only charged after
// the provider call succeeded, so a failed generation never consumes quota.
func (h *chatHandler) Chat(c *gin.Context) {
	id := identity.Fingerprint(c.ClientIP(), c.Request.UserAgent())

	rateResult, errAllow := h.limiter.Allow(c.Request.Context(), id)
	if errAllow != nil {
		log.WithError(errAllow).Warn("chat: rate limiter error, admitting")
	} else if !rateResult.Allowed {
		h.metrics.ObserveRejection("rate")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": msgRateLimited})
		return
	}

	var req chatRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" && strings.TrimSpace(req.Image) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}

	cfg := h.settings()
	if cfg.ImageGeneration && classify.IsImageGeneration(req.Message) {
		h.generateImage(c, id, req.Message)
		return
	}
	h.answerQuestion(c, id, req, cfg)
}

// answerQuestion handles the text path, optionally grounding the prompt on
// an attached image.
func (h *chatHandler) answerQuestion(c *gin.Context, id string, req chatRequest, cfg Settings) {
	check := h.ledger.CheckAndGet(c.Request.Context(), id, ledger.CategoryQuestions)
	if !check.Admitted {
		h.metrics.ObserveRejection("quota")
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Usage limit reached: %d of %d questions used. Your quota resets %s.",
				check.Current, check.Max, check.Period),
		})
		return
	}

	genReq := provider.TextRequest{
		SystemPrompt: cfg.SystemPrompt,
		Message:      req.Message,
	}
	if strings.TrimSpace(req.Image) != "" && cfg.ImageAnalysis {
		processed, errProcess := imaging.Process(req.Image)
		if errProcess != nil {
			log.WithError(errProcess).WithField("user", identity.Short(id)).Info("chat: image rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Image processing failed: " + errProcess.Error()})
			return
		}
		genReq.Image = &provider.ImagePayload{MIMEType: processed.MIMEType, Data: processed.Data}
	}

	start := time.Now()
	reply, errGen := h.provider.GenerateText(c.Request.Context(), genReq)
	duration := time.Since(start)
	h.metrics.ObserveProviderCall(h.provider.Name(), string(ledger.CategoryQuestions), duration.Seconds())

	if errGen != nil {
		h.metrics.ObserveProviderFailure(h.provider.Name())
		h.metrics.ObserveRequest(string(ledger.CategoryQuestions), "error")
		log.WithError(errGen).WithField("user", identity.Short(id)).Error("chat: provider call failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgGenerationError})
		return
	}

	h.ledger.Commit(c.Request.Context(), id, ledger.CategoryQuestions)
	h.metrics.ObserveRequest(string(ledger.CategoryQuestions), "ok")
	log.WithFields(log.Fields{
		"user":     identity.Short(id),
		"duration": duration.Round(10 * time.Millisecond).String(),
	}).Info("chat: reply generated")

	c.JSON(http.StatusOK, gin.H{
		"reply":               reply,
		"remaining_questions": check.Max - (check.Current + 1),
		"response_time":       roundSeconds(duration),
		"type":                "text",
	})
}

// generateImage handles the image-generation path.
func (h *chatHandler) generateImage(c *gin.Context, id, prompt string) {
	check := h.ledger.CheckAndGet(c.Request.Context(), id, ledger.CategoryImageGenerations)
	if !check.Admitted {
		h.metrics.ObserveRejection("quota")
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Image generation limit reached: %d of %d used. Your quota resets %s.",
				check.Current, check.Max, check.Period),
		})
		return
	}

	start := time.Now()
	imageBytes, errGen := h.provider.GenerateImage(c.Request.Context(), prompt)
	duration := time.Since(start)
	h.metrics.ObserveProviderCall(h.provider.Name(), string(ledger.CategoryImageGenerations), duration.Seconds())

	if errGen != nil {
		h.metrics.ObserveProviderFailure(h.provider.Name())
		h.metrics.ObserveRequest(string(ledger.CategoryImageGenerations), "error")
		log.WithError(errGen).WithField("user", identity.Short(id)).Error("chat: image generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgGenerationError})
		return
	}

	h.ledger.Commit(c.Request.Context(), id, ledger.CategoryImageGenerations)
	h.metrics.ObserveRequest(string(ledger.CategoryImageGenerations), "ok")
	log.WithFields(log.Fields{
		"user":     identity.Short(id),
		"duration": duration.Round(10 * time.Millisecond).String(),
	}).Info("chat: image generated")

	c.JSON(http.StatusOK, gin.H{
		"reply":                 "Here's your generated image!",
		"image":                 "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageBytes),
		"remaining_generations": check.Max - (check.Current + 1),
		"response_time":         roundSeconds(duration),
		"type":                  "image",
	})
}

// Usage serves GET /usage. It runs the same reset-window check as the quota
// path, so an elapsed window zeroes the caller's counters here too.
func (h *chatHandler) Usage(c *gin.Context) {
	id := identity.Fingerprint(c.ClientIP(), c.Request.UserAgent())
	snapshot := h.ledger.Usage(c.Request.Context(), id)
	cfg := h.settings()

	c.JSON(http.StatusOK, gin.H{
		"questions":         snapshot.Questions,
		"image_generations": snapshot.ImageGenerations,
		"reset_period":      snapshot.ResetPeriod,
		"features": gin.H{
			"image_analysis":   cfg.ImageAnalysis,
			"image_generation": cfg.ImageGeneration,
		},
	})
}

// Health serves GET /health.
func (h *chatHandler) Health(c *gin.Context) {
	cfg := h.settings()
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"model":     h.model,
		"features": gin.H{
			"image_analysis":   cfg.ImageAnalysis,
			"image_generation": cfg.ImageGeneration,
		},
	})
}

// Info serves GET /.
func (h *chatHandler) Info(c *gin.Context) {
	cfg := h.settings()
	c.JSON(http.StatusOK, gin.H{
		"message": "Flicker AI is running!",
		"version": Version,
		"model":   h.model,
		"features": gin.H{
			"chat":             true,
			"image_analysis":   cfg.ImageAnalysis,
			"image_generation": cfg.ImageGeneration,
		},
		"endpoints": gin.H{
			"chat":   "POST /",
			"usage":  "GET /usage",
			"health": "GET /health",
		},
	})
}

// roundSeconds formats a duration as seconds with two decimals, matching
// the response_time field clients already parse.
func roundSeconds(d time.Duration) float64 {
	return float64(d.Round(10*time.Millisecond)) / float64(time.Second)
}
