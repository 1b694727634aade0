// Package api exposes the relay's HTTP surface and owns request admission:
// fingerprint, rate check, quota check, provider call, commit, respond.
package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flickerlabs/flicker-relay/internal/ledger"
	"github.com/flickerlabs/flicker-relay/internal/metrics"
	"github.com/flickerlabs/flicker-relay/internal/provider"
	"github.com/flickerlabs/flicker-relay/internal/ratelimit"
)

// Version reported by the info and health endpoints.
const Version = "2.0"

// Settings is the handler-facing configuration snapshot, re-fetched per
// request so config reloads apply without restart.
type Settings struct {
	SystemPrompt    string
	ImageAnalysis   bool
	ImageGeneration bool
}

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() Settings

// Options wires the handler dependencies.
type Options struct {
	Ledger   *ledger.Ledger
	Limiter  *ratelimit.Manager
	Provider provider.Provider
	Metrics  *metrics.Metrics
	Settings SettingsProvider
	Model    string
}

// NewRouter builds the gin engine with all routes and middleware attached.
func NewRouter(opts Options) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID(), AccessLog())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	engine.Use(cors.New(corsCfg))

	h := newChatHandler(opts)
	engine.POST("/", h.Chat)
	engine.GET("/", h.Info)
	engine.GET("/usage", h.Usage)
	engine.GET("/health", h.Health)

	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			opts.Metrics.Registry(), promhttp.HandlerOpts{},
		)))
	}
	return engine
}
