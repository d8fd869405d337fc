package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/podpulse/podpulse/internal/httpmw"
	"github.com/podpulse/podpulse/internal/log"
)

type Options struct {
	Logger log.Logger
	Host   string
	Port   int

	UseRecoverMW bool
	// OnPanic feeds the panic counter when the recover middleware fires.
	OnPanic func()

	MetricsMW   func(http.Handler) http.Handler
	RateLimitMW func(http.Handler) http.Handler

	ClientIPOpts httpmw.ClientIPOptions

	// APIRoutes registers the probe endpoints on the router.
	APIRoutes func(chi.Router)

	// SiteHandler serves the landing page at / (and anything unrouted).
	SiteHandler http.Handler
}
