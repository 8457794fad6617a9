// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"agent-wallet-service/internal/handler"
	"agent-wallet-service/pkg/cache"
	mw "agent-wallet-service/pkg/middleware"
	"agent-wallet-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RateLimit configures the /prompt limiter. A nil Cache disables it.
type RateLimit struct {
	Cache         *cache.Cache
	Limit         int
	Window        time.Duration
	BlockDuration time.Duration
}

type Options struct {
	AllowedOrigins []string
	RateLimit      RateLimit
	WebhookPath    string
}

func SetupRoutes(
	promptHandler *handler.PromptHandler,
	telegramHandler *handler.TelegramHandler,
	opts Options,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Server is running"))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"service": "agent-wallet-service"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// ============================================
	// PROMPT (web front end)
	// ============================================
	r.Group(func(r chi.Router) {
		if opts.RateLimit.Cache != nil {
			r.Use(mw.RateLimiter(
				opts.RateLimit.Cache,
				opts.RateLimit.Limit,
				opts.RateLimit.Window,
				opts.RateLimit.BlockDuration,
				"prompt",
				logger,
			))
		}
		r.Post("/prompt", promptHandler.HandlePrompt)
	})

	// ============================================
	// TELEGRAM WEBHOOK
	// ============================================
	if telegramHandler != nil && opts.WebhookPath != "" {
		r.Post(opts.WebhookPath, telegramHandler.HandleWebhook)
	}

	return r
}
