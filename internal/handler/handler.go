package handler

import (
	"net/http"
	"time"

	"sentinel/internal/chart"
	"sentinel/internal/metrics"
	"sentinel/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer            trace.Tracer
	marketService     *service.MarketService
	predictionService *service.PredictionService
	renderer          *chart.Renderer
	metrics           *metrics.Metrics
}

func New(
	tracer trace.Tracer,
	marketService *service.MarketService,
	predictionService *service.PredictionService,
	renderer *chart.Renderer,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		tracer:            tracer,
		marketService:     marketService,
		predictionService: predictionService,
		renderer:          renderer,
		metrics:           m,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/binance", h.BinanceProxy)
	r.GET("/api/history/:mode/:symbol", h.GetHistory)
	r.GET("/api/predict/:mode/:symbol", h.GetPrediction)
	r.GET("/api/chart/:mode/:symbol", h.GetChart)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

// CORSMiddleware allows the listed origins; "*" or an empty list allows all.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// Health godoc
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.health")
	defer span.End()

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch service.ErrorKind(err) {
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindInsufficientData:
		return http.StatusUnprocessableEntity
	case service.KindNoData:
		return http.StatusNotFound
	case service.KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
