package handler

import (
	"net/http"
	"strconv"
	"strings"

	"sentinel/internal/chart"
	"sentinel/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// BinanceProxy godoc
// @Summary      Binance klines passthrough
// @Description  Forwards a klines request to Binance and returns the upstream JSON unchanged
// @Tags         market
// @Produce      json
// @Param        symbol    query  string  true   "Trading pair (e.g., BTCUSDT)"
// @Param        interval  query  string  false  "Kline interval"  default(1d)
// @Param        limit     query  int     false  "Number of klines"  default(100)
// @Success      200  {array}   object
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/binance [get]
func (h *Handler) BinanceProxy(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.binance-proxy")
	defer span.End()

	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol is required"})
		return
	}
	interval := c.DefaultQuery("interval", domain.DefaultInterval)
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(domain.DefaultLimit)))
	if err != nil || limit <= 0 {
		limit = domain.DefaultLimit
	}
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("interval", interval))

	raw, err := h.marketService.RawKlines(ctx, symbol, interval, limit)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("symbol", symbol).Msg("binance proxy failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch data"})
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// GetHistory godoc
// @Summary      Get normalized price history
// @Description  Returns ascending OHLCV bars for a crypto pair (Binance) or a stock (Alpha Vantage, daily only)
// @Tags         market
// @Produce      json
// @Param        mode      path   string  true   "Asset mode (crypto or stock)"
// @Param        symbol    path   string  true   "Symbol (e.g., BTCUSDT, IBM)"
// @Param        interval  query  string  false  "Bar interval (1m,5m,15m,1h,4h,1d,1w)"  default(1d)
// @Param        limit     query  int     false  "Number of bars (1-1000)"  default(100)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/history/{mode}/{symbol} [get]
func (h *Handler) GetHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-history")
	defer span.End()

	mode, ok := domain.ParseAssetMode(c.Param("mode"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be crypto or stock"})
		return
	}

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > domain.MaxLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}
	interval := strings.TrimSpace(c.Query("interval"))
	span.SetAttributes(attribute.String("mode", string(mode)), attribute.String("symbol", c.Param("symbol")))

	bars, err := h.marketService.History(ctx, mode, c.Param("symbol"), interval, limit)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	if interval == "" {
		interval = domain.DefaultInterval
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   strings.ToUpper(strings.TrimSpace(c.Param("symbol"))),
		"mode":     mode,
		"interval": interval,
		"bars":     bars,
	})
}

// GetPrediction godoc
// @Summary      Run the signal engine
// @Description  Fetches history for the symbol and returns the trade signal, confidence, RSI and a 7-day projection
// @Tags         prediction
// @Produce      json
// @Param        mode    path  string  true  "Asset mode (crypto or stock)"
// @Param        symbol  path  string  true  "Symbol (e.g., BTCUSDT, IBM)"
// @Success      200  {object}  domain.Analysis
// @Failure      400  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/predict/{mode}/{symbol} [get]
func (h *Handler) GetPrediction(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-prediction")
	defer span.End()

	mode, ok := domain.ParseAssetMode(c.Param("mode"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be crypto or stock"})
		return
	}
	span.SetAttributes(attribute.String("mode", string(mode)), attribute.String("symbol", c.Param("symbol")))

	analysis, err := h.predictionService.Predict(ctx, mode, c.Param("symbol"))
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// GetChart godoc
// @Summary      Render a prediction chart
// @Description  Returns a PNG candlestick chart with EMA lines, the projected path, volume and RSI panes
// @Tags         prediction
// @Produce      png
// @Param        mode    path  string  true  "Asset mode (crypto or stock)"
// @Param        symbol  path  string  true  "Symbol, optionally suffixed with .png"
// @Success      200  {file}    binary
// @Failure      400  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /api/chart/{mode}/{symbol} [get]
func (h *Handler) GetChart(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-chart")
	defer span.End()

	if h.renderer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chart renderer unavailable"})
		return
	}
	mode, ok := domain.ParseAssetMode(c.Param("mode"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be crypto or stock"})
		return
	}
	symbol := strings.TrimSuffix(c.Param("symbol"), ".png")

	analysis, err := h.predictionService.Predict(ctx, mode, symbol)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	img, err := h.renderer.RenderAnalysis(analysis)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, chart.MimeType, img)
}
