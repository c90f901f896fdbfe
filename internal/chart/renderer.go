package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sort"

	"sentinel/internal/domain"
	"sentinel/internal/indicator"
)

const (
	defaultChartWidth  = 960
	defaultChartHeight = 640
	maxChartBars       = 120
	dashLength         = 6

	MimeType = "image/png"
)

var (
	colBackground = color.RGBA{R: 250, G: 252, B: 255, A: 255}
	colGrid       = color.RGBA{R: 225, G: 232, B: 240, A: 255}
	colBull       = color.RGBA{R: 18, G: 140, B: 126, A: 255}
	colBear       = color.RGBA{R: 210, G: 61, B: 87, A: 255}
	colWick       = color.RGBA{R: 58, G: 64, B: 90, A: 255}
	colMarker     = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colFast       = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colSlow       = color.RGBA{R: 255, G: 149, B: 0, A: 255}
	colProjection = color.RGBA{R: 142, G: 68, B: 173, A: 255}
	colBand       = color.RGBA{R: 104, G: 122, B: 146, A: 255}
	colVolume     = color.RGBA{R: 120, G: 139, B: 164, A: 255}
)

// Renderer draws candlestick charts with EMA overlays, the projected path,
// a volume pane and an RSI pane.
type Renderer struct {
	Width     int
	Height    int
	FastEMA   int
	SlowEMA   int
	RSIPeriod int
}

func NewRenderer() *Renderer {
	return &Renderer{
		Width:     defaultChartWidth,
		Height:    defaultChartHeight,
		FastEMA:   20,
		SlowEMA:   50,
		RSIPeriod: indicator.DefaultRSIPeriod,
	}
}

// RenderAnalysis renders the history and projection of an analysis as PNG.
func (r *Renderer) RenderAnalysis(a *domain.Analysis) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil analysis: %w", domain.ErrInvalidInput)
	}
	return r.Render(a.History, a.Prediction)
}

// Render draws bars and, when prediction is non-nil, its projected points
// to the right of the last bar. The last bar is marked in the signal color.
func (r *Renderer) Render(bars []domain.PriceBar, prediction *domain.PredictionResult) ([]byte, error) {
	series := normalizeBars(bars)
	if len(series) < 2 {
		return nil, fmt.Errorf("need at least 2 bars to render chart: %w", domain.ErrInsufficientData)
	}

	// EMAs are computed on the full series so the visible window starts warm.
	closes := indicator.Closes(series)
	fast, err := indicator.EMA(closes, r.FastEMA)
	if err != nil {
		return nil, err
	}
	slow, err := indicator.EMA(closes, r.SlowEMA)
	if err != nil {
		return nil, err
	}
	rsi := rsiSeries(closes, r.RSIPeriod)

	if len(series) > maxChartBars {
		cut := len(series) - maxChartBars
		series, fast, slow, rsi = series[cut:], fast[cut:], slow[cut:], rsi[cut:]
	}

	var projected []domain.ProjectedPoint
	if prediction != nil {
		projected = prediction.PredictedData
	}
	slots := len(series) + len(projected)

	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	fill(img, img.Bounds(), colBackground)

	left, right := 60, r.Width-20
	priceLo, priceHi := priceBounds(series, fast, slow, projected)
	price := newPane(img, image.Rect(left, 20, right, r.Height*62/100), slots, priceLo, priceHi)
	volumes := indicator.Volumes(series)
	_, volHi := finiteBounds(volumes)
	vol := newPane(img, image.Rect(left, price.rect.Max.Y+10, right, r.Height*76/100), slots, 0, volHi)
	osc := newPane(img, image.Rect(left, vol.rect.Max.Y+10, right, r.Height-30), slots, 0, 100)

	price.grid(8, 6)
	vol.grid(8, 1)
	osc.grid(8, 3)

	price.candles(series)
	price.polyline(slow, colSlow)
	price.polyline(fast, colFast)

	last := len(series) - 1
	markX := price.x(last)
	stroke(img, image.Pt(markX, price.rect.Min.Y), image.Pt(markX, price.rect.Max.Y), signalColor(prediction), 0)

	from := image.Pt(markX, price.y(series[last].Close))
	for i, p := range projected {
		to := image.Pt(price.x(len(series)+i), price.y(p.Value))
		stroke(img, from, to, colProjection, dashLength)
		from = to
	}

	vol.columns(volumes, colVolume)

	osc.level(30, colBand)
	osc.level(70, colBand)
	osc.polyline(rsi, colFast)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func normalizeBars(in []domain.PriceBar) []domain.PriceBar {
	out := append([]domain.PriceBar(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func signalColor(prediction *domain.PredictionResult) color.RGBA {
	if prediction == nil {
		return colMarker
	}
	switch prediction.Signal {
	case domain.SignalBuy:
		return colBull
	case domain.SignalSell:
		return colBear
	}
	return colMarker
}

func priceBounds(bars []domain.PriceBar, fast, slow []float64, projected []domain.ProjectedPoint) (float64, float64) {
	minPrice := bars[0].Low
	maxPrice := bars[0].High
	consider := func(v float64) {
		if !finite(v) {
			return
		}
		minPrice = math.Min(minPrice, v)
		maxPrice = math.Max(maxPrice, v)
	}
	for i, b := range bars {
		consider(b.Low)
		consider(b.High)
		consider(fast[i])
		consider(slow[i])
	}
	for _, p := range projected {
		consider(p.Value)
	}
	if maxPrice <= minPrice {
		maxPrice = minPrice + 1
	}
	return minPrice, maxPrice
}

// rsiSeries evaluates the engine RSI at every bar; bars before the first
// full window are NaN.
func rsiSeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
		if period <= 0 || i < period {
			continue
		}
		v, err := indicator.RSI(closes[:i+1], period)
		if err == nil {
			out[i] = v
		}
	}
	return out
}

// pane maps slot indexes and values onto a rectangle of the image. Slot 0
// sits on the left edge and slot n-1 on the right edge.
type pane struct {
	img    *image.RGBA
	rect   image.Rectangle
	slots  int
	lo, hi float64
}

func newPane(img *image.RGBA, rect image.Rectangle, slots int, lo, hi float64) pane {
	return pane{img: img, rect: rect, slots: slots, lo: lo, hi: hi}
}

func (p pane) x(slot int) int {
	if p.slots <= 1 {
		return p.rect.Min.X
	}
	return p.rect.Min.X + slot*(p.rect.Dx()-1)/(p.slots-1)
}

// y clamps v into [lo, hi] so out-of-range values stay on the pane edge.
func (p pane) y(v float64) int {
	if p.hi <= p.lo {
		return p.rect.Max.Y
	}
	frac := math.Max(0, math.Min(1, (v-p.lo)/(p.hi-p.lo)))
	return p.rect.Max.Y - int(frac*float64(p.rect.Dy()-1))
}

func (p pane) slotWidth(minWidth int) int {
	return max(minWidth, (p.rect.Dx()-10)/max(1, p.slots)-1)
}

func (p pane) grid(cols, rows int) {
	for i := 0; i <= cols; i++ {
		x := p.rect.Min.X + p.rect.Dx()*i/max(1, cols)
		stroke(p.img, image.Pt(x, p.rect.Min.Y), image.Pt(x, p.rect.Max.Y), colGrid, 0)
	}
	for i := 0; i <= rows; i++ {
		y := p.rect.Min.Y + p.rect.Dy()*i/max(1, rows)
		stroke(p.img, image.Pt(p.rect.Min.X, y), image.Pt(p.rect.Max.X, y), colGrid, 0)
	}
}

func (p pane) level(v float64, col color.RGBA) {
	y := p.y(v)
	stroke(p.img, image.Pt(p.rect.Min.X, y), image.Pt(p.rect.Max.X, y), col, 0)
}

func (p pane) candles(bars []domain.PriceBar) {
	half := p.slotWidth(3) / 2
	for i, b := range bars {
		x := p.x(i)
		stroke(p.img, image.Pt(x, p.y(b.High)), image.Pt(x, p.y(b.Low)), colWick, 0)

		top, bottom := p.y(math.Max(b.Open, b.Close)), p.y(math.Min(b.Open, b.Close))
		bottom = max(bottom, top+2)
		body := colBull
		if b.Close < b.Open {
			body = colBear
		}
		fill(p.img, image.Rect(x-half, top, x+half+1, bottom+1), body)
	}
}

// polyline joins consecutive finite values; NaN breaks the line.
func (p pane) polyline(values []float64, col color.RGBA) {
	var prev image.Point
	connected := false
	for i, v := range values {
		if !finite(v) {
			connected = false
			continue
		}
		pt := image.Pt(p.x(i), p.y(v))
		if connected {
			stroke(p.img, prev, pt, col, 0)
		}
		prev, connected = pt, true
	}
}

func (p pane) columns(values []float64, col color.RGBA) {
	half := p.slotWidth(1) / 2
	base := p.y(0)
	for i, v := range values {
		if !finite(v) {
			continue
		}
		x, y := p.x(i), p.y(v)
		fill(p.img, image.Rect(x-half, min(y, base), x+half+1, max(y, base)+1), col)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finiteBounds returns the range of the finite values, widened to a unit
// range when flat and defaulting to [0, 1] when there are none.
func finiteBounds(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if finite(v) {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	switch {
	case lo > hi:
		return 0, 1
	case lo == hi:
		return lo, hi + 1
	}
	return lo, hi
}

func fill(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	r := rect.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

// stroke rasterizes a segment by stepping along its longer axis. A positive
// dash alternates drawn and skipped runs of that many pixels.
func stroke(img *image.RGBA, from, to image.Point, col color.RGBA, dash int) {
	d := to.Sub(from)
	steps := max(absInt(d.X), absInt(d.Y))
	for i := 0; i <= steps; i++ {
		if dash > 0 && (i/dash)%2 == 1 {
			continue
		}
		pt := from
		if steps > 0 {
			pt = image.Pt(
				from.X+int(math.Round(float64(d.X*i)/float64(steps))),
				from.Y+int(math.Round(float64(d.Y*i)/float64(steps))),
			)
		}
		if pt.In(img.Bounds()) {
			img.SetRGBA(pt.X, pt.Y, col)
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
