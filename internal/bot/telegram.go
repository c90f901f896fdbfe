package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sentinel/internal/domain"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

const commandTimeout = 20 * time.Second

type Predictor interface {
	Predict(ctx context.Context, mode domain.AssetMode, symbol string) (*domain.Analysis, error)
}

type HistoryQuerier interface {
	History(ctx context.Context, mode domain.AssetMode, symbol, interval string, limit int) ([]domain.PriceBar, error)
}

type ChartRenderer interface {
	RenderAnalysis(a *domain.Analysis) ([]byte, error)
}

// StartTelegramBot registers the bot commands and starts long polling. It
// returns nil when no token is configured.
func StartTelegramBot(token string, predictor Predictor, history HistoryQuerier, renderer ChartRenderer) *AlertDispatcher {
	logger := log.With().Str("component", "telegram_bot").Logger()
	if token == "" {
		logger.Info().Msg("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create Telegram bot")
		return nil
	}
	alerts := NewAlertDispatcher(b)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/predict", func(c tele.Context) error {
		mode, symbol, err := parseAssetArgs(c.Args())
		if err != nil {
			return c.Send("Usage: /predict BTCUSDT | /predict IBM stock")
		}
		_ = c.Notify(tele.Typing)

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		analysis, err := predictor.Predict(ctx, mode, symbol)
		if err != nil {
			logger.Warn().Err(err).Str("symbol", symbol).Msg("predict command failed")
			return c.Send(fmt.Sprintf("Could not analyse %s: %v", symbol, err))
		}
		return sendAnalysis(c, renderer, analysis)
	})

	b.Handle("/history", func(c tele.Context) error {
		mode, symbol, err := parseAssetArgs(c.Args())
		if err != nil {
			return c.Send("Usage: /history BTCUSDT | /history IBM stock")
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		bars, err := history.History(ctx, mode, symbol, domain.DefaultInterval, domain.DefaultLimit)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching history for %s: %v", symbol, err))
		}
		return c.Send(formatHistory(symbol, bars))
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}

		cmd, err := parseAlertCommand(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on [crypto|stock] | /alerts off | /alerts status")
		}

		switch cmd.action {
		case "on":
			if alerts.Subscribe(chat.ID, cmd.mode) {
				return c.Send("Signal alerts enabled for " + describeAlertScope(cmd.mode) + ".")
			}
			return c.Send("Signal alerts are already enabled for " + describeAlertScope(cmd.mode) + ".")
		case "off":
			if alerts.Unsubscribe(chat.ID) {
				return c.Send("Signal alerts disabled for this chat.")
			}
			return c.Send("Signal alerts are already disabled for this chat.")
		default:
			if mode, ok := alerts.Subscription(chat.ID); ok {
				return c.Send("Alerts status: ON (" + describeAlertScope(mode) + ")")
			}
			return c.Send("Alerts status: OFF")
		}
	})

	logger.Info().Msg("Telegram bot started")
	go b.Start()
	return alerts
}

// parseAssetArgs reads "SYMBOL [crypto|stock]". The mode may come first.
func parseAssetArgs(args []string) (domain.AssetMode, string, error) {
	mode := domain.ModeCrypto
	symbol := ""
	for _, raw := range args {
		arg := strings.TrimSpace(raw)
		if arg == "" {
			continue
		}
		lower := strings.ToLower(arg)
		if lower == "crypto" || lower == "stock" || lower == "stocks" {
			mode, _ = domain.ParseAssetMode(lower)
			continue
		}
		if symbol != "" {
			return "", "", errors.New("multiple symbols provided")
		}
		normalized, ok := domain.NormalizeSymbol(arg)
		if !ok {
			return "", "", fmt.Errorf("invalid symbol %q", arg)
		}
		symbol = normalized
	}
	if symbol == "" {
		if len(args) == 0 {
			return "", "", errors.New("missing symbol")
		}
		symbol = domain.DefaultSymbol(mode)
	}
	return mode, symbol, nil
}

func formatPrediction(a *domain.Analysis) string {
	p := a.Prediction
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) %s\n", a.Symbol, a.Mode, p.Signal)
	fmt.Fprintf(&b, "Price: $%.2f\n", a.LastPrice)
	fmt.Fprintf(&b, "Confidence: %d%%\n", p.Confidence)
	fmt.Fprintf(&b, "RSI(14): %d", p.RSIValue)
	if p.Trend4h != "" {
		fmt.Fprintf(&b, "\nTrend: %s", p.Trend4h)
	}
	if p.VolumeAnalysis != "" {
		fmt.Fprintf(&b, "\nVolume: %s", p.VolumeAnalysis)
	}
	if n := len(p.PredictedData); n > 0 {
		target := p.PredictedData[n-1]
		fmt.Fprintf(&b, "\n%d-day projection: $%.2f", n, target.Value)
	}
	for _, s := range p.Signals {
		b.WriteString("\n- " + s)
	}
	return b.String()
}

func formatHistory(symbol string, bars []domain.PriceBar) string {
	if len(bars) == 0 {
		return symbol + ": no data"
	}
	first, last := bars[0], bars[len(bars)-1]
	high, low := last.High, last.Low
	for _, bar := range bars {
		high = max(high, bar.High)
		low = min(low, bar.Low)
	}
	change := 0.0
	if first.Close != 0 {
		change = (last.Close - first.Close) / first.Close * 100
	}
	return fmt.Sprintf(
		"%s last %d bars\nClose: $%.2f on %s\nRange: $%.2f - $%.2f\nChange: %+.2f%%",
		symbol, len(bars), last.Close,
		time.Unix(last.Time, 0).UTC().Format("2006-01-02"),
		low, high, change,
	)
}

func sendAnalysis(c tele.Context, renderer ChartRenderer, a *domain.Analysis) error {
	caption := formatPrediction(a)
	if renderer == nil {
		return c.Send(caption)
	}
	img, err := renderer.RenderAnalysis(a)
	if err != nil || len(img) == 0 {
		return c.Send(caption)
	}
	photo := &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(img)),
		Caption: caption,
	}
	return c.Send(photo)
}
