package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"sentinel/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// AlertDispatcher tracks the last alerted signal per mode:symbol and pushes
// BUY/SELL changes to subscribed chats. A chat may restrict its alerts to one
// asset mode; an empty mode means every mode.
type AlertDispatcher struct {
	sender messageSender

	mu         sync.Mutex
	chats      map[int64]domain.AssetMode
	lastSignal map[string]domain.TradeSignal
}

func NewAlertDispatcher(sender messageSender) *AlertDispatcher {
	return &AlertDispatcher{
		sender:     sender,
		chats:      make(map[int64]domain.AssetMode),
		lastSignal: make(map[string]domain.TradeSignal),
	}
}

// Subscribe enables alerts for chatID filtered to mode. It reports whether
// anything changed.
func (d *AlertDispatcher) Subscribe(chatID int64, mode domain.AssetMode) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if current, ok := d.chats[chatID]; ok && current == mode {
		return false
	}
	d.chats[chatID] = mode
	return true
}

func (d *AlertDispatcher) Unsubscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.chats[chatID]
	delete(d.chats, chatID)
	return ok
}

// Subscription returns the mode filter of chatID and whether it is subscribed.
func (d *AlertDispatcher) Subscription(chatID int64) (domain.AssetMode, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mode, ok := d.chats[chatID]
	return mode, ok
}

// NotifyAnalyses alerts subscribers about symbols whose signal moved to BUY
// or SELL since the previous call. HOLD results only re-arm the symbol.
func (d *AlertDispatcher) NotifyAnalyses(ctx context.Context, analyses []*domain.Analysis) error {
	if d == nil || d.sender == nil || len(analyses) == 0 {
		return nil
	}

	changed, chats := d.advance(analyses)
	if len(changed) == 0 {
		return nil
	}

	var errs []error
	for _, chat := range chats {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		selected := filterByMode(changed, chat.mode)
		if len(selected) == 0 {
			continue
		}
		if _, err := d.sender.Send(&tele.Chat{ID: chat.id}, formatAlertMessage(selected)); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chat.id, err))
		}
	}
	return errors.Join(errs...)
}

type alertTarget struct {
	id   int64
	mode domain.AssetMode
}

// advance records the new signals and returns the changed analyses together
// with a sorted snapshot of the subscribers.
func (d *AlertDispatcher) advance(analyses []*domain.Analysis) ([]*domain.Analysis, []alertTarget) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var changed []*domain.Analysis
	for _, a := range analyses {
		if a == nil || a.Prediction == nil {
			continue
		}
		key := string(a.Mode) + ":" + a.Symbol
		sig := a.Prediction.Signal
		if prev := d.lastSignal[key]; sig != domain.SignalHold && sig != prev {
			changed = append(changed, a)
		}
		d.lastSignal[key] = sig
	}

	chats := make([]alertTarget, 0, len(d.chats))
	for id, mode := range d.chats {
		chats = append(chats, alertTarget{id: id, mode: mode})
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].id < chats[j].id })
	return changed, chats
}

func filterByMode(analyses []*domain.Analysis, mode domain.AssetMode) []*domain.Analysis {
	if mode == "" {
		return analyses
	}
	var out []*domain.Analysis
	for _, a := range analyses {
		if a.Mode == mode {
			out = append(out, a)
		}
	}
	return out
}

type alertCommand struct {
	action string // on, off or status
	mode   domain.AssetMode
}

// parseAlertCommand reads "/alerts [on [crypto|stock] | off | status]".
func parseAlertCommand(args []string) (alertCommand, error) {
	if len(args) == 0 {
		return alertCommand{action: "status"}, nil
	}

	action := strings.ToLower(strings.TrimSpace(args[0]))
	switch action {
	case "off", "status":
		if len(args) > 1 {
			return alertCommand{}, fmt.Errorf("unexpected argument %q", args[1])
		}
		return alertCommand{action: action}, nil
	case "on":
		if len(args) == 1 {
			return alertCommand{action: action}, nil
		}
		if len(args) > 2 || strings.TrimSpace(args[1]) == "" {
			return alertCommand{}, fmt.Errorf("usage: /alerts on [crypto|stock]")
		}
		mode, ok := domain.ParseAssetMode(args[1])
		if !ok {
			return alertCommand{}, fmt.Errorf("unknown mode %q", args[1])
		}
		return alertCommand{action: action, mode: mode}, nil
	}
	return alertCommand{}, fmt.Errorf("unknown action %q", args[0])
}

func describeAlertScope(mode domain.AssetMode) string {
	if mode == "" {
		return "all assets"
	}
	return string(mode) + " only"
}

func formatAlertMessage(analyses []*domain.Analysis) string {
	var b strings.Builder
	b.WriteString("Signal alert:")
	for _, a := range analyses {
		fmt.Fprintf(&b, "\n%s %s confidence %d%% RSI %d at $%.2f",
			a.Symbol, a.Prediction.Signal, a.Prediction.Confidence, a.Prediction.RSIValue, a.LastPrice)
	}
	return b.String()
}
