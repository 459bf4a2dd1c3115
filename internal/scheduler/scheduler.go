package scheduler

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Parth0603/CryptoPulse/internal/types"
	"github.com/Parth0603/CryptoPulse/lib/helpers"
)

const (
	defaultInterval = 2 * time.Minute

	// perAlertTimeout bounds one price lookup, covering the gateway's full
	// pacing and retry budget (4 paced attempts plus 1s+2s+4s backoff).
	perAlertTimeout = 30 * time.Second

	// equalTolerance is the relative band for "=" alerts: within 1% of the
	// threshold counts as equal, boundary inclusive.
	equalTolerance = 0.01
)

// AlertSource is the slice of the store the evaluator needs.
type AlertSource interface {
	AllAlerts() ([]types.Alert, error)
	DeleteAlert(id int64) error
}

// MarketData supplies live prices.
type MarketData interface {
	GetCoin(ctx context.Context, id string) (*types.CoinDetail, error)
}

// Notifier delivers one message to an owner.
type Notifier interface {
	Notify(owner, text string) error
}

// Evaluator periodically checks every stored alert against the live price
// and fires-and-deletes the ones whose condition holds.
type Evaluator struct {
	alerts   AlertSource
	market   MarketData
	notifier Notifier
	interval time.Duration
}

func NewEvaluator(alerts AlertSource, market MarketData, notifier Notifier) *Evaluator {
	return &Evaluator{
		alerts:   alerts,
		market:   market,
		notifier: notifier,
		interval: defaultInterval,
	}
}

// Run evaluates alerts on a fixed period until the context is cancelled.
// The first pass happens right away so a restart does not leave alerts
// unchecked for a whole interval.
func (e *Evaluator) Run(ctx context.Context) {
	log.Infof("alert evaluator started, interval %s", e.interval)

	e.CheckAlerts(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert evaluator stopped")
			return
		case <-ticker.C:
			e.CheckAlerts(ctx)
		}
	}
}

// CheckAlerts runs one evaluation pass. Failures for individual alerts are
// logged and skipped; one bad alert never stops the batch.
func (e *Evaluator) CheckAlerts(ctx context.Context) {
	alerts, err := e.alerts.AllAlerts()
	if err != nil {
		log.Errorf("failed to load alerts: %v", err)
		return
	}

	log.Debugf("checking %d alerts", len(alerts))

	for _, alert := range alerts {
		if ctx.Err() != nil {
			return
		}
		e.checkOne(ctx, alert)
	}
}

func (e *Evaluator) checkOne(ctx context.Context, alert types.Alert) {
	callCtx, cancel := context.WithTimeout(ctx, perAlertTimeout)
	defer cancel()

	detail, err := e.market.GetCoin(callCtx, alert.Coin)
	if err != nil {
		log.Errorf("failed to fetch price for alert %d (%s): %v", alert.ID, alert.Coin, err)
		return
	}

	if !Triggered(alert.Condition, detail.PriceUSD, alert.Price) {
		return
	}

	text := fmt.Sprintf(
		"🔔 %s (%s) is now at $%s — your alert %s $%s fired.",
		detail.Name,
		strings.ToUpper(detail.Symbol),
		helpers.FormatPriceUS(detail.PriceUSD),
		alert.Condition,
		helpers.FormatPriceUS(alert.Price),
	)

	if err := e.notifier.Notify(alert.Owner, text); err != nil {
		log.Errorf("failed to notify owner %s for alert %d: %v", alert.Owner, alert.ID, err)
	}

	// Fire-once: the alert is retired even if the delivery failed, so it can
	// never notify twice.
	if err := e.alerts.DeleteAlert(alert.ID); err != nil {
		log.Errorf("failed to delete triggered alert %d: %v", alert.ID, err)
		return
	}

	log.Infof("alert %d triggered and removed (%s %s %f)", alert.ID, alert.Coin, alert.Condition, alert.Price)
}

// Triggered reports whether a condition holds for the current price. ">" and
// "<" are strict; "=" uses a 1% tolerance band around the threshold.
func Triggered(cond types.Condition, price, threshold float64) bool {
	switch cond {
	case types.ConditionAbove:
		return price > threshold
	case types.ConditionBelow:
		return price < threshold
	case types.ConditionEqual:
		return math.Abs(price-threshold) <= equalTolerance*threshold
	}
	return false
}
