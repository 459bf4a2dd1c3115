package dialog

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Parth0603/CryptoPulse/internal/market"
	"github.com/Parth0603/CryptoPulse/internal/types"
	"github.com/Parth0603/CryptoPulse/lib/helpers"
)

const maxCoinChoices = 20

// AlertStore persists completed alerts.
type AlertStore interface {
	InsertAlert(owner, coin string, condition types.Condition, price float64) error
}

// FavoriteSource supplies the owner's favorite coins for the selection step.
type FavoriteSource interface {
	Favorites(owner string) ([]string, error)
}

// MarketData is the slice of the market gateway the dialogue needs.
type MarketData interface {
	GetCoin(ctx context.Context, id string) (*types.CoinDetail, error)
	GetTopCoins(ctx context.Context) []types.CoinSummary
}

// Choice is one inline button: a label and the action its callback carries.
type Choice struct {
	Label  string
	Action Action
}

// Reply is what a dialogue step hands back to the transport layer.
type Reply struct {
	Text    string
	Choices []Choice
}

// Machine drives the per-owner alert-creation flow. All state lives in the
// injected Store; the machine itself is stateless and safe for concurrent use.
type Machine struct {
	states    *Store
	market    MarketData
	alerts    AlertStore
	favorites FavoriteSource
}

func NewMachine(states *Store, market MarketData, alerts AlertStore, favorites FavoriteSource) *Machine {
	return &Machine{states: states, market: market, alerts: alerts, favorites: favorites}
}

// Start opens a fresh dialogue for the owner, replacing any in-progress one,
// and offers the coin candidates: favorites first, then the top-10 snapshot,
// deduplicated and capped.
func (m *Machine) Start(ctx context.Context, owner string) Reply {
	m.states.Begin(owner)

	favs, err := m.favorites.Favorites(owner)
	if err != nil {
		log.Errorf("failed to load favorites for %s: %v", owner, err)
	}
	top := m.market.GetTopCoins(ctx)

	var choices []Choice
	seen := make(map[string]bool)
	add := func(id, label string) {
		if seen[id] || len(choices) >= maxCoinChoices {
			return
		}
		seen[id] = true
		choices = append(choices, Choice{
			Label:  label,
			Action: Action{Kind: ActionSelectCoin, Coin: id},
		})
	}

	for _, id := range favs {
		add(id, "⭐ "+id)
	}
	for _, c := range top {
		add(c.ID, fmt.Sprintf("%s (%s)", c.Name, strings.ToUpper(c.Symbol)))
	}

	if len(choices) == 0 {
		// Nothing to pick from; do not leave a dialogue dangling.
		m.states.Clear(owner)
		return Reply{Text: "Could not fetch any coins right now. Try again in a minute, or use /alert <coin> <op> <price>."}
	}

	return Reply{
		Text:    "Which coin do you want a price alert for?",
		Choices: choices,
	}
}

// Handle applies a decoded callback action to the owner's dialogue.
func (m *Machine) Handle(ctx context.Context, owner string, a Action) (Reply, error) {
	switch a.Kind {
	case ActionSelectCoin:
		return m.selectCoin(ctx, owner, a.Coin), nil
	case ActionSelectCondition:
		return m.selectCondition(owner, a.Condition), nil
	case ActionConfirm:
		return m.confirm(owner, a.Price)
	case ActionEdit:
		return m.edit(owner), nil
	case ActionCancel:
		m.states.Clear(owner)
		return Reply{Text: "Alert creation cancelled."}, nil
	}
	return Reply{}, errors.Errorf("unhandled action kind %d", a.Kind)
}

// HandleText interprets a plain-text message. It intercepts the message only
// when the owner is waiting to enter a price; otherwise the message falls
// through untouched.
func (m *Machine) HandleText(owner, text string) (Reply, bool) {
	st, ok := m.states.Get(owner)
	if !ok || st.Step != StepAwaitingPrice {
		return Reply{}, false
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsInf(price, 0) || math.IsNaN(price) || price <= 0 {
		return Reply{Text: "That doesn't look like a positive number. Send the target price, e.g. 30000."}, true
	}

	st.Step = StepAwaitingConfirm
	m.states.Set(owner, st)

	return Reply{
		Text: fmt.Sprintf("Create this alert?\n\n%s %s $%s", st.Coin, st.Condition, helpers.FormatPriceUS(price)),
		Choices: []Choice{
			{Label: "✅ Confirm", Action: Action{Kind: ActionConfirm, Price: price}},
			{Label: "✏️ Edit", Action: Action{Kind: ActionEdit}},
			{Label: "❌ Cancel", Action: Action{Kind: ActionCancel}},
		},
	}, true
}

func (m *Machine) selectCoin(ctx context.Context, owner, coin string) Reply {
	st, ok := m.states.Get(owner)
	if !ok || st.Step != StepAwaitingCoin {
		return staleReply()
	}

	st.Coin = coin
	st.Step = StepAwaitingCondition
	m.states.Set(owner, st)

	// Detail fetch is best effort; on failure show the bare id.
	heading := coin
	if detail, err := m.market.GetCoin(ctx, coin); err != nil {
		log.Errorf("failed to fetch %s during coin selection: %v", coin, err)
	} else {
		heading = fmt.Sprintf("%s (%s) is at $%s", detail.Name, strings.ToUpper(detail.Symbol), helpers.FormatPriceUS(detail.PriceUSD))
	}

	return Reply{
		Text:    heading + "\n\nWhen should I alert you?",
		Choices: conditionChoices(),
	}
}

func (m *Machine) selectCondition(owner string, cond types.Condition) Reply {
	st, ok := m.states.Get(owner)
	if !ok || st.Step != StepAwaitingCondition {
		return staleReply()
	}

	st.Condition = cond
	st.Step = StepAwaitingPrice
	m.states.Set(owner, st)

	return Reply{Text: fmt.Sprintf("Send me the target price for %s (a positive number).", st.Coin)}
}

func (m *Machine) confirm(owner string, price float64) (Reply, error) {
	st, ok := m.states.Get(owner)
	if !ok || st.Step != StepAwaitingConfirm {
		return staleReply(), nil
	}
	if math.IsInf(price, 0) || math.IsNaN(price) || price <= 0 {
		return Reply{Text: "That price is not valid. Start over with /alert."}, nil
	}

	if err := m.alerts.InsertAlert(owner, st.Coin, st.Condition, price); err != nil {
		return Reply{}, errors.Wrap(err, "failed to save alert")
	}

	m.states.Clear(owner)
	return Reply{
		Text: fmt.Sprintf("✅ Alert created: %s %s $%s", st.Coin, st.Condition, helpers.FormatPriceUS(price)),
	}, nil
}

func (m *Machine) edit(owner string) Reply {
	st, ok := m.states.Get(owner)
	if !ok || st.Step != StepAwaitingConfirm {
		return staleReply()
	}

	// The entered price is discarded; condition and price are re-asked.
	st.Condition = ""
	st.Step = StepAwaitingCondition
	m.states.Set(owner, st)

	return Reply{
		Text:    fmt.Sprintf("Editing the alert for %s. When should I alert you?", st.Coin),
		Choices: conditionChoices(),
	}
}

// CreateOneShot handles the single-command form `/alert <coin> <op> <price>`,
// bypassing the dialogue. The coin must exist upstream.
func (m *Machine) CreateOneShot(ctx context.Context, owner, coin, op, priceText string) (Reply, error) {
	cond := types.Condition(op)
	if !cond.Valid() {
		return Reply{Text: "The condition must be one of >, < or =."}, nil
	}

	price, err := strconv.ParseFloat(priceText, 64)
	if err != nil || math.IsInf(price, 0) || math.IsNaN(price) || price <= 0 {
		return Reply{Text: "The price must be a positive number."}, nil
	}

	detail, err := m.market.GetCoin(ctx, coin)
	if err != nil {
		if errors.Is(err, market.ErrCoinNotFound) {
			return Reply{Text: fmt.Sprintf("I don't know the coin %q. Coin ids are lowercase slugs like bitcoin.", coin)}, nil
		}
		return Reply{}, errors.Wrapf(err, "failed to verify coin %s", coin)
	}

	if err := m.alerts.InsertAlert(owner, detail.ID, cond, price); err != nil {
		return Reply{}, errors.Wrap(err, "failed to save alert")
	}

	return Reply{
		Text: fmt.Sprintf("✅ Alert created: %s %s $%s", detail.ID, cond, helpers.FormatPriceUS(price)),
	}, nil
}

func conditionChoices() []Choice {
	return []Choice{
		{Label: "> above", Action: Action{Kind: ActionSelectCondition, Condition: types.ConditionAbove}},
		{Label: "< below", Action: Action{Kind: ActionSelectCondition, Condition: types.ConditionBelow}},
		{Label: "= near", Action: Action{Kind: ActionSelectCondition, Condition: types.ConditionEqual}},
	}
}

func staleReply() Reply {
	return Reply{Text: "That choice is no longer active. Start over with /alert."}
}
