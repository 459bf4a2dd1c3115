package dialog

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Parth0603/CryptoPulse/internal/types"
)

// ActionKind tags the choices a user can make through inline buttons during
// the alert-creation dialogue.
type ActionKind int

const (
	ActionSelectCoin ActionKind = iota
	ActionSelectCondition
	ActionConfirm
	ActionEdit
	ActionCancel
)

// Action is a decoded callback selection. Exactly one payload field is
// meaningful for a given kind: Coin for SelectCoin, Condition for
// SelectCondition, Price for Confirm. The entered price travels inside the
// confirm payload instead of the dialogue state.
type Action struct {
	Kind      ActionKind
	Coin      string
	Condition types.Condition
	Price     float64
}

const (
	tokenSelectCoin      = "coin"
	tokenSelectCondition = "cond"
	tokenConfirm         = "confirm"
	tokenEdit            = "edit"
	tokenCancel          = "cancel"
)

// Encode renders the action as callback data. Telegram caps callback data at
// 64 bytes; coin ids and prices fit comfortably.
func (a Action) Encode() string {
	switch a.Kind {
	case ActionSelectCoin:
		return tokenSelectCoin + "|" + a.Coin
	case ActionSelectCondition:
		return tokenSelectCondition + "|" + string(a.Condition)
	case ActionConfirm:
		return tokenConfirm + "|" + strconv.FormatFloat(a.Price, 'f', -1, 64)
	case ActionEdit:
		return tokenEdit
	case ActionCancel:
		return tokenCancel
	}
	return ""
}

// DecodeAction parses callback data back into an Action. It is the single
// place callback tokens are interpreted.
func DecodeAction(data string) (Action, error) {
	head, tail, _ := strings.Cut(data, "|")

	switch head {
	case tokenSelectCoin:
		if tail == "" {
			return Action{}, errors.New("coin selection without a coin id")
		}
		return Action{Kind: ActionSelectCoin, Coin: tail}, nil
	case tokenSelectCondition:
		cond := types.Condition(tail)
		if !cond.Valid() {
			return Action{}, errors.Errorf("unknown condition %q", tail)
		}
		return Action{Kind: ActionSelectCondition, Condition: cond}, nil
	case tokenConfirm:
		price, err := strconv.ParseFloat(tail, 64)
		if err != nil {
			return Action{}, errors.Wrapf(err, "bad confirm price %q", tail)
		}
		return Action{Kind: ActionConfirm, Price: price}, nil
	case tokenEdit:
		return Action{Kind: ActionEdit}, nil
	case tokenCancel:
		return Action{Kind: ActionCancel}, nil
	}
	return Action{}, errors.Errorf("unknown callback token %q", data)
}
