package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Parth0603/CryptoPulse/internal/database"
	"github.com/Parth0603/CryptoPulse/internal/market"
	"github.com/Parth0603/CryptoPulse/lib/helpers"
)

// Commands implements the plain request/response chat commands. The dialogue
// flow lives in internal/dialog; everything here is a single round trip.
type Commands struct {
	store  *database.Store
	market *market.Gateway
}

func New(store *database.Store, gateway *market.Gateway) *Commands {
	return &Commands{store: store, market: gateway}
}

func CommandStart() string {
	return strings.Join([]string{
		"Welcome to CryptoPulse! 🔔",
		"",
		"/coin <id> — current data for a coin (e.g. /coin bitcoin)",
		"/list — top 10 coins by market cap",
		"/alert — create a price alert step by step",
		"/alert <coin> <op> <price> — create one directly, e.g. /alert bitcoin > 30000",
		"/alerts — your active alerts",
		"/addfav <id> — add a coin to your favorites",
		"/favlist — your favorites",
		"/clearfavlist — remove all favorites",
	}, "\n")
}

// CommandCoin renders the detail card for one coin id.
func (c *Commands) CommandCoin(ctx context.Context, id string) (string, error) {
	log.Debugf("processing /coin with argument: %s", id)

	detail, err := c.market.GetCoin(ctx, id)
	if err != nil {
		return "", errors.Wrap(err, "command /coin")
	}

	return fmt.Sprintf(
		"%s (%s)\nPrice: $%s\n24h change: %.2f%%\nMarket cap: $%s",
		detail.Name,
		strings.ToUpper(detail.Symbol),
		helpers.FormatPriceUS(detail.PriceUSD),
		detail.Change24h,
		humanize.Comma(int64(detail.MarketCap)),
	), nil
}

// CommandTop renders the top-10 table. An empty upstream result becomes a
// "could not fetch" message, never an empty table.
func (c *Commands) CommandTop(ctx context.Context) string {
	top := c.market.GetTopCoins(ctx)
	if len(top) == 0 {
		return "Could not fetch the top coins right now. Try again in a minute."
	}

	var b strings.Builder
	b.WriteString("Top coins by market cap:\n\n")
	for i, coin := range top {
		fmt.Fprintf(&b, "%2d. %s (%s) — $%s\n",
			i+1,
			coin.Name,
			strings.ToUpper(coin.Symbol),
			helpers.FormatPriceUS(coin.PriceUSD),
		)
	}
	return b.String()
}

// CommandAlerts lists the owner's active alerts.
func (c *Commands) CommandAlerts(owner string) (string, error) {
	alerts, err := c.store.AlertsByOwner(owner)
	if err != nil {
		return "", errors.Wrap(err, "command /alerts")
	}

	if len(alerts) == 0 {
		return "You have no active alerts. Create one with /alert.", nil
	}

	var b strings.Builder
	b.WriteString("Your active alerts:\n\n")
	for _, a := range alerts {
		fmt.Fprintf(&b, "• %s %s $%s (since %s)\n",
			a.Coin,
			a.Condition,
			helpers.FormatPriceUS(a.Price),
			helpers.FormatDate(a.CreatedAt),
		)
	}
	return b.String(), nil
}

// CommandAddFavorite verifies the coin upstream, then records it. An unknown
// id writes nothing.
func (c *Commands) CommandAddFavorite(ctx context.Context, owner, id string) (string, error) {
	detail, err := c.market.GetCoin(ctx, id)
	if err != nil {
		return "", errors.Wrap(err, "command /addfav")
	}

	if err := c.store.AddFavorite(owner, detail.ID); err != nil {
		return "", errors.Wrap(err, "command /addfav")
	}

	return fmt.Sprintf("⭐ %s added to your favorites.", detail.ID), nil
}

// CommandFavorites lists the owner's favorites.
func (c *Commands) CommandFavorites(owner string) (string, error) {
	favs, err := c.store.Favorites(owner)
	if err != nil {
		return "", errors.Wrap(err, "command /favlist")
	}

	if len(favs) == 0 {
		return "You have no favorites yet. Add one with /addfav <id>.", nil
	}

	var b strings.Builder
	b.WriteString("Your favorites:\n\n")
	for _, coin := range favs {
		fmt.Fprintf(&b, "⭐ %s\n", coin)
	}
	return b.String(), nil
}

// CommandClearFavorites wipes the owner's favorites.
func (c *Commands) CommandClearFavorites(owner string) (string, error) {
	if err := c.store.ClearFavorites(owner); err != nil {
		return "", errors.Wrap(err, "command /clearfavlist")
	}
	return "All favorites removed.", nil
}
