// Package fees computes the money a lobby moves: pot, platform fee, no-show
// bond and winner payout. Every caller that shows or stores these amounts goes
// through Calculate.
package fees

import (
	"fmt"

	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// PlatformFeeRate is the share of the pot kept by the platform.
	PlatformFeeRate = decimal.RequireFromString("0.10")
	// BondShare is the share of the platform fee split into per-player bonds.
	BondShare = decimal.RequireFromString("0.5")
)

// MaxPrice is the largest buy-in the lobbies.price column (NUMERIC(12, 2)) holds.
var MaxPrice = decimal.RequireFromString("9999999999.99")

// divisionPrecision is the number of decimal places kept by the bond division.
const divisionPrecision = 16

// Breakdown holds unrounded amounts. Round only for presentation, via Display.
type Breakdown struct {
	Pot           decimal.Decimal `json:"pot"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	BondPerPlayer decimal.Decimal `json:"bond_per_player"`
	WinnerAmount  decimal.Decimal `json:"winner_amount"`
}

// Calculate derives the breakdown for a buy-in price and player count. The
// price must be whole cents so the stored price and pot agree.
func Calculate(price decimal.Decimal, maxPlayers int) (Breakdown, error) {
	if price.IsNegative() {
		return Breakdown{}, fmt.Errorf("price %s is negative: %w", price, backend.ErrValidation)
	}
	if !price.Equal(price.Truncate(2)) {
		return Breakdown{}, fmt.Errorf("price %s has more than 2 decimal places: %w", price, backend.ErrValidation)
	}
	if price.GreaterThan(MaxPrice) {
		return Breakdown{}, fmt.Errorf("price %s exceeds %s: %w", price, MaxPrice, backend.ErrValidation)
	}
	if maxPlayers < 1 {
		return Breakdown{}, fmt.Errorf("max players %d must be at least 1: %w", maxPlayers, backend.ErrValidation)
	}

	players := decimal.NewFromInt(int64(maxPlayers))
	pot := price.Mul(players)
	fee := pot.Mul(PlatformFeeRate)
	return Breakdown{
		Pot:           pot,
		PlatformFee:   fee,
		BondPerPlayer: fee.Mul(BondShare).DivRound(players, divisionPrecision),
		WinnerAmount:  pot.Sub(fee),
	}, nil
}

// Apply recomputes all four derived fields of l from its price and max players.
func Apply(l *models.Lobby) error {
	b, err := Calculate(l.Price, l.MaxPlayers)
	if err != nil {
		return err
	}
	l.Pot = b.Pot
	l.PlatformFee = b.PlatformFee
	l.BondPerPlayer = b.BondPerPlayer
	l.WinnerAmount = b.WinnerAmount
	return nil
}

// Of returns the breakdown stored on a lobby.
func Of(l models.Lobby) Breakdown {
	return Breakdown{
		Pot:           l.Pot,
		PlatformFee:   l.PlatformFee,
		BondPerPlayer: l.BondPerPlayer,
		WinnerAmount:  l.WinnerAmount,
	}
}

// Display is a breakdown formatted to two decimal places.
type Display struct {
	Pot           string `json:"pot"`
	PlatformFee   string `json:"platform_fee"`
	BondPerPlayer string `json:"bond_per_player"`
	WinnerAmount  string `json:"winner_amount"`
}

func (b Breakdown) Display() Display {
	return Display{
		Pot:           b.Pot.StringFixed(2),
		PlatformFee:   b.PlatformFee.StringFixed(2),
		BondPerPlayer: b.BondPerPlayer.StringFixed(2),
		WinnerAmount:  b.WinnerAmount.StringFixed(2),
	}
}
