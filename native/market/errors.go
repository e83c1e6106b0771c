package market

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrAlreadyListed is returned when listing an asset that already has an
	// active listing.
	ErrAlreadyListed = errors.New("market: item already listed")
	// ErrNotListed is returned when operating on an asset without an active
	// listing.
	ErrNotListed = errors.New("market: item not listed")
	// ErrNotOwner is returned when the caller is not the asset's current owner
	// according to the asset registry.
	ErrNotOwner = errors.New("market: caller is not the asset owner")
	// ErrPriceMustBeAboveZero is returned for zero or negative prices. Zero is
	// reserved to mean "no listing".
	ErrPriceMustBeAboveZero = errors.New("market: price must be above zero")
	// ErrNotApprovedForMarketplace is returned when the registry has not
	// authorised this service to move the asset.
	ErrNotApprovedForMarketplace = errors.New("market: marketplace not approved to transfer asset")
	// ErrNoProceeds is returned when withdrawing with a zero balance.
	ErrNoProceeds = errors.New("market: no proceeds to withdraw")
	// ErrReentrancy is returned when a mutating operation is entered while
	// another mutating operation is still in progress.
	ErrReentrancy = errors.New("market: reentrant call rejected")
)

// PriceNotMetError reports a purchase attempt below the listed price, carrying
// both amounts for diagnostics.
type PriceNotMetError struct {
	Key     ListingKey
	Price   *big.Int
	Offered *big.Int
}

func (e *PriceNotMetError) Error() string {
	shortfall := new(big.Int).Sub(e.Price, e.Offered)
	return fmt.Sprintf("market: price not met for token %s: listed %s, offered %s (short %s)",
		e.Key.TokenID, e.Price, e.Offered, shortfall)
}

// WithdrawError wraps a failure reported by the payment collaborator during
// proceeds withdrawal. The withdrawal is rolled back in full.
type WithdrawError struct {
	Err error
}

func (e *WithdrawError) Error() string {
	return fmt.Sprintf("market: withdraw transfer failed: %v", e.Err)
}

func (e *WithdrawError) Unwrap() error { return e.Err }
