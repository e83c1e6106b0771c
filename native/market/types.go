package market

import (
	"fmt"
	"math/big"
)

// ListingKey identifies a single asset: the collection contract it belongs to
// and its token identifier within that collection.
type ListingKey struct {
	Collection [20]byte
	TokenID    *big.Int
}

// Clone returns a deep copy of the key so callers can safely mutate the copy
// without affecting stored instances.
func (k ListingKey) Clone() ListingKey {
	clone := k
	if k.TokenID != nil {
		clone.TokenID = new(big.Int).Set(k.TokenID)
	} else {
		clone.TokenID = big.NewInt(0)
	}
	return clone
}

// Listing captures an active sale offer: one asset, one price, one seller.
// A listing exists for a key iff its price is positive; absence and a zero
// price are the same state, so a zero-price listing is never stored.
type Listing struct {
	Price  *big.Int
	Seller [20]byte
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// SanitizeKey validates the listing key and returns a normalised copy with a
// non-nil token identifier.
func SanitizeKey(k ListingKey) (ListingKey, error) {
	clone := k.Clone()
	if clone.TokenID.Sign() < 0 {
		return ListingKey{}, fmt.Errorf("market: token id must be non-negative")
	}
	return clone, nil
}

// SanitizeListing validates the supplied listing and returns a cloned instance
// with a non-nil price. The function does not mutate the original value.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("market: nil listing")
	}
	clone := l.Clone()
	if clone.Price.Sign() <= 0 {
		return nil, ErrPriceMustBeAboveZero
	}
	return clone, nil
}
