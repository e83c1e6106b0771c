package market

import (
	"math/big"

	"nftmarket/core/types"
	"nftmarket/crypto"
)

const (
	EventTypeItemListed        = "market.itemListed"
	EventTypeItemBought        = "market.itemBought"
	EventTypeItemCancelled     = "market.itemCancelled"
	EventTypeListingUpdated    = "market.listingUpdated"
	EventTypeProceedsWithdrawn = "market.proceedsWithdrawn"
)

// NewItemListedEvent returns the canonical event payload for a newly listed
// asset.
func NewItemListedEvent(seller [20]byte, key ListingKey, price *big.Int) *types.Event {
	attrs := keyAttributes(key)
	attrs["seller"] = accountString(seller)
	attrs["price"] = formatAmount(price)
	return &types.Event{Type: EventTypeItemListed, Attributes: attrs}
}

// NewItemBoughtEvent returns the canonical event payload emitted when a listed
// asset is sold.
func NewItemBoughtEvent(buyer [20]byte, key ListingKey, price *big.Int) *types.Event {
	attrs := keyAttributes(key)
	attrs["buyer"] = accountString(buyer)
	attrs["price"] = formatAmount(price)
	return &types.Event{Type: EventTypeItemBought, Attributes: attrs}
}

// NewItemCancelledEvent returns the canonical event payload for a cancelled
// listing.
func NewItemCancelledEvent(caller [20]byte, key ListingKey) *types.Event {
	attrs := keyAttributes(key)
	attrs["caller"] = accountString(caller)
	return &types.Event{Type: EventTypeItemCancelled, Attributes: attrs}
}

// NewListingUpdatedEvent returns the canonical event payload emitted when a
// listing price is replaced.
func NewListingUpdatedEvent(seller [20]byte, key ListingKey, price *big.Int) *types.Event {
	attrs := keyAttributes(key)
	attrs["seller"] = accountString(seller)
	attrs["price"] = formatAmount(price)
	return &types.Event{Type: EventTypeListingUpdated, Attributes: attrs}
}

// NewProceedsWithdrawnEvent returns the canonical event payload emitted when a
// seller withdraws their accumulated proceeds.
func NewProceedsWithdrawnEvent(seller [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeProceedsWithdrawn,
		Attributes: map[string]string{
			"seller": accountString(seller),
			"amount": formatAmount(amount),
		},
	}
}

func keyAttributes(key ListingKey) map[string]string {
	tokenID := key.TokenID
	if tokenID == nil {
		tokenID = big.NewInt(0)
	}
	return map[string]string{
		"collection": crypto.NewAddress(crypto.CollectionPrefix, key.Collection[:]).String(),
		"tokenId":    tokenID.String(),
	}
}

func accountString(addr [20]byte) string {
	return crypto.NewAddress(crypto.AccountPrefix, addr[:]).String()
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
