package market

import (
	"math/big"
	"strings"
	"testing"
)

func TestItemListedEventAttributes(t *testing.T) {
	seller := newTestAddress(0x01)
	key := newTestKey(0xA0, 42)

	evt := NewItemListedEvent(seller, key, big.NewInt(1000))
	if evt.Type != EventTypeItemListed {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["tokenId"] != "42" {
		t.Fatalf("unexpected tokenId: %s", evt.Attributes["tokenId"])
	}
	if evt.Attributes["price"] != "1000" {
		t.Fatalf("unexpected price: %s", evt.Attributes["price"])
	}
	if !strings.HasPrefix(evt.Attributes["seller"], "nfm1") {
		t.Fatalf("seller not bech32 encoded: %s", evt.Attributes["seller"])
	}
	if !strings.HasPrefix(evt.Attributes["collection"], "nfmc1") {
		t.Fatalf("collection not bech32 encoded: %s", evt.Attributes["collection"])
	}
}

func TestItemBoughtEventAttributes(t *testing.T) {
	buyer := newTestAddress(0x02)
	key := newTestKey(0xA0, 42)

	evt := NewItemBoughtEvent(buyer, key, big.NewInt(1000))
	if evt.Type != EventTypeItemBought {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if _, ok := evt.Attributes["buyer"]; !ok {
		t.Fatalf("missing buyer attribute")
	}
	if evt.Attributes["price"] != "1000" {
		t.Fatalf("unexpected price: %s", evt.Attributes["price"])
	}
}

func TestCancelAndWithdrawEvents(t *testing.T) {
	caller := newTestAddress(0x03)
	key := newTestKey(0xA0, 1)

	cancelled := NewItemCancelledEvent(caller, key)
	if cancelled.Type != EventTypeItemCancelled {
		t.Fatalf("unexpected type: %s", cancelled.Type)
	}
	if _, ok := cancelled.Attributes["caller"]; !ok {
		t.Fatalf("missing caller attribute")
	}

	withdrawn := NewProceedsWithdrawnEvent(caller, big.NewInt(77))
	if withdrawn.Type != EventTypeProceedsWithdrawn {
		t.Fatalf("unexpected type: %s", withdrawn.Type)
	}
	if withdrawn.Attributes["amount"] != "77" {
		t.Fatalf("unexpected amount: %s", withdrawn.Attributes["amount"])
	}
}

func TestEventsTolerateNilValues(t *testing.T) {
	key := ListingKey{Collection: newTestAddress(0xA0)}
	evt := NewItemListedEvent(newTestAddress(0x01), key, nil)
	if evt.Attributes["price"] != "0" {
		t.Fatalf("nil price must render as 0, got %s", evt.Attributes["price"])
	}
	if evt.Attributes["tokenId"] != "0" {
		t.Fatalf("nil tokenId must render as 0, got %s", evt.Attributes["tokenId"])
	}
}
