package market

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"nftmarket/core/events"
	"nftmarket/core/types"
	nativecommon "nftmarket/native/common"
)

type mockState struct {
	listings map[string]*Listing
	proceeds map[[20]byte]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		listings: make(map[string]*Listing),
		proceeds: make(map[[20]byte]*big.Int),
	}
}

func stateKey(key ListingKey) string {
	tokenID := key.TokenID
	if tokenID == nil {
		tokenID = big.NewInt(0)
	}
	return string(key.Collection[:]) + ":" + tokenID.String()
}

func (m *mockState) ListingPut(key ListingKey, listing *Listing) error {
	sanitized, err := SanitizeListing(listing)
	if err != nil {
		return err
	}
	m.listings[stateKey(key)] = sanitized
	return nil
}

func (m *mockState) ListingGet(key ListingKey) (*Listing, bool, error) {
	listing, ok := m.listings[stateKey(key)]
	if !ok {
		return nil, false, nil
	}
	return listing.Clone(), true, nil
}

func (m *mockState) ListingDelete(key ListingKey) error {
	delete(m.listings, stateKey(key))
	return nil
}

func (m *mockState) ProceedsGet(seller [20]byte) (*big.Int, error) {
	if balance, ok := m.proceeds[seller]; ok && balance != nil {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) ProceedsPut(seller [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid proceeds amount")
	}
	if amount.Sign() == 0 {
		delete(m.proceeds, seller)
		return nil
	}
	m.proceeds[seller] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) sumProceeds() *big.Int {
	total := big.NewInt(0)
	for _, balance := range m.proceeds {
		total.Add(total, balance)
	}
	return total
}

type mockRegistry struct {
	owners     map[string][20]byte
	approved   map[string]bool
	onTransfer func() error
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		owners:   make(map[string][20]byte),
		approved: make(map[string]bool),
	}
}

func (r *mockRegistry) assetKey(collection [20]byte, tokenID *big.Int) string {
	if tokenID == nil {
		tokenID = big.NewInt(0)
	}
	return string(collection[:]) + ":" + tokenID.String()
}

func (r *mockRegistry) mint(key ListingKey, owner [20]byte, approved bool) {
	k := r.assetKey(key.Collection, key.TokenID)
	r.owners[k] = owner
	r.approved[k] = approved
}

func (r *mockRegistry) OwnerOf(collection [20]byte, tokenID *big.Int) ([20]byte, error) {
	owner, ok := r.owners[r.assetKey(collection, tokenID)]
	if !ok {
		return [20]byte{}, fmt.Errorf("unknown asset")
	}
	return owner, nil
}

func (r *mockRegistry) IsApprovedForMarketplace(collection [20]byte, tokenID *big.Int) (bool, error) {
	return r.approved[r.assetKey(collection, tokenID)], nil
}

func (r *mockRegistry) Transfer(collection [20]byte, tokenID *big.Int, from, to [20]byte) error {
	if r.onTransfer != nil {
		if err := r.onTransfer(); err != nil {
			return err
		}
	}
	k := r.assetKey(collection, tokenID)
	owner, ok := r.owners[k]
	if !ok {
		return fmt.Errorf("unknown asset")
	}
	if owner != from {
		return fmt.Errorf("transfer from non-owner")
	}
	r.owners[k] = to
	return nil
}

type mockPayments struct {
	paid  map[[20]byte]*big.Int
	onPay func(to [20]byte, amount *big.Int) error
}

func newMockPayments() *mockPayments {
	return &mockPayments{paid: make(map[[20]byte]*big.Int)}
}

func (p *mockPayments) Pay(to [20]byte, amount *big.Int) error {
	if p.onPay != nil {
		if err := p.onPay(to, amount); err != nil {
			return err
		}
	}
	current, ok := p.paid[to]
	if !ok || current == nil {
		current = big.NewInt(0)
	}
	p.paid[to] = new(big.Int).Add(current, amount)
	return nil
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func (c *capturingEmitter) typesEvents() []*types.Event {
	out := make([]*types.Event, 0, len(c.events))
	for _, evt := range c.events {
		if wrapper, ok := evt.(marketEvent); ok && wrapper.evt != nil {
			out = append(out, wrapper.evt)
		}
	}
	return out
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestKey(collectionFill byte, tokenID int64) ListingKey {
	return ListingKey{Collection: newTestAddress(collectionFill), TokenID: big.NewInt(tokenID)}
}

type testFixture struct {
	engine   *Engine
	state    *mockState
	registry *mockRegistry
	payments *mockPayments
	emitter  *capturingEmitter
}

func newTestFixture() *testFixture {
	f := &testFixture{
		state:    newMockState(),
		registry: newMockRegistry(),
		payments: newMockPayments(),
		emitter:  &capturingEmitter{},
	}
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetRegistry(f.registry)
	f.engine.SetPayments(f.payments)
	f.engine.SetEmitter(f.emitter)
	return f
}

func TestListItemValidations(t *testing.T) {
	seller := newTestAddress(0x01)
	stranger := newTestAddress(0x02)
	key := newTestKey(0xA0, 7)

	cases := []struct {
		name    string
		setup   func(t *testing.T, f *testFixture)
		caller  [20]byte
		price   *big.Int
		wantErr error
	}{
		{
			name:    "not owner",
			setup:   func(_ *testing.T, f *testFixture) { f.registry.mint(key, seller, true) },
			caller:  stranger,
			price:   big.NewInt(100),
			wantErr: ErrNotOwner,
		},
		{
			name:    "zero price",
			setup:   func(_ *testing.T, f *testFixture) { f.registry.mint(key, seller, true) },
			caller:  seller,
			price:   big.NewInt(0),
			wantErr: ErrPriceMustBeAboveZero,
		},
		{
			name:    "nil price",
			setup:   func(_ *testing.T, f *testFixture) { f.registry.mint(key, seller, true) },
			caller:  seller,
			price:   nil,
			wantErr: ErrPriceMustBeAboveZero,
		},
		{
			name:    "not approved",
			setup:   func(_ *testing.T, f *testFixture) { f.registry.mint(key, seller, false) },
			caller:  seller,
			price:   big.NewInt(100),
			wantErr: ErrNotApprovedForMarketplace,
		},
		{
			name: "already listed",
			setup: func(t *testing.T, f *testFixture) {
				f.registry.mint(key, seller, true)
				if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
					t.Fatalf("seed listing: %v", err)
				}
			},
			caller:  seller,
			price:   big.NewInt(200),
			wantErr: ErrAlreadyListed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newTestFixture()
			tc.setup(t, f)
			err := f.engine.ListItem(tc.caller, key, tc.price)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestListItemStoresListingAndEmits(t *testing.T) {
	f := newTestFixture()
	seller := newTestAddress(0x01)
	key := newTestKey(0xA0, 7)
	f.registry.mint(key, seller, true)

	if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
		t.Fatalf("list item: %v", err)
	}

	listing, err := f.engine.GetListing(key)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing == nil {
		t.Fatalf("expected active listing")
	}
	if listing.Price.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected price: %s", listing.Price)
	}
	if listing.Seller != seller {
		t.Fatalf("unexpected seller")
	}

	evts := f.emitter.typesEvents()
	if len(evts) != 1 {
		t.Fatalf("expected one event, got %d", len(evts))
	}
	if evts[0].Type != EventTypeItemListed {
		t.Fatalf("unexpected event type: %s", evts[0].Type)
	}
	if evts[0].Attributes["price"] != "100" {
		t.Fatalf("unexpected event price: %s", evts[0].Attributes["price"])
	}
}

func TestUpdateListing(t *testing.T) {
	f := newTestFixture()
	seller := newTestAddress(0x01)
	stranger := newTestAddress(0x02)
	key := newTestKey(0xA0, 7)
	f.registry.mint(key, seller, true)

	if err := f.engine.UpdateListing(seller, key, big.NewInt(150)); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected ErrNotListed, got %v", err)
	}

	if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
		t.Fatalf("list item: %v", err)
	}

	if err := f.engine.UpdateListing(stranger, key, big.NewInt(150)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := f.engine.UpdateListing(seller, key, big.NewInt(0)); !errors.Is(err, ErrPriceMustBeAboveZero) {
		t.Fatalf("expected ErrPriceMustBeAboveZero, got %v", err)
	}

	if err := f.engine.UpdateListing(seller, key, big.NewInt(150)); err != nil {
		t.Fatalf("update listing: %v", err)
	}
	listing, err := f.engine.GetListing(key)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing.Price.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("price not updated: %s", listing.Price)
	}
	if listing.Seller != seller {
		t.Fatalf("seller changed on update")
	}
}

func TestCancelListing(t *testing.T) {
	f := newTestFixture()
	seller := newTestAddress(0x01)
	key := newTestKey(0xA0, 7)
	f.registry.mint(key, seller, true)

	if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
		t.Fatalf("list item: %v", err)
	}
	if err := f.engine.CancelListing(seller, key); err != nil {
		t.Fatalf("cancel listing: %v", err)
	}
	listing, err := f.engine.GetListing(key)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing != nil {
		t.Fatalf("expected listing removed")
	}
	if err := f.engine.CancelListing(seller, key); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected ErrNotListed on second cancel, got %v", err)
	}
}

func TestCancelListingAfterOutOfBandTransfer(t *testing.T) {
	// Ownership is re-checked at cancel time: once the asset moves outside the
	// marketplace, the recorded seller can no longer cancel the stale listing.
	f := newTestFixture()
	seller := newTestAddress(0x01)
	newOwner := newTestAddress(0x03)
	key := newTestKey(0xA0, 7)
	f.registry.mint(key, seller, true)

	if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
		t.Fatalf("list item: %v", err)
	}
	f.registry.owners[f.registry.assetKey(key.Collection, key.TokenID)] = newOwner

	if err := f.engine.CancelListing(seller, key); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner for recorded seller, got %v", err)
	}
	if err := f.engine.CancelListing(newOwner, key); err != nil {
		t.Fatalf("new owner cancel: %v", err)
	}
}

func TestBuyItemCreditsSellerAndRemovesListing(t *testing.T) {
	f := newTestFixture()
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	key := newTestKey(0xA0, 7)
	f.registry.mint(key, seller, true)

	if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
		t.Fatalf("list item: %v", err)
	}
	// Overpayment is retained by the service, not refunded and not credited.
	if err := f.engine.BuyItem(buyer, key, big.NewInt(150)); err != nil {
		t.Fatalf("buy item: %v", err)
	}

	listing, err := f.engine.GetListing(key)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing != nil {
		t.Fatalf("expected listing removed after sale")
	}
	balance, err := f.engine.GetProceeds(seller)
	if err != nil {
		t.Fatalf("get proceeds: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected proceeds 100, got %s", balance)
	}
	owner, err := f.registry.OwnerOf(key.Collection, key.TokenID)
	if err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	if owner != buyer {
		t.Fatalf("asset not transferred to buyer")
	}

	if err := f.engine.BuyItem(buyer, key, big.NewInt(150)); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected ErrNotListed on second buy, got %v", err)
	}
}

func TestBuyItemPriceNotMet(t *testing.T) {
	f := newTestFixture()
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	key := newTestKey(0xA0, 7)
	f.registry.mint(key, seller, true)

	if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
		t.Fatalf("list item: %v", err)
	}
	err := f.engine.BuyItem(buyer, key, big.NewInt(60))
	var priceErr *PriceNotMetError
	if !errors.As(err, &priceErr) {
		t.Fatalf("expected PriceNotMetError, got %v", err)
	}
	if priceErr.Price.Cmp(big.NewInt(100)) != 0 || priceErr.Offered.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("error does not carry both amounts: %v", priceErr)
	}
	listing, err := f.engine.GetListing(key)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing == nil {
		t.Fatalf("listing must survive a failed purchase")
	}
}

func TestBuyItemTransferFailureRollsBack(t *testing.T) {
	f := newTestFixture()
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	key := newTestKey(0xA0, 7)
	f.registry.mint(key, seller, true)

	if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
		t.Fatalf("list item: %v", err)
	}
	f.registry.onTransfer = func() error { return fmt.Errorf("registry unavailable") }

	if err := f.engine.BuyItem(buyer, key, big.NewInt(100)); err == nil {
		t.Fatalf("expected error from failed transfer")
	}
	listing, err := f.engine.GetListing(key)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing == nil {
		t.Fatalf("listing must be restored after failed transfer")
	}
	balance, err := f.engine.GetProceeds(seller)
	if err != nil {
		t.Fatalf("get proceeds: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("proceeds must be rolled back, got %s", balance)
	}
}

func TestBuyItemReentryObservesConsistentState(t *testing.T) {
	f := newTestFixture()
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	key := newTestKey(0xA0, 7)
	f.registry.mint(key, seller, true)

	if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
		t.Fatalf("list item: %v", err)
	}

	var reentryErr error
	var observedListing *Listing
	var observedBalance *big.Int
	f.registry.onTransfer = func() error {
		// A hostile transfer hook tries to buy the same item again before the
		// outer call unwinds, and inspects what the service exposes.
		reentryErr = f.engine.BuyItem(buyer, key, big.NewInt(100))
		observedListing, _ = f.engine.GetListing(key)
		observedBalance, _ = f.engine.GetProceeds(seller)
		return nil
	}

	if err := f.engine.BuyItem(buyer, key, big.NewInt(100)); err != nil {
		t.Fatalf("buy item: %v", err)
	}
	if !errors.Is(reentryErr, ErrReentrancy) && !errors.Is(reentryErr, ErrNotListed) {
		t.Fatalf("reentrant buy must fail, got %v", reentryErr)
	}
	if observedListing != nil {
		t.Fatalf("reentrant observer saw a live listing")
	}
	if observedBalance == nil || observedBalance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("reentrant observer saw uncredited ledger: %v", observedBalance)
	}
	balance, err := f.engine.GetProceeds(seller)
	if err != nil {
		t.Fatalf("get proceeds: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("seller credited more than once: %s", balance)
	}
}

func TestMutatingReentryRejected(t *testing.T) {
	f := newTestFixture()
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	key := newTestKey(0xA0, 7)
	other := newTestKey(0xB0, 9)
	f.registry.mint(key, seller, true)
	f.registry.mint(other, buyer, true)

	if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
		t.Fatalf("list item: %v", err)
	}

	var reentryErr error
	f.registry.onTransfer = func() error {
		reentryErr = f.engine.ListItem(buyer, other, big.NewInt(50))
		return nil
	}
	if err := f.engine.BuyItem(buyer, key, big.NewInt(100)); err != nil {
		t.Fatalf("buy item: %v", err)
	}
	if !errors.Is(reentryErr, ErrReentrancy) {
		t.Fatalf("expected ErrReentrancy for nested ListItem, got %v", reentryErr)
	}
}

func TestWithdrawProceeds(t *testing.T) {
	f := newTestFixture()
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	key := newTestKey(0xA0, 7)
	f.registry.mint(key, seller, true)

	if _, err := f.engine.WithdrawProceeds(seller); !errors.Is(err, ErrNoProceeds) {
		t.Fatalf("expected ErrNoProceeds, got %v", err)
	}

	if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
		t.Fatalf("list item: %v", err)
	}
	if err := f.engine.BuyItem(buyer, key, big.NewInt(100)); err != nil {
		t.Fatalf("buy item: %v", err)
	}

	amount, err := f.engine.WithdrawProceeds(seller)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected payout 100, got %s", amount)
	}
	if f.payments.paid[seller] == nil || f.payments.paid[seller].Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("payee did not receive 100")
	}
	balance, err := f.engine.GetProceeds(seller)
	if err != nil {
		t.Fatalf("get proceeds: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("balance must be zero after withdrawal, got %s", balance)
	}
}

func TestWithdrawFailureRestoresBalance(t *testing.T) {
	f := newTestFixture()
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	key := newTestKey(0xA0, 7)
	f.registry.mint(key, seller, true)

	if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
		t.Fatalf("list item: %v", err)
	}
	if err := f.engine.BuyItem(buyer, key, big.NewInt(100)); err != nil {
		t.Fatalf("buy item: %v", err)
	}

	f.payments.onPay = func([20]byte, *big.Int) error { return fmt.Errorf("payment rail down") }
	_, err := f.engine.WithdrawProceeds(seller)
	var withdrawErr *WithdrawError
	if !errors.As(err, &withdrawErr) {
		t.Fatalf("expected WithdrawError, got %v", err)
	}
	balance, err := f.engine.GetProceeds(seller)
	if err != nil {
		t.Fatalf("get proceeds: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("balance must be restored after failed payout, got %s", balance)
	}
}

func TestWithdrawReentrySeesNoProceeds(t *testing.T) {
	f := newTestFixture()
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	key := newTestKey(0xA0, 7)
	f.registry.mint(key, seller, true)

	if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
		t.Fatalf("list item: %v", err)
	}
	if err := f.engine.BuyItem(buyer, key, big.NewInt(100)); err != nil {
		t.Fatalf("buy item: %v", err)
	}

	var reentryErr error
	calls := 0
	f.payments.onPay = func([20]byte, *big.Int) error {
		calls++
		if calls == 1 {
			_, reentryErr = f.engine.WithdrawProceeds(seller)
		}
		return nil
	}

	amount, err := f.engine.WithdrawProceeds(seller)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected payout 100, got %s", amount)
	}
	if !errors.Is(reentryErr, ErrNoProceeds) {
		t.Fatalf("reentrant withdraw must see ErrNoProceeds, got %v", reentryErr)
	}
	if calls != 1 {
		t.Fatalf("payout executed %d times, want exactly once", calls)
	}
	if f.payments.paid[seller].Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("payee paid %s, want exactly 100", f.payments.paid[seller])
	}
}

func TestLedgerConservation(t *testing.T) {
	f := newTestFixture()
	sellerA := newTestAddress(0x01)
	sellerB := newTestAddress(0x02)
	buyer := newTestAddress(0x03)
	keyA := newTestKey(0xA0, 1)
	keyB := newTestKey(0xA0, 2)
	f.registry.mint(keyA, sellerA, true)
	f.registry.mint(keyB, sellerB, true)

	if err := f.engine.ListItem(sellerA, keyA, big.NewInt(100)); err != nil {
		t.Fatalf("list A: %v", err)
	}
	if err := f.engine.ListItem(sellerB, keyB, big.NewInt(250)); err != nil {
		t.Fatalf("list B: %v", err)
	}
	if err := f.engine.BuyItem(buyer, keyA, big.NewInt(100)); err != nil {
		t.Fatalf("buy A: %v", err)
	}
	if err := f.engine.BuyItem(buyer, keyB, big.NewInt(300)); err != nil {
		t.Fatalf("buy B: %v", err)
	}
	if got := f.state.sumProceeds(); got.Cmp(big.NewInt(350)) != 0 {
		t.Fatalf("ledger sum %s, want 350 (credited prices only)", got)
	}

	if _, err := f.engine.WithdrawProceeds(sellerA); err != nil {
		t.Fatalf("withdraw A: %v", err)
	}
	if got := f.state.sumProceeds(); got.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("ledger sum %s after withdrawal, want 250", got)
	}
}

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) bool { return p[module] }

func TestPausedModuleRejectsMutations(t *testing.T) {
	f := newTestFixture()
	seller := newTestAddress(0x01)
	key := newTestKey(0xA0, 7)
	f.registry.mint(key, seller, true)
	f.engine.SetPauses(pauseMap{"market": true})

	if err := f.engine.ListItem(seller, key, big.NewInt(100)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if _, err := f.engine.WithdrawProceeds(seller); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}

	// Reads stay available while the module is paused.
	if _, err := f.engine.GetListing(key); err != nil {
		t.Fatalf("get listing: %v", err)
	}

	f.engine.SetPauses(pauseMap{"market": false})
	if err := f.engine.ListItem(seller, key, big.NewInt(100)); err != nil {
		t.Fatalf("unpause did not restore mutations: %v", err)
	}
}

func TestEngineRequiresCollaborators(t *testing.T) {
	engine := NewEngine()
	key := newTestKey(0xA0, 1)
	if err := engine.ListItem(newTestAddress(0x01), key, big.NewInt(1)); !errors.Is(err, errNilState) {
		t.Fatalf("expected errNilState, got %v", err)
	}
	engine.SetState(newMockState())
	if err := engine.ListItem(newTestAddress(0x01), key, big.NewInt(1)); !errors.Is(err, errNilRegistry) {
		t.Fatalf("expected errNilRegistry, got %v", err)
	}
	if _, err := engine.WithdrawProceeds(newTestAddress(0x01)); !errors.Is(err, errNilPayments) {
		t.Fatalf("expected errNilPayments, got %v", err)
	}
}
