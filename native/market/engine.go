package market

import (
	"errors"
	"fmt"
	"math/big"

	"nftmarket/core/events"
	"nftmarket/core/types"
	nativecommon "nftmarket/native/common"
)

const moduleName = "market"

var (
	errNilState    = errors.New("market engine: state not configured")
	errNilRegistry = errors.New("market engine: asset registry not configured")
	errNilPayments = errors.New("market engine: payment sender not configured")
)

type engineState interface {
	ListingPut(key ListingKey, listing *Listing) error
	ListingGet(key ListingKey) (*Listing, bool, error)
	ListingDelete(key ListingKey) error
	ProceedsGet(seller [20]byte) (*big.Int, error)
	ProceedsPut(seller [20]byte, amount *big.Int) error
}

// AssetRegistry is the external authority over asset ownership. It proves who
// owns an asset, whether this service may move it, and executes the transfer.
// Any of these calls can transitively call back into the engine, so the engine
// treats them as reentry vectors.
type AssetRegistry interface {
	OwnerOf(collection [20]byte, tokenID *big.Int) ([20]byte, error)
	IsApprovedForMarketplace(collection [20]byte, tokenID *big.Int) (bool, error)
	Transfer(collection [20]byte, tokenID *big.Int, from, to [20]byte) error
}

// PaymentSender releases escrowed funds to a recipient. Like the asset
// registry it runs outside the service boundary and may attempt reentry.
type PaymentSender interface {
	Pay(to [20]byte, amount *big.Int) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine wires the listing/escrow state machine with external state, the asset
// registry, the payment collaborator and an event emitter. Every mutating
// operation runs under a single shared reentrancy lock and orders its work
// validate, mutate internal ledgers, invoke the external collaborator last.
type Engine struct {
	state    engineState
	registry AssetRegistry
	payments PaymentSender
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	entered  bool
}

// NewEngine creates a market engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the external asset registry consulted for ownership
// and transfer authorisation.
func (e *Engine) SetRegistry(registry AssetRegistry) { e.registry = registry }

// SetPayments configures the external fund-transfer collaborator used to
// release withdrawn proceeds.
func (e *Engine) SetPayments(payments PaymentSender) { e.payments = payments }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the administrative pause view consulted by every mutating
// operation.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

// enter acquires the engine-wide execution lock. One lock covers every
// mutating operation: an external collaborator invoked by any of them could
// attempt to re-enter any other, so per-operation locks would not help.
func (e *Engine) enter() error {
	if e.entered {
		return ErrReentrancy
	}
	e.entered = true
	return nil
}

func (e *Engine) exit() { e.entered = false }

func (e *Engine) requireCollaborators() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.registry == nil {
		return errNilRegistry
	}
	return nil
}

// requireOwner checks that caller is the asset's current owner per the
// registry. The check is re-evaluated on every operation that needs it;
// ownership can change between listing time and sale time, so a cached answer
// would be unsafe.
func (e *Engine) requireOwner(caller [20]byte, key ListingKey) error {
	owner, err := e.registry.OwnerOf(key.Collection, key.TokenID)
	if err != nil {
		return fmt.Errorf("market: owner lookup failed: %w", err)
	}
	if owner != caller {
		return ErrNotOwner
	}
	return nil
}

// requireApproved checks that the registry authorises this service
// specifically to move the asset.
func (e *Engine) requireApproved(key ListingKey) error {
	approved, err := e.registry.IsApprovedForMarketplace(key.Collection, key.TokenID)
	if err != nil {
		return fmt.Errorf("market: approval lookup failed: %w", err)
	}
	if !approved {
		return ErrNotApprovedForMarketplace
	}
	return nil
}

func (e *Engine) loadListing(key ListingKey) (*Listing, bool, error) {
	listing, ok, err := e.state.ListingGet(key)
	if err != nil {
		return nil, false, err
	}
	if !ok || listing == nil || listing.Price == nil || listing.Price.Sign() <= 0 {
		return nil, false, nil
	}
	return listing, true, nil
}

func (e *Engine) proceedsBalance(seller [20]byte) (*big.Int, error) {
	balance, err := e.state.ProceedsGet(seller)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// ListItem creates a listing for the asset at the given price. The caller must
// be the current owner and must have authorised this service to move the asset
// before listing; the asset itself stays with the seller until a sale
// completes.
func (e *Engine) ListItem(caller [20]byte, key ListingKey, price *big.Int) error {
	if err := e.requireCollaborators(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	key, err := SanitizeKey(key)
	if err != nil {
		return err
	}
	if _, ok, err := e.loadListing(key); err != nil {
		return err
	} else if ok {
		return ErrAlreadyListed
	}
	if err := e.requireOwner(caller, key); err != nil {
		return err
	}
	if price == nil || price.Sign() <= 0 {
		return ErrPriceMustBeAboveZero
	}
	if err := e.requireApproved(key); err != nil {
		return err
	}
	listing := &Listing{Price: new(big.Int).Set(price), Seller: caller}
	if err := e.state.ListingPut(key, listing); err != nil {
		return err
	}
	e.emit(NewItemListedEvent(caller, key, listing.Price))
	return nil
}

// UpdateListing replaces the stored price of an active listing. The seller
// recorded on the listing is unchanged.
func (e *Engine) UpdateListing(caller [20]byte, key ListingKey, newPrice *big.Int) error {
	if err := e.requireCollaborators(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	key, err := SanitizeKey(key)
	if err != nil {
		return err
	}
	listing, ok, err := e.loadListing(key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotListed
	}
	if err := e.requireOwner(caller, key); err != nil {
		return err
	}
	if newPrice == nil || newPrice.Sign() <= 0 {
		return ErrPriceMustBeAboveZero
	}
	listing.Price = new(big.Int).Set(newPrice)
	if err := e.state.ListingPut(key, listing); err != nil {
		return err
	}
	e.emit(NewListingUpdatedEvent(caller, key, listing.Price))
	return nil
}

// CancelListing removes an active listing. Ownership is re-checked against the
// registry at cancel time, not against the recorded seller: if the asset
// changed hands outside this service the recorded seller can no longer cancel.
func (e *Engine) CancelListing(caller [20]byte, key ListingKey) error {
	if err := e.requireCollaborators(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	key, err := SanitizeKey(key)
	if err != nil {
		return err
	}
	if _, ok, err := e.loadListing(key); err != nil {
		return err
	} else if !ok {
		return ErrNotListed
	}
	if err := e.requireOwner(caller, key); err != nil {
		return err
	}
	if err := e.state.ListingDelete(key); err != nil {
		return err
	}
	e.emit(NewItemCancelledEvent(caller, key))
	return nil
}

// BuyItem purchases a listed asset. The full listed price is credited to the
// seller's proceeds balance and the listing is deleted before the external
// asset transfer runs, so a transfer that re-enters the engine observes a
// listing already gone and a ledger already credited. Any payment above the
// listed price is retained by the service and credited to nobody; it is not
// refunded.
func (e *Engine) BuyItem(buyer [20]byte, key ListingKey, payment *big.Int) error {
	if err := e.requireCollaborators(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	key, err := SanitizeKey(key)
	if err != nil {
		return err
	}
	listing, ok, err := e.loadListing(key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotListed
	}
	offered := new(big.Int)
	if payment != nil {
		offered.Set(payment)
	}
	if offered.Cmp(listing.Price) < 0 {
		return &PriceNotMetError{Key: key, Price: new(big.Int).Set(listing.Price), Offered: offered}
	}
	balance, err := e.proceedsBalance(listing.Seller)
	if err != nil {
		return err
	}
	credited := new(big.Int).Add(balance, listing.Price)
	if err := e.state.ProceedsPut(listing.Seller, credited); err != nil {
		return err
	}
	if err := e.state.ListingDelete(key); err != nil {
		return err
	}
	// External call last: internal state is already consistent when control
	// leaves the service boundary.
	if err := e.registry.Transfer(key.Collection, key.TokenID, listing.Seller, buyer); err != nil {
		if putErr := e.state.ProceedsPut(listing.Seller, balance); putErr != nil {
			return putErr
		}
		if putErr := e.state.ListingPut(key, listing); putErr != nil {
			return putErr
		}
		return fmt.Errorf("market: asset transfer failed: %w", err)
	}
	e.emit(NewItemBoughtEvent(buyer, key, listing.Price))
	return nil
}

// WithdrawProceeds pays out the caller's full accumulated balance. The balance
// is zeroed before the external fund transfer runs: a payee that re-enters
// WithdrawProceeds mid-transfer finds an empty balance and fails with
// ErrNoProceeds. If the transfer collaborator reports failure the balance is
// restored and the operation has no effect. Returns the amount paid out.
func (e *Engine) WithdrawProceeds(caller [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.payments == nil {
		return nil, errNilPayments
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	// The empty-balance precondition runs before the execution lock: a payee
	// that re-enters WithdrawProceeds mid-transfer finds the balance already
	// zeroed and is halted by ErrNoProceeds rather than the lock.
	balance, err := e.proceedsBalance(caller)
	if err != nil {
		return nil, err
	}
	if balance.Sign() <= 0 {
		return nil, ErrNoProceeds
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := e.state.ProceedsPut(caller, big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.payments.Pay(caller, new(big.Int).Set(balance)); err != nil {
		if putErr := e.state.ProceedsPut(caller, balance); putErr != nil {
			return nil, putErr
		}
		return nil, &WithdrawError{Err: err}
	}
	e.emit(NewProceedsWithdrawnEvent(caller, balance))
	return new(big.Int).Set(balance), nil
}

// GetListing returns the active listing for the key, or nil when the asset is
// not listed. Reads do not take the execution lock.
func (e *Engine) GetListing(key ListingKey) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	key, err := SanitizeKey(key)
	if err != nil {
		return nil, err
	}
	listing, ok, err := e.loadListing(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return listing.Clone(), nil
}

// GetProceeds returns the seller's current withdrawable balance.
func (e *Engine) GetProceeds(seller [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.proceedsBalance(seller)
}
