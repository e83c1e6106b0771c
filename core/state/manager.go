package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/native/market"
	"nftmarket/storage"
)

// Manager persists the two marketplace tables, active listings and seller
// proceeds, on top of a raw key-value database. Values are RLP encoded and
// keys are keccak-derived from a string prefix plus the logical key, matching
// the layout used for the rest of the durable state.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	listingPrefix  = []byte("listing:")
	proceedsPrefix = []byte("proceeds:")
)

type storedListing struct {
	Price  *big.Int
	Seller [20]byte
}

func listingStorageKey(key market.ListingKey) []byte {
	tokenID := key.TokenID
	if tokenID == nil {
		tokenID = big.NewInt(0)
	}
	token := tokenID.Bytes()
	buf := make([]byte, 0, len(listingPrefix)+len(key.Collection)+len(token))
	buf = append(buf, listingPrefix...)
	buf = append(buf, key.Collection[:]...)
	buf = append(buf, token...)
	return ethcrypto.Keccak256(buf)
}

func proceedsStorageKey(seller [20]byte) []byte {
	buf := make([]byte, 0, len(proceedsPrefix)+len(seller))
	buf = append(buf, proceedsPrefix...)
	buf = append(buf, seller[:]...)
	return ethcrypto.Keccak256(buf)
}

// ListingPut stores the listing for the key. Listings with a non-positive
// price are rejected: absence and a zero price are the same state, so a
// zero-price listing must never reach the database.
func (m *Manager) ListingPut(key market.ListingKey, listing *market.Listing) error {
	sanitizedKey, err := market.SanitizeKey(key)
	if err != nil {
		return err
	}
	sanitized, err := market.SanitizeListing(listing)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(&storedListing{Price: sanitized.Price, Seller: sanitized.Seller})
	if err != nil {
		return fmt.Errorf("state: encode listing: %w", err)
	}
	return m.db.Put(listingStorageKey(sanitizedKey), encoded)
}

// ListingGet loads the listing for the key. The second return value reports
// whether an active listing exists.
func (m *Manager) ListingGet(key market.ListingKey) (*market.Listing, bool, error) {
	sanitizedKey, err := market.SanitizeKey(key)
	if err != nil {
		return nil, false, err
	}
	data, err := m.db.Get(listingStorageKey(sanitizedKey))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stored := new(storedListing)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("state: decode listing: %w", err)
	}
	listing := &market.Listing{Price: stored.Price, Seller: stored.Seller}
	if listing.Price == nil || listing.Price.Sign() <= 0 {
		return nil, false, nil
	}
	return listing, true, nil
}

// ListingDelete removes the listing for the key. Deleting an absent listing is
// a no-op.
func (m *Manager) ListingDelete(key market.ListingKey) error {
	sanitizedKey, err := market.SanitizeKey(key)
	if err != nil {
		return err
	}
	return m.db.Delete(listingStorageKey(sanitizedKey))
}

// ProceedsGet returns the seller's accumulated withdrawable balance. A seller
// with no recorded proceeds has a zero balance.
func (m *Manager) ProceedsGet(seller [20]byte) (*big.Int, error) {
	data, err := m.db.Get(proceedsStorageKey(seller))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(data, balance); err != nil {
		return nil, fmt.Errorf("state: decode proceeds: %w", err)
	}
	return balance, nil
}

// ProceedsPut records the seller's balance. A zero balance deletes the entry
// so the table only holds sellers who are actually owed money.
func (m *Manager) ProceedsPut(seller [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: proceeds balance must be non-negative")
	}
	if amount.Sign() == 0 {
		return m.db.Delete(proceedsStorageKey(seller))
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return fmt.Errorf("state: encode proceeds: %w", err)
	}
	return m.db.Put(proceedsStorageKey(seller), encoded)
}
