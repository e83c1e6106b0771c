package registry

import (
	"errors"
	"math/big"
	"sync"
)

var (
	ErrUnknownAsset   = errors.New("registry: unknown asset")
	ErrWrongOwner     = errors.New("registry: transfer from non-owner")
	ErrAlreadyMinted  = errors.New("registry: asset already minted")
	ErrNotAuthorized  = errors.New("registry: marketplace not authorised for asset")
	ErrInvalidTokenID = errors.New("registry: token id must be non-negative")
)

type assetKey struct {
	collection [20]byte
	tokenID    string
}

func newAssetKey(collection [20]byte, tokenID *big.Int) (assetKey, error) {
	if tokenID == nil {
		tokenID = big.NewInt(0)
	}
	if tokenID.Sign() < 0 {
		return assetKey{}, ErrInvalidTokenID
	}
	return assetKey{collection: collection, tokenID: tokenID.String()}, nil
}

// Memory is an in-process asset registry for local development and tests. It
// implements the ownership, authorisation and transfer surface the marketplace
// engine expects from the external registry.
type Memory struct {
	mu       sync.RWMutex
	owners   map[assetKey][20]byte
	approved map[assetKey]bool
}

func NewMemory() *Memory {
	return &Memory{
		owners:   make(map[assetKey][20]byte),
		approved: make(map[assetKey]bool),
	}
}

// Mint records a new asset owned by the given principal.
func (m *Memory) Mint(collection [20]byte, tokenID *big.Int, owner [20]byte) error {
	key, err := newAssetKey(collection, tokenID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.owners[key]; ok {
		return ErrAlreadyMinted
	}
	m.owners[key] = owner
	return nil
}

// SetApproval grants or revokes the marketplace's authority to move the asset.
func (m *Memory) SetApproval(collection [20]byte, tokenID *big.Int, approved bool) error {
	key, err := newAssetKey(collection, tokenID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.owners[key]; !ok {
		return ErrUnknownAsset
	}
	m.approved[key] = approved
	return nil
}

func (m *Memory) OwnerOf(collection [20]byte, tokenID *big.Int) ([20]byte, error) {
	key, err := newAssetKey(collection, tokenID)
	if err != nil {
		return [20]byte{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.owners[key]
	if !ok {
		return [20]byte{}, ErrUnknownAsset
	}
	return owner, nil
}

func (m *Memory) IsApprovedForMarketplace(collection [20]byte, tokenID *big.Int) (bool, error) {
	key, err := newAssetKey(collection, tokenID)
	if err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.owners[key]; !ok {
		return false, ErrUnknownAsset
	}
	return m.approved[key], nil
}

// Transfer moves the asset between principals. Approval is consumed by the
// transfer, mirroring registries that clear per-token authorisations when
// ownership changes.
func (m *Memory) Transfer(collection [20]byte, tokenID *big.Int, from, to [20]byte) error {
	key, err := newAssetKey(collection, tokenID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[key]
	if !ok {
		return ErrUnknownAsset
	}
	if owner != from {
		return ErrWrongOwner
	}
	if !m.approved[key] {
		return ErrNotAuthorized
	}
	m.owners[key] = to
	delete(m.approved, key)
	return nil
}
