package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"nftmarket/crypto"
	"nftmarket/journal"
	nativecommon "nftmarket/native/common"
	"nftmarket/native/market"
)

const (
	codeMarketInvalidParams = -32041
	codeMarketNotFound      = -32042
	codeMarketForbidden     = -32043
	codeMarketConflict      = -32044
	codeMarketUpstream      = -32045
	codeMarketInternal      = -32046
)

type marketListParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
	Price      string `json:"price"`
}

type marketBuyParams struct {
	Buyer      string `json:"buyer"`
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
	Payment    string `json:"payment"`
}

type marketCancelParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
}

type marketUpdateParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
	Price      string `json:"price"`
}

type marketWithdrawParams struct {
	Caller string `json:"caller"`
}

type marketKeyParams struct {
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
}

type marketProceedsParams struct {
	Seller string `json:"seller"`
}

type marketEventsParams struct {
	After uint64 `json:"after"`
	Limit int    `json:"limit"`
}

type listingJSON struct {
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
	Price      string `json:"price"`
	Seller     string `json:"seller"`
}

type proceedsJSON struct {
	Seller  string `json:"seller"`
	Balance string `json:"balance"`
}

type withdrawResult struct {
	Seller string `json:"seller"`
	Amount string `json:"amount"`
}

type cancelResult struct {
	Cancelled bool `json:"cancelled"`
}

type purchaseResult struct {
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
	Buyer      string `json:"buyer"`
	Price      string `json:"price"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAccount(value, field string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, fmt.Errorf("%s: %w", field, err)
	}
	if addr.Prefix() != crypto.AccountPrefix {
		return out, fmt.Errorf("%s: expected %q address", field, crypto.AccountPrefix)
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseCollection(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, fmt.Errorf("collection: %w", err)
	}
	if addr.Prefix() != crypto.CollectionPrefix {
		return out, fmt.Errorf("collection: expected %q address", crypto.CollectionPrefix)
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseAmount(value, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s: value required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid decimal amount", field)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%s: must be non-negative", field)
	}
	return amount, nil
}

func parseListingKey(collection, tokenID string) (market.ListingKey, error) {
	collectionAddr, err := parseCollection(collection)
	if err != nil {
		return market.ListingKey{}, err
	}
	id, err := parseAmount(tokenID, "tokenId")
	if err != nil {
		return market.ListingKey{}, err
	}
	return market.ListingKey{Collection: collectionAddr, TokenID: id}, nil
}

func listingToJSON(key market.ListingKey, listing *market.Listing) *listingJSON {
	if listing == nil {
		return nil
	}
	tokenID := key.TokenID
	if tokenID == nil {
		tokenID = big.NewInt(0)
	}
	return &listingJSON{
		Collection: crypto.NewAddress(crypto.CollectionPrefix, key.Collection[:]).String(),
		TokenID:    tokenID.String(),
		Price:      listing.Price.String(),
		Seller:     crypto.NewAddress(crypto.AccountPrefix, listing.Seller[:]).String(),
	}
}

// marketError translates engine failures into the marketplace RPC error space.
func (s *Server) marketError(w http.ResponseWriter, req *RPCRequest, method string, err error) {
	status := http.StatusInternalServerError
	code := codeMarketInternal
	message := "internal_error"
	var data interface{} = err.Error()

	var priceErr *market.PriceNotMetError
	var withdrawErr *market.WithdrawError
	switch {
	case errors.As(err, &priceErr):
		status, code, message = http.StatusBadRequest, codeMarketInvalidParams, "price_not_met"
		data = map[string]string{
			"price":   priceErr.Price.String(),
			"offered": priceErr.Offered.String(),
		}
	case errors.Is(err, market.ErrPriceMustBeAboveZero):
		status, code, message = http.StatusBadRequest, codeMarketInvalidParams, "price_must_be_above_zero"
	case errors.Is(err, market.ErrNotListed):
		status, code, message = http.StatusNotFound, codeMarketNotFound, "not_listed"
	case errors.Is(err, market.ErrAlreadyListed):
		status, code, message = http.StatusConflict, codeMarketConflict, "already_listed"
	case errors.Is(err, market.ErrNotOwner):
		status, code, message = http.StatusForbidden, codeMarketForbidden, "not_owner"
	case errors.Is(err, market.ErrNotApprovedForMarketplace):
		status, code, message = http.StatusForbidden, codeMarketForbidden, "not_approved_for_marketplace"
	case errors.Is(err, market.ErrNoProceeds):
		status, code, message = http.StatusConflict, codeMarketConflict, "no_proceeds"
	case errors.Is(err, market.ErrReentrancy):
		status, code, message = http.StatusConflict, codeMarketConflict, "reentrancy"
	case errors.Is(err, nativecommon.ErrModulePaused):
		status, code, message = http.StatusServiceUnavailable, codeMarketConflict, "module_paused"
	case errors.As(err, &withdrawErr):
		status, code, message = http.StatusBadGateway, codeMarketUpstream, "withdraw_transfer_failed"
	}
	if s.metrics != nil {
		s.metrics.ObserveError(method, message)
	}
	writeError(w, status, req.ID, code, message, data)
}

func (s *Server) handleMarketListItem(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketListParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAccount(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	key, err := parseListingKey(params.Collection, params.TokenID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parseAmount(params.Price, "price")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	if err := s.engine.ListItem(caller, key, price); err != nil {
		s.marketError(w, req, req.Method, err)
		return
	}
	listing, err := s.engine.GetListing(key)
	if err != nil {
		s.marketError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(key, listing))
}

func (s *Server) handleMarketBuyItem(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketBuyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseAccount(params.Buyer, "buyer")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	key, err := parseListingKey(params.Collection, params.TokenID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	payment, err := parseAmount(params.Payment, "payment")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	listing, err := s.engine.GetListing(key)
	if err != nil {
		s.marketError(w, req, req.Method, err)
		return
	}
	if err := s.engine.BuyItem(buyer, key, payment); err != nil {
		s.marketError(w, req, req.Method, err)
		return
	}
	result := &purchaseResult{
		Collection: params.Collection,
		TokenID:    params.TokenID,
		Buyer:      params.Buyer,
	}
	if listing != nil {
		result.Price = listing.Price.String()
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleMarketCancelListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketCancelParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAccount(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	key, err := parseListingKey(params.Collection, params.TokenID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	if err := s.engine.CancelListing(caller, key); err != nil {
		s.marketError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, &cancelResult{Cancelled: true})
}

func (s *Server) handleMarketUpdateListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketUpdateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAccount(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	key, err := parseListingKey(params.Collection, params.TokenID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parseAmount(params.Price, "price")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	if err := s.engine.UpdateListing(caller, key, price); err != nil {
		s.marketError(w, req, req.Method, err)
		return
	}
	listing, err := s.engine.GetListing(key)
	if err != nil {
		s.marketError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(key, listing))
}

func (s *Server) handleMarketWithdrawProceeds(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketWithdrawParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAccount(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	amount, err := s.engine.WithdrawProceeds(caller)
	if err != nil {
		s.marketError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, &withdrawResult{Seller: params.Caller, Amount: amount.String()})
}

func (s *Server) handleMarketGetListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketKeyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	key, err := parseListingKey(params.Collection, params.TokenID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	listing, err := s.engine.GetListing(key)
	if err != nil {
		s.marketError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(key, listing))
}

func (s *Server) handleMarketGetProceeds(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketProceedsParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	seller, err := parseAccount(params.Seller, "seller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	balance, err := s.engine.GetProceeds(seller)
	if err != nil {
		s.marketError(w, req, req.Method, err)
		return
	}
	writeResult(w, req.ID, &proceedsJSON{Seller: params.Seller, Balance: balance.String()})
}

func (s *Server) handleMarketEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "event journal not configured", nil)
		return
	}
	params := marketEventsParams{Limit: 100}
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", "at most one parameter object expected")
		return
	}
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	records, err := s.journal.Events(params.After, params.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "journal read failed", err.Error())
		return
	}
	if records == nil {
		records = []journal.Record{}
	}
	writeResult(w, req.ID, records)
}
