package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nftmarket/crypto"
)

const defaultRequestTimeout = 10 * time.Second

// Client talks to a remote asset registry over HTTP. The registry is the sole
// authority over asset ownership; the marketplace only queries and requests
// transfers, it never caches answers.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient constructs a registry client for the given base URL.
func NewClient(base string) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("registry: invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("registry: base url must be absolute: %s", base)
	}
	return &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: defaultRequestTimeout},
	}, nil
}

func (c *Client) assetURL(collection [20]byte, tokenID *big.Int, suffix string) string {
	if tokenID == nil {
		tokenID = big.NewInt(0)
	}
	collectionStr := crypto.NewAddress(crypto.CollectionPrefix, collection[:]).String()
	return c.baseURL.JoinPath("collections", collectionStr, "assets", tokenID.String(), suffix).String()
}

func (c *Client) getJSON(endpoint string, out interface{}) error {
	resp, err := c.http.Get(endpoint)
	if err != nil {
		return fmt.Errorf("registry: request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry: unexpected status %d from %s", resp.StatusCode, endpoint)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("registry: decode response: %w", err)
	}
	return nil
}

func (c *Client) OwnerOf(collection [20]byte, tokenID *big.Int) ([20]byte, error) {
	var payload struct {
		Owner string `json:"owner"`
	}
	if err := c.getJSON(c.assetURL(collection, tokenID, "owner"), &payload); err != nil {
		return [20]byte{}, err
	}
	owner, err := crypto.DecodeAddress(payload.Owner)
	if err != nil {
		return [20]byte{}, fmt.Errorf("registry: invalid owner address: %w", err)
	}
	var out [20]byte
	copy(out[:], owner.Bytes())
	return out, nil
}

func (c *Client) IsApprovedForMarketplace(collection [20]byte, tokenID *big.Int) (bool, error) {
	var payload struct {
		Approved bool `json:"approved"`
	}
	if err := c.getJSON(c.assetURL(collection, tokenID, "approved"), &payload); err != nil {
		return false, err
	}
	return payload.Approved, nil
}

func (c *Client) Transfer(collection [20]byte, tokenID *big.Int, from, to [20]byte) error {
	body, err := json.Marshal(map[string]string{
		"from": crypto.NewAddress(crypto.AccountPrefix, from[:]).String(),
		"to":   crypto.NewAddress(crypto.AccountPrefix, to[:]).String(),
	})
	if err != nil {
		return err
	}
	endpoint := c.assetURL(collection, tokenID, "transfer")
	resp, err := c.http.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("registry: transfer request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry: transfer rejected with status %d", resp.StatusCode)
	}
	return nil
}
