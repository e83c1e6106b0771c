package bank

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

// Client submits payout requests to a remote payment service. A non-200
// response is reported as a failure so the caller can roll back the
// withdrawal.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient constructs a payment client for the given base URL.
func NewClient(base string) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("bank: invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("bank: base url must be absolute: %s", base)
	}
	return &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: defaultRequestTimeout},
	}, nil
}

// Pay requests a fund transfer to the recipient.
func (c *Client) Pay(to [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	body, err := json.Marshal(map[string]string{
		"to":     crypto.NewAddress(crypto.AccountPrefix, to[:]).String(),
		"amount": amount.String(),
	})
	if err != nil {
		return err
	}
	endpoint := c.baseURL.JoinPath("payouts").String()
	resp, err := c.http.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("bank: payout request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bank: payout rejected with status %d", resp.StatusCode)
	}
	return nil
}
