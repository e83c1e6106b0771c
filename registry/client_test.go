package registry

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nftmarket/crypto"
)

func TestNewClientValidatesBaseURL(t *testing.T) {
	if _, err := NewClient("registry.internal"); err == nil {
		t.Fatalf("expected error for relative url")
	}
	if _, err := NewClient("http://registry.internal:8080"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientOwnerOf(t *testing.T) {
	owner := addr(0x01)
	ownerStr := crypto.NewAddress(crypto.AccountPrefix, owner[:]).String()
	collection := addr(0xA0)
	collectionStr := crypto.NewAddress(crypto.CollectionPrefix, collection[:]).String()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/collections/" + collectionStr + "/assets/7/owner"
		if r.URL.Path != wantPath {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"owner": ownerStr})
	}))
	defer ts.Close()

	client, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got, err := client.OwnerOf(collection, big.NewInt(7))
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if got != owner {
		t.Fatalf("unexpected owner")
	}
}

func TestClientIsApproved(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/approved") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"approved": true})
	}))
	defer ts.Close()

	client, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	approved, err := client.IsApprovedForMarketplace(addr(0xA0), big.NewInt(7))
	if err != nil {
		t.Fatalf("approval check: %v", err)
	}
	if !approved {
		t.Fatalf("expected approved")
	}
}

func TestClientTransfer(t *testing.T) {
	from := addr(0x01)
	to := addr(0x02)
	var received map[string]string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/transfer") {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Transfer(addr(0xA0), big.NewInt(7), from, to); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if received["from"] != crypto.NewAddress(crypto.AccountPrefix, from[:]).String() {
		t.Fatalf("unexpected from: %s", received["from"])
	}
	if received["to"] != crypto.NewAddress(crypto.AccountPrefix, to[:]).String() {
		t.Fatalf("unexpected to: %s", received["to"])
	}
}

func TestClientTransferRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer ts.Close()

	client, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Transfer(addr(0xA0), big.NewInt(7), addr(0x01), addr(0x02)); err == nil {
		t.Fatalf("expected error for rejected transfer")
	}
}
