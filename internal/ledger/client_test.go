package ledger

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Velvet-Capital/SwarmDeFAI/internal/httpx"
)

func testClient(serverURL string) *Client {
	return New(httpx.New(1*time.Second, 0), serverURL, log.New(io.Discard, "", 0))
}

func TestAddUserSwallowsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	// Must not panic or surface the failure.
	testClient(server.URL).AddUser(context.Background(), 1, "alice", "0xabc")
}

func TestAddReferredUserReportsOutcome(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	ok := testClient(server.URL).AddReferredUser(context.Background(), 7, "bob", "0xdef", "ref-99")
	if !ok {
		t.Fatal("expected success")
	}
	if gotPath != "/add-referred-user" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotBody["referralUser"] != "ref-99" {
		t.Fatalf("unexpected payload: %v", gotBody)
	}
}

func TestPositionsLowercasesWallet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("walletAddress"); got != "0xabcdef" {
			t.Errorf("wallet not lowercased: %s", got)
		}
		io.WriteString(w, `{"tokens":[{"tokenAddress":"0x1","tokenName":"TK","tokenAmount":"1.25"}]}`)
	}))
	defer server.Close()

	entries, err := testClient(server.URL).Positions(context.Background(), "0xABCdef")
	if err != nil {
		t.Fatalf("Positions failed: %v", err)
	}
	if len(entries) != 1 || entries[0].TokenName != "TK" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
