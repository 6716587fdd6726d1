package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bucks/internal/backup"
	"bucks/internal/core"
	"bucks/internal/prefs"
	"bucks/internal/services"
	"bucks/internal/storage"
	"bucks/internal/watch"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	hub := watch.NewHub()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "bucks.db"), hub)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store := prefs.NewStore(repo)
	srv := NewServer(Options{
		Addr:      "127.0.0.1:0",
		Repo:      repo,
		Funds:     services.NewFundService(repo, nil),
		Movements: services.NewMovementService(repo, nil),
		Backups:   backup.NewManager(repo, store, filepath.Join(t.TempDir(), "backup"), 0, nil),
		Prefs:     store,
		Registry:  watch.NewRegistry(hub, 50*time.Millisecond),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	ts := httptest.NewServer(srv.Server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func createFund(t *testing.T, base, title string, cash float64) core.Fund {
	t.Helper()
	var created core.Fund
	resp := doJSON(t, http.MethodPost, base+"/funds", map[string]any{
		"title": title,
		"type":  "Wallet",
		"cash":  cash,
	}, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create fund: status %d", resp.StatusCode)
	}
	return created
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestFundLifecycle(t *testing.T) {
	ts := newTestServer(t)

	f := createFund(t, ts.URL, "Wallet", 100)
	if f.ID == 0 {
		t.Fatal("expected assigned identifier")
	}

	var funds []core.Fund
	if resp := doJSON(t, http.MethodGet, ts.URL+"/funds", nil, &funds); resp.StatusCode != http.StatusOK {
		t.Fatalf("list status %d", resp.StatusCode)
	}
	if len(funds) != 1 || funds[0].Title != "Wallet" {
		t.Fatalf("unexpected fund list: %+v", funds)
	}

	f.Title = "Renamed"
	var updated core.Fund
	if resp := doJSON(t, http.MethodPut, fmt.Sprintf("%s/funds/%d", ts.URL, f.ID), f, &updated); resp.StatusCode != http.StatusOK {
		t.Fatalf("update status %d", resp.StatusCode)
	}
	if updated.Title != "Renamed" {
		t.Errorf("updated title = %q", updated.Title)
	}

	resp := doJSON(t, http.MethodDelete, fmt.Sprintf("%s/funds/%d", ts.URL, f.ID), nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/funds/%d", ts.URL, f.ID), nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateFundValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/funds", map[string]any{
		"title": "Checking",
		"type":  "BankAccount",
	}, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bank account without IBAN status = %d, want 422", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/funds", map[string]any{
		"title": "Weird",
		"type":  "Spaceship",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown enum status = %d, want 400", resp.StatusCode)
	}
}

func TestMovementFlowAndReport(t *testing.T) {
	ts := newTestServer(t)

	a := createFund(t, ts.URL, "A", 100)
	b := createFund(t, ts.URL, "B", 0)

	var m core.Movement
	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/funds/%d/movements", ts.URL, a.ID), map[string]any{
		"direction":      "out",
		"counterpartyID": b.ID,
		"title":          "Transfer",
		"description":    "savings",
		"amount":         "40",
	}, &m)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("record movement status %d", resp.StatusCode)
	}

	var gotA core.Fund
	doJSON(t, http.MethodGet, fmt.Sprintf("%s/funds/%d", ts.URL, a.ID), nil, &gotA)
	if gotA.Cash != 60 {
		t.Errorf("A balance = %v, want 60", gotA.Cash)
	}

	// External income so the global report has something to count.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/funds/%d/movements", ts.URL, a.ID), map[string]any{
		"direction":        "in",
		"counterpartyName": "Employer",
		"title":            "Salary",
		"description":      "august",
		"amount":           "1000",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("record income status %d", resp.StatusCode)
	}

	var rep reportResponse
	if resp := doJSON(t, http.MethodGet, ts.URL+"/report?window=week", nil, &rep); resp.StatusCode != http.StatusOK {
		t.Fatalf("report status %d", resp.StatusCode)
	}
	if rep.Global.In != 1000 || rep.Global.Out != 0 {
		t.Errorf("global totals = %+v, want in=1000 out=0", rep.Global)
	}
	if len(rep.Funds) != 2 {
		t.Errorf("expected 2 fund reports, got %d", len(rep.Funds))
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/report?window=fortnight", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown window status = %d, want 400", resp.StatusCode)
	}

	// Deleting the transfer restores the balances.
	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/movements/%d", ts.URL, m.ID), nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete movement status %d", resp.StatusCode)
	}
	doJSON(t, http.MethodGet, fmt.Sprintf("%s/funds/%d", ts.URL, a.ID), nil, &gotA)
	if gotA.Cash != 1100 {
		t.Errorf("A balance after reversal = %v, want 1100", gotA.Cash)
	}
}

func TestMovementRejectedOnInsufficientFunds(t *testing.T) {
	ts := newTestServer(t)
	a := createFund(t, ts.URL, "A", 10)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/funds/%d/movements", ts.URL, a.ID), map[string]any{
		"direction":        "out",
		"counterpartyName": "Shop",
		"title":            "Too big",
		"description":      "d",
		"amount":           "10,01",
	}, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestFundCompleteEndpoint(t *testing.T) {
	ts := newTestServer(t)
	a := createFund(t, ts.URL, "A", 100)

	doJSON(t, http.MethodPost, fmt.Sprintf("%s/funds/%d/movements", ts.URL, a.ID), map[string]any{
		"direction":        "out",
		"counterpartyName": "Shop",
		"title":            "t",
		"description":      "d",
		"amount":           "5",
	}, nil)

	var fwm core.FundWithMovements
	resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/funds/%d/complete", ts.URL, a.ID), nil, &fwm)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d", resp.StatusCode)
	}
	if len(fwm.MovementsOut) != 1 {
		t.Errorf("expected 1 outbound movement, got %d", len(fwm.MovementsOut))
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/funds/424242/complete", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("absent fund status = %d, want 404", resp.StatusCode)
	}
}

func TestBackupEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var outcome backup.Outcome
	doJSON(t, http.MethodPost, ts.URL+"/backup/export", nil, &outcome)
	if outcome.Status != backup.StatusEmpty {
		t.Errorf("empty export status = %s", outcome.Status)
	}

	createFund(t, ts.URL, "Wallet", 100)
	doJSON(t, http.MethodPost, ts.URL+"/backup/export", nil, &outcome)
	if outcome.Status != backup.StatusSuccess {
		t.Errorf("export status = %s", outcome.Status)
	}

	doJSON(t, http.MethodPost, ts.URL+"/backup/import", nil, &outcome)
	if outcome.Status != backup.StatusSuccess {
		t.Errorf("import status = %s", outcome.Status)
	}

	var status backupStatus
	doJSON(t, http.MethodGet, ts.URL+"/backup/status", nil, &status)
	if status.LastExport == 0 || status.LastImport == 0 {
		t.Errorf("expected recorded timestamps, got %+v", status)
	}
}

func TestPrefsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var p prefs.Preferences
	doJSON(t, http.MethodGet, ts.URL+"/prefs", nil, &p)
	if p != (prefs.Preferences{}) {
		t.Errorf("expected zero prefs, got %+v", p)
	}

	currency := 2
	done := true
	resp := doJSON(t, http.MethodPut, ts.URL+"/prefs", prefsUpdate{
		Currency:       &currency,
		OnboardingDone: &done,
	}, &p)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put prefs status %d", resp.StatusCode)
	}
	if p.Currency != 2 || !p.OnboardingDone {
		t.Errorf("unexpected prefs after update: %+v", p)
	}
	if p.DateFormat != 0 {
		t.Errorf("untouched field changed: %+v", p)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/funds")
	if err != nil {
		t.Fatalf("GET /funds: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestSuspiciousRequestLoggedNotBlocked(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/funds", nil)
	req.Header.Set("User-Agent", "sqlmap/1.7")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /funds: %v", err)
	}
	resp.Body.Close()
	// Detection is heuristic: the request is flagged, never rejected.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("flagged request status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	text := string(body)
	if !strings.Contains(text, "suspicious_requests_total 1") {
		t.Errorf("metrics missing flagged request count:\n%s", text)
	}
	if !strings.Contains(text, "http_requests_total") {
		t.Errorf("metrics missing request counter:\n%s", text)
	}
}

func TestEventsStream(t *testing.T) {
	ts := newTestServer(t)
	createFund(t, ts.URL, "Wallet", 100)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	buf := make([]byte, 4096)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	chunk := string(buf[:n])
	if !bytes.Contains([]byte(chunk), []byte("event: funds")) {
		t.Errorf("first chunk missing event header: %q", chunk)
	}
	if !bytes.Contains([]byte(chunk), []byte("Wallet")) {
		t.Errorf("first chunk missing fund payload: %q", chunk)
	}
}
