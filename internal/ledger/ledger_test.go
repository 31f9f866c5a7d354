package ledger

import (
	"path/filepath"
	"testing"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "transfers.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndList(t *testing.T) {
	l := openTestLedger(t)

	first, err := l.Record(Entry{
		SessionID:     "S1",
		BankID:        "atlantico",
		Success:       true,
		Message:       "transfer completed",
		TransactionID: "TXN1",
		Amount:        1000,
		ReceiverIBAN:  "AO06000600000100037131174",
		Fee:           500,
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if first.ID == "" {
		t.Error("expected generated entry ID")
	}

	if _, err := l.Record(Entry{BankID: "bai", Success: false, Message: "wrong otp", Amount: 200}); err != nil {
		t.Fatalf("second Record failed: %v", err)
	}

	entries, err := l.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	var found bool
	for _, e := range entries {
		if e.TransactionID == "TXN1" {
			found = true
			if !e.Success || e.Amount != 1000 || e.Fee != 500 || e.BankID != "atlantico" {
				t.Errorf("entry mismatch: %+v", e)
			}
		}
	}
	if !found {
		t.Error("recorded entry not returned by List")
	}
}

func TestListEmpty(t *testing.T) {
	l := openTestLedger(t)

	entries, err := l.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty ledger, got %d entries", len(entries))
	}
}

func TestListRespectsLimit(t *testing.T) {
	l := openTestLedger(t)

	for i := 0; i < 5; i++ {
		if _, err := l.Record(Entry{BankID: "atlantico", Amount: 100}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := l.List(3)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}
}
