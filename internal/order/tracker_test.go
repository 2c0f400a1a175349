package order

import "testing"

func TestTrackerPartialPayment(t *testing.T) {
	var tr Tracker
	first := 60.0
	tr.RecordCheckout("V-100", 100, &first)
	if tr.Complete() {
		t.Fatal("expected incomplete after partial payment")
	}
	tr.RecordPayment(40)
	if !tr.Complete() {
		t.Fatal("expected complete after balance paid")
	}
	s := tr.Snapshot()
	if s.Paid != 100 || s.Remaining != 0 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
}

func TestTrackerCashSettlement(t *testing.T) {
	var tr Tracker
	tr.RecordCheckout("V-101", 59.99, nil)
	if !tr.Complete() {
		t.Fatal("expected full cash settlement to complete immediately")
	}
	if s := tr.Snapshot(); s.Paid != 59.99 {
		t.Fatalf("expected paid 59.99, got %v", s.Paid)
	}
}

func TestTrackerCreditSale(t *testing.T) {
	var tr Tracker
	zero := 0.0
	tr.RecordCheckout("V-102", 250, &zero)
	if tr.Complete() {
		t.Fatal("credit sale should start unpaid")
	}
	if s := tr.Snapshot(); s.Remaining != 250 {
		t.Fatalf("expected remaining 250, got %v", s.Remaining)
	}
}

func TestTrackerIdleIsComplete(t *testing.T) {
	var tr Tracker
	if !tr.Complete() {
		t.Fatal("idle tracker should report complete")
	}
	tr.RecordPayment(10)
	if tr.Active() {
		t.Fatal("payment on idle tracker should be ignored")
	}
}

func TestTrackerClearAndRestore(t *testing.T) {
	var tr Tracker
	first := 20.0
	tr.RecordCheckout("V-103", 80, &first)
	snap := tr.Snapshot()
	restored := Restore(snap)
	if restored.OrderID() != "V-103" || restored.Complete() {
		t.Fatalf("restore mismatch: %+v", restored.Snapshot())
	}
	tr.Clear()
	if tr.Active() || tr.OrderID() != "" {
		t.Fatal("expected cleared tracker to be idle")
	}
}

func TestTrackerRoundsPayments(t *testing.T) {
	var tr Tracker
	first := 10.005
	tr.RecordCheckout("V-104", 30.004999, &first)
	s := tr.Snapshot()
	if s.Total != 30.0 || s.Paid != 10.01 {
		t.Fatalf("expected rounded amounts, got %+v", s)
	}
}
