package ledger

import (
	"errors"
	"testing"
)

func TestRequestSettlement(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(l *Ledger)
		wantStatus Status
		wantState  State
		wantErr    error
	}{
		{
			name:       "outstanding becomes requested",
			setup:      func(l *Ledger) {},
			wantStatus: StatusOK,
			wantState:  Requested,
		},
		{
			name:       "requested twice",
			setup:      func(l *Ledger) { l.RequestSettlement(alice, bob) },
			wantStatus: StatusAlreadyRequested,
			wantState:  Requested,
		},
		{
			name:       "already settled",
			setup:      func(l *Ledger) { l.ConfirmSettlement(alice, bob) },
			wantStatus: StatusAlreadySettled,
			wantState:  Settled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			mustApply(t, l, Add, owes(alice, bob, 3000))
			tt.setup(l)

			status, err := l.RequestSettlement(bob, alice)
			if err != nil {
				t.Fatalf("RequestSettlement failed: %v", err)
			}
			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
			assertDebt(t, l, alice, bob, 3000, tt.wantState)
		})
	}
}

func TestConfirmSettlement(t *testing.T) {
	t.Run("from requested", func(t *testing.T) {
		l := New()
		mustApply(t, l, Add, owes(alice, bob, 3000))
		l.RequestSettlement(alice, bob)

		status, err := l.ConfirmSettlement(alice, bob)
		if err != nil || status != StatusOK {
			t.Fatalf("ConfirmSettlement = (%q, %v), want ok", status, err)
		}
		// The settled amount is retained.
		assertDebt(t, l, alice, bob, 3000, Settled)
	})

	t.Run("from outstanding", func(t *testing.T) {
		l := New()
		mustApply(t, l, Add, owes(alice, bob, 3000))

		status, err := l.ConfirmSettlement(bob, alice)
		if err != nil || status != StatusOK {
			t.Fatalf("ConfirmSettlement = (%q, %v), want ok", status, err)
		}
		assertDebt(t, l, alice, bob, 3000, Settled)
	})

	t.Run("already settled", func(t *testing.T) {
		l := New()
		mustApply(t, l, Add, owes(alice, bob, 3000))
		l.ConfirmSettlement(alice, bob)

		status, err := l.ConfirmSettlement(alice, bob)
		if err != nil {
			t.Fatalf("ConfirmSettlement failed: %v", err)
		}
		if status != StatusAlreadySettled {
			t.Errorf("status = %q, want %q", status, StatusAlreadySettled)
		}
	})
}

func TestSettlement_NoSuchDebt(t *testing.T) {
	l := New()
	if _, err := l.RequestSettlement(alice, bob); !errors.Is(err, ErrNoSuchDebt) {
		t.Errorf("RequestSettlement error = %v, want ErrNoSuchDebt", err)
	}
	if _, err := l.ConfirmSettlement(alice, bob); !errors.Is(err, ErrNoSuchDebt) {
		t.Errorf("ConfirmSettlement error = %v, want ErrNoSuchDebt", err)
	}
}

func TestTransitionTable(t *testing.T) {
	if _, _, err := transition(Requested, evReopen); err == nil {
		t.Error("reopen from requested should be rejected")
	}
	if _, _, err := transition(Outstanding, evReopen); err == nil {
		t.Error("reopen from outstanding should be rejected")
	}
	if _, _, err := transition("bogus", evRequest); !errors.Is(err, ErrCorruptEntry) {
		t.Errorf("unknown state error = %v, want ErrCorruptEntry", err)
	}
	to, _, err := transition(Settled, evReopen)
	if err != nil || to != Outstanding {
		t.Errorf("reopen from settled = (%q, %v), want outstanding", to, err)
	}
}

func TestRecordPayment(t *testing.T) {
	t.Run("partial payment reduces debt", func(t *testing.T) {
		l := New()
		mustApply(t, l, Add, owes(bob, alice, 3000))

		applied, status, err := l.RecordPayment(bob, alice, 1000)
		if err != nil || status != StatusOK {
			t.Fatalf("RecordPayment = (%q, %v)", status, err)
		}
		if applied != 1000 {
			t.Errorf("applied = %d, want 1000", applied)
		}
		assertDebt(t, l, bob, alice, 2000, Outstanding)
	})

	t.Run("overpayment is capped and clears the entry", func(t *testing.T) {
		l := New()
		mustApply(t, l, Add, owes(alice, bob, 3000))

		applied, _, err := l.RecordPayment(alice, bob, 5000)
		if err != nil {
			t.Fatalf("RecordPayment failed: %v", err)
		}
		if applied != 3000 {
			t.Errorf("applied = %d, want 3000", applied)
		}
		if l.Len() != 0 {
			t.Errorf("entry not pruned after full payment")
		}
	})

	t.Run("creditor cannot pay", func(t *testing.T) {
		l := New()
		mustApply(t, l, Add, owes(alice, bob, 3000))

		if _, _, err := l.RecordPayment(bob, alice, 100); !errors.Is(err, ErrPaymentDirection) {
			t.Errorf("error = %v, want ErrPaymentDirection", err)
		}
	})

	t.Run("settled pair", func(t *testing.T) {
		l := New()
		mustApply(t, l, Add, owes(alice, bob, 3000))
		l.ConfirmSettlement(alice, bob)

		_, status, err := l.RecordPayment(alice, bob, 100)
		if err != nil || status != StatusAlreadySettled {
			t.Errorf("RecordPayment = (%q, %v), want already settled", status, err)
		}
	})

	t.Run("invalid amount and missing pair", func(t *testing.T) {
		l := New()
		if _, _, err := l.RecordPayment(alice, bob, 0); !errors.Is(err, ErrInvalidPayment) {
			t.Errorf("error = %v, want ErrInvalidPayment", err)
		}
		if _, _, err := l.RecordPayment(alice, bob, 100); !errors.Is(err, ErrNoSuchDebt) {
			t.Errorf("error = %v, want ErrNoSuchDebt", err)
		}
	})
}
