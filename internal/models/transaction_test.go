package models

import "testing"

func TestIsValidTransactionTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{TransactionStatusPending, TransactionStatusProcessing, true},
		{TransactionStatusProcessing, TransactionStatusCompleted, true},
		{TransactionStatusCompleted, TransactionStatusReleased, true},
		{TransactionStatusCompleted, TransactionStatusRefunded, true},

		// Failure paths
		{TransactionStatusPending, TransactionStatusFailed, true},
		{TransactionStatusProcessing, TransactionStatusFailed, true},
		{TransactionStatusPending, TransactionStatusCancelled, true},
		{TransactionStatusProcessing, TransactionStatusCancelled, true},

		// Escrow hold may only be settled once
		{TransactionStatusReleased, TransactionStatusRefunded, false},
		{TransactionStatusRefunded, TransactionStatusReleased, false},
		{TransactionStatusReleased, TransactionStatusCompleted, false},

		// No skipping the gateway confirmation
		{TransactionStatusPending, TransactionStatusCompleted, false},
		{TransactionStatusPending, TransactionStatusReleased, false},
		{TransactionStatusProcessing, TransactionStatusReleased, false},

		// Settled funds cannot fail
		{TransactionStatusCompleted, TransactionStatusFailed, false},
		{TransactionStatusCompleted, TransactionStatusCancelled, false},
		{TransactionStatusFailed, TransactionStatusProcessing, false},

		{"nonexistent", TransactionStatusProcessing, false},
		{TransactionStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTransactionTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransactionTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllTransactionStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		TransactionStatusPending, TransactionStatusProcessing, TransactionStatusCompleted,
		TransactionStatusReleased, TransactionStatusRefunded, TransactionStatusFailed,
		TransactionStatusCancelled,
	}

	for _, status := range allStatuses {
		if _, ok := ValidTransactionTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidTransactionTransitions map", status)
		}
	}
}

func TestTerminalTransactionStatuses(t *testing.T) {
	terminal := []string{
		TransactionStatusReleased, TransactionStatusRefunded,
		TransactionStatusFailed, TransactionStatusCancelled,
	}
	for _, status := range terminal {
		if !IsTerminalTransactionStatus(status) {
			t.Errorf("status %q should be terminal", status)
		}
	}

	nonTerminal := []string{
		TransactionStatusPending, TransactionStatusProcessing, TransactionStatusCompleted,
	}
	for _, status := range nonTerminal {
		if IsTerminalTransactionStatus(status) {
			t.Errorf("status %q should not be terminal", status)
		}
	}
}

func TestNonTerminalStatusesMatchTransitionMap(t *testing.T) {
	for _, status := range NonTerminalTransactionStatuses {
		if IsTerminalTransactionStatus(status) {
			t.Errorf("status %q listed as non-terminal but has no transitions", status)
		}
	}
	if len(NonTerminalTransactionStatuses) != len(ValidTransactionTransitions)-4 {
		t.Errorf("NonTerminalTransactionStatuses out of sync with ValidTransactionTransitions")
	}
}
