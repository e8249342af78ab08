package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func classify(total string, amounts ...string) (ReconciliationStatus, []string) {
	payments := make([]Payment, 0, len(amounts))
	for _, a := range amounts {
		payments = append(payments, pay(a))
	}
	return Classify(Summarize(decimal.RequireFromString(total), payments), payments)
}

func TestClassify(t *testing.T) {
	status, notes := classify("5000.00", "5000.00")
	require.Equal(t, Reconciled, status)
	require.Empty(t, notes)

	status, _ = classify("1000.00", "1200.00")
	require.Equal(t, Overpaid, status)

	status, _ = classify("1000.00", "400.00")
	require.Equal(t, Underpaid, status)

	status, _ = classify("1000.00")
	require.Equal(t, Underpaid, status)
}

func TestClassifyDiscrepantOnBadData(t *testing.T) {
	status, notes := classify("1000.00", "-50.00", "1050.00")
	require.Equal(t, Discrepant, status)
	require.NotEmpty(t, notes)

	status, notes = classify("0", "100.00")
	require.Equal(t, Discrepant, status)
	require.Contains(t, notes[0], "zero-total")
}

// Every classification has recommendations, and unknown values fall back to
// manual review instead of an empty answer.
func TestRecommendationsForTotal(t *testing.T) {
	for _, status := range []ReconciliationStatus{Reconciled, Overpaid, Underpaid, Discrepant} {
		require.NotEmpty(t, RecommendationsFor(status), "status %s", status)
	}
	require.Equal(t, []string{"manual review required"}, RecommendationsFor(ReconciliationStatus("UNKNOWN")))
}

// Callers may mutate the returned slice without corrupting the table.
func TestRecommendationsForCopies(t *testing.T) {
	first := RecommendationsFor(Overpaid)
	first[0] = "mutated"
	require.NotEqual(t, "mutated", RecommendationsFor(Overpaid)[0])
}
