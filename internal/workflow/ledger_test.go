package workflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func pay(amount string) Payment {
	return Payment{Amount: decimal.RequireFromString(amount)}
}

func reversedPay(amount string) Payment {
	at := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	p := pay(amount)
	p.ReversedAt = &at
	return p
}

func TestSummarizeFullPayment(t *testing.T) {
	s := Summarize(decimal.RequireFromString("5000.00"), []Payment{pay("5000.00")})
	require.True(t, s.Remaining.IsZero())
	require.True(t, s.IsFullyPaid)
	require.False(t, s.IsPartial)
	require.False(t, s.IsOverpaid)
	require.True(t, s.PercentPaid().Equal(decimal.NewFromInt(100)))
}

func TestSummarizePartialThenFinal(t *testing.T) {
	total := decimal.RequireFromString("5000.00")

	s := Summarize(total, []Payment{pay("2000.00")})
	require.True(t, s.Remaining.Equal(decimal.RequireFromString("3000.00")))
	require.True(t, s.IsPartial)
	require.False(t, s.IsFullyPaid)
	require.True(t, s.PercentPaid().Equal(decimal.NewFromInt(40)))

	s = Summarize(total, []Payment{pay("2000.00"), pay("3000.00")})
	require.True(t, s.Remaining.IsZero())
	require.True(t, s.IsFullyPaid)
	require.False(t, s.IsPartial)
}

func TestSummarizeOverpaymentClampsRemaining(t *testing.T) {
	s := Summarize(decimal.RequireFromString("1000.00"), []Payment{pay("1200.00")})
	require.True(t, s.Remaining.IsZero(), "remaining must clamp at zero, got %s", s.Remaining)
	require.True(t, s.IsOverpaid)
	require.True(t, s.IsFullyPaid)
	require.True(t, s.TotalPaid.Equal(decimal.RequireFromString("1200.00")))
}

func TestSummarizeNoPayments(t *testing.T) {
	s := Summarize(decimal.RequireFromString("750.50"), nil)
	require.True(t, s.Remaining.Equal(decimal.RequireFromString("750.50")))
	require.False(t, s.IsPartial)
	require.False(t, s.IsFullyPaid)
	require.True(t, s.PercentPaid().IsZero())
}

// Fixed-point arithmetic must survive the classic float trap: three 0.1 AED
// payments against a 0.30 invoice reconcile exactly.
func TestSummarizeExactDecimalArithmetic(t *testing.T) {
	s := Summarize(decimal.RequireFromString("0.30"), []Payment{pay("0.10"), pay("0.10"), pay("0.10")})
	require.True(t, s.Remaining.IsZero())
	require.True(t, s.IsFullyPaid)
	require.False(t, s.IsOverpaid)
}

// Summation is commutative: every ordering of the same payments yields the
// same summary.
func TestSummarizeOrderIndependent(t *testing.T) {
	total := decimal.RequireFromString("900.00")
	payments := []Payment{pay("100.00"), pay("250.50"), pay("49.50"), pay("500.00")}

	perms := permutations(payments)
	require.NotEmpty(t, perms)
	base := Summarize(total, perms[0])
	for i, p := range perms[1:] {
		s := Summarize(total, p)
		require.True(t, s.TotalPaid.Equal(base.TotalPaid), "permutation %d", i+1)
		require.True(t, s.Remaining.Equal(base.Remaining), "permutation %d", i+1)
		require.Equal(t, base.IsFullyPaid, s.IsFullyPaid, "permutation %d", i+1)
	}
}

func permutations(in []Payment) [][]Payment {
	if len(in) <= 1 {
		return [][]Payment{append([]Payment(nil), in...)}
	}
	var out [][]Payment
	for i := range in {
		rest := make([]Payment, 0, len(in)-1)
		rest = append(rest, in[:i]...)
		rest = append(rest, in[i+1:]...)
		for _, tail := range permutations(rest) {
			out = append(out, append([]Payment{in[i]}, tail...))
		}
	}
	return out
}

// A reversed payment's money is gone: it must not count toward the balance.
func TestSummarizeExcludesReversedPayments(t *testing.T) {
	total := decimal.RequireFromString("5000.00")

	s := Summarize(total, []Payment{reversedPay("5000.00")})
	require.True(t, s.TotalPaid.IsZero())
	require.True(t, s.Remaining.Equal(total))
	require.False(t, s.IsFullyPaid)
	require.False(t, s.IsPartial)

	s = Summarize(total, []Payment{pay("2000.00"), reversedPay("3000.00")})
	require.True(t, s.TotalPaid.Equal(decimal.RequireFromString("2000.00")))
	require.True(t, s.Remaining.Equal(decimal.RequireFromString("3000.00")))
	require.True(t, s.IsPartial)
}

func TestPercentPaidZeroTotal(t *testing.T) {
	s := Summarize(decimal.Zero, []Payment{pay("100.00")})
	require.True(t, s.PercentPaid().IsZero())
	require.False(t, s.IsFullyPaid, "zero-total invoice is never fully paid")
}

func TestPercentPaidRounding(t *testing.T) {
	s := Summarize(decimal.RequireFromString("3.00"), []Payment{pay("1.00")})
	require.True(t, s.PercentPaid().Equal(decimal.RequireFromString("33.33")), "got %s", s.PercentPaid())
}
