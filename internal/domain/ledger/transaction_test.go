package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionRow_BetterSummaryThan(t *testing.T) {
	row := func(balance, charged int64) TransactionRow {
		return TransactionRow{
			BalanceOwed:   decimal.NewFromInt(balance),
			AmountCharged: decimal.NewFromInt(charged),
		}
	}

	t.Run("HigherBalanceWins", func(t *testing.T) {
		assert.True(t, row(5, 1).BetterSummaryThan(row(2, 9)))
		assert.False(t, row(2, 9).BetterSummaryThan(row(5, 1)))
	})

	t.Run("BalanceTieFallsThroughToCharged", func(t *testing.T) {
		assert.True(t, row(3, 10).BetterSummaryThan(row(3, 4)))
		assert.False(t, row(3, 4).BetterSummaryThan(row(3, 10)))
	})

	t.Run("FullTieIsNotBetter", func(t *testing.T) {
		assert.False(t, row(3, 3).BetterSummaryThan(row(3, 3)))
	})
}

func TestTransactionRow_Outstanding(t *testing.T) {
	assert.True(t, TransactionRow{BalanceOwed: decimal.NewFromFloat(0.01)}.Outstanding())
	assert.False(t, TransactionRow{BalanceOwed: decimal.Zero}.Outstanding())
}
