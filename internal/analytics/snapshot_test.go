package analytics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateNetProfit(t *testing.T) {
	s := NewSnapshot("u1", Period30Days)
	s.TotalSales = 1180
	s.TotalPurchases = 300
	s.TotalExpenses = 80.5
	s.CalculateNetProfit()
	assert.InDelta(t, 799.5, s.NetProfit, 1e-9)
}

func TestCalculatePaymentPercentages(t *testing.T) {
	s := NewSnapshot("u1", Period30Days)
	s.PaymentMethods = []PaymentMethodStat{
		{Method: "UPI", Total: 600, Count: 1},
		{Method: "Cash", Total: 400, Count: 1},
	}
	s.CalculatePaymentPercentages()
	assert.InDelta(t, 60, s.PaymentMethods[0].Percentage, 1e-9)
	assert.InDelta(t, 40, s.PaymentMethods[1].Percentage, 1e-9)

	s.PaymentMethods = []PaymentMethodStat{{Method: "Cash", Total: 0}}
	s.CalculatePaymentPercentages()
	assert.Zero(t, s.PaymentMethods[0].Percentage)
}

func TestSnapshotEncodesEmptyCollections(t *testing.T) {
	raw, err := json.Marshal(NewSnapshot("u1", Period7Days))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"paymentMethods", "salesByDate", "topProducts", "topCustomers", "dailyPayments"} {
		assert.Equal(t, []any{}, decoded[key], key)
	}
	assert.Equal(t, "7days", decoded["dateRange"].(map[string]any)["period"])
}

func TestResetKeepsIdentity(t *testing.T) {
	s := NewSnapshot("u1", Period90Days)
	id := s.ID
	s.TotalSales = 10
	s.TopProducts = append(s.TopProducts, ProductStat{ProductName: "x"})
	s.Reset()
	assert.Equal(t, id, s.ID)
	assert.Zero(t, s.TotalSales)
	assert.Empty(t, s.TopProducts)
	assert.NotNil(t, s.TopProducts)
}
