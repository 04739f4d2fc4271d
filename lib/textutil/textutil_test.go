package textutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	testCases := []struct {
		input    string
		expected float64
		ok       bool
	}{
		{"$12.50", 12.50, true},
		{"Grand Total: $1,234.56", 1234.56, true},
		{"$ 99", 99, true},
		{"$1,234,567.89 charged", 1234567.89, true},
		{"12.50", 0, false},
		{"no money here", 0, false},
	}

	for _, test := range testCases {
		amount, ok := ParseCurrency(test.input)
		require.Equal(t, test.ok, ok, "input: %q", test.input)
		require.Equal(t, test.expected, amount, "input: %q", test.input)
	}
}

func TestFindOrderID(t *testing.T) {
	id, ok := FindOrderID("/gp/your-account/order-details?orderID=113-1234567-1234567&x=1")
	require.True(t, ok)
	require.Equal(t, "113-1234567-1234567", id)

	id, ok = FindOrderID("digital order D01-9876543-1234567 placed")
	require.True(t, ok)
	require.Equal(t, "D01-9876543-1234567", id)

	_, ok = FindOrderID("13-1234567-1234567")
	require.False(t, ok)

	_, ok = FindOrderID("113-123-1234567")
	require.False(t, ok)
}

func TestFindDate(t *testing.T) {
	testCases := []struct {
		input    string
		expected time.Time
	}{
		{"Order placed January 2, 2024", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"Order placed Mar 15, 2023", time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"delivered 15/3/2023 by courier", time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"as of 2023-03-15 it shipped", time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, test := range testCases {
		parsed, ok := FindDate(test.input)
		require.True(t, ok, "input: %q", test.input)
		require.Equal(t, test.expected, parsed, "input: %q", test.input)
	}

	_, ok := FindDate("no date at all")
	require.False(t, ok)
}

func TestNormalizeSpace(t *testing.T) {
	require.Equal(t, "a b c", NormalizeSpace("  a \n\t b   c "))
}
