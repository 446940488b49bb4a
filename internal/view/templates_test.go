package view

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	money, err := NewMoneyFormatter("en-US", "USD")
	require.NoError(t, err)

	engine, err := NewEngine(money)
	assert.NoError(t, err, "Templates should parse without error")
	require.NotNil(t, engine)
	assert.NotNil(t, engine.templates.Lookup("invoices/print.html"))
	assert.Same(t, money, engine.Money())
}

func TestNewEngineRequiresFormatter(t *testing.T) {
	_, err := NewEngine(nil)
	require.Error(t, err)
}

func TestMoneyFormatter(t *testing.T) {
	f, err := NewMoneyFormatter("en-IN", "INR")
	require.NoError(t, err)
	assert.Equal(t, "INR", f.Currency())

	assert.Equal(t, "INR 275.00", f.Format(decimal.RequireFromString("275")))
	assert.Equal(t, "INR 1,234.50", f.Format(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "INR 0.70", f.Format(decimal.RequireFromString("0.7007")))
}

func TestMoneyFormatterKeepsPrecision(t *testing.T) {
	f, err := NewMoneyFormatter("en-US", "USD")
	require.NoError(t, err)

	assert.Equal(t, "USD 12,345,678,901,234,567.89", f.Format(decimal.RequireFromString("12345678901234567.89")))
	assert.Equal(t, "USD 123,456,789,012,345,678,901.50", f.Format(decimal.RequireFromString("123456789012345678901.5")))
	assert.Equal(t, "USD -1,234.50", f.Format(decimal.RequireFromString("-1234.5")))
	assert.Equal(t, "USD 0.00", f.Format(decimal.RequireFromString("-0.001")))

	de, err := NewMoneyFormatter("de-DE", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "EUR 1.234,50", de.Format(decimal.RequireFromString("1234.5")))
}

func TestMoneyFormatterRejectsBadInput(t *testing.T) {
	_, err := NewMoneyFormatter("en-IN", "XYZ1")
	require.Error(t, err)
	_, err = NewMoneyFormatter("not a locale!", "INR")
	require.Error(t, err)
}
