package main

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velvetpos/velvetpos/internal/checkout"
)

type fakeCatalog map[string]checkout.Product

func (f fakeCatalog) Product(_ context.Context, id string) (checkout.Product, error) {
	p, ok := f[id]
	if !ok {
		return checkout.Product{}, assert.AnError
	}
	return p, nil
}

func newTestModel(submit checkout.SubmitterFunc) model {
	return model{
		session: checkout.NewSession(submit, checkout.WithTaxRate(decimal.RequireFromString("0.08"))),
		catalog: fakeCatalog{
			"prod_1": {ID: "prod_1", Name: "Matte Ruby Lipstick", Price: decimal.RequireFromString("24.99"), Stock: 2},
		},
	}
}

func typeLine(t *testing.T, m model, line string) (model, tea.Cmd) {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(line)})
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(model), cmd
}

func TestRingUpAndPay(t *testing.T) {
	var got *checkout.Request
	m := newTestModel(func(_ context.Context, req *checkout.Request) (*checkout.Result, error) {
		got = req
		return &checkout.Result{Success: true, TransactionID: "tx_1", ChangeDue: decimal.RequireFromString("3.01")}, nil
	})

	m, _ = typeLine(t, m, "add prod_1")
	assert.Equal(t, "OK", m.status)
	m, _ = typeLine(t, m, "add prod_1")
	m, _ = typeLine(t, m, "add prod_1")
	assert.Contains(t, m.status, "Error:")
	assert.Equal(t, 2, m.session.ItemCount())

	m, _ = typeLine(t, m, "qty prod_1 -1")
	m, _ = typeLine(t, m, "cash 30")
	assert.Equal(t, "3.01", m.session.ChangeDue().StringFixed(2))
	assert.Contains(t, m.View(), "Total 26.99")

	m, cmd := typeLine(t, m, "pay")
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	m, _ = typeLine(t, m, "pay")
	assert.Contains(t, m.status, checkout.ErrCheckoutInProgress.Error())

	next, _ := m.Update(cmd())
	m = next.(model)
	assert.False(t, m.busy)
	assert.Contains(t, m.status, "Sale tx_1 complete")
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Lines[0].Quantity)
	assert.Zero(t, m.session.ItemCount())
}

func TestRejectedSaleKeepsCart(t *testing.T) {
	m := newTestModel(func(_ context.Context, _ *checkout.Request) (*checkout.Result, error) {
		return &checkout.Result{Success: false, Error: "Insufficient stock for Matte Ruby Lipstick. Available: 0"}, nil
	})
	m, _ = typeLine(t, m, "add prod_1")
	m, _ = typeLine(t, m, "card")
	m, cmd := typeLine(t, m, "pay")
	next, _ := m.Update(cmd())
	m = next.(model)
	assert.Contains(t, m.status, "Rejected: Insufficient stock")
	assert.Equal(t, 1, m.session.ItemCount())
}

func TestUnknownCommandShowsHelp(t *testing.T) {
	m := newTestModel(nil)
	m, _ = typeLine(t, m, "dance")
	assert.Equal(t, helpText, m.status)
	_, cmd := typeLine(t, m, "quit")
	require.NotNil(t, cmd)
}
