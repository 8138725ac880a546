package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/velvetpos/velvetpos/internal/checkout"
	"github.com/velvetpos/velvetpos/internal/posclient"
)

var (
	server   = flag.String("server", envOr("VELVETPOS_SERVER", "http://127.0.0.1:5000"), "velvetpos server url")
	email    = flag.String("email", envOr("VELVETPOS_EMAIL", "admin@velvetpos.local"), "login email")
	password = flag.String("password", os.Getenv("VELVETPOS_PASSWORD"), "login password")
	token    = flag.String("token", os.Getenv("VELVETPOS_TOKEN"), "bearer token, skips login")
)

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

const helpText = "add <id> | qty <id> <+n|-n> | rm <id> | clear | cash <amount> | card | discount <amount> | customer <id> | pay | quit"

type catalog interface {
	Product(ctx context.Context, id string) (checkout.Product, error)
}

type checkoutDone struct {
	res *checkout.Result
	err error
}

type model struct {
	session *checkout.Session
	catalog catalog
	input   string
	status  string
	busy    bool
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input)
			m.input = ""
			if line == "quit" || line == "q" {
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.status, cmd = m.exec(line)
			if cmd != nil {
				m.busy = true
			}
			return m, cmd
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case tea.KeySpace:
			m.input += " "
		case tea.KeyRunes:
			m.input += string(msg.Runes)
		}
	case checkoutDone:
		m.busy = false
		switch {
		case msg.err != nil && msg.res != nil:
			m.status = "Rejected: " + msg.res.Error
		case msg.err != nil:
			m.status = "Checkout failed: " + msg.err.Error()
		default:
			m.status = fmt.Sprintf("Sale %s complete. Change due %s", msg.res.TransactionID, msg.res.ChangeDue.StringFixed(2))
		}
	}
	return m, nil
}

// exec runs one command against the session. Checkout is returned as a command
// so the view keeps rendering while the sale is submitted.
func (m model) exec(line string) (string, tea.Cmd) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return helpText, nil
	}
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	var err error
	switch fields[0] {
	case "add":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var p checkout.Product
		if p, err = m.catalog.Product(ctx, arg(1)); err == nil {
			err = m.session.AddItem(p)
		}
	case "qty":
		var delta int
		if delta, err = strconv.Atoi(arg(2)); err == nil {
			err = m.session.UpdateQuantity(arg(1), delta)
		}
	case "rm":
		err = m.session.RemoveItem(arg(1))
	case "clear":
		err = m.session.Clear()
	case "cash":
		var amount decimal.Decimal
		if amount, err = decimal.NewFromString(arg(1)); err == nil {
			if err = m.session.SetPaymentMethod(checkout.PaymentCash); err == nil {
				err = m.session.SetCashTendered(amount)
			}
		}
	case "card":
		err = m.session.SetPaymentMethod(checkout.PaymentCard)
	case "discount":
		var amount decimal.Decimal
		if amount, err = decimal.NewFromString(arg(1)); err == nil {
			err = m.session.SetDiscount(amount)
		}
	case "customer":
		err = m.session.SetCustomer(arg(1))
	case "pay":
		if m.busy {
			return "Error: " + checkout.ErrCheckoutInProgress.Error(), nil
		}
		s := m.session
		return "Submitting sale...", func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			res, err := s.Checkout(ctx)
			return checkoutDone{res: res, err: err}
		}
	default:
		return helpText, nil
	}
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	return "OK", nil
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "velvetpos register")
	fmt.Fprintln(b, "")
	lines := m.session.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(b, "  (cart is empty)")
	}
	for _, l := range lines {
		fmt.Fprintf(b, "  %-12s %-28s %3d x %8s\n", l.ProductID, l.Name, l.Quantity, l.UnitPrice.StringFixed(2))
	}
	t := m.session.Totals()
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "  Items %d  Subtotal %s  Discount %s  Tax %s  Total %s\n",
		m.session.ItemCount(), t.Subtotal.StringFixed(2), t.Discount.StringFixed(2), t.Tax.StringFixed(2), t.Total.StringFixed(2))
	fmt.Fprintf(b, "  Change due %s\n", m.session.ChangeDue().StringFixed(2))
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Status: %s\n", m.status)
	fmt.Fprintf(b, "> %s\n", m.input)
	return b.String()
}

func main() {
	flag.Parse()

	client := posclient.New(*server, *token)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if *token == "" {
		if err := client.Login(ctx, *email, *password); err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
	}
	rate, err := client.TaxRate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load store config: %v\n", err)
		os.Exit(1)
	}

	m := model{
		session: checkout.NewSession(client, checkout.WithTaxRate(rate), checkout.WithStaffName(*email)),
		catalog: client,
		status:  helpText,
	}
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "posctl: %v\n", err)
		os.Exit(1)
	}
}
