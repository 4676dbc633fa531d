// Package receipt строит печатные формы чеков по резервам и счетам.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/akazarov/layaway-system/internal/model"
)

const lineWidth = 40

// Header содержит реквизиты компании, печатаемые в шапке каждого чека.
type Header struct {
	CompanyName string
	TaxID       string
	Address     string
	Phone       string
}

// PaymentReceipt описывает чек частичного платежа по резерву.
type PaymentReceipt struct {
	Header          Header
	TicketNumber    string
	ReservationName string
	CustomerName    string
	MethodName      string
	Date            time.Time
	AmountCents     int64
	ChangeCents     int64
	TotalCents      int64
	PaidCents       int64
	DueCents        int64
}

// ReservationReceipt описывает чек создания резерва со строками товаров.
type ReservationReceipt struct {
	Header          Header
	ReservationName string
	CustomerName    string
	Date            time.Time
	ExpirationDate  time.Time
	Lines           []model.ReservationLine
	TotalCents      int64
	PaidCents       int64
	DueCents        int64
}

// InvoiceReceipt описывает чек счёта с фискальными реквизитами.
type InvoiceReceipt struct {
	Header          Header
	InvoiceName     string
	ReservationName string
	CustomerName    string
	CustomerTaxID   string
	Date            time.Time
	Lines           []model.ReservationLine
	TotalCents      int64
	FiscalReference string
	QRValue         string
}

// FormatCents форматирует сумму в центах как денежную строку вида "$1,234.56".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	return fmt.Sprintf("%s$%s.%02d", sign, b.String(), frac)
}

func center(s string) string {
	if len(s) >= lineWidth {
		return s
	}
	pad := (lineWidth - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}

func row(label, value string) string {
	gap := lineWidth - len(label) - len(value)
	if gap < 1 {
		gap = 1
	}
	return label + strings.Repeat(" ", gap) + value
}

func divider() string {
	return strings.Repeat("-", lineWidth)
}

func renderHeader(b *strings.Builder, h Header) {
	if h.CompanyName != "" {
		b.WriteString(center(h.CompanyName) + "\n")
	}
	if h.TaxID != "" {
		b.WriteString(center("NIT: "+h.TaxID) + "\n")
	}
	if h.Address != "" {
		b.WriteString(center(h.Address) + "\n")
	}
	if h.Phone != "" {
		b.WriteString(center("Tel: "+h.Phone) + "\n")
	}
	b.WriteString(divider() + "\n")
}

func renderLines(b *strings.Builder, lines []model.ReservationLine) {
	for _, l := range lines {
		b.WriteString(l.Name + "\n")
		qty := fmt.Sprintf("%g x %s", l.Qty, FormatCents(l.PriceUnitCents))
		if l.DiscountPercent > 0 {
			qty += fmt.Sprintf(" -%g%%", l.DiscountPercent)
		}
		b.WriteString(row("  "+qty, FormatCents(l.SubtotalCents)) + "\n")
	}
}

// Render формирует печатный текст чека платежа.
func (r PaymentReceipt) Render() string {
	var b strings.Builder
	renderHeader(&b, r.Header)

	b.WriteString(center("PAYMENT RECEIPT") + "\n")
	b.WriteString(center(r.TicketNumber) + "\n")
	b.WriteString(divider() + "\n")

	b.WriteString(row("Reservation:", r.ReservationName) + "\n")
	b.WriteString(row("Customer:", r.CustomerName) + "\n")
	b.WriteString(row("Date:", r.Date.Format("2006-01-02 15:04")) + "\n")
	b.WriteString(row("Method:", r.MethodName) + "\n")
	b.WriteString(divider() + "\n")

	b.WriteString(row("Amount:", FormatCents(r.AmountCents)) + "\n")
	if r.ChangeCents > 0 {
		b.WriteString(row("Change:", FormatCents(r.ChangeCents)) + "\n")
	}
	b.WriteString(divider() + "\n")

	b.WriteString(row("Total:", FormatCents(r.TotalCents)) + "\n")
	b.WriteString(row("Paid:", FormatCents(r.PaidCents)) + "\n")
	b.WriteString(row("Due:", FormatCents(r.DueCents)) + "\n")

	return b.String()
}

// Render формирует печатный текст чека создания резерва.
func (r ReservationReceipt) Render() string {
	var b strings.Builder
	renderHeader(&b, r.Header)

	b.WriteString(center("LAYAWAY RESERVATION") + "\n")
	b.WriteString(center(r.ReservationName) + "\n")
	b.WriteString(divider() + "\n")

	b.WriteString(row("Customer:", r.CustomerName) + "\n")
	b.WriteString(row("Date:", r.Date.Format("2006-01-02 15:04")) + "\n")
	b.WriteString(row("Expires:", r.ExpirationDate.Format("2006-01-02")) + "\n")
	b.WriteString(divider() + "\n")

	renderLines(&b, r.Lines)
	b.WriteString(divider() + "\n")

	b.WriteString(row("Total:", FormatCents(r.TotalCents)) + "\n")
	b.WriteString(row("Paid:", FormatCents(r.PaidCents)) + "\n")
	b.WriteString(row("Due:", FormatCents(r.DueCents)) + "\n")

	return b.String()
}

// Render формирует печатный текст чека счёта с фискальными реквизитами.
func (r InvoiceReceipt) Render() string {
	var b strings.Builder
	renderHeader(&b, r.Header)

	b.WriteString(center("INVOICE") + "\n")
	b.WriteString(center(r.InvoiceName) + "\n")
	b.WriteString(divider() + "\n")

	b.WriteString(row("Reservation:", r.ReservationName) + "\n")
	b.WriteString(row("Customer:", r.CustomerName) + "\n")
	if r.CustomerTaxID != "" {
		b.WriteString(row("Customer NIT:", r.CustomerTaxID) + "\n")
	}
	b.WriteString(row("Date:", r.Date.Format("2006-01-02 15:04")) + "\n")
	b.WriteString(divider() + "\n")

	renderLines(&b, r.Lines)
	b.WriteString(divider() + "\n")

	b.WriteString(row("Total:", FormatCents(r.TotalCents)) + "\n")

	if r.FiscalReference != "" {
		b.WriteString(divider() + "\n")
		b.WriteString("CUFE: " + r.FiscalReference + "\n")
	}
	if r.QRValue != "" {
		b.WriteString("QR: " + r.QRValue + "\n")
	}

	return b.String()
}
