// Package model содержит доменные сущности сервиса отложенных покупок (layaway).
package model

import "time"

// Cashier представляет кассира POS, работающего с сервисом.
type Cashier struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Customer представляет клиента, на которого оформляются резервы.
type Customer struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	TaxID              string   `json:"tax_id"`
	Phone              string   `json:"phone"`
	MaxDiscountPercent *float64 `json:"max_discount_percent,omitempty"`
}

// ReservationStatus описывает состояние резерва в его жизненном цикле.
type ReservationStatus string

const (
	ReservationStatusDraft     ReservationStatus = "draft"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusReserved  ReservationStatus = "reserved"
	ReservationStatusPaid      ReservationStatus = "paid"
	ReservationStatusInvoiced  ReservationStatus = "invoiced"
	ReservationStatusExpired   ReservationStatus = "expired"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// ActiveStatuses перечисляет состояния, в которых резерв доступен для оплаты.
var ActiveStatuses = []ReservationStatus{
	ReservationStatusDraft,
	ReservationStatusConfirmed,
	ReservationStatusReserved,
	ReservationStatusPaid,
}

// Reservation описывает отложенную покупку с частичной оплатой.
// Инвариант: AmountDueCents = AmountTotalCents - AmountPaidCents, всегда >= 0.
type Reservation struct {
	ID               int64
	Name             string
	CustomerID       int64
	CustomerName     string
	DateReservation  time.Time
	ExpirationDate   time.Time
	AmountTotalCents int64
	AmountPaidCents  int64
	AmountDueCents   int64
	Status           ReservationStatus
	Note             string
	Lines            []ReservationLine
}

// ReservationLine описывает строку резерва с зафиксированной ценой.
type ReservationLine struct {
	ID              int64
	ReservationID   int64
	ProductID       int64
	Name            string
	Qty             float64
	PriceUnitCents  int64
	DiscountPercent float64
	SubtotalCents   int64
}

// ComputeSubtotalCents вычисляет стоимость строки по зафиксированной цене и скидке.
func (l ReservationLine) ComputeSubtotalCents() int64 {
	return int64(l.Qty * float64(l.PriceUnitCents) * (1 - l.DiscountPercent/100.0))
}

// ReservationPayment описывает частичный платёж по резерву.
type ReservationPayment struct {
	ID              int64
	ReservationID   int64
	TicketNumber    string
	AmountCents     int64
	PaymentMethodID int64
	Ref             string
	State           string
	Date            time.Time
}

// PaymentMethod описывает способ оплаты, доступный в точке продаж.
type PaymentMethod struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Product описывает товар, который может резервироваться.
type Product struct {
	ID             int64
	Name           string
	ListPriceCents int64
	QtyOnHand      float64
}

// StockHold описывает удержание складского остатка под активный резерв.
type StockHold struct {
	ID            int64
	ProductID     int64
	ReservationID int64
	QtyReserved   float64
	State         string
}

// Состояния складских удержаний.
const (
	HoldStateActive    = "active"
	HoldStateReleased  = "released"
	HoldStateCancelled = "cancelled"
)

// Invoice описывает счёт, выставленный по полностью оплаченному резерву.
type Invoice struct {
	ID              int64
	Name            string
	ReservationID   int64
	FiscalReference string
	QRValue         string
	AmountCents     int64
	IssuedAt        time.Time
}

// KeyboardShortcut описывает настроенную комбинацию клавиш POS-терминала.
type KeyboardShortcut struct {
	ID              int64
	Keys            []string
	Action          string
	Screen          string
	PaymentMethodID *int64
}
