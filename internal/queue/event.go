// Package queue публикует доменные события сервиса в брокер сообщений.
package queue

// Имена очередей, в которые публикуются события.
const (
	QueueReservationCreated   = "reservation.created"
	QueueReservationPaid      = "reservation.paid"
	QueueReservationExpired   = "reservation.expired"
	QueueReservationCancelled = "reservation.cancelled"
	QueueInvoiceIssued        = "invoice.issued"
)

// ReservationCreatedEvent публикуется при создании резерва.
type ReservationCreatedEvent struct {
	EventID          string  `json:"event_id"`
	ReservationID    int64   `json:"reservation_id"`
	ReservationName  string  `json:"reservation_name"`
	CustomerID       int64   `json:"customer_id"`
	CustomerName     string  `json:"customer_name"`
	CustomerPhone    string  `json:"customer_phone,omitempty"`
	AmountTotal      float64 `json:"amount_total"`
	AmountPaid       float64 `json:"amount_paid"`
	AmountDue        float64 `json:"amount_due"`
	ExpirationDate   string  `json:"expiration_date"`
	CreatedAt        string  `json:"created_at"`
}

// ReservationPaidEvent публикуется при проведении платежа по резерву.
type ReservationPaidEvent struct {
	EventID         string  `json:"event_id"`
	ReservationID   int64   `json:"reservation_id"`
	ReservationName string  `json:"reservation_name"`
	TicketNumber    string  `json:"ticket_number"`
	CustomerID      int64   `json:"customer_id"`
	Amount          float64 `json:"amount"`
	AmountPaid      float64 `json:"amount_paid"`
	AmountDue       float64 `json:"amount_due"`
	FullyPaid       bool    `json:"fully_paid"`
	PaidAt          string  `json:"paid_at"`
}

// ReservationExpiredEvent публикуется, когда резерв помечен просроченным.
type ReservationExpiredEvent struct {
	EventID         string `json:"event_id"`
	ReservationID   int64  `json:"reservation_id"`
	ReservationName string `json:"reservation_name"`
	CustomerID      int64  `json:"customer_id"`
	ExpiredAt       string `json:"expired_at"`
}

// ReservationCancelledEvent публикуется при отмене резерва.
type ReservationCancelledEvent struct {
	EventID         string `json:"event_id"`
	ReservationID   int64  `json:"reservation_id"`
	ReservationName string `json:"reservation_name"`
	CustomerID      int64  `json:"customer_id"`
	CancelledAt     string `json:"cancelled_at"`
}

// InvoiceIssuedEvent публикуется при выставлении счёта по резерву.
type InvoiceIssuedEvent struct {
	EventID         string  `json:"event_id"`
	InvoiceID       int64   `json:"invoice_id"`
	InvoiceName     string  `json:"invoice_name"`
	ReservationID   int64   `json:"reservation_id"`
	CustomerID      int64   `json:"customer_id"`
	Amount          float64 `json:"amount"`
	FiscalReference string  `json:"fiscal_reference,omitempty"`
	IssuedAt        string  `json:"issued_at"`
}
