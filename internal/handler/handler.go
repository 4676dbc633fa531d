// Package handler содержит HTTP-обработчики API сервиса отложенных покупок.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/akazarov/layaway-system/internal/middleware"
	"github.com/akazarov/layaway-system/internal/model"
	"github.com/akazarov/layaway-system/internal/repository"
	"github.com/akazarov/layaway-system/internal/service"
	"github.com/akazarov/layaway-system/internal/terminal"
	"github.com/akazarov/layaway-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterCashier(ctx context.Context, login, password string) (int64, error)
	AuthenticateCashier(ctx context.Context, login, password string) (int64, error)
	SearchCustomers(ctx context.Context, query string) ([]model.Customer, error)
	CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error)
	ListCustomerReservations(ctx context.Context, customerID int64) ([]model.Reservation, error)
	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	CreateReservation(ctx context.Context, in service.ReservationInput) (*model.Reservation, error)
	AddPayment(ctx context.Context, in service.PaymentInput) (*service.PaymentResult, error)
	CreateInvoice(ctx context.Context, reservationID int64) (*service.InvoiceResult, error)
	CancelReservation(ctx context.Context, reservationID int64) error
	AvailableQty(ctx context.Context, productID int64) (float64, error)
	ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error)
}

// Handler реализует HTTP-обработчики API сервиса отложенных покупок.
type Handler struct {
	service        Service
	terminals      *terminal.Manager
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, terminals *terminal.Manager, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		terminals:      terminals,
		logger:         logger,
		authMiddleware: auth,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового кассира.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	cashierID, err := h.service.RegisterCashier(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrCashierExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register cashier error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, cashierID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию кассира и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	cashierID, err := h.service.AuthenticateCashier(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login cashier error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, cashierID)
	w.WriteHeader(http.StatusOK)
}

// SearchCustomers возвращает клиентов, подходящих под поисковый запрос.
func (h *Handler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.SearchCustomers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("search customers error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(customers) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, customers)
}

type createCustomerRequest struct {
	Name               string   `json:"name"`
	TaxID              string   `json:"tax_id"`
	Phone              string   `json:"phone"`
	MaxDiscountPercent *float64 `json:"max_discount_percent,omitempty"`
}

// CreateCustomer создаёт нового клиента.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.TaxID != "" && !validation.IsValidTaxID(req.TaxID) {
		http.Error(w, "invalid tax id", http.StatusUnprocessableEntity)
		return
	}

	customer, err := h.service.CreateCustomer(r.Context(), model.Customer{
		Name:               req.Name,
		TaxID:              req.TaxID,
		Phone:              req.Phone,
		MaxDiscountPercent: req.MaxDiscountPercent,
	})
	if err != nil {
		h.logger.Error("create customer error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, customer)
}

type lineResponse struct {
	ProductID       int64   `json:"product_id"`
	Name            string  `json:"name"`
	Qty             float64 `json:"qty"`
	PriceUnit       float64 `json:"price_unit"`
	DiscountPercent float64 `json:"discount_percent,omitempty"`
	Subtotal        float64 `json:"subtotal"`
}

type reservationResponse struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	CustomerID     int64          `json:"customer_id"`
	CustomerName   string         `json:"customer_name,omitempty"`
	ExpirationDate string         `json:"expiration_date"`
	AmountTotal    float64        `json:"amount_total"`
	AmountPaid     float64        `json:"amount_paid"`
	AmountDue      float64        `json:"amount_due"`
	Status         string         `json:"state"`
	Note           string         `json:"note,omitempty"`
	Lines          []lineResponse `json:"lines,omitempty"`
}

func toReservationResponse(resv *model.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:             resv.ID,
		Name:           resv.Name,
		CustomerID:     resv.CustomerID,
		CustomerName:   resv.CustomerName,
		ExpirationDate: resv.ExpirationDate.Format("2006-01-02"),
		AmountTotal:    float64(resv.AmountTotalCents) / 100,
		AmountPaid:     float64(resv.AmountPaidCents) / 100,
		AmountDue:      float64(resv.AmountDueCents) / 100,
		Status:         string(resv.Status),
		Note:           resv.Note,
	}
	for _, l := range resv.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ProductID:       l.ProductID,
			Name:            l.Name,
			Qty:             l.Qty,
			PriceUnit:       float64(l.PriceUnitCents) / 100,
			DiscountPercent: l.DiscountPercent,
			Subtotal:        float64(l.SubtotalCents) / 100,
		})
	}
	return resp
}

// GetCustomerReservations возвращает активные резервы клиента.
func (h *Handler) GetCustomerReservations(w http.ResponseWriter, r *http.Request) {
	customerID, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	reservations, err := h.service.ListCustomerReservations(r.Context(), customerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWalkInCustomer):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, repository.ErrCustomerNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("list reservations error", zap.Error(err), zap.Int64("customerID", customerID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	if len(reservations) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]reservationResponse, 0, len(reservations))
	for i := range reservations {
		resp = append(resp, toReservationResponse(&reservations[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetReservation возвращает резерв со строками.
func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	reservationID, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	resv, err := h.service.GetReservation(r.Context(), reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get reservation error", zap.Error(err), zap.Int64("reservationID", reservationID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toReservationResponse(resv))
}

type lineRequest struct {
	ProductID       int64   `json:"product_id"`
	Name            string  `json:"name"`
	Qty             float64 `json:"qty"`
	PriceUnit       float64 `json:"price_unit"`
	DiscountPercent float64 `json:"discount_percent"`
}

type initialPaymentRequest struct {
	Amount          float64 `json:"amount"`
	PaymentMethodID int64   `json:"payment_method_id"`
	Ref             string  `json:"ref"`
}

type createReservationRequest struct {
	CustomerID     int64                  `json:"customer_id"`
	ExpirationDate string                 `json:"expiration_date"`
	Note           string                 `json:"note"`
	Lines          []lineRequest          `json:"lines"`
	InitialPayment *initialPaymentRequest `json:"initial_payment"`
}

// CreateReservation создаёт резерв со строками и первоначальным взносом.
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.CustomerID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	in := service.ReservationInput{
		CustomerID: req.CustomerID,
		Note:       req.Note,
	}

	if req.ExpirationDate != "" {
		exp, err := time.Parse("2006-01-02", req.ExpirationDate)
		if err != nil {
			http.Error(w, "invalid expiration date", http.StatusBadRequest)
			return
		}
		in.ExpirationDate = exp
	}

	for _, l := range req.Lines {
		in.Lines = append(in.Lines, model.ReservationLine{
			ProductID:       l.ProductID,
			Name:            l.Name,
			Qty:             l.Qty,
			PriceUnitCents:  int64(l.PriceUnit * 100),
			DiscountPercent: l.DiscountPercent,
		})
	}

	if req.InitialPayment != nil {
		in.InitialPayment = &repository.InitialPayment{
			AmountCents:     int64(req.InitialPayment.Amount * 100),
			PaymentMethodID: req.InitialPayment.PaymentMethodID,
			Ref:             req.InitialPayment.Ref,
		}
	}

	resv, err := h.service.CreateReservation(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWalkInCustomer),
			errors.Is(err, service.ErrNoLines),
			errors.Is(err, service.ErrInvalidLine),
			errors.Is(err, service.ErrDiscountExceedsMax),
			errors.Is(err, service.ErrInitialPaymentTooSmall):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, repository.ErrCustomerNotFound),
			errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			h.logger.Error("create reservation error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toReservationResponse(resv))
}

type paymentRequest struct {
	Amount          float64 `json:"amount"`
	PaymentMethodID int64   `json:"payment_method_id"`
	Ref             string  `json:"ref"`
	ConfirmChange   bool    `json:"confirm_change"`
}

type paymentResponse struct {
	TicketNumber string  `json:"ticket_number"`
	Status       string  `json:"state"`
	AmountTotal  float64 `json:"amount_total"`
	AmountPaid   float64 `json:"amount_paid"`
	AmountDue    float64 `json:"amount_due"`
	Change       float64 `json:"change"`
	FullyPaid    bool    `json:"fully_paid"`
}

// AddPayment проводит частичный платёж по резерву.
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	reservationID, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.AddPayment(r.Context(), service.PaymentInput{
		ReservationID:   reservationID,
		Amount:          req.Amount,
		PaymentMethodID: req.PaymentMethodID,
		Ref:             req.Ref,
		ConfirmChange:   req.ConfirmChange,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrReservationClosed):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, service.ErrChangeNotConfirmed):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, service.ErrInvalidAmount),
			errors.Is(err, service.ErrPaymentMethodRequired):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrAmountExceedsDue):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			h.logger.Error("add payment error", zap.Error(err), zap.Int64("reservationID", reservationID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, paymentResponse{
		TicketNumber: res.TicketNumber,
		Status:       string(res.Status),
		AmountTotal:  res.AmountTotal,
		AmountPaid:   res.AmountPaid,
		AmountDue:    res.AmountDue,
		Change:       res.Change,
		FullyPaid:    res.FullyPaid,
	})
}

// CreateInvoice выставляет счёт по резерву. Нарушения бизнес-правил
// возвращаются с кодом 200 и success=false, как их показывает касса.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	reservationID, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.CreateInvoice(r.Context(), reservationID)
	if err != nil {
		h.logger.Error("create invoice error", zap.Error(err), zap.Int64("reservationID", reservationID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// CancelReservation отменяет резерв.
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	reservationID, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.CancelReservation(r.Context(), reservationID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrReservationClosed):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("cancel reservation error", zap.Error(err), zap.Int64("reservationID", reservationID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

type stockResponse struct {
	ProductID    int64   `json:"product_id"`
	AvailableQty float64 `json:"available_qty"`
}

// GetProductStock возвращает доступный остаток товара.
func (h *Handler) GetProductStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	qty, err := h.service.AvailableQty(r.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get stock error", zap.Error(err), zap.Int64("productID", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stockResponse{ProductID: productID, AvailableQty: qty})
}

// ListPaymentMethods возвращает настроенные способы оплаты.
func (h *Handler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.service.ListPaymentMethods(r.Context())
	if err != nil {
		h.logger.Error("list payment methods error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(methods) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, methods)
}

// OpenTerminalSession открывает новую сессию POS-терминала.
func (h *Handler) OpenTerminalSession(w http.ResponseWriter, r *http.Request) {
	st := h.terminals.Open()
	writeJSON(w, http.StatusCreated, st)
}

// GetTerminalSession возвращает состояние сессии терминала.
func (h *Handler) GetTerminalSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.terminals.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// CloseTerminalSession закрывает сессию терминала.
func (h *Handler) CloseTerminalSession(w http.ResponseWriter, r *http.Request) {
	if err := h.terminals.Close(chi.URLParam(r, "sessionID")); err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type keyRequest struct {
	Key string `json:"key"`
}

type keyResponse struct {
	State   terminal.State    `json:"state"`
	Command *terminal.Command `json:"command,omitempty"`
}

// TerminalKeyDown регистрирует нажатие клавиши в сессии терминала.
func (h *Handler) TerminalKeyDown(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	st, cmd, err := h.terminals.KeyDown(chi.URLParam(r, "sessionID"), req.Key)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, keyResponse{State: st, Command: cmd})
}

// TerminalKeyUp регистрирует отпускание клавиши в сессии терминала.
func (h *Handler) TerminalKeyUp(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	st, err := h.terminals.KeyUp(chi.URLParam(r, "sessionID"), req.Key)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, keyResponse{State: st})
}
