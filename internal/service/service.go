// Package service реализует бизнес-логику сервиса отложенных покупок.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akazarov/layaway-system/internal/fiscal"
	"github.com/akazarov/layaway-system/internal/model"
	"github.com/akazarov/layaway-system/internal/printer"
	"github.com/akazarov/layaway-system/internal/queue"
	"github.com/akazarov/layaway-system/internal/receipt"
	"github.com/akazarov/layaway-system/internal/repository"
)

const customerSearchLimit = 10

// Ошибки бизнес-логики, транслируемые обработчиками в HTTP-статусы.
var (
	// ErrWalkInCustomer возвращается при операции с резервами для разового покупателя.
	ErrWalkInCustomer = errors.New("walk-in customer cannot hold reservations")
	// ErrInvalidAmount возвращается для неположительной суммы платежа.
	ErrInvalidAmount = errors.New("payment amount must be positive")
	// ErrPaymentMethodRequired возвращается, если не указан способ оплаты.
	ErrPaymentMethodRequired = errors.New("payment method is required")
	// ErrChangeNotConfirmed возвращается, когда платёж превышает остаток,
	// а выдача сдачи не подтверждена кассиром.
	ErrChangeNotConfirmed = errors.New("change must be confirmed by the cashier")
	// ErrNoLines возвращается при создании резерва без товарных строк.
	ErrNoLines = errors.New("reservation must contain at least one line")
	// ErrInvalidLine возвращается для строки с неположительным количеством.
	ErrInvalidLine = errors.New("line quantity must be positive")
	// ErrDiscountExceedsMax возвращается при превышении персонального лимита скидки клиента.
	ErrDiscountExceedsMax = errors.New("discount exceeds customer limit")
	// ErrInitialPaymentTooSmall возвращается, если первоначальный взнос меньше минимального процента.
	ErrInitialPaymentTooSmall = errors.New("initial payment is below the required minimum")
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateCashier(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetCashierByLogin(ctx context.Context, login string) (*model.Cashier, error)
	SearchCustomers(ctx context.Context, query string, limit int) ([]model.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*model.Customer, error)
	CreateCustomer(ctx context.Context, c model.Customer) (int64, error)
	SearchReservations(ctx context.Context, customerID int64, states []model.ReservationStatus) ([]model.Reservation, error)
	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	CreateReservation(ctx context.Context, data repository.ReservationCreate) (*model.Reservation, error)
	AddPayment(ctx context.Context, reservationID int64, amountCents int64, paymentMethodID int64, ref string) (*repository.AddPaymentResult, error)
	CreateInvoice(ctx context.Context, reservationID int64) (*model.Invoice, error)
	SetInvoiceFiscalData(ctx context.Context, invoiceID int64, fiscalRef, qrValue string) error
	AvailableQty(ctx context.Context, productID int64) (float64, error)
	CancelReservation(ctx context.Context, reservationID int64) error
	ExpireReservations(ctx context.Context, asOf time.Time) ([]repository.ExpiredReservation, error)
	ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error)
	ListKeyboardShortcuts(ctx context.Context) ([]model.KeyboardShortcut, error)
}

// Options задаёт параметры бизнес-логики сервиса.
type Options struct {
	WalkInCustomerID  int64
	ExpirationDays    int
	MinInitialPercent float64
	ReceiptHeader     receipt.Header
}

// Service содержит бизнес-логику сервиса отложенных покупок.
type Service struct {
	repo          Repository
	fiscalClient  *fiscal.Client
	printerClient *printer.Client
	publisher     *queue.Publisher
	logger        *zap.Logger
	opts          Options
}

// NewService создаёт новый сервис. Клиенты фискальной системы, принтера
// и брокера необязательны: nil отключает соответствующую интеграцию.
func NewService(repo Repository, fiscalClient *fiscal.Client, printerClient *printer.Client, publisher *queue.Publisher, logger *zap.Logger, opts Options) *Service {
	if opts.ExpirationDays <= 0 {
		opts.ExpirationDays = 90
	}
	return &Service{
		repo:          repo,
		fiscalClient:  fiscalClient,
		printerClient: printerClient,
		publisher:     publisher,
		logger:        logger,
		opts:          opts,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterCashier регистрирует нового кассира.
func (s *Service) RegisterCashier(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateCashier(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrCashierExists) {
			return 0, repository.ErrCashierExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateCashier проверяет логин и пароль кассира и возвращает его идентификатор.
func (s *Service) AuthenticateCashier(ctx context.Context, login, password string) (int64, error) {
	c, err := s.repo.GetCashierByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrCashierNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(c.PasswordHash) {
		return 0, ErrInvalidCredentials
	}

	return c.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// SearchCustomers ищет клиентов по имени, налоговому номеру или телефону.
// Запросы короче двух символов не выполняются и возвращают пустой список.
func (s *Service) SearchCustomers(ctx context.Context, query string) ([]model.Customer, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, nil
	}
	return s.repo.SearchCustomers(ctx, query, customerSearchLimit)
}

// GetCustomer возвращает клиента по идентификатору.
func (s *Service) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// CreateCustomer создаёт нового клиента.
func (s *Service) CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	id, err := s.repo.CreateCustomer(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return &c, nil
}

// ListCustomerReservations возвращает активные резервы клиента.
// Разовый покупатель резервов не имеет.
func (s *Service) ListCustomerReservations(ctx context.Context, customerID int64) ([]model.Reservation, error) {
	if s.opts.WalkInCustomerID != 0 && customerID == s.opts.WalkInCustomerID {
		return nil, ErrWalkInCustomer
	}

	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	return s.repo.SearchReservations(ctx, customerID, model.ActiveStatuses)
}

// GetReservation возвращает резерв со строками.
func (s *Service) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

// AvailableQty возвращает доступный остаток товара за вычетом активных удержаний.
func (s *Service) AvailableQty(ctx context.Context, productID int64) (float64, error) {
	return s.repo.AvailableQty(ctx, productID)
}

// ListPaymentMethods возвращает настроенные способы оплаты.
func (s *Service) ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error) {
	return s.repo.ListPaymentMethods(ctx)
}

// ListKeyboardShortcuts возвращает настроенные комбинации клавиш терминала.
func (s *Service) ListKeyboardShortcuts(ctx context.Context) ([]model.KeyboardShortcut, error) {
	return s.repo.ListKeyboardShortcuts(ctx)
}

// AmountToApplyCents возвращает часть платежа, зачисляемую на резерв:
// не больше остатка к оплате.
func AmountToApplyCents(amountCents, dueCents int64) int64 {
	if amountCents > dueCents {
		return dueCents
	}
	return amountCents
}

// ComputeChangeCents возвращает сдачу: превышение платежа над остатком, не меньше нуля.
func ComputeChangeCents(amountCents, dueCents int64) int64 {
	if amountCents <= dueCents {
		return 0
	}
	return amountCents - dueCents
}

// PaymentInput описывает запрос на проведение платежа по резерву.
type PaymentInput struct {
	ReservationID   int64
	Amount          float64
	PaymentMethodID int64
	Ref             string
	ConfirmChange   bool
}

// PaymentResult описывает состояние резерва после проведения платежа.
type PaymentResult struct {
	TicketNumber string
	Status       model.ReservationStatus
	AmountTotal  float64
	AmountPaid   float64
	AmountDue    float64
	Change       float64
	FullyPaid    bool
}

// AddPayment проводит частичный платёж по резерву. Если внесённая сумма
// превышает остаток, зачисляется только остаток, а сдача требует
// подтверждения кассиром.
func (s *Service) AddPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	resv, err := s.repo.GetReservation(ctx, in.ReservationID)
	if err != nil {
		return nil, err
	}

	switch resv.Status {
	case model.ReservationStatusPaid, model.ReservationStatusInvoiced,
		model.ReservationStatusExpired, model.ReservationStatusCancelled:
		return nil, repository.ErrReservationClosed
	}

	amountCents := int64(in.Amount * 100)
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if in.PaymentMethodID <= 0 {
		return nil, ErrPaymentMethodRequired
	}

	changeCents := ComputeChangeCents(amountCents, resv.AmountDueCents)
	if changeCents > 0 && !in.ConfirmChange {
		return nil, ErrChangeNotConfirmed
	}
	appliedCents := AmountToApplyCents(amountCents, resv.AmountDueCents)

	res, err := s.repo.AddPayment(ctx, in.ReservationID, appliedCents, in.PaymentMethodID, in.Ref)
	if err != nil {
		return nil, err
	}

	s.printPaymentReceipt(ctx, resv, res, appliedCents, changeCents, in.PaymentMethodID)
	s.publishPaid(ctx, resv, res, appliedCents)

	return &PaymentResult{
		TicketNumber: res.TicketNumber,
		Status:       res.Status,
		AmountTotal:  float64(res.AmountTotalCents) / 100,
		AmountPaid:   float64(res.AmountPaidCents) / 100,
		AmountDue:    float64(res.AmountDueCents) / 100,
		Change:       float64(changeCents) / 100,
		FullyPaid:    res.AmountDueCents == 0,
	}, nil
}

func (s *Service) printPaymentReceipt(ctx context.Context, resv *model.Reservation, res *repository.AddPaymentResult, appliedCents, changeCents, methodID int64) {
	if s.printerClient == nil {
		return
	}

	methodName := ""
	if methods, err := s.repo.ListPaymentMethods(ctx); err == nil {
		for _, m := range methods {
			if m.ID == methodID {
				methodName = m.Name
			}
		}
	}

	r := receipt.PaymentReceipt{
		Header:          s.opts.ReceiptHeader,
		TicketNumber:    res.TicketNumber,
		ReservationName: resv.Name,
		CustomerName:    resv.CustomerName,
		MethodName:      methodName,
		Date:            time.Now(),
		AmountCents:     appliedCents,
		ChangeCents:     changeCents,
		TotalCents:      res.AmountTotalCents,
		PaidCents:       res.AmountPaidCents,
		DueCents:        res.AmountDueCents,
	}

	if err := s.printerClient.Print(ctx, r.Render()); err != nil {
		s.logger.Warn("print payment receipt failed",
			zap.String("ticket", res.TicketNumber), zap.Error(err))
	}
}

func (s *Service) publishPaid(ctx context.Context, resv *model.Reservation, res *repository.AddPaymentResult, appliedCents int64) {
	if s.publisher == nil {
		return
	}

	event := queue.ReservationPaidEvent{
		EventID:         uuid.NewString(),
		ReservationID:   resv.ID,
		ReservationName: resv.Name,
		TicketNumber:    res.TicketNumber,
		CustomerID:      resv.CustomerID,
		Amount:          float64(appliedCents) / 100,
		AmountPaid:      float64(res.AmountPaidCents) / 100,
		AmountDue:       float64(res.AmountDueCents) / 100,
		FullyPaid:       res.AmountDueCents == 0,
		PaidAt:          time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.publisher.Publish(ctx, queue.QueueReservationPaid, event); err != nil {
		s.logger.Warn("publish paid event failed", zap.Error(err))
	}
}

// ReservationInput описывает запрос на создание резерва.
type ReservationInput struct {
	CustomerID     int64
	ExpirationDate time.Time
	Note           string
	Lines          []model.ReservationLine
	InitialPayment *repository.InitialPayment
}

// CreateReservation создаёт резерв со строками, складскими удержаниями
// и необязательным первоначальным взносом.
func (s *Service) CreateReservation(ctx context.Context, in ReservationInput) (*model.Reservation, error) {
	if s.opts.WalkInCustomerID != 0 && in.CustomerID == s.opts.WalkInCustomerID {
		return nil, ErrWalkInCustomer
	}
	if len(in.Lines) == 0 {
		return nil, ErrNoLines
	}

	customer, err := s.repo.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}

	var totalCents int64
	for _, l := range in.Lines {
		if l.Qty <= 0 {
			return nil, ErrInvalidLine
		}
		if customer.MaxDiscountPercent != nil && l.DiscountPercent > *customer.MaxDiscountPercent {
			return nil, ErrDiscountExceedsMax
		}
		totalCents += l.ComputeSubtotalCents()

		// Нехватка остатка не блокирует резерв, но фиксируется в логе.
		available, qtyErr := s.repo.AvailableQty(ctx, l.ProductID)
		if qtyErr != nil {
			s.logger.Warn("stock check failed", zap.Int64("product_id", l.ProductID), zap.Error(qtyErr))
		} else if available < l.Qty {
			s.logger.Warn("insufficient stock for reservation line",
				zap.Int64("product_id", l.ProductID),
				zap.Float64("requested", l.Qty),
				zap.Float64("available", available))
		}
	}

	if s.opts.MinInitialPercent > 0 && totalCents > 0 {
		minCents := int64(float64(totalCents) * s.opts.MinInitialPercent / 100)
		var initialCents int64
		if in.InitialPayment != nil {
			initialCents = in.InitialPayment.AmountCents
		}
		if initialCents < minCents {
			return nil, ErrInitialPaymentTooSmall
		}
	}

	if in.ExpirationDate.IsZero() {
		in.ExpirationDate = time.Now().AddDate(0, 0, s.opts.ExpirationDays)
	}

	resv, err := s.repo.CreateReservation(ctx, repository.ReservationCreate{
		CustomerID:     in.CustomerID,
		ExpirationDate: in.ExpirationDate,
		Note:           in.Note,
		Lines:          in.Lines,
		InitialPayment: in.InitialPayment,
	})
	if err != nil {
		return nil, err
	}
	resv.CustomerName = customer.Name

	if s.printerClient != nil {
		r := receipt.ReservationReceipt{
			Header:          s.opts.ReceiptHeader,
			ReservationName: resv.Name,
			CustomerName:    customer.Name,
			Date:            time.Now(),
			ExpirationDate:  resv.ExpirationDate,
			Lines:           resv.Lines,
			TotalCents:      resv.AmountTotalCents,
			PaidCents:       resv.AmountPaidCents,
			DueCents:        resv.AmountDueCents,
		}
		if err := s.printerClient.Print(ctx, r.Render()); err != nil {
			s.logger.Warn("print reservation receipt failed",
				zap.String("reservation", resv.Name), zap.Error(err))
		}
	}

	if s.publisher != nil {
		event := queue.ReservationCreatedEvent{
			EventID:         uuid.NewString(),
			ReservationID:   resv.ID,
			ReservationName: resv.Name,
			CustomerID:      customer.ID,
			CustomerName:    customer.Name,
			CustomerPhone:   customer.Phone,
			AmountTotal:     float64(resv.AmountTotalCents) / 100,
			AmountPaid:      float64(resv.AmountPaidCents) / 100,
			AmountDue:       float64(resv.AmountDueCents) / 100,
			ExpirationDate:  resv.ExpirationDate.Format("2006-01-02"),
			CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.publisher.Publish(ctx, queue.QueueReservationCreated, event); err != nil {
			s.logger.Warn("publish created event failed", zap.Error(err))
		}
	}

	return resv, nil
}

// InvoiceResult описывает исход выставления счёта по резерву.
type InvoiceResult struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message,omitempty"`
	InvoiceName     string         `json:"invoice_name,omitempty"`
	FiscalReference string         `json:"fiscal_reference,omitempty"`
	QRValue         string         `json:"qr_code_value,omitempty"`
	Invoice         *model.Invoice `json:"invoice_data,omitempty"`
}

// CreateInvoice выставляет счёт по полностью оплаченному резерву и отправляет
// его на фискальную валидацию. Ошибки бизнес-правил возвращаются в результате,
// а не как error: кассовый клиент показывает их сообщением.
func (s *Service) CreateInvoice(ctx context.Context, reservationID int64) (*InvoiceResult, error) {
	resv, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return &InvoiceResult{Success: false, Message: err.Error()}, nil
		}
		return nil, err
	}

	inv, err := s.repo.CreateInvoice(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFullyPaid) || errors.Is(err, repository.ErrAlreadyInvoiced) {
			return &InvoiceResult{Success: false, Message: err.Error()}, nil
		}
		return nil, err
	}

	result := &InvoiceResult{
		Success:     true,
		InvoiceName: inv.Name,
		Invoice:     inv,
	}

	if s.fiscalClient != nil {
		s.validateFiscal(ctx, resv, inv, result)
	}

	if s.printerClient != nil {
		customer, custErr := s.repo.GetCustomer(ctx, resv.CustomerID)
		taxID := ""
		if custErr == nil {
			taxID = customer.TaxID
		}
		r := receipt.InvoiceReceipt{
			Header:          s.opts.ReceiptHeader,
			InvoiceName:     inv.Name,
			ReservationName: resv.Name,
			CustomerName:    resv.CustomerName,
			CustomerTaxID:   taxID,
			Date:            inv.IssuedAt,
			Lines:           resv.Lines,
			TotalCents:      inv.AmountCents,
			FiscalReference: result.FiscalReference,
			QRValue:         result.QRValue,
		}
		if err := s.printerClient.Print(ctx, r.Render()); err != nil {
			s.logger.Warn("print invoice receipt failed",
				zap.String("invoice", inv.Name), zap.Error(err))
		}
	}

	if s.publisher != nil {
		event := queue.InvoiceIssuedEvent{
			EventID:         uuid.NewString(),
			InvoiceID:       inv.ID,
			InvoiceName:     inv.Name,
			ReservationID:   resv.ID,
			CustomerID:      resv.CustomerID,
			Amount:          float64(inv.AmountCents) / 100,
			FiscalReference: result.FiscalReference,
			IssuedAt:        inv.IssuedAt.UTC().Format(time.RFC3339),
		}
		if err := s.publisher.Publish(ctx, queue.QueueInvoiceIssued, event); err != nil {
			s.logger.Warn("publish invoice event failed", zap.Error(err))
		}
	}

	return result, nil
}

// validateFiscal запрашивает фискальную валидацию счёта. Отказ фискальной
// системы не отменяет счёт: реквизиты дозаполняются при успехе.
func (s *Service) validateFiscal(ctx context.Context, resv *model.Reservation, inv *model.Invoice, result *InvoiceResult) {
	req := fiscal.InvoiceRequest{
		InvoiceName:  inv.Name,
		CustomerName: resv.CustomerName,
		Amount:       float64(inv.AmountCents) / 100,
		IssuedAt:     inv.IssuedAt.UTC().Format(time.RFC3339),
	}
	if customer, err := s.repo.GetCustomer(ctx, resv.CustomerID); err == nil {
		req.CustomerTaxID = customer.TaxID
	}

	res, statusCode, _, err := s.fiscalClient.ValidateInvoice(ctx, req)
	if err != nil {
		s.logger.Warn("fiscal validation failed",
			zap.String("invoice", inv.Name), zap.Int("status", statusCode), zap.Error(err))
		return
	}
	if res == nil {
		return
	}

	result.FiscalReference = res.FiscalReference
	result.QRValue = res.QRValue

	if err := s.repo.SetInvoiceFiscalData(ctx, inv.ID, res.FiscalReference, res.QRValue); err != nil {
		s.logger.Warn("save fiscal data failed",
			zap.String("invoice", inv.Name), zap.Error(err))
	}
}

// CancelReservation отменяет резерв и снимает складские удержания.
func (s *Service) CancelReservation(ctx context.Context, reservationID int64) error {
	resv, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	if err := s.repo.CancelReservation(ctx, reservationID); err != nil {
		return err
	}

	if s.publisher != nil {
		event := queue.ReservationCancelledEvent{
			EventID:         uuid.NewString(),
			ReservationID:   resv.ID,
			ReservationName: resv.Name,
			CustomerID:      resv.CustomerID,
			CancelledAt:     time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.publisher.Publish(ctx, queue.QueueReservationCancelled, event); err != nil {
			s.logger.Warn("publish cancelled event failed", zap.Error(err))
		}
	}

	return nil
}

// StartExpirationSweep запускает фоновый процесс, помечающий просроченные
// резервы и освобождающий их складские удержания.
func (s *Service) StartExpirationSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.expireBatch(ctx)
			}
		}
	}()
}

func (s *Service) expireBatch(ctx context.Context) {
	expired, err := s.repo.ExpireReservations(ctx, time.Now())
	if err != nil {
		s.logger.Warn("expire reservations failed", zap.Error(err))
		return
	}

	for _, e := range expired {
		s.logger.Info("reservation expired",
			zap.Int64("reservation_id", e.ID), zap.String("reservation", e.Name))

		if s.publisher == nil {
			continue
		}
		event := queue.ReservationExpiredEvent{
			EventID:         uuid.NewString(),
			ReservationID:   e.ID,
			ReservationName: e.Name,
			CustomerID:      e.CustomerID,
			ExpiredAt:       time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.publisher.Publish(ctx, queue.QueueReservationExpired, event); err != nil {
			s.logger.Warn("publish expired event failed", zap.Error(err))
		}
	}
}
