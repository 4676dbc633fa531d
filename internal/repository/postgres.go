// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/akazarov/layaway-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrCashierExists возвращается при попытке создать кассира с уже существующим логином.
var (
	ErrCashierExists = errors.New("cashier already exists")
	// ErrCashierNotFound возвращается, если кассир не найден.
	ErrCashierNotFound = errors.New("cashier not found")
	// ErrCustomerNotFound возвращается, если клиент не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrReservationNotFound возвращается, если резерв не найден.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrReservationClosed возвращается при операции над резервом в закрытом состоянии.
	ErrReservationClosed = errors.New("reservation is not payable in its current state")
	// ErrAmountExceedsDue возвращается, если платёж превышает остаток по резерву.
	ErrAmountExceedsDue = errors.New("payment amount exceeds amount due")
	// ErrAlreadyInvoiced возвращается, если по резерву уже выставлен счёт.
	ErrAlreadyInvoiced = errors.New("reservation already invoiced")
	// ErrNotFullyPaid возвращается при попытке выставить счёт по неоплаченному резерву.
	ErrNotFullyPaid = errors.New("reservation is not fully paid")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при сериализационных сбоях и обрывах соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateCashier создаёт нового кассира.
func (r *PostgresRepository) CreateCashier(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cashiers (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrCashierExists, login)
		}
		return 0, fmt.Errorf("create cashier: %w", err)
	}
	return id, nil
}

// GetCashierByLogin возвращает кассира по логину.
func (r *PostgresRepository) GetCashierByLogin(ctx context.Context, login string) (*model.Cashier, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM cashiers WHERE login = $1`,
		login,
	)

	var c model.Cashier
	err := row.Scan(&c.ID, &c.Login, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCashierNotFound
		}
		return nil, fmt.Errorf("get cashier: %w", err)
	}

	return &c, nil
}

// SearchCustomers ищет клиентов по имени, налоговому номеру или телефону.
func (r *PostgresRepository) SearchCustomers(ctx context.Context, query string, limit int) ([]model.Customer, error) {
	pattern := "%" + query + "%"
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, tax_id, phone, max_discount_percent
		 FROM customers
		 WHERE name ILIKE $1 OR tax_id ILIKE $1 OR phone ILIKE $1
		 ORDER BY name
		 LIMIT $2`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	defer rows.Close()

	var res []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.TaxID, &c.Phone, &c.MaxDiscountPercent); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetCustomer возвращает клиента по идентификатору.
func (r *PostgresRepository) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, tax_id, phone, max_discount_percent FROM customers WHERE id = $1`,
		id,
	)

	var c model.Customer
	err := row.Scan(&c.ID, &c.Name, &c.TaxID, &c.Phone, &c.MaxDiscountPercent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return &c, nil
}

// CreateCustomer создаёт нового клиента.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, c model.Customer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (name, tax_id, phone, max_discount_percent) VALUES ($1, $2, $3, $4) RETURNING id`,
		c.Name, c.TaxID, c.Phone, c.MaxDiscountPercent,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create customer: %w", err)
	}
	return id, nil
}

const reservationSelect = `
	SELECT r.id, r.name, r.customer_id, c.name, r.date_reservation, r.expiration_date, r.status, r.note,
	       COALESCE(l.total, 0) AS amount_total,
	       COALESCE(p.paid, 0) AS amount_paid
	FROM reservations r
	JOIN customers c ON c.id = r.customer_id
	LEFT JOIN (
		SELECT reservation_id, SUM(subtotal_cents) AS total
		FROM reservation_lines GROUP BY reservation_id
	) l ON l.reservation_id = r.id
	LEFT JOIN (
		SELECT reservation_id, SUM(amount_cents) AS paid
		FROM reservation_payments WHERE state = 'posted' GROUP BY reservation_id
	) p ON p.reservation_id = r.id`

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var resv model.Reservation
	err := row.Scan(
		&resv.ID, &resv.Name, &resv.CustomerID, &resv.CustomerName,
		&resv.DateReservation, &resv.ExpirationDate, &resv.Status, &resv.Note,
		&resv.AmountTotalCents, &resv.AmountPaidCents,
	)
	if err != nil {
		return nil, err
	}
	resv.AmountDueCents = resv.AmountTotalCents - resv.AmountPaidCents
	if resv.AmountDueCents < 0 {
		resv.AmountDueCents = 0
	}
	return &resv, nil
}

// SearchReservations возвращает резервы клиента в указанных состояниях.
func (r *PostgresRepository) SearchReservations(ctx context.Context, customerID int64, states []model.ReservationStatus) ([]model.Reservation, error) {
	stateList := make([]string, 0, len(states))
	for _, s := range states {
		stateList = append(stateList, string(s))
	}

	rows, err := r.pool.Query(ctx,
		reservationSelect+`
		WHERE r.customer_id = $1 AND r.status = ANY($2)
		ORDER BY r.id DESC`,
		customerID, stateList,
	)
	if err != nil {
		return nil, fmt.Errorf("search reservations: %w", err)
	}
	defer rows.Close()

	var res []model.Reservation
	for rows.Next() {
		resv, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		res = append(res, *resv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetReservation возвращает резерв со строками по идентификатору.
func (r *PostgresRepository) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	resv, err := scanReservation(r.pool.QueryRow(ctx, reservationSelect+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, reservation_id, product_id, name, qty, price_unit_cents, discount_percent, subtotal_cents
		 FROM reservation_lines WHERE reservation_id = $1 ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("select reservation lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.ReservationLine
		if err := rows.Scan(&l.ID, &l.ReservationID, &l.ProductID, &l.Name, &l.Qty, &l.PriceUnitCents, &l.DiscountPercent, &l.SubtotalCents); err != nil {
			return nil, fmt.Errorf("scan reservation line: %w", err)
		}
		resv.Lines = append(resv.Lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return resv, nil
}

// InitialPayment описывает первоначальный взнос при создании резерва.
type InitialPayment struct {
	AmountCents     int64
	PaymentMethodID int64
	Ref             string
}

// ReservationCreate описывает данные для создания резерва.
type ReservationCreate struct {
	CustomerID     int64
	ExpirationDate time.Time
	Note           string
	Lines          []model.ReservationLine
	InitialPayment *InitialPayment
}

// CreateReservation создаёт резерв со строками, складскими удержаниями
// и необязательным первоначальным взносом в одной транзакции.
func (r *PostgresRepository) CreateReservation(ctx context.Context, data ReservationCreate) (*model.Reservation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id   int64
		name string
	)
	err = tx.QueryRow(ctx,
		`INSERT INTO reservations (name, customer_id, expiration_date, status, note)
		 VALUES ('RES-' || LPAD(nextval('reservation_name_seq')::text, 6, '0'), $1, $2, $3, $4)
		 RETURNING id, name`,
		data.CustomerID, data.ExpirationDate, string(model.ReservationStatusReserved), data.Note,
	).Scan(&id, &name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("insert reservation: %w", err)
	}

	var totalCents int64
	for _, l := range data.Lines {
		subtotal := l.ComputeSubtotalCents()
		totalCents += subtotal

		_, err = tx.Exec(ctx,
			`INSERT INTO reservation_lines (reservation_id, product_id, name, qty, price_unit_cents, discount_percent, subtotal_cents)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, l.ProductID, l.Name, l.Qty, l.PriceUnitCents, l.DiscountPercent, subtotal,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return nil, ErrProductNotFound
			}
			return nil, fmt.Errorf("insert reservation line: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO stock_holds (product_id, reservation_id, qty_reserved, state)
			 VALUES ($1, $2, $3, $4)`,
			l.ProductID, id, l.Qty, model.HoldStateActive,
		)
		if err != nil {
			return nil, fmt.Errorf("insert stock hold: %w", err)
		}
	}

	var paidCents int64
	if data.InitialPayment != nil && data.InitialPayment.AmountCents > 0 {
		_, err = tx.Exec(ctx,
			`INSERT INTO reservation_payments (reservation_id, ticket_number, amount_cents, payment_method_id, ref)
			 VALUES ($1, 'TCK-' || LPAD(nextval('payment_ticket_seq')::text, 6, '0'), $2, $3, $4)`,
			id, data.InitialPayment.AmountCents, data.InitialPayment.PaymentMethodID, data.InitialPayment.Ref,
		)
		if err != nil {
			return nil, fmt.Errorf("insert initial payment: %w", err)
		}
		paidCents = data.InitialPayment.AmountCents
	}

	status := model.ReservationStatusReserved
	if totalCents > 0 && paidCents >= totalCents {
		status = model.ReservationStatusPaid
		if _, err := tx.Exec(ctx, `UPDATE reservations SET status = $2 WHERE id = $1`, id, string(status)); err != nil {
			return nil, fmt.Errorf("update reservation status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	due := totalCents - paidCents
	if due < 0 {
		due = 0
	}

	return &model.Reservation{
		ID:               id,
		Name:             name,
		CustomerID:       data.CustomerID,
		ExpirationDate:   data.ExpirationDate,
		AmountTotalCents: totalCents,
		AmountPaidCents:  paidCents,
		AmountDueCents:   due,
		Status:           status,
		Note:             data.Note,
		Lines:            data.Lines,
	}, nil
}

// AddPaymentResult описывает состояние резерва после проведения платежа.
type AddPaymentResult struct {
	TicketNumber     string
	AmountTotalCents int64
	AmountPaidCents  int64
	AmountDueCents   int64
	Status           model.ReservationStatus
}

// AddPayment проводит платёж по резерву. Строка резерва блокируется на время
// транзакции, чтобы сериализовать конкурирующие платежи по одному резерву.
func (r *PostgresRepository) AddPayment(ctx context.Context, reservationID int64, amountCents int64, paymentMethodID int64, ref string) (*AddPaymentResult, error) {
	var result *AddPaymentResult
	err := r.withRetry(ctx, func() error {
		res, err := r.addPaymentTx(ctx, reservationID, amountCents, paymentMethodID, ref)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) addPaymentTx(ctx context.Context, reservationID int64, amountCents int64, paymentMethodID int64, ref string) (*AddPaymentResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM reservations WHERE id = $1 FOR UPDATE`,
		reservationID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("lock reservation: %w", err)
	}

	switch model.ReservationStatus(status) {
	case model.ReservationStatusPaid, model.ReservationStatusInvoiced,
		model.ReservationStatusExpired, model.ReservationStatusCancelled:
		return nil, ErrReservationClosed
	}

	var totalCents int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(subtotal_cents), 0) FROM reservation_lines WHERE reservation_id = $1`,
		reservationID,
	).Scan(&totalCents)
	if err != nil {
		return nil, fmt.Errorf("sum lines: %w", err)
	}

	var paidCents int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM reservation_payments WHERE reservation_id = $1 AND state = 'posted'`,
		reservationID,
	).Scan(&paidCents)
	if err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}

	dueCents := totalCents - paidCents
	if dueCents < 0 {
		dueCents = 0
	}
	if amountCents > dueCents {
		return nil, ErrAmountExceedsDue
	}

	var ticket string
	err = tx.QueryRow(ctx,
		`INSERT INTO reservation_payments (reservation_id, ticket_number, amount_cents, payment_method_id, ref)
		 VALUES ($1, 'TCK-' || LPAD(nextval('payment_ticket_seq')::text, 6, '0'), $2, $3, $4)
		 RETURNING ticket_number`,
		reservationID, amountCents, paymentMethodID, ref,
	).Scan(&ticket)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	newPaid := paidCents + amountCents
	newDue := totalCents - newPaid
	if newDue < 0 {
		newDue = 0
	}

	newStatus := model.ReservationStatus(status)
	if newDue == 0 && totalCents > 0 {
		newStatus = model.ReservationStatusPaid
		if _, err := tx.Exec(ctx,
			`UPDATE reservations SET status = $2 WHERE id = $1`,
			reservationID, string(newStatus),
		); err != nil {
			return nil, fmt.Errorf("update reservation status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &AddPaymentResult{
		TicketNumber:     ticket,
		AmountTotalCents: totalCents,
		AmountPaidCents:  newPaid,
		AmountDueCents:   newDue,
		Status:           newStatus,
	}, nil
}

// CreateInvoice выставляет счёт по полностью оплаченному резерву
// и освобождает складские удержания.
func (r *PostgresRepository) CreateInvoice(ctx context.Context, reservationID int64) (*model.Invoice, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM reservations WHERE id = $1 FOR UPDATE`,
		reservationID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("lock reservation: %w", err)
	}

	if model.ReservationStatus(status) == model.ReservationStatusInvoiced {
		return nil, ErrAlreadyInvoiced
	}

	var totalCents, paidCents int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(subtotal_cents), 0) FROM reservation_lines WHERE reservation_id = $1`,
		reservationID,
	).Scan(&totalCents)
	if err != nil {
		return nil, fmt.Errorf("sum lines: %w", err)
	}
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM reservation_payments WHERE reservation_id = $1 AND state = 'posted'`,
		reservationID,
	).Scan(&paidCents)
	if err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}

	if paidCents < totalCents || totalCents == 0 {
		return nil, ErrNotFullyPaid
	}

	var inv model.Invoice
	err = tx.QueryRow(ctx,
		`INSERT INTO invoices (name, reservation_id, amount_cents)
		 VALUES ('INV-' || LPAD(nextval('invoice_name_seq')::text, 6, '0'), $1, $2)
		 RETURNING id, name, issued_at`,
		reservationID, totalCents,
	).Scan(&inv.ID, &inv.Name, &inv.IssuedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrAlreadyInvoiced
		}
		return nil, fmt.Errorf("insert invoice: %w", err)
	}
	inv.ReservationID = reservationID
	inv.AmountCents = totalCents

	if _, err := tx.Exec(ctx,
		`UPDATE reservations SET status = $2 WHERE id = $1`,
		reservationID, string(model.ReservationStatusInvoiced),
	); err != nil {
		return nil, fmt.Errorf("update reservation status: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE stock_holds SET state = $2 WHERE reservation_id = $1 AND state = $3`,
		reservationID, model.HoldStateReleased, model.HoldStateActive,
	); err != nil {
		return nil, fmt.Errorf("release holds: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &inv, nil
}

// SetInvoiceFiscalData сохраняет фискальные данные счёта после валидации.
func (r *PostgresRepository) SetInvoiceFiscalData(ctx context.Context, invoiceID int64, fiscalRef, qrValue string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE invoices SET fiscal_reference = $2, qr_value = $3 WHERE id = $1`,
		invoiceID, fiscalRef, qrValue,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	return nil
}

// AvailableQty возвращает доступный остаток товара за вычетом активных удержаний.
func (r *PostgresRepository) AvailableQty(ctx context.Context, productID int64) (float64, error) {
	var onHand float64
	err := r.pool.QueryRow(ctx,
		`SELECT qty_on_hand FROM products WHERE id = $1`,
		productID,
	).Scan(&onHand)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("get product: %w", err)
	}

	var held float64
	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(qty_reserved), 0) FROM stock_holds WHERE product_id = $1 AND state = $2`,
		productID, model.HoldStateActive,
	).Scan(&held)
	if err != nil {
		return 0, fmt.Errorf("sum holds: %w", err)
	}

	return onHand - held, nil
}

// CancelReservation отменяет резерв и снимает складские удержания.
func (r *PostgresRepository) CancelReservation(ctx context.Context, reservationID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM reservations WHERE id = $1 FOR UPDATE`,
		reservationID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrReservationNotFound
		}
		return fmt.Errorf("lock reservation: %w", err)
	}

	switch model.ReservationStatus(status) {
	case model.ReservationStatusInvoiced, model.ReservationStatusCancelled:
		return ErrReservationClosed
	}

	if _, err := tx.Exec(ctx,
		`UPDATE reservations SET status = $2 WHERE id = $1`,
		reservationID, string(model.ReservationStatusCancelled),
	); err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE stock_holds SET state = $2 WHERE reservation_id = $1 AND state = $3`,
		reservationID, model.HoldStateCancelled, model.HoldStateActive,
	); err != nil {
		return fmt.Errorf("cancel holds: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// ExpiredReservation описывает резерв, помеченный просроченным.
type ExpiredReservation struct {
	ID         int64
	Name       string
	CustomerID int64
}

// ExpireReservations помечает просроченные резервы и освобождает их удержания.
func (r *PostgresRepository) ExpireReservations(ctx context.Context, asOf time.Time) ([]ExpiredReservation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`UPDATE reservations SET status = $1
		 WHERE status = ANY($2) AND expiration_date < $3
		 RETURNING id, name, customer_id`,
		string(model.ReservationStatusExpired),
		[]string{
			string(model.ReservationStatusDraft),
			string(model.ReservationStatusConfirmed),
			string(model.ReservationStatusReserved),
		},
		asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("expire reservations: %w", err)
	}

	var expired []ExpiredReservation
	for rows.Next() {
		var e ExpiredReservation
		if err := rows.Scan(&e.ID, &e.Name, &e.CustomerID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expired: %w", err)
		}
		expired = append(expired, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for _, e := range expired {
		if _, err := tx.Exec(ctx,
			`UPDATE stock_holds SET state = $2 WHERE reservation_id = $1 AND state = $3`,
			e.ID, model.HoldStateReleased, model.HoldStateActive,
		); err != nil {
			return nil, fmt.Errorf("release holds: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return expired, nil
}

// ListPaymentMethods возвращает настроенные способы оплаты.
func (r *PostgresRepository) ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, type FROM payment_methods ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select payment methods: %w", err)
	}
	defer rows.Close()

	var res []model.PaymentMethod
	for rows.Next() {
		var m model.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.Type); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		res = append(res, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListKeyboardShortcuts возвращает настроенные комбинации клавиш терминала.
func (r *PostgresRepository) ListKeyboardShortcuts(ctx context.Context) ([]model.KeyboardShortcut, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, keys, action, screen, payment_method_id FROM keyboard_shortcuts ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select keyboard shortcuts: %w", err)
	}
	defer rows.Close()

	var res []model.KeyboardShortcut
	for rows.Next() {
		var s model.KeyboardShortcut
		if err := rows.Scan(&s.ID, &s.Keys, &s.Action, &s.Screen, &s.PaymentMethodID); err != nil {
			return nil, fmt.Errorf("scan keyboard shortcut: %w", err)
		}
		res = append(res, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
