package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/akazarov/layaway-system/internal/keymap"
	"github.com/akazarov/layaway-system/internal/middleware"
	"github.com/akazarov/layaway-system/internal/model"
	"github.com/akazarov/layaway-system/internal/service"
	"github.com/akazarov/layaway-system/internal/terminal"
)

type stubService struct {
	registerCashierID int64
	registerErr       error

	authCashierID int64
	authErr       error

	customers    []model.Customer
	customersErr error

	createdCustomer *model.Customer

	reservations    []model.Reservation
	reservationsErr error

	reservation    *model.Reservation
	reservationErr error

	created    *model.Reservation
	createdErr error

	paymentResult *service.PaymentResult
	paymentErr    error

	invoiceResult *service.InvoiceResult
	invoiceErr    error

	cancelErr error

	availableQty    float64
	availableQtyErr error

	methods []model.PaymentMethod
}

func (s *stubService) RegisterCashier(ctx context.Context, login, password string) (int64, error) {
	return s.registerCashierID, s.registerErr
}

func (s *stubService) AuthenticateCashier(ctx context.Context, login, password string) (int64, error) {
	return s.authCashierID, s.authErr
}

func (s *stubService) SearchCustomers(ctx context.Context, query string) ([]model.Customer, error) {
	return s.customers, s.customersErr
}

func (s *stubService) CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	return s.createdCustomer, nil
}

func (s *stubService) ListCustomerReservations(ctx context.Context, customerID int64) ([]model.Reservation, error) {
	return s.reservations, s.reservationsErr
}

func (s *stubService) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	return s.reservation, s.reservationErr
}

func (s *stubService) CreateReservation(ctx context.Context, in service.ReservationInput) (*model.Reservation, error) {
	return s.created, s.createdErr
}

func (s *stubService) AddPayment(ctx context.Context, in service.PaymentInput) (*service.PaymentResult, error) {
	return s.paymentResult, s.paymentErr
}

func (s *stubService) CreateInvoice(ctx context.Context, reservationID int64) (*service.InvoiceResult, error) {
	return s.invoiceResult, s.invoiceErr
}

func (s *stubService) CancelReservation(ctx context.Context, reservationID int64) error {
	return s.cancelErr
}

func (s *stubService) AvailableQty(ctx context.Context, productID int64) (float64, error) {
	return s.availableQty, s.availableQtyErr
}

func (s *stubService) ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error) {
	return s.methods, nil
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")
	terminals := terminal.NewManager(keymap.Build([]model.KeyboardShortcut{
		{Keys: []string{"Control", "Enter"}, Action: keymap.ActionGoPaymentScreen, Screen: "product"},
	}))

	return NewHandler(svc, terminals, logger, auth)
}

func authedRequest(t *testing.T, h *Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	router := h.SetupRouter()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)

	cookieRec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(cookieRec, 1)
	for _, c := range cookieRec.Result().Cookies() {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{registerCashierID: 42}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "cashier", Password: "pass"})

	req := httptest.NewRequest(http.MethodPost, "/api/pos/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("expected auth cookie to be set")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &stubService{authErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "cashier", Password: "wrong"})

	req := httptest.NewRequest(http.MethodPost, "/api/pos/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestSearchCustomers_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/pos/customers?q=iv", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestSearchCustomers_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := authedRequest(t, h, http.MethodGet, "/api/pos/customers?q=iv", nil)
	if rec.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNoContent)
	}
}

func TestSearchCustomers_ReturnsMatches(t *testing.T) {
	h := newTestHandler(t, &stubService{
		customers: []model.Customer{{ID: 1, Name: "Ivan Petrov", TaxID: "800197268-4"}},
	})

	rec := authedRequest(t, h, http.MethodGet, "/api/pos/customers?q=iv", nil)
	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}

	var got []model.Customer
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Ivan Petrov" {
		t.Fatalf("unexpected customers: %+v", got)
	}
}

func TestCreateCustomer_InvalidTaxID(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(createCustomerRequest{Name: "Ivan", TaxID: "800197268-9"})

	rec := authedRequest(t, h, http.MethodPost, "/api/pos/customers", body)
	if rec.Result().StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestGetCustomerReservations_WalkIn(t *testing.T) {
	h := newTestHandler(t, &stubService{reservationsErr: service.ErrWalkInCustomer})

	rec := authedRequest(t, h, http.MethodGet, "/api/pos/customers/91158/reservations", nil)
	if rec.Result().StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestGetCustomerReservations_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := authedRequest(t, h, http.MethodGet, "/api/pos/customers/5/reservations", nil)
	if rec.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNoContent)
	}
}

func TestAddPayment_Success(t *testing.T) {
	h := newTestHandler(t, &stubService{
		paymentResult: &service.PaymentResult{
			TicketNumber: "TCK-000042",
			Status:       model.ReservationStatusReserved,
			AmountTotal:  100,
			AmountPaid:   40,
			AmountDue:    60,
		},
	})

	body, _ := json.Marshal(paymentRequest{Amount: 40, PaymentMethodID: 1})

	rec := authedRequest(t, h, http.MethodPost, "/api/pos/reservations/7/payments", body)
	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}

	var got paymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.TicketNumber != "TCK-000042" {
		t.Fatalf("ticket = %s, want TCK-000042", got.TicketNumber)
	}
	if got.AmountDue != 60 {
		t.Fatalf("amount due = %v, want 60", got.AmountDue)
	}
}

func TestAddPayment_ChangeNotConfirmed(t *testing.T) {
	h := newTestHandler(t, &stubService{paymentErr: service.ErrChangeNotConfirmed})

	body, _ := json.Marshal(paymentRequest{Amount: 80, PaymentMethodID: 1})

	rec := authedRequest(t, h, http.MethodPost, "/api/pos/reservations/7/payments", body)
	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestCreateInvoice_BusinessFailure(t *testing.T) {
	h := newTestHandler(t, &stubService{
		invoiceResult: &service.InvoiceResult{
			Success: false,
			Message: "reservation is not fully paid",
		},
	})

	rec := authedRequest(t, h, http.MethodPost, "/api/pos/reservations/7/invoice", nil)
	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}

	var got service.InvoiceResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.Success {
		t.Fatalf("expected success=false")
	}
	if got.Message == "" {
		t.Fatalf("expected message in response")
	}
}

func TestTerminalSession_Flow(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := authedRequest(t, h, http.MethodPost, "/api/pos/terminal/sessions", nil)
	if rec.Result().StatusCode != http.StatusCreated {
		t.Fatalf("open status = %d, want %d", rec.Result().StatusCode, http.StatusCreated)
	}

	var st terminal.State
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Screen != terminal.ScreenProduct {
		t.Fatalf("screen = %s, want %s", st.Screen, terminal.ScreenProduct)
	}

	keyBody, _ := json.Marshal(keyRequest{Key: "Control"})
	rec = authedRequest(t, h, http.MethodPost, "/api/pos/terminal/sessions/"+st.SessionID+"/keydown", keyBody)
	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("keydown status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}

	keyBody, _ = json.Marshal(keyRequest{Key: "Enter"})
	rec = authedRequest(t, h, http.MethodPost, "/api/pos/terminal/sessions/"+st.SessionID+"/keydown", keyBody)

	var resp keyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode key response: %v", err)
	}
	if resp.State.Screen != terminal.ScreenPayment {
		t.Fatalf("screen after combo = %s, want %s", resp.State.Screen, terminal.ScreenPayment)
	}
}
