// Package terminal хранит состояние сессий POS-терминала и применяет
// к ним действия клавиатурных комбинаций.
package terminal

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/akazarov/layaway-system/internal/keymap"
)

// Screen описывает активный экран POS-терминала.
type Screen string

// Экраны терминала.
const (
	ScreenProduct  Screen = "product"
	ScreenPayment  Screen = "payment"
	ScreenTicket   Screen = "ticket"
	ScreenReceipt  Screen = "receipt"
	ScreenPartners Screen = "partners"
)

// NumpadMode описывает режим цифровой клавиатуры на экране товаров.
type NumpadMode string

// Режимы цифровой клавиатуры.
const (
	NumpadQuantity NumpadMode = "quantity"
	NumpadDiscount NumpadMode = "discount"
	NumpadPrice    NumpadMode = "price"
)

// ErrSessionNotFound возвращается при обращении к несуществующей сессии.
var ErrSessionNotFound = errors.New("terminal session not found")

// State описывает снимок состояния сессии терминала.
type State struct {
	SessionID  string     `json:"session_id"`
	Screen     Screen     `json:"screen"`
	NumpadMode NumpadMode `json:"numpad_mode"`
}

// Command описывает действие, которое должен выполнить клиент терминала.
type Command struct {
	Action          string `json:"action"`
	PaymentMethodID *int64 `json:"payment_method_id,omitempty"`
}

type session struct {
	id         string
	screen     Screen
	numpadMode NumpadMode
	history    []Screen
	dispatcher *keymap.Dispatcher
}

// Manager хранит активные сессии терминалов.
type Manager struct {
	mu       sync.Mutex
	keymap   *keymap.Keymap
	sessions map[string]*session
}

// NewManager создаёт менеджер сессий с общей картой привязок клавиш.
func NewManager(km *keymap.Keymap) *Manager {
	return &Manager{
		keymap:   km,
		sessions: make(map[string]*session),
	}
}

// Open открывает новую сессию терминала на экране товаров.
func (m *Manager) Open() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &session{
		id:         uuid.NewString(),
		screen:     ScreenProduct,
		numpadMode: NumpadQuantity,
		dispatcher: keymap.NewDispatcher(m.keymap),
	}
	m.sessions[s.id] = s

	return s.state()
}

// Close закрывает сессию терминала.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, sessionID)
	return nil
}

// Get возвращает снимок состояния сессии.
func (m *Manager) Get(sessionID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return State{}, ErrSessionNotFound
	}
	return s.state(), nil
}

// KeyDown регистрирует нажатие клавиши в сессии. Навигационные действия
// применяются к состоянию сессии; остальные возвращаются клиенту как команда.
func (m *Manager) KeyDown(sessionID, key string) (State, *Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return State{}, nil, ErrSessionNotFound
	}

	binding, matched := s.dispatcher.KeyDown(key, string(s.screen))
	if !matched {
		return s.state(), nil, nil
	}

	cmd := s.apply(binding)
	return s.state(), cmd, nil
}

// KeyUp регистрирует отпускание клавиши в сессии.
func (m *Manager) KeyUp(sessionID, key string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return State{}, ErrSessionNotFound
	}

	s.dispatcher.KeyUp(key)
	return s.state(), nil
}

func (s *session) state() State {
	return State{
		SessionID:  s.id,
		Screen:     s.screen,
		NumpadMode: s.numpadMode,
	}
}

func (s *session) apply(b keymap.Binding) *Command {
	switch b.Action {
	case keymap.ActionGoPaymentScreen:
		s.navigate(ScreenPayment)
	case keymap.ActionGoCustomerScreen:
		s.navigate(ScreenPartners)
	case keymap.ActionGoOrderScreen:
		s.navigate(ScreenTicket)
	case keymap.ActionGoPreviousScreen:
		s.back()
	case keymap.ActionNextOrder, keymap.ActionAddNewOrder:
		s.history = s.history[:0]
		s.screen = ScreenProduct
		s.numpadMode = NumpadQuantity
	case keymap.ActionSelectQuantityMode:
		s.numpadMode = NumpadQuantity
	case keymap.ActionSelectDiscountMode:
		s.numpadMode = NumpadDiscount
	case keymap.ActionSelectPriceMode:
		s.numpadMode = NumpadPrice
	default:
		return &Command{Action: b.Action, PaymentMethodID: b.PaymentMethodID}
	}
	return nil
}

func (s *session) navigate(to Screen) {
	if s.screen == to {
		return
	}
	s.history = append(s.history, s.screen)
	s.screen = to
}

func (s *session) back() {
	if len(s.history) == 0 {
		s.screen = ScreenProduct
		return
	}
	s.screen = s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
}
