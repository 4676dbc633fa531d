package terminal

import (
	"testing"

	"github.com/akazarov/layaway-system/internal/keymap"
	"github.com/akazarov/layaway-system/internal/model"
)

func testManager() *Manager {
	km := keymap.Build([]model.KeyboardShortcut{
		{Keys: []string{"Control", "Enter"}, Action: keymap.ActionGoPaymentScreen, Screen: "product"},
		{Keys: []string{"Control", "Enter"}, Action: keymap.ActionValidateOrder, Screen: "payment"},
		{Keys: []string{"Escape"}, Action: keymap.ActionGoPreviousScreen, Screen: ""},
		{Keys: []string{"Control", "d"}, Action: keymap.ActionSelectDiscountMode, Screen: "product"},
		{Keys: []string{"Delete"}, Action: keymap.ActionDeleteOrderline, Screen: "product"},
	})
	return NewManager(km)
}

func TestManager_OpenAndGet(t *testing.T) {
	m := testManager()

	st := m.Open()
	if st.SessionID == "" {
		t.Fatalf("session id is empty")
	}
	if st.Screen != ScreenProduct {
		t.Fatalf("screen = %s, want %s", st.Screen, ScreenProduct)
	}
	if st.NumpadMode != NumpadQuantity {
		t.Fatalf("numpad mode = %s, want %s", st.NumpadMode, NumpadQuantity)
	}

	got, err := m.Get(st.SessionID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != st {
		t.Fatalf("Get = %+v, want %+v", got, st)
	}
}

func TestManager_NavigationAndBack(t *testing.T) {
	m := testManager()
	st := m.Open()

	if _, _, err := m.KeyDown(st.SessionID, "Control"); err != nil {
		t.Fatalf("KeyDown error: %v", err)
	}
	got, cmd, err := m.KeyDown(st.SessionID, "Enter")
	if err != nil {
		t.Fatalf("KeyDown error: %v", err)
	}
	if cmd != nil {
		t.Fatalf("navigation should not return a command, got %+v", cmd)
	}
	if got.Screen != ScreenPayment {
		t.Fatalf("screen = %s, want %s", got.Screen, ScreenPayment)
	}

	if _, err := m.KeyUp(st.SessionID, "Enter"); err != nil {
		t.Fatalf("KeyUp error: %v", err)
	}

	got, cmd, err = m.KeyDown(st.SessionID, "Escape")
	if err != nil {
		t.Fatalf("KeyDown error: %v", err)
	}
	if cmd != nil {
		t.Fatalf("back navigation should not return a command, got %+v", cmd)
	}
	if got.Screen != ScreenProduct {
		t.Fatalf("screen after back = %s, want %s", got.Screen, ScreenProduct)
	}
}

func TestManager_SameComboDifferentScreens(t *testing.T) {
	m := testManager()
	st := m.Open()

	m.KeyDown(st.SessionID, "Control")
	got, _, _ := m.KeyDown(st.SessionID, "Enter")
	if got.Screen != ScreenPayment {
		t.Fatalf("screen = %s, want %s", got.Screen, ScreenPayment)
	}
	m.KeyUp(st.SessionID, "Enter")

	// Та же комбинация на экране оплаты уже не навигация, а команда.
	m.KeyDown(st.SessionID, "Control")
	got, cmd, err := m.KeyDown(st.SessionID, "Enter")
	if err != nil {
		t.Fatalf("KeyDown error: %v", err)
	}
	if cmd == nil || cmd.Action != keymap.ActionValidateOrder {
		t.Fatalf("command = %+v, want %s", cmd, keymap.ActionValidateOrder)
	}
	if got.Screen != ScreenPayment {
		t.Fatalf("screen should stay %s, got %s", ScreenPayment, got.Screen)
	}
}

func TestManager_NumpadMode(t *testing.T) {
	m := testManager()
	st := m.Open()

	m.KeyDown(st.SessionID, "Control")
	got, cmd, err := m.KeyDown(st.SessionID, "d")
	if err != nil {
		t.Fatalf("KeyDown error: %v", err)
	}
	if cmd != nil {
		t.Fatalf("numpad mode switch should not return a command")
	}
	if got.NumpadMode != NumpadDiscount {
		t.Fatalf("numpad mode = %s, want %s", got.NumpadMode, NumpadDiscount)
	}
}

func TestManager_CommandPassthrough(t *testing.T) {
	m := testManager()
	st := m.Open()

	_, cmd, err := m.KeyDown(st.SessionID, "Delete")
	if err != nil {
		t.Fatalf("KeyDown error: %v", err)
	}
	if cmd == nil || cmd.Action != keymap.ActionDeleteOrderline {
		t.Fatalf("command = %+v, want %s", cmd, keymap.ActionDeleteOrderline)
	}
}

func TestManager_UnknownSession(t *testing.T) {
	m := testManager()

	if _, err := m.Get("missing"); err != ErrSessionNotFound {
		t.Fatalf("Get error = %v, want %v", err, ErrSessionNotFound)
	}
	if _, _, err := m.KeyDown("missing", "a"); err != ErrSessionNotFound {
		t.Fatalf("KeyDown error = %v, want %v", err, ErrSessionNotFound)
	}
	if err := m.Close("missing"); err != ErrSessionNotFound {
		t.Fatalf("Close error = %v, want %v", err, ErrSessionNotFound)
	}
}

func TestManager_Close(t *testing.T) {
	m := testManager()
	st := m.Open()

	if err := m.Close(st.SessionID); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := m.Get(st.SessionID); err != ErrSessionNotFound {
		t.Fatalf("Get after close = %v, want %v", err, ErrSessionNotFound)
	}
}
