package keymap

import (
	"testing"

	"github.com/akazarov/layaway-system/internal/model"
)

func testShortcuts() []model.KeyboardShortcut {
	return []model.KeyboardShortcut{
		{Keys: []string{"Control", "Enter"}, Action: ActionGoPaymentScreen, Screen: "product"},
		{Keys: []string{"Control", "Enter"}, Action: ActionValidateOrder, Screen: "payment"},
		{Keys: []string{"Escape"}, Action: ActionGoPreviousScreen, Screen: ""},
		{Keys: []string{"ArrowUp"}, Action: ActionSelectUpOrderline, Screen: "product"},
	}
}

func TestDispatcher_ComboPerScreen(t *testing.T) {
	d := NewDispatcher(Build(testShortcuts()))

	if _, ok := d.KeyDown("Control", "product"); ok {
		t.Fatalf("single Control should not match a combo")
	}

	b, ok := d.KeyDown("Enter", "product")
	if !ok {
		t.Fatalf("Control+Enter on product screen should match")
	}
	if b.Action != ActionGoPaymentScreen {
		t.Fatalf("action = %s, want %s", b.Action, ActionGoPaymentScreen)
	}

	d.KeyUp("Enter")

	d.KeyDown("Control", "payment")
	b, ok = d.KeyDown("Enter", "payment")
	if !ok {
		t.Fatalf("Control+Enter on payment screen should match")
	}
	if b.Action != ActionValidateOrder {
		t.Fatalf("action = %s, want %s", b.Action, ActionValidateOrder)
	}
}

func TestDispatcher_GlobalBinding(t *testing.T) {
	d := NewDispatcher(Build(testShortcuts()))

	b, ok := d.KeyDown("Escape", "receipt")
	if !ok {
		t.Fatalf("Escape should match on any screen")
	}
	if b.Action != ActionGoPreviousScreen {
		t.Fatalf("action = %s, want %s", b.Action, ActionGoPreviousScreen)
	}
}

func TestDispatcher_KeyUpClearsAllPressed(t *testing.T) {
	d := NewDispatcher(Build(testShortcuts()))

	d.KeyDown("Control", "product")
	d.KeyDown("Shift", "product")

	// Отпускание одной клавиши сбрасывает весь набор, не только её.
	d.KeyUp("Shift")

	if got := d.Pressed(); len(got) != 0 {
		t.Fatalf("pressed after keyup = %v, want empty", got)
	}

	if _, ok := d.KeyDown("Enter", "product"); ok {
		t.Fatalf("Enter alone should not match after pressed set was cleared")
	}
}

func TestDispatcher_RepeatedKeyDown(t *testing.T) {
	d := NewDispatcher(Build(testShortcuts()))

	d.KeyDown("Control", "product")
	d.KeyDown("Control", "product")
	d.KeyDown("Enter", "product")

	if got := ComboKey(d.Pressed()); got != "Control+Enter" {
		t.Fatalf("combo = %q, want Control+Enter", got)
	}
}

func TestDispatcher_WrongScreen(t *testing.T) {
	d := NewDispatcher(Build(testShortcuts()))

	d.KeyDown("Control", "ticket")
	if _, ok := d.KeyDown("Enter", "ticket"); ok {
		t.Fatalf("Control+Enter should not match on ticket screen")
	}
}

func TestBuild_SkipsInvalid(t *testing.T) {
	km := Build([]model.KeyboardShortcut{
		{Keys: nil, Action: ActionValidateOrder, Screen: "payment"},
		{Keys: []string{"F1"}, Action: "", Screen: "product"},
	})

	if _, ok := km.Lookup("F1", "product"); ok {
		t.Fatalf("binding without action should be skipped")
	}
}
