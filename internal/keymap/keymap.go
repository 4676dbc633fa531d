// Package keymap сопоставляет комбинации клавиш POS-терминала с действиями.
package keymap

import (
	"strings"

	"github.com/akazarov/layaway-system/internal/model"
)

// Действия, назначаемые на комбинации клавиш.
const (
	ActionGoPaymentScreen     = "go_payment_screen"
	ActionGoCustomerScreen    = "go_customer_screen"
	ActionGoOrderScreen       = "go_order_screen"
	ActionGoPreviousScreen    = "go_previous_screen"
	ActionSelectUpOrderline   = "select_up_orderline"
	ActionSelectDownOrderline = "select_down_orderline"
	ActionSelectQuantityMode  = "select_quantity_mode"
	ActionSelectDiscountMode  = "select_discount_mode"
	ActionSelectPriceMode     = "select_price_mode"
	ActionDeleteOrderline     = "delete_orderline"
	ActionValidateOrder       = "validate_order"
	ActionNextOrder           = "next_order"
	ActionAddNewOrder         = "add_new_order"
	ActionSelectPaymentMethod = "select_payment_method"
)

// Binding описывает действие, привязанное к комбинации клавиш на экране.
type Binding struct {
	Action          string
	Screen          string
	PaymentMethodID *int64
}

// Keymap хранит привязки действий к комбинациям клавиш по экранам.
type Keymap struct {
	bindings map[string][]Binding
}

// ComboKey формирует ключ комбинации из имён клавиш в порядке нажатия.
func ComboKey(keys []string) string {
	return strings.Join(keys, "+")
}

// Build строит карту привязок из настроенных комбинаций.
func Build(shortcuts []model.KeyboardShortcut) *Keymap {
	km := &Keymap{bindings: make(map[string][]Binding)}
	for _, s := range shortcuts {
		if len(s.Keys) == 0 || s.Action == "" {
			continue
		}
		key := ComboKey(s.Keys)
		km.bindings[key] = append(km.bindings[key], Binding{
			Action:          s.Action,
			Screen:          s.Screen,
			PaymentMethodID: s.PaymentMethodID,
		})
	}
	return km
}

// Lookup возвращает привязку комбинации для указанного экрана.
// Привязка с пустым экраном действует на всех экранах.
func (k *Keymap) Lookup(combo string, screen string) (Binding, bool) {
	var global Binding
	var hasGlobal bool

	for _, b := range k.bindings[combo] {
		if b.Screen == screen {
			return b, true
		}
		if b.Screen == "" {
			global = b
			hasGlobal = true
		}
	}

	if hasGlobal {
		return global, true
	}
	return Binding{}, false
}

// Dispatcher отслеживает нажатые клавиши и распознаёт комбинации.
// Нажатые клавиши копятся в порядке нажатия; любое отпускание клавиши
// сбрасывает весь накопленный набор.
type Dispatcher struct {
	keymap  *Keymap
	pressed []string
}

// NewDispatcher создаёт диспетчер по построенной карте привязок.
func NewDispatcher(km *Keymap) *Dispatcher {
	return &Dispatcher{keymap: km}
}

// KeyDown регистрирует нажатие клавиши и возвращает привязку,
// если накопленная комбинация настроена для текущего экрана.
func (d *Dispatcher) KeyDown(key string, screen string) (Binding, bool) {
	for _, p := range d.pressed {
		if p == key {
			return d.match(screen)
		}
	}
	d.pressed = append(d.pressed, key)
	return d.match(screen)
}

// KeyUp регистрирует отпускание клавиши и сбрасывает накопленный набор.
func (d *Dispatcher) KeyUp(key string) {
	d.pressed = d.pressed[:0]
}

// Pressed возвращает копию текущего набора нажатых клавиш.
func (d *Dispatcher) Pressed() []string {
	out := make([]string, len(d.pressed))
	copy(out, d.pressed)
	return out
}

func (d *Dispatcher) match(screen string) (Binding, bool) {
	if len(d.pressed) == 0 {
		return Binding{}, false
	}
	return d.keymap.Lookup(ComboKey(d.pressed), screen)
}
