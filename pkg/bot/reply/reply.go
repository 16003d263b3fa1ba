// Package reply holds the response value handed to the outbound WhatsApp layer.
package reply

import (
	"fmt"
	"regexp"
	"strconv"
)

// MaxButtons is the number of quick-reply buttons WhatsApp renders per message.
const MaxButtons = 3

// ButtonAction is the verb encoded in a product button id.
type ButtonAction string

const (
	ActionBuy      ButtonAction = "buy"
	ActionAddCart  ButtonAction = "add_cart"
	ActionMoreInfo ButtonAction = "more_info"
)

var buttonIDRegex = regexp.MustCompile(`^(buy|add_cart|more_info)_(\d+)$`)

// ButtonID builds the "{action}_{productId}" id parsed back by ParseButtonID.
func ButtonID(action ButtonAction, productID int64) string {
	return fmt.Sprintf("%s_%d", action, productID)
}

// ParseButtonID extracts the action and product id from a button click.
func ParseButtonID(message string) (ButtonAction, int64, bool) {
	m := buttonIDRegex.FindStringSubmatch(message)
	if m == nil {
		return "", 0, false
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return ButtonAction(m[1]), id, true
}

// Button is a quick-reply button.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Action types attached to a response for the caller to act on.
const (
	ActionCartUpdated    = "cart_updated"
	ActionOrderConfirmed = "order_confirmed"
	ActionSessionCleared = "session_cleared"
)

// Action is a side-effect hint for the caller.
type Action struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Response is returned for every inbound message.
type Response struct {
	Handled bool     `json:"handled"`
	Text    string   `json:"response"`
	Buttons []Button `json:"buttons,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// Text is a handled response with text only.
func Text(text string) *Response {
	return &Response{Handled: true, Text: text}
}

// NotHandled signals that another bot should answer.
func NotHandled() *Response {
	return &Response{Handled: false}
}

// WithButtons appends buttons, keeping at most MaxButtons.
func (r *Response) WithButtons(buttons ...Button) *Response {
	r.Buttons = append(r.Buttons, buttons...)
	if len(r.Buttons) > MaxButtons {
		r.Buttons = r.Buttons[:MaxButtons]
	}
	return r
}

// WithAction appends a side-effect hint.
func (r *Response) WithAction(actionType string, data map[string]any) *Response {
	r.Actions = append(r.Actions, Action{Type: actionType, Data: data})
	return r
}
