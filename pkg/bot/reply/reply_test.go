package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseButtonID(t *testing.T) {
	tests := []struct {
		in         string
		wantAction ButtonAction
		wantID     int64
		wantOK     bool
	}{
		{"buy_42", ActionBuy, 42, true},
		{"add_cart_7", ActionAddCart, 7, true},
		{"more_info_100", ActionMoreInfo, 100, true},
		{"buy_", "", 0, false},
		{"buy_42 please", "", 0, false},
		{"refund_42", "", 0, false},
		{"BUY_42", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			action, id, ok := ParseButtonID(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantAction, action)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestButtonIDRoundTrip(t *testing.T) {
	id := ButtonID(ActionAddCart, 15)
	assert.Equal(t, "add_cart_15", id)

	action, productID, ok := ParseButtonID(id)
	assert.True(t, ok)
	assert.Equal(t, ActionAddCart, action)
	assert.Equal(t, int64(15), productID)
}

func TestWithButtonsCapsAtThree(t *testing.T) {
	r := Text("pick one").WithButtons(
		Button{ID: "a", Title: "A"},
		Button{ID: "b", Title: "B"},
		Button{ID: "c", Title: "C"},
		Button{ID: "d", Title: "D"},
	)
	assert.Len(t, r.Buttons, MaxButtons)
	assert.True(t, r.Handled)
}
