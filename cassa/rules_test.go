package cassa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCustomerInfo(t *testing.T) {
	tests := []struct {
		name   string
		cust   string
		phone  string
		email  string
		reason string
	}{
		{name: "valid", cust: "Ada", phone: "416-555-0100"},
		{name: "valid with email", cust: "Ada", phone: "+1 (416) 555-0100", email: "ada@example.com"},
		{name: "name padded to one rune", cust: "  A  ", phone: "4165550100", reason: "Customer name must be at least 2 characters long."},
		{name: "name too long", cust: "Abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz", phone: "4165550100", reason: "Customer name must be at most 50 characters."},
		{name: "too few digits", cust: "Ada", phone: "555-0100", reason: "Please provide a valid phone number (10-15 digits)."},
		{name: "too many digits", cust: "Ada", phone: "1234567890123456", reason: "Please provide a valid phone number (10-15 digits)."},
		{name: "letters in phone", cust: "Ada", phone: "416-555-CALL", reason: "Please provide a valid phone number (10-15 digits)."},
		{name: "malformed email", cust: "Ada", phone: "4165550100", email: "ada@", reason: "Please provide a valid email address."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCustomerInfo(tt.cust, tt.phone, tt.email)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			rej, ok := AsRejection(err)
			require.True(t, ok)
			assert.Equal(t, CategoryValidation, rej.Category)
			assert.Equal(t, tt.reason, rej.Reason)
		})
	}
}

func TestPhoneKey(t *testing.T) {
	tests := []struct {
		phone string
		want  string
	}{
		{phone: "416-555-0100", want: "4165550100"},
		{phone: "(416) 555-0100", want: "4165550100"},
		{phone: "416 555 0100", want: "4165550100"},
		{phone: " +1 (416) 555-0100", want: "+14165550100"},
		{phone: "1+416", want: "1416"},
		{phone: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			assert.Equal(t, tt.want, PhoneKey(tt.phone))
		})
	}
}

func TestCheckShape(t *testing.T) {
	err := checkShape(&OrderRequest{CustomerName: "Ada", CustomerPhone: "4165550100"})
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, "No items in order", rej.Reason)

	err = checkShape(&OrderRequest{CustomerName: " ", Items: []OrderLineRequest{{MenuItemID: 1, Quantity: 1}}})
	rej, ok = AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, "Customer name and phone are required", rej.Reason)
}

func TestOrderLimits(t *testing.T) {
	limits := DefaultOrderLimits()
	line := func(name string, qty int, price string) LineItem {
		return LineItem{MenuItemID: 1, Name: name, Quantity: qty, Price: dollars(price)}
	}

	tests := []struct {
		name   string
		lines  []LineItem
		reason string
	}{
		{
			name:  "within limits",
			lines: []LineItem{line("Pizza", 2, "8.00"), line("Salad", 1, "5.00")},
		},
		{
			name:   "under the floor",
			lines:  []LineItem{line("Salad", 1, "12.00")},
			reason: "Minimum order amount is $15.00. Your order total is $12.00.",
		},
		{
			name:   "over the ceiling",
			lines:  []LineItem{line("Catering tray", 11, "50.00")},
			reason: "Maximum order amount is $500.00. Your order total is $550.00. Please reduce your order or contact us directly for large orders.",
		},
		{
			name:   "too many of one item",
			lines:  []LineItem{line("Garlic knot", 21, "1.00")},
			reason: `Maximum quantity per item is 20. "Garlic knot" has 21; please reduce the quantity.`,
		},
		{
			name:   "zero quantity line",
			lines:  []LineItem{line("Pizza", 2, "8.00"), line("Salad", 0, "5.00")},
			reason: `Invalid quantity for "Salad" (0). Quantity must be at least 1.`,
		},
		{
			name: "too many items overall",
			lines: []LineItem{
				line("Garlic knot", 17, "1.00"),
				line("Cookie", 17, "1.00"),
				line("Soda", 17, "1.00"),
			},
			reason: "Maximum total items per order is 50. Your order has 51 items; please reduce your order size.",
		},
		{
			name:   "unnamed line falls back to id",
			lines:  []LineItem{{MenuItemID: 42, Quantity: 25, Price: dollars("1.00")}},
			reason: `Maximum quantity per item is 20. "Item ID 42" has 25; please reduce the quantity.`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := limits.Check(tt.lines)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			rej, ok := AsRejection(err)
			require.True(t, ok)
			assert.Equal(t, CategoryValidation, rej.Category)
			assert.Equal(t, tt.reason, rej.Reason)
		})
	}
}

func TestValidateMenuUsesMenuPrices(t *testing.T) {
	menu := newFakeMenu(
		MenuItemSnapshot{ID: 1, Name: "Margherita", Price: dollars("8.00"), Available: true},
		MenuItemSnapshot{ID: 2, Name: "Caesar", Price: dollars("5.00"), Available: true},
	)

	lines, err := ValidateMenu(context.Background(), menu, []OrderLineRequest{
		{MenuItemID: 1, Name: "client label", Quantity: 2, Price: dollars("8.004")},
		{MenuItemID: 2, Quantity: 1, Price: dollars("5.00")},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Margherita", lines[0].Name)
	assert.True(t, dollars("8.00").Equal(lines[0].Price))
	assert.True(t, dollars("21.00").Equal(totalOf(lines)))
	assert.Equal(t, 1, menu.calls)
}

func TestValidateMenuPriceMismatch(t *testing.T) {
	menu := newFakeMenu(
		MenuItemSnapshot{ID: 1, Name: "A", Price: dollars("8.00"), Available: true},
		MenuItemSnapshot{ID: 2, Name: "B", Price: dollars("7.00"), Available: true},
	)

	_, err := ValidateMenu(context.Background(), menu, []OrderLineRequest{
		{MenuItemID: 1, Quantity: 2, Price: dollars("8.00")},
		{MenuItemID: 2, Quantity: 1, Price: dollars("5.00")},
	})
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, CategoryValidation, rej.Category)
	assert.Equal(t, []string{"B (price mismatch: expected $7.00, got $5.00)"}, rej.InvalidItems)
	assert.Contains(t, rej.Reason, "expected $7.00, got $5.00")
}

func TestValidateMenuCollectsEveryProblem(t *testing.T) {
	menu := newFakeMenu(
		MenuItemSnapshot{ID: 1, Name: "Margherita", Price: dollars("8.00"), Available: true},
		MenuItemSnapshot{ID: 2, Name: "Tiramisu", Price: dollars("6.00"), Available: false},
	)

	_, err := ValidateMenu(context.Background(), menu, []OrderLineRequest{
		{MenuItemID: 1, Quantity: 2, Price: dollars("8.00")},
		{MenuItemID: 2, Quantity: 1, Price: dollars("6.00")},
		{MenuItemID: 99, Name: "Calzone", Quantity: 1, Price: dollars("9.00")},
		{MenuItemID: 100, Quantity: 1, Price: dollars("9.00")},
	})
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, []string{"Calzone", "Item ID 100"}, rej.InvalidItems)
	assert.Equal(t, []string{"Tiramisu"}, rej.UnavailableItems)
	assert.Equal(t,
		"These items are no longer available: Calzone, Item ID 100. These items are currently unavailable: Tiramisu. Please refresh your cart and try again.",
		rej.Reason)
}

func TestValidateMenuStoreFailureRejects(t *testing.T) {
	menu := newFakeMenu()
	menu.err = errStorageDown

	_, err := ValidateMenu(context.Background(), menu, []OrderLineRequest{{MenuItemID: 1, Quantity: 1}})
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, CategoryValidation, rej.Category)
	assert.Equal(t, "Unable to validate menu items. Please try again.", rej.Reason)
}
