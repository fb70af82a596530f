package cassa

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	phoneShape = regexp.MustCompile(`^\+?\(?[\d\-()]+$`)
	emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	whitespace = regexp.MustCompile(`\s+`)

	// priceTolerance absorbs rounding in client-side arithmetic.
	priceTolerance = decimal.RequireFromString("0.01")
)

const (
	minNameLength  = 2
	maxNameLength  = 50
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

// checkShape rejects requests that are missing what every later rule needs.
func checkShape(req *OrderRequest) error {
	if len(req.Items) == 0 {
		return reject(CategoryValidation, "No items in order")
	}
	if strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.CustomerPhone) == "" {
		return reject(CategoryValidation, "Customer name and phone are required")
	}
	return nil
}

// ValidateCustomerInfo checks the contact fields and returns the first problem.
func ValidateCustomerInfo(name, phone, email string) error {
	trimmed := strings.TrimSpace(name)
	if utf8.RuneCountInString(trimmed) < minNameLength {
		return reject(CategoryValidation, "Customer name must be at least 2 characters long.")
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return reject(CategoryValidation, "Customer name must be at most 50 characters.")
	}

	if !validPhone(phone) {
		return reject(CategoryValidation, "Please provide a valid phone number (10-15 digits).")
	}

	if email != "" && !emailShape.MatchString(strings.TrimSpace(email)) {
		return reject(CategoryValidation, "Please provide a valid email address.")
	}
	return nil
}

func validPhone(phone string) bool {
	compact := whitespace.ReplaceAllString(phone, "")
	if !phoneShape.MatchString(compact) {
		return false
	}
	digits := 0
	for _, r := range compact {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= minPhoneDigits && digits <= maxPhoneDigits
}

// PhoneKey reduces phone to the form the ledger is searched by: its digits,
// with a leading "+" kept when present.
func PhoneKey(phone string) string {
	trimmed := strings.TrimSpace(phone)
	var b strings.Builder
	if strings.HasPrefix(trimmed, "+") {
		b.WriteByte('+')
	}
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type OrderLimits struct {
	MinimumTotal    decimal.Decimal
	MaximumTotal    decimal.Decimal
	MaxItemQuantity int
	MaxTotalItems   int
}

func DefaultOrderLimits() OrderLimits {
	return OrderLimits{
		MinimumTotal:    decimal.NewFromInt(15),
		MaximumTotal:    decimal.NewFromInt(500),
		MaxItemQuantity: 20,
		MaxTotalItems:   50,
	}
}

// Check enforces, in order, the amount floor and ceiling, the per-line
// quantity bounds and the total item count. It stops at the first violation.
func (l OrderLimits) Check(lines []LineItem) error {
	if err := l.checkAmount(totalOf(lines)); err != nil {
		return err
	}

	for _, line := range lines {
		if line.Quantity > l.MaxItemQuantity {
			return reject(CategoryValidation, fmt.Sprintf(
				"Maximum quantity per item is %d. %q has %d; please reduce the quantity.",
				l.MaxItemQuantity, lineLabel(line), line.Quantity))
		}
		if line.Quantity < 1 {
			return reject(CategoryValidation, fmt.Sprintf(
				"Invalid quantity for %q (%d). Quantity must be at least 1.",
				lineLabel(line), line.Quantity))
		}
	}

	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	if count > l.MaxTotalItems {
		return reject(CategoryValidation, fmt.Sprintf(
			"Maximum total items per order is %d. Your order has %d items; please reduce your order size.",
			l.MaxTotalItems, count))
	}
	return nil
}

func (l OrderLimits) checkAmount(total decimal.Decimal) error {
	if total.LessThan(l.MinimumTotal) {
		return reject(CategoryValidation, fmt.Sprintf(
			"Minimum order amount is $%s. Your order total is $%s.",
			l.MinimumTotal.StringFixed(2), total.StringFixed(2)))
	}
	if total.GreaterThan(l.MaximumTotal) {
		return reject(CategoryValidation, fmt.Sprintf(
			"Maximum order amount is $%s. Your order total is $%s. Please reduce your order or contact us directly for large orders.",
			l.MaximumTotal.StringFixed(2), total.StringFixed(2)))
	}
	return nil
}

func lineLabel(line LineItem) string {
	if line.Name != "" {
		return line.Name
	}
	return fmt.Sprintf("Item ID %d", line.MenuItemID)
}

// clientPricedLines mirrors the request as line items at the client's prices.
// Only the pre-menu limit check may look at these.
func clientPricedLines(items []OrderLineRequest) []LineItem {
	lines := make([]LineItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, LineItem{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Price:      it.Price,
		})
	}
	return lines
}

// ValidateMenu looks every requested item up in one batch and returns the
// lines priced from the menu. All problems are collected before rejecting.
func ValidateMenu(ctx context.Context, store MenuStore, items []OrderLineRequest) ([]LineItem, error) {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.MenuItemID]; ok {
			continue
		}
		seen[it.MenuItemID] = struct{}{}
		ids = append(ids, it.MenuItemID)
	}

	snapshots, err := store.FetchMenuItems(ctx, ids)
	if err != nil {
		slog.ErrorContext(ctx, "menu lookup failed, refusing order", slog.Any("err", err))
		return nil, &Rejection{
			Category: CategoryValidation,
			Reason:   "Unable to validate menu items. Please try again.",
		}
	}
	byID := make(map[int64]MenuItemSnapshot, len(snapshots))
	for _, s := range snapshots {
		byID[s.ID] = s
	}

	var (
		invalid     []string
		unavailable []string
		lines       = make([]LineItem, 0, len(items))
	)
	for _, it := range items {
		snap, ok := byID[it.MenuItemID]
		switch {
		case !ok:
			name := it.Name
			if name == "" {
				name = fmt.Sprintf("Item ID %d", it.MenuItemID)
			}
			invalid = append(invalid, name)
		case !snap.Available:
			unavailable = append(unavailable, snap.Name)
		case snap.Price.Sub(it.Price).Abs().GreaterThan(priceTolerance):
			invalid = append(invalid, fmt.Sprintf("%s (price mismatch: expected $%s, got $%s)",
				snap.Name, snap.Price.StringFixed(2), it.Price.StringFixed(2)))
		default:
			lines = append(lines, LineItem{
				MenuItemID: snap.ID,
				Name:       snap.Name,
				Quantity:   it.Quantity,
				Price:      snap.Price,
			})
		}
	}

	if len(invalid) == 0 && len(unavailable) == 0 {
		return lines, nil
	}

	var msg strings.Builder
	if len(invalid) > 0 {
		fmt.Fprintf(&msg, "These items are no longer available: %s. ", strings.Join(invalid, ", "))
	}
	if len(unavailable) > 0 {
		fmt.Fprintf(&msg, "These items are currently unavailable: %s. ", strings.Join(unavailable, ", "))
	}
	msg.WriteString("Please refresh your cart and try again.")

	return nil, &Rejection{
		Category:         CategoryValidation,
		Reason:           msg.String(),
		InvalidItems:     invalid,
		UnavailableItems: unavailable,
	}
}
