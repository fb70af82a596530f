package cassa

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Signature is the canonical form of an order's (item, quantity) pairs used
// to recognise resubmissions. Line order does not matter.
func Signature(lines []LineItem) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, strconv.FormatInt(l.MenuItemID, 10)+":"+strconv.Itoa(l.Quantity))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// DuplicateGuard refuses an order identical to one the same phone placed a
// moment ago. It guards against double taps and client retries.
type DuplicateGuard struct {
	Ledger   OrderLedger
	Window   time.Duration
	Lookback int
}

func (g DuplicateGuard) Check(ctx context.Context, phone string, lines []LineItem, now time.Time) error {
	recent, err := g.Ledger.FindRecentOrders(ctx, PhoneKey(phone), now.Add(-g.Window), g.Lookback)
	if err != nil {
		return fmt.Errorf("find recent orders: %w", err)
	}

	current := Signature(lines)
	for _, order := range recent {
		if Signature(order.Items) == current {
			return reject(CategoryDuplicate,
				"This appears to be a duplicate order. Please wait a few minutes before placing the same order again.")
		}
	}
	return nil
}

type RateLimitGuard struct {
	Ledger    OrderLedger
	Window    time.Duration
	MaxOrders int
}

func (g RateLimitGuard) Check(ctx context.Context, phone string, now time.Time) error {
	count, err := g.Ledger.CountOrders(ctx, OrderFilter{
		Phone:        PhoneKey(phone),
		CreatedAfter: now.Add(-g.Window),
	})
	if err != nil {
		return fmt.Errorf("count orders by phone: %w", err)
	}
	if count >= g.MaxOrders {
		return reject(CategoryRateLimited, fmt.Sprintf(
			"You have reached the maximum of %d orders per %s. Please wait before placing another order.",
			g.MaxOrders, describeWindow(g.Window)))
	}
	return nil
}

// CapacityGuard refuses new orders while the kitchen already has too many
// recent orders in flight.
type CapacityGuard struct {
	Ledger    OrderLedger
	Window    time.Duration
	MaxActive int
}

func (g CapacityGuard) Check(ctx context.Context, now time.Time) error {
	count, err := g.Ledger.CountOrders(ctx, OrderFilter{
		StatusIn:     ActiveStatuses,
		CreatedAfter: now.Add(-g.Window),
	})
	if err != nil {
		return fmt.Errorf("count active orders: %w", err)
	}
	if count >= g.MaxActive {
		return reject(CategoryCapacity,
			"We are currently experiencing high order volume. Please try again in 15-20 minutes for faster service.")
	}
	return nil
}

// VerificationGuard requires signed-in customers to have verified their email.
// Staff addresses are exempt. An entry starting with "@" matches a whole domain.
type VerificationGuard struct {
	Users       UserDirectory
	AdminEmails []string
}

// Check returns the user the order should be linked to. A session naming a
// user the directory does not know links nothing. On a lookup error the
// session user is returned along with the error.
func (g VerificationGuard) Check(ctx context.Context, userID *int64) (*int64, error) {
	if userID == nil || g.Users == nil {
		return userID, nil
	}
	user, found, err := g.Users.LookupUser(ctx, *userID)
	if err != nil {
		return userID, fmt.Errorf("lookup user %d: %w", *userID, err)
	}
	if !found {
		return nil, nil
	}
	if user.EmailVerified || g.isAdmin(user.Email) {
		return userID, nil
	}
	return userID, reject(CategoryEmailUnverified, "Please verify your email address before placing an order")
}

func (g VerificationGuard) isAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, entry := range g.AdminEmails {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "@") && strings.HasSuffix(email, entry) {
			return true
		}
		if email == entry {
			return true
		}
	}
	return false
}

func describeWindow(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	default:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	}
}
