package cassa

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

var errStorageDown = errors.New("storage unreachable")

type fakeMenu struct {
	mu    sync.Mutex
	items map[int64]MenuItemSnapshot
	err   error
	calls int
}

func newFakeMenu(items ...MenuItemSnapshot) *fakeMenu {
	m := &fakeMenu{items: make(map[int64]MenuItemSnapshot)}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

func (m *fakeMenu) set(item MenuItemSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
}

func (m *fakeMenu) FetchMenuItems(_ context.Context, ids []int64) ([]MenuItemSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []MenuItemSnapshot
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *fakeMenu) ListAvailable(_ context.Context) ([]MenuItemSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MenuItemSnapshot
	for _, it := range m.items {
		if it.Available {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	orders    []PersistedOrder
	nextID    int64
	findErr   error
	countErr  error
	createErr error
}

func (l *fakeLedger) CreateOrder(_ context.Context, order PersistedOrder) (PersistedOrder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return PersistedOrder{}, l.createErr
	}
	l.nextID++
	order.ID = l.nextID
	l.orders = append(l.orders, order)
	return order, nil
}

func (l *fakeLedger) CountOrders(_ context.Context, filter OrderFilter) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.countErr != nil {
		return 0, l.countErr
	}
	n := 0
	for _, o := range l.orders {
		if o.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		if filter.Phone != "" && PhoneKey(o.CustomerPhone) != filter.Phone {
			continue
		}
		if len(filter.StatusIn) > 0 && !containsStatus(filter.StatusIn, o.Status) {
			continue
		}
		n++
	}
	return n, nil
}

func (l *fakeLedger) FindRecentOrders(_ context.Context, phone string, createdAfter time.Time, limit int) ([]PersistedOrder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.findErr != nil {
		return nil, l.findErr
	}
	var out []PersistedOrder
	for i := len(l.orders) - 1; i >= 0 && len(out) < limit; i-- {
		o := l.orders[i]
		if PhoneKey(o.CustomerPhone) == phone && !o.CreatedAt.Before(createdAfter) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.orders)
}

func containsStatus(set []OrderStatus, s OrderStatus) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

type fakeUsers struct {
	users map[int64]User
	err   error
}

func (u *fakeUsers) LookupUser(_ context.Context, id int64) (User, bool, error) {
	if u.err != nil {
		return User{}, false, u.err
	}
	user, ok := u.users[id]
	return user, ok, nil
}

type fakePOS struct {
	mu       sync.Mutex
	result   PosResult
	block    bool
	panicMsg string
	calls    []int64
}

func (p *fakePOS) SubmitOrder(ctx context.Context, _ []LineItem, _ PosCustomer, totalCents int64) PosResult {
	p.mu.Lock()
	p.calls = append(p.calls, totalCents)
	block, panicMsg, result := p.block, p.panicMsg, p.result
	p.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	if block {
		<-ctx.Done()
		return PosResult{Error: ctx.Err().Error()}
	}
	return result
}

func (p *fakePOS) totals() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.calls...)
}

type fakeMailer struct {
	mu            sync.Mutex
	ok            bool
	confirmations []string
	adminNotices  []int64
}

func (m *fakeMailer) SendOrderConfirmation(_ context.Context, to, _ string, _ PersistedOrder) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmations = append(m.confirmations, to)
	return m.ok
}

func (m *fakeMailer) SendAdminNotification(_ context.Context, order PersistedOrder) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adminNotices = append(m.adminNotices, order.ID)
	return m.ok
}

func (m *fakeMailer) sent() (confirmations []string, admin []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.confirmations...), append([]int64(nil), m.adminNotices...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []OrderPlaced
	err    error
}

func (p *fakePublisher) PublishPlaced(_ context.Context, event OrderPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func dollars(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
