package cassa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// State names the step an order submission has reached.
type State string

const (
	StateReceived              State = "received"
	StateCustomerInfoChecked   State = "customer_info_checked"
	StateStoreHoursChecked     State = "store_hours_checked"
	StateLimitsChecked         State = "limits_checked"
	StateMenuValidated         State = "menu_validated"
	StateDuplicateChecked      State = "duplicate_checked"
	StateRateLimitChecked      State = "rate_limit_checked"
	StateCapacityChecked       State = "capacity_checked"
	StateUserVerified          State = "user_verified"
	StatePersisted             State = "persisted"
	StateSideEffectsDispatched State = "side_effects_dispatched"
	StateCompleted             State = "completed"
	StateRejected              State = "rejected"
)

type Settings struct {
	StoreHours         StoreHoursConfig
	Limits             OrderLimits
	DuplicateWindow    time.Duration
	DuplicateLookback  int
	RateLimitWindow    time.Duration
	RateLimitMaxOrders int
	CapacityWindow     time.Duration
	CapacityMaxActive  int
	SideEffectTimeout  time.Duration
	AdminEmails        []string
}

func DefaultSettings() Settings {
	return Settings{
		StoreHours: StoreHoursConfig{
			OpenTime:      "10:00",
			CloseTime:     "22:00",
			Timezone:      "America/Toronto",
			ClosingBuffer: 30 * time.Minute,
		},
		Limits:             DefaultOrderLimits(),
		DuplicateWindow:    5 * time.Minute,
		DuplicateLookback:  5,
		RateLimitWindow:    time.Hour,
		RateLimitMaxOrders: 3,
		CapacityWindow:     30 * time.Minute,
		CapacityMaxActive:  20,
		SideEffectTimeout:  8 * time.Second,
	}
}

// Collaborators are the storage and delivery dependencies of the intake.
// Users and Publisher may be nil.
type Collaborators struct {
	Menu      MenuStore
	Ledger    OrderLedger
	Users     UserDirectory
	POS       PointOfSale
	Mailer    Mailer
	Publisher OrderPublisher
}

type Option func(*Intake)

// WithClock replaces time.Now as the source of the current instant.
func WithClock(now func() time.Time) Option {
	return func(i *Intake) {
		i.now = now
	}
}

// Intake runs submitted orders through the validation pipeline, persists the
// ones that pass and fans the accepted order out to the till, mail and event bus.
type Intake struct {
	settings  Settings
	menu      MenuStore
	ledger    OrderLedger
	pos       PointOfSale
	mailer    Mailer
	publisher OrderPublisher

	duplicate    DuplicateGuard
	rateLimit    RateLimitGuard
	capacity     CapacityGuard
	verification VerificationGuard

	stages  []stage
	now     func() time.Time
	metrics *intakeMetrics
}

type submission struct {
	req   *OrderRequest
	now   time.Time
	lines []LineItem
}

// stage is one arrow of the intake state machine. failOpen stages let the
// order through when their check hits an infrastructure error.
type stage struct {
	state    State
	failOpen bool
	check    func(ctx context.Context, s *submission) error
}

func NewIntake(settings Settings, deps Collaborators, opts ...Option) (*Intake, error) {
	if deps.Menu == nil || deps.Ledger == nil || deps.POS == nil || deps.Mailer == nil {
		return nil, errors.New("intake requires menu, ledger, pos and mailer collaborators")
	}

	metrics, err := newIntakeMetrics()
	if err != nil {
		return nil, err
	}

	i := &Intake{
		settings:  settings,
		menu:      deps.Menu,
		ledger:    deps.Ledger,
		pos:       deps.POS,
		mailer:    deps.Mailer,
		publisher: deps.Publisher,
		duplicate: DuplicateGuard{
			Ledger:   deps.Ledger,
			Window:   settings.DuplicateWindow,
			Lookback: settings.DuplicateLookback,
		},
		rateLimit: RateLimitGuard{
			Ledger:    deps.Ledger,
			Window:    settings.RateLimitWindow,
			MaxOrders: settings.RateLimitMaxOrders,
		},
		capacity: CapacityGuard{
			Ledger:    deps.Ledger,
			Window:    settings.CapacityWindow,
			MaxActive: settings.CapacityMaxActive,
		},
		verification: VerificationGuard{
			Users:       deps.Users,
			AdminEmails: settings.AdminEmails,
		},
		now:     time.Now,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(i)
	}

	// Checks that need no I/O come first.
	i.stages = []stage{
		{state: StateCustomerInfoChecked, check: i.checkCustomer},
		{state: StateStoreHoursChecked, check: i.checkStoreHours},
		{state: StateLimitsChecked, check: i.checkLimits},
		{state: StateMenuValidated, check: i.checkMenu},
		{state: StateDuplicateChecked, failOpen: true, check: i.checkDuplicate},
		{state: StateRateLimitChecked, failOpen: true, check: i.checkRateLimit},
		{state: StateCapacityChecked, failOpen: true, check: i.checkCapacity},
		{state: StateUserVerified, failOpen: true, check: i.checkUser},
	}

	return i, nil
}

// StoreStatus reports whether orders are being accepted right now.
func (i *Intake) StoreStatus() StoreStatus {
	return i.settings.StoreHours.Evaluate(i.now())
}

func (i *Intake) Menu(ctx context.Context) ([]MenuItemSnapshot, error) {
	return i.menu.ListAvailable(ctx)
}

// SubmitOrder validates and persists req. A refused order comes back as a
// result carrying a Rejection; the error is reserved for failures to persist.
func (i *Intake) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	ctx, span := tracer.Start(ctx, "Intake.SubmitOrder", trace.WithAttributes(
		attribute.Int("cassa.order.lines", len(req.Items)),
		attribute.String("cassa.state", string(StateReceived)),
	))
	defer span.End()

	started := time.Now()
	defer func() {
		i.metrics.duration.Record(ctx, time.Since(started).Seconds())
	}()

	sub := &submission{req: &req, now: i.now()}
	for _, st := range i.stages {
		err := st.check(ctx, sub)
		if err == nil {
			continue
		}

		if rej, ok := AsRejection(err); ok {
			slog.InfoContext(ctx, "order rejected",
				slog.String("state", string(st.state)),
				slog.String("category", string(rej.Category)),
				slog.String("reason", rej.Reason),
			)
			span.SetAttributes(
				attribute.String("cassa.state", string(StateRejected)),
				attribute.String("cassa.rejection.category", string(rej.Category)),
			)
			i.metrics.rejected.Add(ctx, 1, metric.WithAttributes(
				attribute.String("category", string(rej.Category)),
			))
			return OrderResult{Rejection: rej}, nil
		}

		if st.failOpen {
			slog.WarnContext(ctx, "check unavailable, letting order through",
				slog.String("state", string(st.state)),
				slog.Any("err", err),
			)
			span.AddEvent("fail-open", trace.WithAttributes(attribute.String("cassa.state", string(st.state))))
			i.metrics.failOpen.Add(ctx, 1, metric.WithAttributes(
				attribute.String("guard", string(st.state)),
			))
			continue
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return OrderResult{}, fmt.Errorf("%s: %w", st.state, err)
	}

	order, err := i.ledger.CreateOrder(ctx, PersistedOrder{
		UserID:        req.UserID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Notes:         req.Notes,
		Items:         sub.lines,
		Total:         totalOf(sub.lines),
		Status:        StatusPending,
		CreatedAt:     sub.now,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to persist order", slog.Any("err", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist order")
		return OrderResult{}, fmt.Errorf("persist order: %w", err)
	}

	slog.InfoContext(ctx, "order persisted",
		slog.Int64("order-id", order.ID),
		slog.String("total", order.Total.StringFixed(2)),
	)
	span.SetAttributes(
		attribute.Int64("cassa.order.id", order.ID),
		attribute.String("cassa.state", string(StatePersisted)),
	)
	i.metrics.accepted.Add(ctx, 1)

	pos := i.dispatchSideEffects(ctx, order)
	slog.DebugContext(ctx, "side effects settled",
		slog.Int64("order-id", order.ID),
		slog.String("state", string(StateSideEffectsDispatched)),
		slog.String("pos-status", string(pos.Status)),
	)
	span.SetAttributes(
		attribute.String("cassa.state", string(StateCompleted)),
		attribute.String("cassa.pos.status", string(pos.Status)),
	)

	return OrderResult{Accepted: true, Order: &order, PosSync: pos}, nil
}

func (i *Intake) checkCustomer(_ context.Context, s *submission) error {
	if err := checkShape(s.req); err != nil {
		return err
	}
	return ValidateCustomerInfo(s.req.CustomerName, s.req.CustomerPhone, s.req.CustomerEmail)
}

func (i *Intake) checkStoreHours(_ context.Context, s *submission) error {
	status := i.settings.StoreHours.Evaluate(s.now)
	if status.IsOpen {
		return nil
	}
	return &Rejection{
		Category:    CategoryStoreClosed,
		Reason:      status.Message,
		StoreStatus: &status,
	}
}

func (i *Intake) checkLimits(_ context.Context, s *submission) error {
	return i.settings.Limits.Check(clientPricedLines(s.req.Items))
}

// checkMenu prices the order from the menu and re-asserts the amount limits
// on the authoritative total.
func (i *Intake) checkMenu(ctx context.Context, s *submission) error {
	ctx, span := tracer.Start(ctx, "Intake.checkMenu")
	defer span.End()

	lines, err := ValidateMenu(ctx, i.menu, s.req.Items)
	if err != nil {
		return err
	}
	if err := i.settings.Limits.checkAmount(totalOf(lines)); err != nil {
		return err
	}
	s.lines = lines
	return nil
}

func (i *Intake) checkDuplicate(ctx context.Context, s *submission) error {
	ctx, span := tracer.Start(ctx, "Intake.checkDuplicate")
	defer span.End()
	return i.duplicate.Check(ctx, s.req.CustomerPhone, s.lines, s.now)
}

func (i *Intake) checkRateLimit(ctx context.Context, s *submission) error {
	ctx, span := tracer.Start(ctx, "Intake.checkRateLimit")
	defer span.End()
	return i.rateLimit.Check(ctx, s.req.CustomerPhone, s.now)
}

func (i *Intake) checkCapacity(ctx context.Context, s *submission) error {
	ctx, span := tracer.Start(ctx, "Intake.checkCapacity")
	defer span.End()
	return i.capacity.Check(ctx, s.now)
}

func (i *Intake) checkUser(ctx context.Context, s *submission) error {
	linked, err := i.verification.Check(ctx, s.req.UserID)
	if err == nil && linked == nil && s.req.UserID != nil {
		slog.WarnContext(ctx, "session user not found, storing order without a user",
			slog.Int64("user-id", *s.req.UserID),
		)
	}
	s.req.UserID = linked
	return err
}
