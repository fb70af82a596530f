package cassa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	effectPOS          = "pos"
	effectConfirmation = "confirmation-email"
	effectAdminNotice  = "admin-email"
	effectPublish      = "order-event"
)

var errMailerRefused = errors.New("mailer reported failure")

// dispatchSideEffects runs every post-persistence effect concurrently and
// waits for all of them. None of them can undo the order: failures and
// timeouts are logged and dropped. The client going away does not cancel them.
func (i *Intake) dispatchSideEffects(ctx context.Context, order PersistedOrder) PosSync {
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracer.Start(ctx, "Intake.dispatchSideEffects", trace.WithAttributes(
		attribute.Int64("cassa.order.id", order.ID),
	))
	defer span.End()

	posResult := make(chan PosResult, 1)
	posErr := make(chan error, 1)

	var g errgroup.Group
	g.Go(func() error {
		posErr <- i.runEffect(ctx, effectPOS, order.ID, func(ctx context.Context) error {
			res := i.pos.SubmitOrder(ctx, order.Items, PosCustomer{
				Name:  order.CustomerName,
				Phone: order.CustomerPhone,
				Email: order.CustomerEmail,
				Notes: order.Notes,
			}, order.Total.Shift(2).Round(0).IntPart())
			posResult <- res
			if !res.Success && res.Error != "" {
				return errors.New(res.Error)
			}
			return nil
		})
		return nil
	})

	if order.CustomerEmail != "" {
		g.Go(func() error {
			_ = i.runEffect(ctx, effectConfirmation, order.ID, func(ctx context.Context) error {
				if !i.mailer.SendOrderConfirmation(ctx, order.CustomerEmail, order.CustomerName, order) {
					return errMailerRefused
				}
				return nil
			})
			return nil
		})
	}

	g.Go(func() error {
		_ = i.runEffect(ctx, effectAdminNotice, order.ID, func(ctx context.Context) error {
			if !i.mailer.SendAdminNotification(ctx, order) {
				return errMailerRefused
			}
			return nil
		})
		return nil
	})

	if i.publisher != nil {
		g.Go(func() error {
			_ = i.runEffect(ctx, effectPublish, order.ID, func(ctx context.Context) error {
				return i.publisher.PublishPlaced(ctx, NewOrderPlaced(order))
			})
			return nil
		})
	}

	_ = g.Wait()

	if err := <-posErr; err != nil {
		select {
		case res := <-posResult:
			return PosSync{Status: PosFailed, Error: res.Error}
		default:
			return PosSync{Status: PosFailed, Error: err.Error()}
		}
	}
	res := <-posResult
	switch {
	case res.Success:
		return PosSync{Status: PosSynced, ExternalID: res.ExternalID}
	default:
		return PosSync{Status: PosSkipped, Error: res.Message}
	}
}

// runEffect bounds fn by the side-effect timeout. A call that outlives it is
// abandoned and reported exactly like a failed one.
func (i *Intake) runEffect(ctx context.Context, name string, orderID int64, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "Intake.sideEffect", trace.WithAttributes(
		attribute.String("cassa.effect", name),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, i.settings.SideEffectTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("timed out: %w", ctx.Err())
	}
	if err == nil {
		return nil
	}

	slog.ErrorContext(ctx, "side effect failed, order stands",
		slog.String("effect", name),
		slog.Int64("order-id", orderID),
		slog.Any("err", err),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	i.metrics.sideEffectFails.Add(ctx, 1, metric.WithAttributes(attribute.String("effect", name)))
	return err
}
