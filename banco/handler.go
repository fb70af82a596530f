package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	healthgo "github.com/hellofresh/health-go/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"github.com/taldoflemis/trattoria/cassa"
	"github.com/taldoflemis/trattoria/pacchetto"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("banco")

const sseKeepAlive = 25 * time.Second

// OrderIntake is the part of the intake pipeline the HTTP gateway drives.
type OrderIntake interface {
	SubmitOrder(ctx context.Context, req cassa.OrderRequest) (cassa.OrderResult, error)
	StoreStatus() cassa.StoreStatus
	Menu(ctx context.Context) ([]cassa.MenuItemSnapshot, error)
}

var _ OrderIntake = (*cassa.Intake)(nil)

type MainHandler struct {
	intake   OrderIntake
	feed     *LiveFeed
	sessions *SessionReader
	health   *healthgo.Health
	validate *validator.Validate
}

func NewMainHandler(
	e *echo.Echo,
	settings *Settings,
	intake OrderIntake,
	feed *LiveFeed,
	sessions *SessionReader,
	health *healthgo.Health,
) *MainHandler {
	logger := slog.Default()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     settings.HTTP.CORS.Origins,
		AllowMethods:     settings.HTTP.CORS.Methods,
		AllowHeaders:     settings.HTTP.CORS.Headers,
		AllowCredentials: true,
	}))
	e.Use(otelecho.Middleware(settings.App.Name,
		otelecho.WithMetricAttributeFn(func(r *http.Request) []attribute.KeyValue {
			return []attribute.KeyValue{
				attribute.String("client.ip", r.RemoteAddr),
				attribute.String("user.agent", r.UserAgent()),
			}
		}),
		otelecho.WithEchoMetricAttributeFn(func(c echo.Context) []attribute.KeyValue {
			return []attribute.KeyValue{
				attribute.String("handler.path", c.Path()),
				attribute.String("handler.method", c.Request().Method),
			}
		}),
	))

	handler := &MainHandler{
		intake:   intake,
		feed:     feed,
		sessions: sessions,
		health:   health,
		validate: pacchetto.NewValidator(),
	}

	e.GET("/healthz", handler.HealthCheck)
	v1 := e.Group(settings.HTTP.Prefix)

	v1.POST("/orders", handler.CreateOrder)
	v1.GET("/orders/sse", handler.GetLiveOrdersSSE)
	v1.GET("/store-status", handler.GetStoreStatus)
	v1.GET("/menu", handler.GetMenu)

	return handler
}

// CreateOrder godoc
//
// @Summary Place a new order
// @Description Runs the order through the intake checks, stores it and notifies the kitchen.
// @Tags order
// @Accept json
// @Produce json
// @Param order body CreateOrderRequest true "Order"
// @Success 201 {object} CreateOrderResponse
// @Failure 400 {object} RejectionResponse "validation or store_closed"
// @Failure 403 {object} RejectionResponse "email_unverified"
// @Failure 429 {object} RejectionResponse "duplicate or rate_limited"
// @Failure 503 {object} RejectionResponse "capacity"
// @Failure 500 {object} ErrorResponse
// @Router /v1/orders [post]
func (h *MainHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		slog.InfoContext(ctx, "failed to bind request", slog.Any("err", err))
		rej := &cassa.Rejection{Category: cassa.CategoryValidation, Reason: "Invalid order request"}
		return c.JSON(rej.Category.HTTPStatus(), newRejectionResponse(rej))
	}

	if err := h.validate.StructCtx(ctx, req); err != nil {
		rej := &cassa.Rejection{Category: cassa.CategoryValidation, Reason: shapeMessage(err)}
		return c.JSON(rej.Category.HTTPStatus(), newRejectionResponse(rej))
	}

	res, err := h.intake.SubmitOrder(ctx, req.toCassa(h.sessions.UserID(c.Request())))
	if err != nil {
		slog.ErrorContext(ctx, "failed to create order", slog.Any("err", err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create order"})
	}
	if !res.Accepted {
		return c.JSON(res.Rejection.Category.HTTPStatus(), newRejectionResponse(res.Rejection))
	}

	return c.JSON(http.StatusCreated, newCreateOrderResponse(res))
}

// shapeMessage turns a DTO validation failure into the message shown to the
// customer.
func shapeMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid order request"
	}

	switch fe := verrs[0]; fe.StructField() {
	case "Items":
		return "No items in order"
	case "CustomerName", "CustomerPhone":
		return "Customer name and phone are required"
	case "Notes":
		return fmt.Sprintf("Notes must be at most %s characters.", fe.Param())
	case "ID":
		return "Every item must reference a menu item."
	case "Name":
		return "Item name is too long."
	default:
		return "Invalid order request"
	}
}

// GetStoreStatus godoc
//
// @Summary Report whether orders are being accepted
// @Tags store
// @Produce json
// @Success 200 {object} StoreStatusResponse
// @Router /v1/store-status [get]
func (h *MainHandler) GetStoreStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, newStoreStatusResponse(h.intake.StoreStatus()))
}

// GetMenu godoc
//
// @Summary List the menu items currently available
// @Tags store
// @Produce json
// @Success 200 {array} MenuItemResponse
// @Failure 500 {object} ErrorResponse
// @Router /v1/menu [get]
func (h *MainHandler) GetMenu(c echo.Context) error {
	ctx := c.Request().Context()

	items, err := h.intake.Menu(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list menu", slog.Any("err", err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load menu"})
	}

	resp := make([]MenuItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, MenuItemResponse{ID: it.ID, Name: it.Name, Price: it.Price.StringFixed(2)})
	}
	return c.JSON(http.StatusOK, resp)
}

// GetLiveOrdersSSE godoc
//
// @Summary Stream placed orders via Server-Sent Events (SSE)
// @Tags order
// @Produce text/event-stream
// @Success 200 {object} cassa.OrderPlaced
// @Router /v1/orders/sse [get]
func (h *MainHandler) GetLiveOrdersSSE(c echo.Context) error {
	ctx := c.Request().Context()
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		slog.ErrorContext(ctx, "streaming unsupported by response writer")
		return echo.NewHTTPError(http.StatusInternalServerError, "Streaming unsupported")
	}

	ch, unsubscribe := h.feed.Subscribe(ctx)
	defer unsubscribe()

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "client closed connection")
			return nil
		case <-ticker.C:
			if _, err := c.Response().Write([]byte(": ping\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case event := <-ch:
			data, err := json.Marshal(event)
			if err != nil {
				slog.ErrorContext(ctx, "marshal order for SSE", slog.Any("err", err))
				continue
			}
			_, err = fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", orderPlacedType, data)
			if err != nil {
				slog.InfoContext(ctx, "write SSE", slog.Any("err", err))
				return nil
			}
			flusher.Flush()
		}
	}
}

// HealthCheck godoc
//
// @Summary Check the health of the service
// @Tags health
// @Produce json
// @Success 200 {object} healthgo.Check
// @Failure 503 {object} healthgo.Check
// @Router /healthz [get]
func (h *MainHandler) HealthCheck(c echo.Context) error {
	check := h.health.Measure(c.Request().Context())

	statusCode := http.StatusOK
	if check.Status != healthgo.StatusOK {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, check)
}
