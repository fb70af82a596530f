package main

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taldoflemis/trattoria/cassa"
	"github.com/taldoflemis/trattoria/pacchetto"
)

//go:embed base.yaml
var baseconfig []byte

type Settings struct {
	App           pacchetto.AppSettings           `mapstructure:"app" validate:"required"`
	HTTP          pacchetto.HTTPSettings          `mapstructure:"http" validate:"required"`
	GRPCServer    pacchetto.GRPCServerSettings    `mapstructure:"grpc-server" validate:"required"`
	OpenTelemetry pacchetto.OpenTelemetrySettings `mapstructure:"opentelemetry"`
	Postgres      pacchetto.PostgresSettings      `mapstructure:"postgres" validate:"required"`
	Nats          pacchetto.NatsSettings          `mapstructure:"nats"`
	AMQP          pacchetto.AMQPSettings          `mapstructure:"amqp"`
	Events        EventsSettings                  `mapstructure:"events" validate:"required"`
	Intake        IntakeSettings                  `mapstructure:"intake" validate:"required"`
	Clover        CloverSettings                  `mapstructure:"clover"`
	SMTP          SMTPSettings                    `mapstructure:"smtp"`
	Session       SessionSettings                 `mapstructure:"session" validate:"required"`
}

type EventsSettings struct {
	// Driver selects where order-placed events go. "none" keeps them in process.
	Driver   string `mapstructure:"driver" validate:"oneof=nats amqp none"`
	Stream   string `mapstructure:"stream" validate:"required_if=Driver nats"`
	Subject  string `mapstructure:"subject" validate:"required"`
	Exchange string `mapstructure:"exchange" validate:"required_if=Driver amqp"`
}

type IntakeSettings struct {
	OpenTime           string        `mapstructure:"open-time" validate:"required,datetime=15:04"`
	CloseTime          string        `mapstructure:"close-time" validate:"required,datetime=15:04"`
	Timezone           string        `mapstructure:"timezone" validate:"required,timezone"`
	ClosingBuffer      time.Duration `mapstructure:"closing-buffer" validate:"min=0"`
	ManuallyClosed     bool          `mapstructure:"manually-closed"`
	MinimumTotal       string        `mapstructure:"minimum-total" validate:"required,numeric"`
	MaximumTotal       string        `mapstructure:"maximum-total" validate:"required,numeric"`
	MaxItemQuantity    int           `mapstructure:"max-item-quantity" validate:"min=1"`
	MaxTotalItems      int           `mapstructure:"max-total-items" validate:"min=1"`
	DuplicateWindow    time.Duration `mapstructure:"duplicate-window" validate:"gt=0"`
	DuplicateLookback  int           `mapstructure:"duplicate-lookback" validate:"min=1"`
	RateLimitWindow    time.Duration `mapstructure:"rate-limit-window" validate:"gt=0"`
	RateLimitMaxOrders int           `mapstructure:"rate-limit-max-orders" validate:"min=1"`
	CapacityWindow     time.Duration `mapstructure:"capacity-window" validate:"gt=0"`
	CapacityMaxActive  int           `mapstructure:"capacity-max-active" validate:"min=1"`
	SideEffectTimeout  time.Duration `mapstructure:"side-effect-timeout" validate:"gt=0"`
	AdminEmails        []string      `mapstructure:"admin-emails"`
}

// CassaSettings converts the configuration into intake settings.
func (s IntakeSettings) CassaSettings() (cassa.Settings, error) {
	minimum, err := decimal.NewFromString(s.MinimumTotal)
	if err != nil {
		return cassa.Settings{}, fmt.Errorf("minimum-total: %w", err)
	}
	maximum, err := decimal.NewFromString(s.MaximumTotal)
	if err != nil {
		return cassa.Settings{}, fmt.Errorf("maximum-total: %w", err)
	}
	if maximum.LessThan(minimum) {
		return cassa.Settings{}, fmt.Errorf("maximum-total %s is below minimum-total %s", maximum, minimum)
	}

	return cassa.Settings{
		StoreHours: cassa.StoreHoursConfig{
			OpenTime:       s.OpenTime,
			CloseTime:      s.CloseTime,
			Timezone:       s.Timezone,
			ClosingBuffer:  s.ClosingBuffer,
			ManuallyClosed: s.ManuallyClosed,
		},
		Limits: cassa.OrderLimits{
			MinimumTotal:    minimum,
			MaximumTotal:    maximum,
			MaxItemQuantity: s.MaxItemQuantity,
			MaxTotalItems:   s.MaxTotalItems,
		},
		DuplicateWindow:    s.DuplicateWindow,
		DuplicateLookback:  s.DuplicateLookback,
		RateLimitWindow:    s.RateLimitWindow,
		RateLimitMaxOrders: s.RateLimitMaxOrders,
		CapacityWindow:     s.CapacityWindow,
		CapacityMaxActive:  s.CapacityMaxActive,
		SideEffectTimeout:  s.SideEffectTimeout,
		AdminEmails:        s.AdminEmails,
	}, nil
}

type CloverSettings struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base-url" validate:"required_if=Enabled true,omitempty,url"`
	MerchantID  string        `mapstructure:"merchant-id" validate:"required_if=Enabled true"`
	AccessToken string        `mapstructure:"access-token" validate:"required_if=Enabled true"`
	AppID       string        `mapstructure:"app-id"`
	Currency    string        `mapstructure:"currency" validate:"omitempty,iso4217"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SMTPSettings struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port           int    `mapstructure:"port" validate:"required_if=Enabled true"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	From           string `mapstructure:"from" validate:"required_if=Enabled true,omitempty,email"`
	AdminAddress   string `mapstructure:"admin-address" validate:"required_if=Enabled true,omitempty,email"`
	RestaurantName string `mapstructure:"restaurant-name"`
}

type SessionSettings struct {
	CookieName string `mapstructure:"cookie-name" validate:"required"`
	Secret     string `mapstructure:"secret" validate:"required,min=8"`
}

func LoadConfig() (*Settings, error) {
	return pacchetto.LoadConfig[Settings]("BANCO", baseconfig)
}
