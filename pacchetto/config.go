package pacchetto

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var allowedHeaders = map[string]struct{}{
	"Accept": {}, "Authorization": {}, "Content-Type": {}, "X-CSRF-Token": {}, "X-Request-ID": {},
}

// NewValidator returns a validator that also knows the "baseheader" tag used
// by CORSSettings.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("baseheader", func(fl validator.FieldLevel) bool {
		_, ok := allowedHeaders[fl.Field().String()]
		return ok
	})
	return validate
}

// LoadConfig reads base as YAML, lets environment variables named
// PREFIX_SECTION_KEY override any key it defines and validates the result.
// Dashes in keys are dropped from the variable name.
func LoadConfig[T any](prefix string, base []byte) (*T, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, fmt.Errorf("read base config: %w", err)
	}

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", ""))
	v.AutomaticEnv()

	var cfg T
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := NewValidator().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
