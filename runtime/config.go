package runtime

import (
	"fmt"
	"net"
	"os"
	"reflect"
	"strings"

	"log/slog"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Package-level validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	registerCustomValidators()
}

// Options configures an evaluator and the service surface around it.
type Options struct {
	// Engine selects the interpreter session backend.
	Engine string `yaml:"engine" default:"risor" validate:"oneof=risor expr"`
	// Strict makes evaluation failures abort the pipeline instead of
	// only being observed.
	Strict bool `yaml:"strict" default:"false"`
	// Listen is the address of the HTTP evaluation service.
	Listen string `yaml:"listen" default:":8080" validate:"hostname_port"`

	Display DisplayConfig `yaml:"display"`
}

// InitializeConfig combines defaults, raw value merging and validation in
// one call. rawValues use the yaml key names.
func InitializeConfig(config any, rawValues map[string]any) error {
	if err := ApplyDefaults(config); err != nil {
		slog.Error("Config: failed to apply defaults",
			"config_type", reflect.TypeOf(config).String(),
			"error", err)
		return fmt.Errorf("failed to apply defaults: %w", err)
	}

	if len(rawValues) > 0 {
		if err := mapToStructFromYAML(rawValues, config); err != nil {
			slog.Error("Config: failed to apply raw values",
				"config_type", reflect.TypeOf(config).String(),
				"raw_values", rawValues,
				"error", err)
			return fmt.Errorf("failed to apply config values: %w", err)
		}
	}

	// Validate after rawValues are merged
	configValue := reflect.ValueOf(config)
	if configValue.Kind() == reflect.Ptr {
		configValue = configValue.Elem()
	}
	if err := validateConfig(configValue.Interface()); err != nil {
		slog.Error("Config validation failed",
			"config_type", reflect.TypeOf(config).String(),
			"error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// LoadOptions reads an options file (YAML), then applies defaults and
// validates the result.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("error reading options file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Options{}, fmt.Errorf("error unmarshalling options: %w", err)
	}

	var opts Options
	if err := InitializeConfig(&opts, raw); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// DefaultOptions returns validated defaults.
func DefaultOptions() Options {
	var opts Options
	// Defaults are static struct tags; failure here is a programming error.
	if err := InitializeConfig(&opts, nil); err != nil {
		panic(err)
	}
	return opts
}

func registerCustomValidators() {
	// hostname_port validates "host:port" format with numeric port
	validate.RegisterValidation("hostname_port", func(fl validator.FieldLevel) bool {
		addr := fl.Field().String()
		host, port, err := net.SplitHostPort(addr)
		if err != nil || port == "" {
			return false
		}
		_ = host // empty host means all interfaces
		_, err = net.LookupPort("tcp", port)
		return err == nil
	})

	// embed_kind validates the wire name of an embed kind
	validate.RegisterValidation("embed_kind", func(fl validator.FieldLevel) bool {
		_, err := ParseEmbedKind(fl.Field().String())
		return err == nil
	})
}

func ApplyDefaults(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := defaults.Set(config); err != nil {
		return fmt.Errorf("failed to apply default values: %w", err)
	}

	return nil
}

func validateConfig(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validate.Struct(config); err != nil {
		// Format validation errors for better readability
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, fieldErr := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"field '%s' failed validation: %s (rule: %s)",
					fieldErr.Field(),
					fieldErr.Error(),
					fieldErr.Tag(),
				))
			}
			return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errMessages, "\n  - "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// RegisterCustomValidator exposes validator registration to hosts.
func RegisterCustomValidator(tag string, fn validator.Func) error {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		return fmt.Errorf("failed to register custom validator '%s': %w", tag, err)
	}
	return nil
}

// mapToStructFromYAML merges a raw value map into a struct using the
// struct's yaml tags for field mapping.
func mapToStructFromYAML(m map[string]any, target any) error {
	if reflect.ValueOf(target).Kind() != reflect.Ptr {
		return fmt.Errorf("target must be a pointer")
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal raw values: %w", err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal raw values: %w", err)
	}
	return nil
}
