package runtime

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Display parameter keys understood by sessions.
const (
	ConfigPrintWidth  = "print_width"
	ConfigPrintDepth  = "print_depth"
	ConfigPrintLength = "print_length"
	ConfigPrintSize   = "print_size"
	ConfigShowTypes   = "show_types"
)

// DisplayConfig is the host-side view of the session's display knobs.
// The bridge pushes it into the session at startup and can read the
// session's current values back into it.
type DisplayConfig struct {
	PrintWidth  int  `yaml:"print_width" mapstructure:"print_width" default:"78" validate:"gte=20,lte=1000"`
	PrintDepth  int  `yaml:"print_depth" mapstructure:"print_depth" default:"100" validate:"gte=1"`
	PrintLength int  `yaml:"print_length" mapstructure:"print_length" default:"100" validate:"gte=1"`
	PrintSize   int  `yaml:"print_size" mapstructure:"print_size" default:"10000" validate:"gte=1"`
	ShowTypes   bool `yaml:"show_types" mapstructure:"show_types" default:"false"`
}

func (c DisplayConfig) toMap() map[string]any {
	return map[string]any{
		ConfigPrintWidth:  c.PrintWidth,
		ConfigPrintDepth:  c.PrintDepth,
		ConfigPrintLength: c.PrintLength,
		ConfigPrintSize:   c.PrintSize,
		ConfigShowTypes:   c.ShowTypes,
	}
}

// ApplyDisplayConfig pushes every display parameter into the session's
// configuration surface.
func ApplyDisplayConfig(s ConfigSurface, cfg DisplayConfig) error {
	for key, value := range cfg.toMap() {
		if err := s.Configure(key, value); err != nil {
			return fmt.Errorf("failed to configure %q: %w", key, err)
		}
	}
	return nil
}

// SnapshotDisplayConfig reads the session's current display parameters back
// into a typed struct. Keys the session does not expose keep their zero
// value in the snapshot.
func SnapshotDisplayConfig(s ConfigSurface) (DisplayConfig, error) {
	raw := make(map[string]any)
	for _, key := range []string{
		ConfigPrintWidth,
		ConfigPrintDepth,
		ConfigPrintLength,
		ConfigPrintSize,
		ConfigShowTypes,
	} {
		if v, ok := s.ConfigValue(key); ok {
			raw[key] = v
		}
	}

	var cfg DisplayConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return DisplayConfig{}, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return DisplayConfig{}, fmt.Errorf("failed to decode display config: %w", err)
	}
	return cfg, nil
}

// RegisterPrinter forwards a custom value printer to the session. Printers
// participate in the session's interpreter echo for values of the named type.
func RegisterPrinter(s ConfigSurface, typeName string, printer PrinterFunc) error {
	if printer == nil {
		return fmt.Errorf("printer cannot be nil")
	}
	return s.RegisterPrinter(typeName, printer)
}
