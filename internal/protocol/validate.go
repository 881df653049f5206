package protocol

import (
	"fmt"
	"strings"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/errors"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/theme"
)

// ValidateEnvelope checks the frame-level fields of an accepted envelope
// type. It does not inspect the payload.
func ValidateEnvelope(env *ClientEnvelope) error {
	switch env.Type {
	case TypeDiagramRequest:
		if strings.TrimSpace(env.RequestID) == "" {
			return errors.NewValidationError("diagram_request requires a request_id", "")
		}
		if len(env.Data) == 0 {
			return errors.NewValidationError("diagram_request requires a data payload", "")
		}
	case TypeCancel:
		if strings.TrimSpace(env.RequestID) == "" {
			return errors.NewValidationError("cancel requires a request_id", "")
		}
	case TypePing:
	default:
		return errors.NewValidationError(fmt.Sprintf("unknown message type %q", env.Type), "")
	}
	return nil
}

// ValidateRequest checks a diagram_request payload against the closed kind
// set, the cardinality its tag implies, and the theme color syntax.
func ValidateRequest(data *RequestData) error {
	if data == nil {
		return errors.NewValidationError("diagram_request requires a data payload", "")
	}
	if strings.TrimSpace(data.DiagramType) == "" {
		return errors.NewValidationError("diagram_type is required", "")
	}

	kind := data.Kind()
	if !kind.Known() {
		return errors.NewUnsupportedDiagramKind(data.DiagramType)
	}

	if n, exact := kind.Cardinality(); exact && len(data.DataPoints) != n {
		return errors.NewValidationError(
			fmt.Sprintf("%s requires exactly %d data points", kind, n),
			fmt.Sprintf("got %d", len(data.DataPoints)),
		)
	}

	switch {
	case kind.IsTemplate():
		if len(data.DataPoints) == 0 {
			return errors.NewValidationError(
				fmt.Sprintf("%s requires at least one data point", kind), "")
		}
		for i, point := range data.DataPoints {
			if strings.TrimSpace(point.Label) == "" {
				return errors.NewValidationError(
					"data point labels must be non-blank",
					fmt.Sprintf("data_points[%d]", i),
				)
			}
		}
	case kind.IsChart():
		if len(data.DataPoints) == 0 {
			return errors.NewValidationError(
				fmt.Sprintf("%s requires at least one data point", kind), "")
		}
		for i, point := range data.DataPoints {
			if point.Value == nil {
				return errors.NewValidationError(
					"chart kinds require a numeric value on every data point",
					fmt.Sprintf("data_points[%d]", i),
				)
			}
		}
	case kind.IsMermaid():
		if strings.TrimSpace(data.Content) == "" && len(data.DataPoints) == 0 {
			return errors.NewValidationError(
				fmt.Sprintf("%s requires content or data points", kind), "")
		}
	}

	if err := validateTheme(data.Theme); err != nil {
		return err
	}
	return nil
}

func validateTheme(spec *theme.Spec) error {
	if spec == nil {
		return nil
	}
	colors := []struct {
		field string
		value string
	}{
		{"primary_color", spec.PrimaryColor},
		{"secondary_color", spec.SecondaryColor},
		{"accent_color", spec.AccentColor},
		{"background", spec.Background},
		{"text_color", spec.TextColor},
	}
	for _, c := range colors {
		if c.value != "" && !theme.ValidHex(c.value) {
			return errors.NewValidationError(
				fmt.Sprintf("%s must be a 6-digit hex color", c.field),
				c.value,
			)
		}
	}
	if spec.Scheme != "" && spec.Scheme != theme.SchemeMonochromatic && spec.Scheme != theme.SchemeComplementary {
		return errors.NewValidationError(
			fmt.Sprintf("unknown color scheme %q", spec.Scheme), "")
	}
	return nil
}
