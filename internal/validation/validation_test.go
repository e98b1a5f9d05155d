package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sugar/internal/domain"
)

type sample struct {
	Name  string  `json:"name" validate:"notblank"`
	Value float64 `json:"value" validate:"gt=0"`
	Unit  string  `json:"unit" validate:"omitempty,oneof=mg/dL mmol/L"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      sample
		wantMsg string
	}{
		{"ok", sample{Name: "a", Value: 1}, ""},
		{"blank name", sample{Name: "  ", Value: 1}, "name must not be blank"},
		{"zero value", sample{Name: "a"}, "value must be greater than 0"},
		{"bad unit", sample{Name: "a", Value: 1, Unit: "g"}, "unit must be one of [mg/dL mmol/L]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.in)
			if tc.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}
