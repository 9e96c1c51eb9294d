package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDisplayDecimal(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"whole shekels", "1500", "₪1,500.00"},
		{"agorot", "1234.56", "₪1,234.56"},
		{"rounds to agorot", "10.005", "₪10.01"},
		{"zero", "0", "₪0.00"},
		{"negative gap", "-3.20", "-₪3.20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decimal.RequireFromString(tt.value)
			assert.Equal(t, tt.want, DisplayDecimal(d))
		})
	}
}
