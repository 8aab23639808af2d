package extractor

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimalToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1.234,56", "1234.56", true},
		{"527", "527", true},
		{"12,5", "12.5", true},
		{"06:34", "6.34", true},
		{"0,00", "0", true},
		{"abc", "", false},
		{"12.34.56", "", false},
	}

	for _, tc := range cases {
		value, ok := parseDecimalToken(tc.in)
		assert.Equal(t, tc.ok, ok, "token %q", tc.in)
		if tc.ok {
			assert.True(t, value.Equal(decimal.RequireFromString(tc.want)),
				"token %q: esperado %s, obtido %s", tc.in, tc.want, value)
		}
	}
}

func TestLastTwoNumbers(t *testing.T) {
	t.Run("linha com código, índice e valor", func(t *testing.T) {
		indice, valor := lastTwoNumbers("01003601 PREMIO PROD. MENSAL 250,00 1.200,50")
		require.NotNil(t, indice)
		require.NotNil(t, valor)
		assert.True(t, indice.Equal(decimal.RequireFromString("250")))
		assert.True(t, valor.Equal(decimal.RequireFromString("1200.50")))
	})

	t.Run("um único número vira valor", func(t *testing.T) {
		indice, valor := lastTwoNumbers("TOTAL 98,70")
		assert.Nil(t, indice)
		require.NotNil(t, valor)
		assert.True(t, valor.Equal(decimal.RequireFromString("98.70")))
	})

	t.Run("hora HH:MM lida como HH,MM", func(t *testing.T) {
		indice, valor := lastTwoNumbers("HORAS EXTRAS 06:34 125,40")
		require.NotNil(t, indice)
		assert.True(t, indice.Equal(decimal.RequireFromString("6.34")))
		require.NotNil(t, valor)
		assert.True(t, valor.Equal(decimal.RequireFromString("125.40")))
	})

	t.Run("linha sem números", func(t *testing.T) {
		indice, valor := lastTwoNumbers("PREMIO PRODUCAO")
		assert.Nil(t, indice)
		assert.Nil(t, valor)
	})
}

func TestFormatDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1200.50", "1200,5"},
		{"1200.00", "1200"},
		{"0", "0"},
		{"0.001", "0"},
		{"527.13", "527,13"},
		{"-3.40", "-3,4"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatDecimal(decimal.RequireFromString(tc.in)), "valor %s", tc.in)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	// A formatação nunca perde mais que a terceira casa decimal.
	for _, raw := range []string{"1200.5", "98.7", "0", "527", "12.34"} {
		value := decimal.RequireFromString(raw)
		formatted := formatDecimal(value)
		parsed, ok := parseDecimalToken(formatted)
		require.True(t, ok, "reparse de %q", formatted)
		assert.True(t, parsed.Equal(value), "round-trip de %s via %q", raw, formatted)
	}
}

func TestConvertHoursToMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"7.30", "7.5"},   // 7h30min: o zero final conta como casa
		{"6.10", "6.1666666666666667"}, // 6h10min
		{"8.40", "8.6666666666666667"}, // 8h40min
		{"6.34", "6.5666666666666667"}, // 6h34min
		{"0.75", "1.25"},  // 75 minutos
		{"-3.40", "-3.6666666666666667"},
		{"5", "5"},        // sem fração
		{"2.345", "2.345"}, // três casas não são horário
		{"0", "0"},
	}
	for _, tc := range cases {
		got := convertHoursToMinutes(decimal.RequireFromString(tc.in))
		want := decimal.RequireFromString(tc.want)
		assert.True(t, got.Sub(want).Abs().LessThan(decimal.RequireFromString("0.0000001")),
			"conversão de %s: esperado %s, obtido %s", tc.in, tc.want, got)
	}
}
