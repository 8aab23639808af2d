package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// Número no formato brasileiro: "1.234,56", "527", "12,5".
	brNumberPattern = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})*(?:,\d+)?$|^-?\d+(?:,\d+)?$`)
	// Horas no formato HH:MM, comum nas colunas de horas extras.
	hourPattern = regexp.MustCompile(`^\d{1,3}:\d{2}$`)
	// Sequência numérica genérica dentro de uma linha de texto.
	lineNumberPattern = regexp.MustCompile(`\d+(?:[.,:]\d+)*`)
)

// isNumericToken reporta se o texto de um token é um valor numérico que os
// estágios de geometria devem considerar (número brasileiro ou hora HH:MM).
func isNumericToken(text string) bool {
	return brNumberPattern.MatchString(text) || hourPattern.MatchString(text)
}

// parseDecimalToken converte o texto de um token em decimal. Horas no formato
// HH:MM são lidas como HH,MM (ex.: "06:34" → 6,34), preservando os minutos
// como casas decimais para conversão posterior.
func parseDecimalToken(text string) (decimal.Decimal, bool) {
	text = strings.TrimSpace(text)
	if hourPattern.MatchString(text) {
		text = strings.Replace(text, ":", ",", 1)
	}
	if !brNumberPattern.MatchString(text) {
		return decimal.Decimal{}, false
	}
	normalized := strings.ReplaceAll(text, ".", "")
	normalized = strings.Replace(normalized, ",", ".", 1)
	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}

// parseFlexibleNumber é a variante tolerante usada nas linhas de texto da
// folha: aceita separadores mistos e descarta qualquer caractere estranho.
func parseFlexibleNumber(text string) (decimal.Decimal, bool) {
	text = strings.Replace(strings.TrimSpace(text), ":", ",", 1)

	var cleaned strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			cleaned.WriteRune(r)
		}
	}
	s := cleaned.String()
	if s == "" || s == "-" {
		return decimal.Decimal{}, false
	}

	switch {
	case strings.Contains(s, ","):
		// Vírgula é o separador decimal; pontos são milhar.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		// Vários pontos sem vírgula: todos são milhar.
		s = strings.ReplaceAll(s, ".", "")
	}

	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}

// lastTwoNumbers localiza os dois últimos números de uma linha de folha de
// pagamento: o penúltimo é o índice e o último o valor. Linhas com um único
// número devolvem apenas o valor.
func lastTwoNumbers(line string) (indice, valor *decimal.Decimal) {
	matches := lineNumberPattern.FindAllString(line, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	parsed := make([]decimal.Decimal, 0, len(matches))
	for _, m := range matches {
		if v, ok := parseFlexibleNumber(m); ok {
			parsed = append(parsed, v)
		}
	}

	switch len(parsed) {
	case 0:
		return nil, nil
	case 1:
		v := parsed[0]
		return nil, &v
	default:
		i := parsed[len(parsed)-2]
		v := parsed[len(parsed)-1]
		return &i, &v
	}
}

// formatDecimal formata um decimal para a saída: duas casas, vírgula como
// separador e zeros finais removidos, sem nunca descer abaixo da casa das
// unidades ("0", nunca "").
func formatDecimal(v decimal.Decimal) string {
	s := v.StringFixed(2)
	s = strings.Replace(s, ".", ",", 1)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ",")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// convertHoursToMinutes reinterpreta a parte fracionária de um valor de horas
// como minutos dentro da hora: 7,30 → 7,5 (7 horas e 30 minutos). A quantidade
// de casas vem do expoente do decimal, porque String() corta zeros finais e
// leria "7,30" como 3 minutos. Frações com mais de duas casas não são horários
// e passam inalteradas.
func convertHoursToMinutes(v decimal.Decimal) decimal.Decimal {
	fracDigits := int(-v.Exponent())
	if fracDigits < 1 || fracDigits > 2 {
		return v
	}

	negative := v.IsNegative()
	text := v.Abs().StringFixed(int32(fracDigits))

	dot := strings.IndexByte(text, '.')
	if dot < 0 {
		return v
	}
	intPart, fracPart := text[:dot], text[dot+1:]

	minutes, err := strconv.Atoi(fracPart)
	if err != nil {
		return v
	}

	hours, err := decimal.NewFromString(intPart)
	if err != nil {
		return v
	}
	hours = hours.Add(decimal.NewFromInt(int64(minutes / 60)))
	remainder := decimal.NewFromInt(int64(minutes % 60)).Div(decimal.NewFromInt(60))

	result := hours.Add(remainder)
	if negative {
		result = result.Neg()
	}
	return result
}
