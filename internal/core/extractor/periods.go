package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"extractor-service/internal/domain"
)

// Meses por extenso em português, sem acentos, em minúsculas. O cabeçalho dos
// blocos anuais só aceita nomes completos; uma abreviação solta na linha do
// ano não pode consumir uma coluna.
var monthsFullPT = map[string]int{
	"janeiro": 1, "fevereiro": 2, "marco": 3, "abril": 4,
	"maio": 5, "junho": 6, "julho": 7, "agosto": 8,
	"setembro": 9, "outubro": 10, "novembro": 11, "dezembro": 12,
}

// monthsPT aceita também as abreviações de três letras, usadas nas referências
// de período e nos rótulos da planilha.
var monthsPT = map[string]int{
	"janeiro": 1, "fevereiro": 2, "marco": 3, "abril": 4,
	"maio": 5, "junho": 6, "julho": 7, "agosto": 8,
	"setembro": 9, "outubro": 10, "novembro": 11, "dezembro": 12,
	"jan": 1, "fev": 2, "mar": 3, "abr": 4, "mai": 5, "jun": 6,
	"jul": 7, "ago": 8, "set": 9, "out": 10, "nov": 11, "dez": 12,
}

// Abreviações na ordem do calendário, para formatação "jan/24".
var monthAbbrevPT = []string{
	"jan", "fev", "mar", "abr", "mai", "jun",
	"jul", "ago", "set", "out", "nov", "dez",
}

// monthNumber resolve um nome (ou número) de mês para 1..12.
func monthNumber(name string) (int, bool) {
	key := strings.ToLower(strings.TrimSpace(normalizeText(name)))
	if m, ok := monthsPT[key]; ok {
		return m, true
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= 12 {
		return n, true
	}
	return 0, false
}

// Padrões de detecção do período de referência, em ordem de prioridade.
// O primeiro grupo captura o mês (nome ou número) e o segundo o ano.
// \p{L} em vez de \w: os nomes de meses carregam acentos.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Refer[êe]ncia\s*:?\s*([\p{L}0-9]+)\s*/\s*(\d{4})`),
	regexp.MustCompile(`(?i)Data\s+do\s+c[áa]lculo\s*:?\s*\d{1,2}/(\d{1,2})/(\d{4})`),
	regexp.MustCompile(`(?i)Per[íi]odo\s*:?\s*([\p{L}0-9]+)\s*/\s*(\d{4})`),
	regexp.MustCompile(`(?i)Compet[êe]ncia\s*:?\s*([\p{L}0-9]+)\s*/\s*(\d{4})`),
	regexp.MustCompile(`([\p{L}0-9]+)\s*/\s*(\d{4})`),
}

// referencePeriod procura o período de referência no texto de uma página,
// testando os padrões na ordem e devolvendo o primeiro que resolve para um
// mês válido.
func referencePeriod(text string) (domain.Period, bool) {
	for _, pattern := range referencePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			month, ok := monthNumber(match[1])
			if !ok {
				continue
			}
			year, err := strconv.Atoi(match[2])
			if err != nil {
				continue
			}
			period := domain.Period{Year: year, Month: month}
			if period.Valid() {
				return period, true
			}
		}
	}
	return domain.Period{}, false
}

// ParsePeriod interpreta o formato MM/YYYY usado nos parâmetros da API.
func ParsePeriod(s string) (domain.Period, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return domain.Period{}, fmt.Errorf("período inválido %q: use MM/YYYY", s)
	}
	month, err1 := strconv.Atoi(parts[0])
	year, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return domain.Period{}, fmt.Errorf("período inválido %q: use MM/YYYY", s)
	}
	period := domain.Period{Year: year, Month: month}
	if !period.Valid() {
		return domain.Period{}, fmt.Errorf("período fora do intervalo: %q", s)
	}
	return period, nil
}

// periodsBetween enumera todos os meses do intervalo fechado [start, end],
// em ordem cronológica e sem lacunas.
func periodsBetween(start, end domain.Period) []domain.Period {
	if end.Before(start) {
		return nil
	}
	var periods []domain.Period
	for p := start; !p.After(end); p = p.Next() {
		periods = append(periods, p)
	}
	return periods
}
