package extractor

import (
	"math"
	"sort"
	"strings"

	"extractor-service/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	rowYMargin = 0.8
	rowXMargin = 1.0
)

// lineKey identifica a linha visual de um token pela sua caixa delimitadora.
func lineKey(t domain.Token) [2]int {
	return [2]int{
		int(math.Round(t.Top * 10)),
		int(math.Round(t.Bottom * 10)),
	}
}

// codeRowOccurrences localiza, dentro da faixa vertical de um bloco, todas as
// linhas cujo primeiro token coincide com o prefixo de código informado. A
// comparação ignora espaços e variações de hífen ("1 - Salario" casa com
// "1-Salario"). Cada ocorrência devolve os tokens da linha a partir do código.
func codeRowOccurrences(tokens []domain.Token, prefix string, block domain.MonthBlock) [][]domain.Token {
	var rows [][]domain.Token

	normalizedPrefix := normalizeCode(prefix)
	seen := make(map[[4]int]bool)

	for _, token := range tokens {
		if !strings.HasPrefix(normalizeCode(token.Text), normalizedPrefix) {
			continue
		}

		origin := [4]int{
			int(math.Round(token.Top * 100)),
			int(math.Round(token.Bottom * 100)),
			int(math.Round(token.Left * 100)),
			int(math.Round(token.Right * 100)),
		}
		if seen[origin] {
			continue
		}
		seen[origin] = true

		rowTop := math.Max(block.YStart, token.Top-rowYMargin)
		rowBottom := math.Min(block.YEnd, token.Bottom+rowYMargin)
		minX := token.Left - rowXMargin
		key := lineKey(token)

		var row []domain.Token
		for _, candidate := range tokens {
			if lineKey(candidate) != key {
				continue
			}
			if candidate.Bottom < rowTop || candidate.Top > rowBottom {
				continue
			}
			if candidate.Right < minX {
				continue
			}
			row = append(row, candidate)
		}

		sort.SliceStable(row, func(i, j int) bool {
			if row[i].Left != row[j].Left {
				return row[i].Left < row[j].Left
			}
			return row[i].Right < row[j].Right
		})

		if len(row) > 0 {
			rows = append(rows, row)
		}
	}

	return rows
}

// valuesFromRow atribui cada token numérico da linha ao mês cujo centro de
// coluna (Comp. para índice, Valor para valor) está mais próximo, respeitando
// a distância máxima de pareamento. Quando o centro da coluna pedida não foi
// localizado, o centro alternativo do mesmo mês serve de referência.
func valuesFromRow(row []domain.Token, block domain.MonthBlock, source domain.ValueSource) domain.SeriesByPeriod {
	results := make(domain.SeriesByPeriod)

	for _, token := range row {
		if !isNumericToken(token.Text) {
			continue
		}
		value, ok := parseDecimalToken(token.Text)
		if !ok {
			continue
		}
		center := token.CenterX()

		var bestMonth *domain.MonthColumn
		var bestDistance float64

		for i := range block.Months {
			month := &block.Months[i]

			target := month.CompCenter
			alternate := month.ValorCenter
			if source == domain.SourceValor {
				target, alternate = month.ValorCenter, month.CompCenter
			}
			if target == nil {
				target = alternate
			}
			if target == nil {
				continue
			}

			distance := math.Abs(center - *target)
			if distance > maxPairingDistance {
				continue
			}
			if bestMonth == nil || distance < bestDistance {
				bestMonth = month
				bestDistance = distance
			}
		}

		if bestMonth != nil {
			results[domain.Period{Year: block.Year, Month: bestMonth.Month}] = value
		}
	}

	return results
}

// mergeSeries aplica valores novos sobre uma série existente, devolvendo os
// conflitos (mesmo período, valor diferente) para registro em log.
type seriesConflict struct {
	Period   domain.Period
	Existing decimal.Decimal
	Incoming decimal.Decimal
}

func mergeSeries(target domain.SeriesByPeriod, incoming domain.SeriesByPeriod) []seriesConflict {
	var conflicts []seriesConflict
	for period, value := range incoming {
		if existing, ok := target[period]; ok && !existing.Equal(value) {
			conflicts = append(conflicts, seriesConflict{Period: period, Existing: existing, Incoming: value})
		}
		target[period] = value
	}
	return conflicts
}
