package extractor

import (
	"math"
	"sort"
	"strings"

	"extractor-service/internal/domain"
)

const (
	// Tolerância do agrupamento de tokens na linha do cabeçalho anual.
	headerRowTolerance = 0.2
	// Margem subtraída do início do bloco seguinte para fechar o anterior.
	blockGapMargin = 0.5
	// Distância horizontal máxima entre um valor e o centro da sua coluna.
	maxPairingDistance = 25.0
)

// columnCenters coleta os centros horizontais dos rótulos de coluna do
// cabeçalho ("Comp." e "Valor"), na ordem em que aparecem na página.
func columnCenters(tokens []domain.Token, compLabel, valorLabel string) (comp, valor []float64) {
	for _, token := range tokens {
		switch token.Text {
		case compLabel:
			comp = append(comp, token.CenterX())
		case valorLabel:
			valor = append(valor, token.CenterX())
		}
	}
	return comp, valor
}

// monthBlocks segmenta a página em blocos anuais. Um bloco começa numa linha
// que contém um ano de quatro dígitos acompanhado de nomes de meses; cada mês
// consome, em paralelo, um centro Comp. e um centro Valor do cabeçalho. O
// token "*totais*" ocupa um slot de Valor sem gerar mês. A faixa vertical de
// um bloco termina onde o próximo começa, menos uma pequena margem.
func monthBlocks(tokens []domain.Token, pageHeight float64, comp, valor []float64) []domain.MonthBlock {
	sorted := make([]domain.Token, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := sorted[i].CenterY(), sorted[j].CenterY()
		if ci != cj {
			return ci < cj
		}
		return sorted[i].Left < sorted[j].Left
	})

	var blocks []domain.MonthBlock

	for _, token := range sorted {
		year, ok := yearToken(token.Text)
		if !ok {
			continue
		}

		rowCenter := roundTo(token.CenterY(), 1)
		var monthNames []string
		for _, candidate := range sorted {
			if candidate.Text == token.Text {
				continue
			}
			if math.Abs(roundTo(candidate.CenterY(), 1)-rowCenter) < headerRowTolerance {
				monthNames = append(monthNames, candidate.Text)
			}
		}
		if len(monthNames) == 0 {
			continue
		}

		var months []domain.MonthColumn
		compIdx, valorIdx := 0, 0
		for _, name := range monthNames {
			normalized := strings.ToLower(strings.TrimSpace(name))
			if normalized == "*totais*" {
				valorIdx++
				continue
			}

			month, ok := monthsFullPT[strings.ToLower(normalizeText(normalized))]
			if !ok {
				continue
			}

			column := domain.MonthColumn{Name: name, Month: month}
			if compIdx < len(comp) {
				c := comp[compIdx]
				column.CompCenter = &c
			}
			if valorIdx < len(valor) {
				v := valor[valorIdx]
				column.ValorCenter = &v
			}
			months = append(months, column)
			compIdx++
			valorIdx++
		}
		if len(months) == 0 {
			continue
		}

		blocks = append(blocks, domain.MonthBlock{
			Year:   year,
			Months: months,
			YStart: rowCenter,
			YEnd:   pageHeight,
		})
	}

	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].YStart < blocks[j].YStart })
	for i := range blocks {
		next := pageHeight
		if i+1 < len(blocks) {
			next = blocks[i+1].YStart
		}
		blocks[i].YEnd = next - blockGapMargin
	}

	return blocks
}

// yearToken reconhece um token de quatro dígitos como ano plausível.
func yearToken(text string) (int, bool) {
	if len(text) != 4 {
		return 0, false
	}
	year := 0
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, false
		}
		year = year*10 + int(r-'0')
	}
	if year < 1900 || year > 2100 {
		return 0, false
	}
	return year, true
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
