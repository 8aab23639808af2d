package extractor

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"extractor-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Planilha padrão do MODELO de levantamento.
const defaultSheetName = "LEVANTAMENTO DADOS"

// Faixas de linhas reservadas a cada subtipo no MODELO.
const (
	folhaNormalFirstRow = 1
	folhaNormalLastRow  = 65
	folha13FirstRow     = 67
)

// updateWorkbook preenche a planilha MODELO com os valores extraídos. Só
// células vazias ou zeradas são escritas; valores já digitados permanecem.
// Devolve a planilha serializada e o resultado por período.
func updateWorkbook(
	template []byte,
	sheet string,
	fields map[domain.FolhaType]codeSeries,
	periods []domain.Period,
	logger *zap.Logger,
) ([]byte, []domain.PeriodUpdate, error) {
	f, err := excelize.OpenReader(bytes.NewReader(template))
	if err != nil {
		return nil, nil, fmt.Errorf("erro ao abrir a planilha MODELO: %w", err)
	}
	defer f.Close()

	if !sheetExists(f, sheet) {
		return nil, nil, fmt.Errorf("planilha %q não encontrada no MODELO", sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("erro ao ler a planilha %q: %w", sheet, err)
	}
	maxRow := len(rows)

	inRange := make(map[domain.Period]bool, len(periods))
	for _, p := range periods {
		inRange[p] = true
	}

	var updates []domain.PeriodUpdate

	for _, folhaType := range []domain.FolhaType{domain.FolhaNormal, domain.Folha13Salario} {
		byPeriod := periodColumns(fields[folhaType], inRange)

		for _, period := range sortedPeriodKeys(byPeriod) {
			update := domain.PeriodUpdate{Period: period, FolhaType: string(folhaType)}

			row, err := findRowForPeriod(f, sheet, period, folhaType, maxRow)
			if err != nil {
				return nil, nil, err
			}
			if row == 0 {
				update.Detail = "linha não encontrada"
				updates = append(updates, update)
				logger.Warn("período sem linha correspondente no MODELO",
					zap.String("periodo", period.String()),
					zap.String("tipo", string(folhaType)))
				continue
			}
			update.RowFound = true

			written := 0
			for column, value := range byPeriod[period] {
				cell := fmt.Sprintf("%s%d", column, row)
				current, err := f.GetCellValue(sheet, cell)
				if err != nil {
					return nil, nil, fmt.Errorf("erro ao ler a célula %s: %w", cell, err)
				}
				if !cellIsEmpty(current) {
					continue
				}
				if err := f.SetCellValue(sheet, cell, value.InexactFloat64()); err != nil {
					return nil, nil, fmt.Errorf("erro ao escrever a célula %s: %w", cell, err)
				}
				written++
			}

			if written > 0 {
				update.Updated = true
			} else {
				update.Detail = "células já preenchidas"
			}
			updates = append(updates, update)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("erro ao gravar a planilha: %w", err)
	}
	return buf.Bytes(), updates, nil
}

// findRowForPeriod localiza na coluna A a linha do período, dentro da faixa
// do subtipo. Aceita rótulos "jan/24", "MM/YYYY" e datas seriais do Excel.
func findRowForPeriod(f *excelize.File, sheet string, period domain.Period, folhaType domain.FolhaType, maxRow int) (int, error) {
	label := fmt.Sprintf("%s/%02d", monthAbbrevPT[period.Month-1], period.Year%100)

	start, end := 0, 0
	switch folhaType {
	case domain.FolhaNormal:
		start, end = folhaNormalFirstRow, folhaNormalLastRow
	case domain.Folha13Salario:
		start, end = folha13FirstRow, maxRow
	default:
		return 0, nil
	}
	if end > maxRow {
		end = maxRow
	}

	for row := start; row <= end; row++ {
		cell := fmt.Sprintf("A%d", row)

		formatted, err := f.GetCellValue(sheet, cell)
		if err != nil {
			return 0, fmt.Errorf("erro ao ler a célula %s: %w", cell, err)
		}
		trimmed := strings.TrimSpace(formatted)
		if trimmed == "" {
			continue
		}
		if strings.EqualFold(trimmed, label) || trimmed == period.String() {
			return row, nil
		}

		raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
		if err != nil {
			continue
		}
		serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			continue
		}
		date := excelSerialToDate(serial)
		if int(date.Month()) == period.Month && date.Year() == period.Year {
			return row, nil
		}
	}
	return 0, nil
}

// excelSerialToDate converte uma data serial do Excel, com o deslocamento do
// bug histórico do ano de 1900.
func excelSerialToDate(serial float64) time.Time {
	epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	if serial <= 59 {
		epoch = time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	return epoch.Add(time.Duration(serial * 24 * float64(time.Hour)))
}

// cellIsEmpty reporta se o conteúdo atual de uma célula pode ser sobrescrito
// (vazio ou zero).
func cellIsEmpty(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return true
	}
	if parsed, ok := parseFlexibleNumber(trimmed); ok {
		return parsed.IsZero()
	}
	return false
}

// periodColumns inverte campo→série em período→campo→valor, restrito ao
// intervalo pedido.
func periodColumns(fields codeSeries, inRange map[domain.Period]bool) map[domain.Period]map[string]decimal.Decimal {
	byPeriod := make(map[domain.Period]map[string]decimal.Decimal)
	for field, series := range fields {
		for period, value := range series {
			if !inRange[period] {
				continue
			}
			columns, ok := byPeriod[period]
			if !ok {
				columns = make(map[string]decimal.Decimal)
				byPeriod[period] = columns
			}
			columns[field] = value
		}
	}
	return byPeriod
}

func sortedPeriodKeys(byPeriod map[domain.Period]map[string]decimal.Decimal) []domain.Period {
	periods := make([]domain.Period, 0, len(byPeriod))
	for period := range byPeriod {
		periods = append(periods, period)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	return periods
}

func sheetExists(f *excelize.File, sheet string) bool {
	for _, name := range f.GetSheetList() {
		if name == sheet {
			return true
		}
	}
	return false
}
