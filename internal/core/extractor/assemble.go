package extractor

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"extractor-service/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// periodValue é um ponto (mês, valor) já pronto para a saída.
type periodValue struct {
	Period domain.Period
	Value  decimal.Decimal
}

// Cabeçalho fixo dos CSVs de série mensal, esperado pelo sistema que os
// importa. As colunas de flag recebem sempre "N".
var seriesCSVHeader = []string{
	"MES_ANO", "VALOR", "FGTS", "FGTS_REC.",
	"CONTRIBUICAO_SOCIAL", "CONTRIBUICAO_SOCIAL_REC.",
	"", "", "", "",
}

var cartoesCSVHeader = []string{"PERIODO", "HORA EXTRA 50", "HORA EXTRA 100"}

// collectValues materializa uma série no intervalo pedido: um ponto por mês,
// na ordem cronológica, com zero nos meses sem valor extraído.
func collectValues(series domain.SeriesByPeriod, periods []domain.Period) []periodValue {
	values := make([]periodValue, 0, len(periods))
	for _, period := range periods {
		values = append(values, periodValue{Period: period, Value: series[period]})
	}
	return values
}

// writeSeriesCSV gera o CSV de série mensal com o cabeçalho fixo.
func writeSeriesCSV(values []periodValue) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Comma = ';'

	if err := writer.Write(seriesCSVHeader); err != nil {
		return nil, err
	}
	for _, pv := range values {
		record := []string{
			pv.Period.String(), formatDecimal(pv.Value),
			"N", "N", "N", "N",
			"", "", "", "",
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeCartoesCSV gera o CSV de cartões com as duas séries de horas extras.
func writeCartoesCSV(periods []domain.Period, horas50, horas100 domain.SeriesByPeriod) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Comma = ';'

	if err := writer.Write(cartoesCSVHeader); err != nil {
		return nil, err
	}

	// Meses presentes apenas na série de 100% entram no fim, ordenados.
	ordered := make([]domain.Period, len(periods))
	copy(ordered, periods)
	inRange := make(map[domain.Period]bool, len(periods))
	for _, p := range periods {
		inRange[p] = true
	}
	var extra []domain.Period
	for period := range horas100 {
		if !inRange[period] {
			if _, ok := horas50[period]; !ok {
				extra = append(extra, period)
			}
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Before(extra[j]) })
	ordered = append(ordered, extra...)

	for _, period := range ordered {
		record := []string{
			period.String(),
			formatDecimal(horas50[period]),
			formatDecimal(horas100[period]),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// convertSeriesMinutes aplica a conversão minutos→fração de hora em uma
// série, registrando cada ajuste.
func convertSeriesMinutes(series domain.SeriesByPeriod, label string, logger *zap.Logger) domain.SeriesByPeriod {
	converted := make(domain.SeriesByPeriod, len(series))
	for period, value := range series {
		result := convertHoursToMinutes(value)
		converted[period] = result
		if !result.Equal(value) {
			logger.Info("ajuste de tempo nas horas extras",
				zap.String("periodo", period.String()),
				zap.String("serie", label),
				zap.String("de", formatDecimal(value)),
				zap.String("para", formatDecimal(result)))
		}
	}
	return converted
}

// ProcessFichaFinanceira executa um lote de fichas financeiras e gera os
// CSVs de PROVENTOS, ADIC. INSALUBRIDADE PAGO e CARTÕES.
func (s *service) ProcessFichaFinanceira(req FichaRequest) (*FichaResult, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("informe ao menos um PDF para processamento")
	}
	if req.EndPeriod.Before(req.StartPeriod) {
		return nil, fmt.Errorf("período inicial não pode ser maior que o final")
	}
	if !req.StartPeriod.Valid() || !req.EndPeriod.Valid() {
		return nil, fmt.Errorf("intervalo de períodos inválido")
	}

	profile := FichaFinanceiraProfile()
	s.progress.Update(0, "Iniciando processamento das fichas")

	agg, personName, docs := s.aggregateBatch(profile, req.Files, req.MaxWorkers)

	summary := domain.BatchSummary{
		BatchID:   newBatchID(),
		Documents: docs,
	}
	if !anySuccess(docs) {
		summary.Error = "nenhum documento pôde ser processado"
		return &FichaResult{Summary: summary}, nil
	}

	if personName == "" {
		personName = baseName(req.Files[0].Name)
		s.logger.Warn("nome não encontrado no PDF; usando o nome do arquivo",
			zap.String("nome", personName))
	}

	bucket := agg[fichaSubtype]
	if bucket == nil {
		bucket = make(codeSeries)
		agg[fichaSubtype] = bucket
	}
	applyVacationAdjustment(bucket, s.logger)

	resolution := resolve(profile, agg, s.logger)
	fields := resolution.Fields[fichaSubtype]

	periods := periodsBetween(req.StartPeriod, req.EndPeriod)
	slug := slugifyName(personName)

	horas50 := fields[codeHoras50]
	horas100 := fields[codeHoras100]
	if strings.EqualFold(req.CartoesTimeMode, CartoesTimeModeMinutes) {
		horas50 = convertSeriesMinutes(horas50, "HORA EXTRA 50", s.logger)
		horas100 = convertSeriesMinutes(horas100, "HORA EXTRA 100", s.logger)
	}

	type csvSpec struct {
		label string
		build func() ([]byte, error)
	}
	specs := []csvSpec{
		{"PROVENTOS", func() ([]byte, error) {
			return writeSeriesCSV(collectValues(fields[codeBaseINSS], periods))
		}},
		{"ADIC. INSALUBRIDADE PAGO", func() ([]byte, error) {
			return writeSeriesCSV(collectValues(fields[codeInsalubridade], periods))
		}},
		{"CARTÕES", func() ([]byte, error) {
			return writeCartoesCSV(periods, horas50, horas100)
		}},
	}

	result := &FichaResult{}
	for _, spec := range specs {
		data, err := spec.build()
		if err != nil {
			summary.Error = fmt.Sprintf("falha ao gerar %s: %v", spec.label, err)
			result.Summary = summary
			return result, nil
		}
		result.Outputs = append(result.Outputs, CSVOutput{
			Label:    spec.label,
			FileName: fmt.Sprintf("%s_%s.csv", slugifyName(spec.label), slug),
			Data:     data,
		})
		s.logger.Info("arquivo gerado", zap.String("saida", spec.label))
	}

	summary.Success = true
	summary.PersonName = personName
	summary.AttentionRecords = resolution.Attention
	summary.TotalPeriods = countExtractedPeriods(fields, req.StartPeriod, req.EndPeriod)
	summary.PeriodsBySubtype = map[string]int{
		string(fichaSubtype): summary.TotalPeriods,
	}
	result.Summary = summary

	s.progress.Update(100, "Processamento concluído")
	return result, nil
}

// ProcessFolhaPagamento executa um lote de folhas de pagamento mensais.
// Com um MODELO anexado a saída é a planilha preenchida; sem ele, um CSV de
// série mensal por campo mapeado.
func (s *service) ProcessFolhaPagamento(req FolhaRequest) (*FolhaResult, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("informe ao menos um PDF para processamento")
	}
	if req.EndPeriod.Before(req.StartPeriod) {
		return nil, fmt.Errorf("período inicial não pode ser maior que o final")
	}
	if !req.StartPeriod.Valid() || !req.EndPeriod.Valid() {
		return nil, fmt.Errorf("intervalo de períodos inválido")
	}

	profile := FolhaPagamentoProfile()
	s.progress.Update(0, "Iniciando processamento das folhas")

	agg, personName, docs := s.aggregateBatch(profile, req.Files, req.MaxWorkers)

	summary := domain.BatchSummary{
		BatchID:   newBatchID(),
		Documents: docs,
	}
	if !anySuccess(docs) {
		summary.Error = "nenhum documento pôde ser processado"
		return &FolhaResult{Summary: summary}, nil
	}

	if personName == "" {
		personName = baseName(req.Files[0].Name)
		s.logger.Warn("nome não encontrado no PDF; usando o nome do arquivo",
			zap.String("nome", personName))
	}

	resolution := resolve(profile, agg, s.logger)
	periods := periodsBetween(req.StartPeriod, req.EndPeriod)
	slug := slugifyName(personName)

	result := &FolhaResult{}
	summary.PersonName = personName
	summary.AttentionRecords = resolution.Attention
	summary.PeriodsBySubtype = make(map[string]int)
	for folhaType, fields := range resolution.Fields {
		count := countExtractedPeriods(fields, req.StartPeriod, req.EndPeriod)
		if count > 0 {
			summary.PeriodsBySubtype[string(folhaType)] = count
		}
		summary.TotalPeriods += count
	}

	if len(req.Template) > 0 {
		sheet := req.Sheet
		if sheet == "" {
			sheet = defaultSheetName
		}
		workbook, updates, err := updateWorkbook(req.Template, sheet, resolution.Fields, periods, s.logger)
		if err != nil {
			// A escrita da planilha falhou, mas o resumo da extração fica
			// disponível para o chamador.
			summary.Error = err.Error()
			result.Summary = summary
			return result, nil
		}
		summary.Success = true
		summary.PeriodUpdates = updates
		result.Workbook = workbook
		result.WorkbookName = workbookName(req.TemplateName, slug)
		result.Summary = summary
		s.progress.Update(100, "Planilha preenchida")
		return result, nil
	}

	folhaTypes := make([]domain.FolhaType, 0, len(resolution.Fields))
	for folhaType := range resolution.Fields {
		folhaTypes = append(folhaTypes, folhaType)
	}
	sort.Slice(folhaTypes, func(i, j int) bool { return folhaTypes[i] < folhaTypes[j] })

	for _, folhaType := range folhaTypes {
		fields := resolution.Fields[folhaType]
		fieldNames := make([]string, 0, len(fields))
		for field := range fields {
			fieldNames = append(fieldNames, field)
		}
		sort.Strings(fieldNames)

		for _, field := range fieldNames {
			label := labelForField(profile, folhaType, field)
			data, err := writeSeriesCSV(collectValues(fields[field], periods))
			if err != nil {
				summary.Error = fmt.Sprintf("falha ao gerar %s: %v", label, err)
				result.Summary = summary
				return result, nil
			}
			result.Outputs = append(result.Outputs, CSVOutput{
				Label: fmt.Sprintf("%s (%s)", label, folhaType),
				FileName: fmt.Sprintf("%s_%s_%s.csv",
					slugifyName(label), slugifyName(string(folhaType)), slug),
				Data: data,
			})
		}
	}

	summary.Success = true
	result.Summary = summary
	s.progress.Update(100, "Processamento concluído")
	return result, nil
}

// labelForField devolve a descrição da primeira regra (ou par) que escreve no
// campo informado.
func labelForField(profile DocumentProfile, folhaType domain.FolhaType, field string) string {
	for _, pair := range profile.SumPairs {
		if pair.FolhaType == folhaType && pair.Field == field {
			return pair.Label
		}
	}
	for _, pair := range profile.FallbackPairs {
		if pair.FolhaType == folhaType && pair.Field == field {
			return pair.Label
		}
	}
	for _, rule := range profile.Rules {
		ruleField := rule.Field
		if ruleField == "" {
			ruleField = rule.StorageCode()
		}
		if rule.FolhaType == folhaType && ruleField == field {
			return rule.Label
		}
	}
	return field
}

// countExtractedPeriods conta os meses distintos com valor extraído dentro do
// intervalo pedido.
func countExtractedPeriods(fields codeSeries, start, end domain.Period) int {
	seen := make(map[domain.Period]bool)
	for _, series := range fields {
		for period := range series {
			if !period.Before(start) && !period.After(end) {
				seen[period] = true
			}
		}
	}
	return len(seen)
}

func anySuccess(docs []domain.DocumentResult) bool {
	for _, doc := range docs {
		if doc.Success {
			return true
		}
	}
	return false
}

// baseName extrai o nome "limpo" de um arquivo enviado, sem caminho nem
// extensão.
func baseName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// workbookName deriva o nome do arquivo de saída da planilha preenchida.
func workbookName(templateName, slug string) string {
	ext := filepath.Ext(templateName)
	if ext == "" {
		ext = ".xlsx"
	}
	return fmt.Sprintf("DADOS_%s%s", slug, ext)
}
