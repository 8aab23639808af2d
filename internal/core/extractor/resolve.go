package extractor

import (
	"sort"

	"extractor-service/internal/domain"

	"github.com/schollz/closestmatch"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// codeSeries agrupa as séries mensais por código de armazenamento.
type codeSeries map[string]domain.SeriesByPeriod

// aggregate é o acumulado de um lote: subtipo de folha → código → série.
type aggregate map[domain.FolhaType]codeSeries

func (a aggregate) series(folhaType domain.FolhaType, code string) domain.SeriesByPeriod {
	bucket, ok := a[folhaType]
	if !ok {
		bucket = make(codeSeries)
		a[folhaType] = bucket
	}
	series, ok := bucket[code]
	if !ok {
		series = make(domain.SeriesByPeriod)
		bucket[code] = series
	}
	return series
}

// resolution é o resultado da fase de resolução: valores finais por campo de
// saída e os registros de atenção gerados no caminho.
type resolution struct {
	Fields    map[domain.FolhaType]codeSeries
	Attention []domain.AttentionRecord
}

// resolve transforma o acumulado bruto (por código) nos valores finais por
// campo de saída, aplicando os pares fixos de soma, os pares de fallback e a
// detecção de duplicidade por descrição. Ambiguidades nunca interrompem o
// processamento; viram registros de atenção.
func resolve(profile DocumentProfile, agg aggregate, logger *zap.Logger) resolution {
	res := resolution{Fields: make(map[domain.FolhaType]codeSeries)}

	for folhaType, bucket := range agg {
		fields := make(codeSeries)
		res.Fields[folhaType] = fields
		paired := profile.pairCodes(folhaType)

		// Pares de fallback: o secundário só vale na ausência (ou zero) do
		// primário.
		for _, pair := range profile.FallbackPairs {
			if pair.FolhaType != folhaType {
				continue
			}
			primary := bucket[pair.Primary]
			secondary := bucket[pair.Secondary]
			target := fieldSeries(fields, pair.Field)
			for _, period := range unionPeriods(primary, secondary) {
				if v, ok := primary[period]; ok && !v.IsZero() {
					target[period] = v
					continue
				}
				if v, ok := secondary[period]; ok && !v.IsZero() {
					target[period] = v
				}
			}
		}

		// Pares fixos de soma automática: quando os dois códigos aparecem no
		// mesmo período, a soma vai para o campo e o par é sinalizado.
		for _, pair := range profile.SumPairs {
			if pair.FolhaType != folhaType {
				continue
			}
			primary := bucket[pair.Primary]
			secondary := bucket[pair.Secondary]
			target := fieldSeries(fields, pair.Field)
			for _, period := range unionPeriods(primary, secondary) {
				a, okA := primary[period]
				b, okB := secondary[period]
				switch {
				case okA && okB:
					combined := a.Add(b)
					target[period] = combined
					res.Attention = append(res.Attention, domain.AttentionRecord{
						Period:        period,
						FolhaType:     string(folhaType),
						Kind:          domain.AttentionAutomaticSum,
						Codes:         []string{pair.Primary, pair.Secondary},
						CombinedValue: combined,
						IndividualValues: map[string]decimal.Decimal{
							pair.Primary:   a,
							pair.Secondary: b,
						},
					})
					logger.Warn("par de códigos somado automaticamente",
						zap.String("periodo", period.String()),
						zap.Strings("codigos", []string{pair.Primary, pair.Secondary}),
						zap.String("soma", formatDecimal(combined)))
				case okA:
					target[period] = a
				case okB:
					target[period] = b
				}
			}
		}

		// Demais regras: agrupadas por campo de destino; descrições iguais
		// (ou quase iguais) com valores divergentes no mesmo período são
		// mantidas individualmente e sinalizadas.
		byField := make(map[string][]domain.MappingRule)
		for _, rule := range profile.Rules {
			if profile.Geometric {
				// No perfil geométrico as regras não têm subtipo; o código de
				// armazenamento é o próprio campo.
				if folhaType != fichaSubtype {
					continue
				}
			} else if rule.FolhaType != folhaType {
				continue
			}
			if paired[rule.Code] || rule.AliasFor != "" {
				continue
			}
			field := rule.Field
			if field == "" {
				field = rule.StorageCode()
			}
			byField[field] = append(byField[field], rule)
		}

		fieldNames := make([]string, 0, len(byField))
		for field := range byField {
			fieldNames = append(fieldNames, field)
		}
		sort.Strings(fieldNames)

		for _, field := range fieldNames {
			rules := byField[field]
			target := fieldSeries(fields, field)

			duplicates := descriptionDuplicates(rules, bucket)
			for _, record := range duplicates {
				record.FolhaType = string(folhaType)
				res.Attention = append(res.Attention, record)
				logger.Warn("descrições duplicadas com valores divergentes",
					zap.String("periodo", record.Period.String()),
					zap.Strings("codigos", record.Codes))
			}

			for _, rule := range rules {
				series := bucket[rule.StorageCode()]
				for _, conflict := range mergeSeries(target, series) {
					logger.Warn("valor sobrescrito no campo de saída",
						zap.String("campo", field),
						zap.String("codigo", rule.Code),
						zap.String("periodo", conflict.Period.String()),
						zap.String("anterior", formatDecimal(conflict.Existing)),
						zap.String("novo", formatDecimal(conflict.Incoming)))
				}
			}
		}
	}

	return res
}

// descriptionDuplicates detecta, entre regras que disputam o mesmo campo,
// períodos em que códigos de descrição equivalente produziram valores
// divergentes. A equivalência é pela chave normalizada, com aproximação por
// n-gramas quando não há igualdade exata.
func descriptionDuplicates(rules []domain.MappingRule, bucket codeSeries) []domain.AttentionRecord {
	if len(rules) < 2 {
		return nil
	}

	groups := make(map[string][]domain.MappingRule)
	var keys []string
	for _, rule := range rules {
		key := normalizeDescription(rule.Label)
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], rule)
	}

	// Aproxima chaves sem par exato da chave mais próxima já vista.
	if len(keys) > 1 {
		for _, key := range keys {
			if len(groups[key]) > 1 {
				continue
			}
			others := make([]string, 0, len(keys)-1)
			for _, other := range keys {
				if other != key && len(groups[other]) > 0 {
					others = append(others, other)
				}
			}
			if len(others) == 0 {
				continue
			}
			cm := closestmatch.New(others, []int{3, 4})
			match := cm.Closest(key)
			if match == "" {
				// O dicionário de n-gramas devolve vazio para chaves curtas ou
				// com pontuação colapsada; a sobreposição direta de trigramas
				// cobre esses casos.
				match = closestByTrigrams(key, others)
			}
			if match != "" && sharesWord(key, match) {
				groups[match] = append(groups[match], groups[key]...)
				groups[key] = nil
			}
		}
	}

	var records []domain.AttentionRecord
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}

		periods := make(map[domain.Period][]domain.MappingRule)
		for _, rule := range group {
			for period := range bucket[rule.StorageCode()] {
				periods[period] = append(periods[period], rule)
			}
		}

		for period, present := range periods {
			if len(present) < 2 {
				continue
			}
			individual := make(map[string]decimal.Decimal, len(present))
			codes := make([]string, 0, len(present))
			divergent := false
			var first decimal.Decimal
			for i, rule := range present {
				value := bucket[rule.StorageCode()][period]
				individual[rule.Code] = value
				codes = append(codes, rule.Code)
				if i == 0 {
					first = value
				} else if !value.Equal(first) {
					divergent = true
				}
			}
			if !divergent {
				continue
			}
			sort.Strings(codes)
			records = append(records, domain.AttentionRecord{
				Period:           period,
				Kind:             domain.AttentionDescriptionDuplicate,
				Codes:            codes,
				IndividualValues: individual,
			})
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Period != records[j].Period {
			return records[i].Period.Before(records[j].Period)
		}
		return records[i].Codes[0] < records[j].Codes[0]
	})
	return records
}

// Piso do coeficiente de Dice para aceitar duas descrições como equivalentes.
const duplicateSimilarityFloor = 0.5

// closestByTrigrams devolve a candidata com maior sobreposição de trigramas
// com a chave, desde que acima do piso de similaridade.
func closestByTrigrams(key string, candidates []string) string {
	best := ""
	bestScore := duplicateSimilarityFloor
	for _, candidate := range candidates {
		if score := trigramSimilarity(key, candidate); score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best
}

// trigramSimilarity mede a semelhança de duas chaves pelo coeficiente de Dice
// sobre os conjuntos de trigramas.
func trigramSimilarity(a, b string) float64 {
	gramsA := trigrams(a)
	gramsB := trigrams(b)
	if len(gramsA) == 0 || len(gramsB) == 0 {
		return 0
	}
	shared := 0
	for gram := range gramsA {
		if gramsB[gram] {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(gramsA)+len(gramsB))
}

func trigrams(s string) map[string]bool {
	grams := make(map[string]bool)
	runes := []rune(s)
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = true
	}
	return grams
}

// sharesWord exige pelo menos uma palavra em comum entre duas chaves para
// aceitar uma aproximação por n-gramas.
func sharesWord(a, b string) bool {
	wordsA := make(map[string]bool)
	for _, w := range whitespaceRegex.Split(a, -1) {
		if w != "" {
			wordsA[w] = true
		}
	}
	for _, w := range whitespaceRegex.Split(b, -1) {
		if w != "" && wordsA[w] {
			return true
		}
	}
	return false
}

func fieldSeries(fields codeSeries, field string) domain.SeriesByPeriod {
	series, ok := fields[field]
	if !ok {
		series = make(domain.SeriesByPeriod)
		fields[field] = series
	}
	return series
}

// unionPeriods devolve, em ordem cronológica, os períodos presentes em
// qualquer uma das séries.
func unionPeriods(series ...domain.SeriesByPeriod) []domain.Period {
	seen := make(map[domain.Period]bool)
	var periods []domain.Period
	for _, s := range series {
		for period := range s {
			if !seen[period] {
				seen[period] = true
				periods = append(periods, period)
			}
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	return periods
}

// applyVacationAdjustment soma à base 3123 a parcela de férias derivada do
// par 527 (Valor / (Comp/100)) nos meses em que férias ou o próprio 527
// aparecem.
func applyVacationAdjustment(bucket codeSeries, logger *zap.Logger) {
	base := bucket[codeBaseINSS]
	if base == nil {
		base = make(domain.SeriesByPeriod)
		bucket[codeBaseINSS] = base
	}

	qualifying := make(map[domain.Period]bool)
	for _, pair := range [][2]string{{codeFerias173, codeFerias174}, {codeFerias167, codeFerias168}} {
		a, b := bucket[pair[0]], bucket[pair[1]]
		for _, period := range unionPeriods(a, b) {
			va, okA := a[period]
			vb, okB := b[period]
			if (okA && !va.IsZero()) || (okB && !vb.IsZero()) {
				qualifying[period] = true
			}
		}
	}

	comp := bucket[codeINSSComp]
	valor := bucket[codeINSSValor]
	for period := range comp {
		qualifying[period] = true
	}
	for period := range valor {
		qualifying[period] = true
	}

	for period := range qualifying {
		compValue, okComp := comp[period]
		valorValue, okValor := valor[period]
		if !okComp || !okValor || compValue.IsZero() {
			continue
		}

		divisor := compValue.Div(decimal.NewFromInt(100))
		if divisor.IsZero() {
			continue
		}

		additional := valorValue.Div(divisor)
		base[period] = base[period].Add(additional)

		logger.Info("ajuste de férias aplicado",
			zap.String("periodo", period.String()),
			zap.String("adicional", formatDecimal(additional)))
	}
}
