package extractor

import (
	"testing"

	"extractor-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestResolveSumPair(t *testing.T) {
	profile := FolhaPagamentoProfile()
	period := domain.Period{Year: 2024, Month: 3}
	other := domain.Period{Year: 2024, Month: 4}

	agg := make(aggregate)
	agg.series(domain.FolhaNormal, "01003601")[period] = dec("100.00")
	agg.series(domain.FolhaNormal, "01003602")[period] = dec("50.00")
	// Em abril só o primeiro código aparece; não há soma nem registro.
	agg.series(domain.FolhaNormal, "01003601")[other] = dec("80.00")

	res := resolve(profile, agg, zap.NewNop())

	fields := res.Fields[domain.FolhaNormal]
	require.NotNil(t, fields)
	assert.True(t, fields["X"][period].Equal(dec("150.00")), "soma do par em março")
	assert.True(t, fields["X"][other].Equal(dec("80.00")), "valor único em abril")

	require.Len(t, res.Attention, 1)
	record := res.Attention[0]
	assert.Equal(t, domain.AttentionAutomaticSum, record.Kind)
	assert.Equal(t, period, record.Period)
	assert.ElementsMatch(t, []string{"01003601", "01003602"}, record.Codes)
	assert.True(t, record.CombinedValue.Equal(dec("150.00")))
	assert.True(t, record.IndividualValues["01003601"].Equal(dec("100.00")))
	assert.True(t, record.IndividualValues["01003602"].Equal(dec("50.00")))
}

func TestResolveFallbackPair(t *testing.T) {
	profile := FolhaPagamentoProfile()
	withPrimary := domain.Period{Year: 2023, Month: 12}
	primaryZero := domain.Period{Year: 2024, Month: 12}

	agg := make(aggregate)
	agg.series(domain.Folha13Salario, "09090301")[withPrimary] = dec("3000.00")
	agg.series(domain.Folha13Salario, "09090101")[withPrimary] = dec("3500.00")
	agg.series(domain.Folha13Salario, "09090301")[primaryZero] = dec("0")
	agg.series(domain.Folha13Salario, "09090101")[primaryZero] = dec("2800.00")

	res := resolve(profile, agg, zap.NewNop())

	fields := res.Fields[domain.Folha13Salario]
	require.NotNil(t, fields)
	assert.True(t, fields["B"][withPrimary].Equal(dec("3000.00")), "primário prevalece")
	assert.True(t, fields["B"][primaryZero].Equal(dec("2800.00")), "secundário cobre primário zerado")
	assert.Empty(t, res.Attention, "pares de fallback não geram registros de atenção")
}

func TestResolveDescriptionDuplicate(t *testing.T) {
	period := domain.Period{Year: 2024, Month: 5}
	profile := DocumentProfile{
		Name: "teste",
		Rules: []domain.MappingRule{
			{Code: "100", Label: "HORAS EXTRAS 75%", Field: "AA", Source: domain.SourceIndice, FolhaType: domain.FolhaNormal},
			{Code: "200", Label: "HORAS  EXTRAS 75%", Field: "AA", Source: domain.SourceIndice, FolhaType: domain.FolhaNormal},
		},
	}

	agg := make(aggregate)
	agg.series(domain.FolhaNormal, "100")[period] = dec("10.00")
	agg.series(domain.FolhaNormal, "200")[period] = dec("12.00")

	res := resolve(profile, agg, zap.NewNop())

	require.Len(t, res.Attention, 1)
	record := res.Attention[0]
	assert.Equal(t, domain.AttentionDescriptionDuplicate, record.Kind)
	assert.Equal(t, period, record.Period)
	assert.ElementsMatch(t, []string{"100", "200"}, record.Codes)
	// Os valores individuais são preservados, nunca somados.
	assert.True(t, record.IndividualValues["100"].Equal(dec("10.00")))
	assert.True(t, record.IndividualValues["200"].Equal(dec("12.00")))
	assert.True(t, record.CombinedValue.IsZero())

	// O campo recebe um dos valores (última escrita na ordem das regras).
	assert.True(t, res.Fields[domain.FolhaNormal]["AA"][period].Equal(dec("12.00")))
}

func TestResolveDescriptionDuplicateFuzzy(t *testing.T) {
	period := domain.Period{Year: 2024, Month: 6}
	profile := DocumentProfile{
		Name: "teste",
		Rules: []domain.MappingRule{
			{Code: "300", Label: "HORAS EXT.75%-180", Field: "AA", Source: domain.SourceIndice, FolhaType: domain.FolhaNormal},
			{Code: "400", Label: "HORAS EXT 75% 180", Field: "AA", Source: domain.SourceIndice, FolhaType: domain.FolhaNormal},
		},
	}

	agg := make(aggregate)
	agg.series(domain.FolhaNormal, "300")[period] = dec("5.00")
	agg.series(domain.FolhaNormal, "400")[period] = dec("6.00")

	res := resolve(profile, agg, zap.NewNop())
	require.Len(t, res.Attention, 1)
	assert.Equal(t, domain.AttentionDescriptionDuplicate, res.Attention[0].Kind)
}

func TestResolveDescriptionDistinctLabelsNotMerged(t *testing.T) {
	period := domain.Period{Year: 2024, Month: 9}
	profile := DocumentProfile{
		Name: "teste",
		Rules: []domain.MappingRule{
			{Code: "500", Label: "SALARIO BASE", Field: "AA", Source: domain.SourceIndice, FolhaType: domain.FolhaNormal},
			{Code: "600", Label: "HORAS EXT 75% 180", Field: "AA", Source: domain.SourceIndice, FolhaType: domain.FolhaNormal},
		},
	}

	agg := make(aggregate)
	agg.series(domain.FolhaNormal, "500")[period] = dec("1000.00")
	agg.series(domain.FolhaNormal, "600")[period] = dec("8.00")

	res := resolve(profile, agg, zap.NewNop())
	assert.Empty(t, res.Attention, "descrições sem relação não são duplicidade")
}

func TestTrigramSimilarity(t *testing.T) {
	assert.Greater(t, trigramSimilarity("HORAS EXT75180", "HORAS EXT 75 180"), duplicateSimilarityFloor)
	assert.Less(t, trigramSimilarity("SALARIO BASE", "HORAS EXT 75 180"), duplicateSimilarityFloor)
	assert.Zero(t, trigramSimilarity("AB", "HORAS"))
}

func TestResolveDescriptionEqualValuesNotFlagged(t *testing.T) {
	period := domain.Period{Year: 2024, Month: 7}
	profile := DocumentProfile{
		Name: "teste",
		Rules: []domain.MappingRule{
			{Code: "100", Label: "ADICIONAL NOTURNO", Field: "AC", Source: domain.SourceIndice, FolhaType: domain.FolhaNormal},
			{Code: "200", Label: "ADICIONAL NOTURNO", Field: "AC", Source: domain.SourceIndice, FolhaType: domain.FolhaNormal},
		},
	}

	agg := make(aggregate)
	agg.series(domain.FolhaNormal, "100")[period] = dec("7.00")
	agg.series(domain.FolhaNormal, "200")[period] = dec("7.00")

	res := resolve(profile, agg, zap.NewNop())
	assert.Empty(t, res.Attention, "valores iguais não são duplicidade")
}

func TestApplyVacationAdjustment(t *testing.T) {
	period := domain.Period{Year: 2023, Month: 7}

	bucket := make(codeSeries)
	bucket[codeBaseINSS] = domain.SeriesByPeriod{period: dec("1000.00")}
	bucket[codeFerias167] = domain.SeriesByPeriod{period: dec("200.00")}
	bucket[codeINSSComp] = domain.SeriesByPeriod{period: dec("10")}
	bucket[codeINSSValor] = domain.SeriesByPeriod{period: dec("50.00")}

	applyVacationAdjustment(bucket, zap.NewNop())

	// adicional = 50 / (10/100) = 500.
	assert.True(t, bucket[codeBaseINSS][period].Equal(dec("1500.00")),
		"base ajustada, obtido %s", bucket[codeBaseINSS][period])
}

func TestApplyVacationAdjustmentSkipsIncompletePairs(t *testing.T) {
	period := domain.Period{Year: 2023, Month: 8}

	bucket := make(codeSeries)
	bucket[codeBaseINSS] = domain.SeriesByPeriod{period: dec("1000.00")}
	bucket[codeINSSComp] = domain.SeriesByPeriod{period: dec("0")}
	bucket[codeINSSValor] = domain.SeriesByPeriod{period: dec("50.00")}

	applyVacationAdjustment(bucket, zap.NewNop())
	assert.True(t, bucket[codeBaseINSS][period].Equal(dec("1000.00")), "comp zerado não ajusta")
}
