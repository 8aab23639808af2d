package extractor

import (
	"testing"

	"extractor-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// token constrói um token centrado em (x, y) com as dimensões dadas.
func token(text string, x, y, width, height float64) domain.Token {
	return domain.Token{
		Text:   text,
		Left:   x - width/2,
		Right:  x + width/2,
		Top:    y - height/2,
		Bottom: y + height/2,
	}
}

func TestColumnCenters(t *testing.T) {
	tokens := []domain.Token{
		token("Comp.", 100, 50, 20, 8),
		token("Valor", 150, 50, 20, 8),
		token("Comp.", 300, 50, 20, 8),
		token("Valor", 350, 50, 20, 8),
		token("Compensa", 500, 50, 30, 8), // não é o rótulo exato
	}

	comp, valor := columnCenters(tokens, "Comp.", "Valor")
	assert.Equal(t, []float64{100, 300}, comp)
	assert.Equal(t, []float64{150, 350}, valor)
}

func TestMonthBlocks(t *testing.T) {
	comp := []float64{100, 300}
	valor := []float64{150, 350}

	tokens := []domain.Token{
		// Bloco de 2023.
		token("2023", 40, 100, 24, 8),
		token("Janeiro", 110, 100, 30, 8),
		token("Fevereiro", 320, 100, 30, 8),
		// Bloco de 2024 mais abaixo.
		token("2024", 40, 400, 24, 8),
		token("Março", 110, 400, 30, 8),
		token("*Totais*", 320, 400, 30, 8),
	}

	blocks := monthBlocks(tokens, 842, comp, valor)
	require.Len(t, blocks, 2)

	first := blocks[0]
	assert.Equal(t, 2023, first.Year)
	require.Len(t, first.Months, 2)
	assert.Equal(t, 1, first.Months[0].Month)
	assert.Equal(t, 2, first.Months[1].Month)
	require.NotNil(t, first.Months[0].CompCenter)
	assert.Equal(t, 100.0, *first.Months[0].CompCenter)
	require.NotNil(t, first.Months[1].ValorCenter)
	assert.Equal(t, 350.0, *first.Months[1].ValorCenter)

	// O primeiro bloco termina onde o segundo começa, menos a margem.
	assert.InDelta(t, 399.5, first.YEnd, 0.001)

	second := blocks[1]
	assert.Equal(t, 2024, second.Year)
	// "*Totais*" consome um slot de Valor sem virar mês.
	require.Len(t, second.Months, 1)
	assert.Equal(t, 3, second.Months[0].Month)
	require.NotNil(t, second.Months[0].ValorCenter)
	assert.Equal(t, 150.0, *second.Months[0].ValorCenter)
	assert.InDelta(t, 841.5, second.YEnd, 0.001)
}

func TestMonthBlocksIgnoresAbbreviatedNames(t *testing.T) {
	comp := []float64{100, 300}
	valor := []float64{150, 350}

	// "Mar" solto na linha do ano não é mês de cabeçalho e não pode consumir
	// o primeiro par de colunas.
	tokens := []domain.Token{
		token("2023", 40, 100, 24, 8),
		token("Mar", 110, 100, 20, 8),
		token("Janeiro", 310, 100, 30, 8),
	}

	blocks := monthBlocks(tokens, 842, comp, valor)
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0].Months, 1)
	assert.Equal(t, 1, blocks[0].Months[0].Month)
	require.NotNil(t, blocks[0].Months[0].CompCenter)
	assert.Equal(t, 100.0, *blocks[0].Months[0].CompCenter)
}

func TestMonthBlocksIgnoresStrayYears(t *testing.T) {
	// Um ano sem meses na mesma linha não abre bloco.
	tokens := []domain.Token{
		token("2023", 40, 100, 24, 8),
		token("9999", 200, 300, 24, 8),
	}
	blocks := monthBlocks(tokens, 842, nil, nil)
	assert.Empty(t, blocks)
}

func TestValuesFromRow(t *testing.T) {
	comp1, valor1 := 100.0, 150.0
	comp2, valor2 := 300.0, 350.0
	block := domain.MonthBlock{
		Year: 2023,
		Months: []domain.MonthColumn{
			{Month: 1, CompCenter: &comp1, ValorCenter: &valor1},
			{Month: 2, CompCenter: &comp2, ValorCenter: &valor2},
		},
		YStart: 100,
		YEnd:   500,
	}

	row := []domain.Token{
		token("3123 - Base INSS", 40, 200, 60, 8),
		token("1.000,00", 150, 200, 30, 8), // centro exato da coluna Valor de janeiro
		token("2.000,00", 352, 200, 30, 8), // perto da coluna Valor de fevereiro
		token("77,00", 500, 200, 30, 8),    // longe demais de qualquer coluna
	}

	t.Run("coluna valor", func(t *testing.T) {
		values := valuesFromRow(row, block, domain.SourceValor)
		require.Len(t, values, 2)
		assert.True(t, values[domain.Period{Year: 2023, Month: 1}].Equal(decimal.RequireFromString("1000")))
		assert.True(t, values[domain.Period{Year: 2023, Month: 2}].Equal(decimal.RequireFromString("2000")))
	})

	t.Run("coluna comp usa centro alternativo quando ausente", func(t *testing.T) {
		noComp := domain.MonthBlock{
			Year: 2023,
			Months: []domain.MonthColumn{
				{Month: 1, ValorCenter: &valor1},
			},
			YStart: 100,
			YEnd:   500,
		}
		values := valuesFromRow(row, noComp, domain.SourceIndice)
		require.Len(t, values, 1)
		assert.True(t, values[domain.Period{Year: 2023, Month: 1}].Equal(decimal.RequireFromString("1000")))
	})

	t.Run("distância acima do limite não pareia", func(t *testing.T) {
		farRow := []domain.Token{token("55,00", 200, 200, 30, 8)}
		values := valuesFromRow(farRow, block, domain.SourceValor)
		assert.Empty(t, values)
	})
}
