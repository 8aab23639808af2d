package extractor

import (
	"bytes"
	"testing"

	"extractor-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// buildTemplate monta um MODELO em memória com rótulos de período na coluna A.
func buildTemplate(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", defaultSheetName))

	// Faixa da FOLHA NORMAL (linhas 1-65).
	require.NoError(t, f.SetCellValue(defaultSheetName, "A10", "mar/24"))
	require.NoError(t, f.SetCellValue(defaultSheetName, "A11", "abr/24"))
	// Data serial do Excel: 2024-05-01.
	require.NoError(t, f.SetCellValue(defaultSheetName, "A12", 45413))
	// Faixa do 13 SALARIO (linhas 67+).
	require.NoError(t, f.SetCellValue(defaultSheetName, "A70", "dez/24"))
	// Célula já preenchida não pode ser sobrescrita.
	require.NoError(t, f.SetCellValue(defaultSheetName, "X11", 999.99))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestUpdateWorkbook(t *testing.T) {
	template := buildTemplate(t)

	fields := map[domain.FolhaType]codeSeries{
		domain.FolhaNormal: {
			"X": domain.SeriesByPeriod{
				{Year: 2024, Month: 3}: dec("1200.50"),
				{Year: 2024, Month: 4}: dec("300.00"), // X11 já preenchida
				{Year: 2024, Month: 5}: dec("55.00"),  // linha por data serial
				{Year: 2024, Month: 8}: dec("77.00"),  // sem linha no MODELO
			},
		},
		domain.Folha13Salario: {
			"B": domain.SeriesByPeriod{
				{Year: 2024, Month: 12}: dec("3000.00"),
			},
		},
	}
	periods := periodsBetween(
		domain.Period{Year: 2024, Month: 1},
		domain.Period{Year: 2024, Month: 12},
	)

	output, updates, err := updateWorkbook(template, defaultSheetName, fields, periods, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, updates, 5)

	byKey := make(map[string]domain.PeriodUpdate, len(updates))
	for _, update := range updates {
		byKey[update.FolhaType+"|"+update.Period.String()] = update
	}

	march := byKey[string(domain.FolhaNormal)+"|03/2024"]
	assert.True(t, march.RowFound)
	assert.True(t, march.Updated)

	april := byKey[string(domain.FolhaNormal)+"|04/2024"]
	assert.True(t, april.RowFound)
	assert.False(t, april.Updated, "célula preenchida permanece intacta")
	assert.Equal(t, "células já preenchidas", april.Detail)

	may := byKey[string(domain.FolhaNormal)+"|05/2024"]
	assert.True(t, may.RowFound, "linha localizada pela data serial")
	assert.True(t, may.Updated)

	august := byKey[string(domain.FolhaNormal)+"|08/2024"]
	assert.False(t, august.RowFound)
	assert.Equal(t, "linha não encontrada", august.Detail)

	december := byKey[string(domain.Folha13Salario)+"|12/2024"]
	assert.True(t, december.RowFound)
	assert.True(t, december.Updated)

	// Confere o conteúdo final da planilha.
	f, err := excelize.OpenReader(bytes.NewReader(output))
	require.NoError(t, err)
	defer f.Close()

	x10, err := f.GetCellValue(defaultSheetName, "X10")
	require.NoError(t, err)
	assert.Equal(t, "1200.5", x10)

	x11, err := f.GetCellValue(defaultSheetName, "X11")
	require.NoError(t, err)
	assert.Equal(t, "999.99", x11)

	b70, err := f.GetCellValue(defaultSheetName, "B70")
	require.NoError(t, err)
	assert.Equal(t, "3000", b70)
}

func TestUpdateWorkbookMissingSheet(t *testing.T) {
	template := buildTemplate(t)

	_, _, err := updateWorkbook(template, "OUTRA PLANILHA", nil, nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OUTRA PLANILHA")
}

func TestUpdateWorkbookIgnoresPeriodsOutsideRange(t *testing.T) {
	template := buildTemplate(t)

	fields := map[domain.FolhaType]codeSeries{
		domain.FolhaNormal: {
			"X": domain.SeriesByPeriod{
				{Year: 2024, Month: 3}: dec("10.00"),
				{Year: 2030, Month: 1}: dec("99.00"),
			},
		},
	}
	periods := periodsBetween(
		domain.Period{Year: 2024, Month: 1},
		domain.Period{Year: 2024, Month: 12},
	)

	_, updates, err := updateWorkbook(template, defaultSheetName, fields, periods, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, domain.Period{Year: 2024, Month: 3}, updates[0].Period)
}

func TestExcelSerialToDate(t *testing.T) {
	date := excelSerialToDate(45413)
	assert.Equal(t, 2024, date.Year())
	assert.Equal(t, 5, int(date.Month()))
	assert.Equal(t, 1, date.Day())
}

func TestCellIsEmpty(t *testing.T) {
	assert.True(t, cellIsEmpty(""))
	assert.True(t, cellIsEmpty("  "))
	assert.True(t, cellIsEmpty("0"))
	assert.True(t, cellIsEmpty("0,00"))
	assert.False(t, cellIsEmpty("123,45"))
	assert.False(t, cellIsEmpty("texto"))
}
