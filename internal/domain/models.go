// package domain/models.go
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FolhaType identifica o subtipo de uma página de folha de pagamento.
type FolhaType string

// Subtipos reconhecidos pelo classificador de páginas.
const (
	FolhaNormal    FolhaType = "FOLHA NORMAL"
	Folha13Salario FolhaType = "13 SALARIO"
	FolhaIgnorar   FolhaType = "IGNORAR"
)

// ValueSource indica de qual posição da linha (índice ou valor) uma regra
// de mapeamento obtém o número.
type ValueSource string

const (
	SourceIndice ValueSource = "indice"
	SourceValor  ValueSource = "valor"
)

// Period é a unidade de granularidade da saída: um mês de calendário.
// A ordenação é lexicográfica em (Year, Month).
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Before reporta se p antecede other na ordem cronológica.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// After reporta se p sucede other na ordem cronológica.
func (p Period) After(other Period) bool {
	return other.Before(p)
}

// Next retorna o mês seguinte, virando o ano quando necessário.
func (p Period) Next() Period {
	if p.Month >= 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Valid reporta se o período representa um mês de calendário plausível.
func (p Period) Valid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year >= 1900 && p.Year <= 2100
}

// String formata o período como MM/YYYY.
func (p Period) String() string {
	return fmt.Sprintf("%02d/%04d", p.Month, p.Year)
}

// Token é um token léxico posicionado em uma página do PDF, com caixa
// delimitadora em coordenadas de página (origem no canto superior esquerdo,
// y cresce para baixo).
type Token struct {
	Text   string
	Left   float64
	Right  float64
	Top    float64
	Bottom float64
}

// CenterX retorna o centro horizontal do token.
func (t Token) CenterX() float64 {
	return (t.Left + t.Right) / 2
}

// CenterY retorna o centro vertical do token.
func (t Token) CenterY() float64 {
	return (t.Top + t.Bottom) / 2
}

// MonthColumn representa as colunas Comp./Valor de um mês dentro de um bloco
// anual. Os centros podem ser nulos quando o cabeçalho correspondente não foi
// localizado na página.
type MonthColumn struct {
	Name        string
	Month       int
	CompCenter  *float64
	ValorCenter *float64
}

// MonthBlock é a faixa vertical de uma página dedicada às colunas de um ano.
// Blocos nunca se sobrepõem; o fim de um bloco é o início do próximo menos uma
// pequena margem, ou o fim da página para o último bloco.
type MonthBlock struct {
	Year   int
	Months []MonthColumn
	YStart float64
	YEnd   float64
}

// MappingRule é uma regra fixa de mapeamento código → campo de saída.
// As regras são imutáveis e injetadas no motor via DocumentProfile.
type MappingRule struct {
	// Code é o código do registro na folha (chave da regra).
	Code string
	// SearchPrefix é o prefixo textual procurado nas linhas; quando vazio,
	// usa-se o próprio Code.
	SearchPrefix string
	// Label é a descrição humana do item (ex.: "PREMIO PROD. MENSAL").
	Label string
	// Field identifica a coluna/campo de destino (ex.: coluna Excel "X").
	Field string
	// Source seleciona índice ou valor na linha de dois números.
	Source ValueSource
	// FallbackToValor usa o valor quando o índice está ausente ou zerado.
	FallbackToValor bool
	// FolhaType restringe a regra a um subtipo de página.
	FolhaType FolhaType
	// AliasFor agrega os resultados desta regra sob o código de outra.
	AliasFor string
}

// StorageCode retorna o código sob o qual os valores da regra são agregados.
func (r MappingRule) StorageCode() string {
	if r.AliasFor != "" {
		return r.AliasFor
	}
	return r.Code
}

// Prefix retorna o prefixo efetivo de busca da regra.
func (r MappingRule) Prefix() string {
	if r.SearchPrefix != "" {
		return r.SearchPrefix
	}
	return r.Code
}

// AttentionKind classifica um registro de atenção.
type AttentionKind string

const (
	// AttentionAutomaticSum marca pares fixos de códigos somados automaticamente.
	AttentionAutomaticSum AttentionKind = "automatic-sum"
	// AttentionDescriptionDuplicate marca duplicidades por descrição que exigem
	// verificação manual.
	AttentionDescriptionDuplicate AttentionKind = "description-duplicate"
)

// AttentionRecord documenta uma ambiguidade resolvida automaticamente durante
// a extração. Nunca interrompe o processamento; apenas sinaliza para revisão.
type AttentionRecord struct {
	Period           Period                     `json:"period"`
	FolhaType        string                     `json:"folha_type"`
	Kind             AttentionKind              `json:"kind"`
	Codes            []string                   `json:"codes"`
	CombinedValue    decimal.Decimal            `json:"combined_value"`
	IndividualValues map[string]decimal.Decimal `json:"individual_values"`
}

// SeriesByPeriod mapeia períodos para valores decimais de um mesmo campo.
type SeriesByPeriod map[Period]decimal.Decimal

// PeriodUpdate descreve o resultado da escrita de um período na planilha.
type PeriodUpdate struct {
	Period    Period `json:"period"`
	FolhaType string `json:"folha_type"`
	RowFound  bool   `json:"row_found"`
	Updated   bool   `json:"updated"`
	Detail    string `json:"detail,omitempty"`
}

// DocumentResult resume o processamento de um único PDF dentro do lote.
type DocumentResult struct {
	FileName string `json:"file_name"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// BatchSummary é o resumo final devolvido ao chamador após um lote.
type BatchSummary struct {
	BatchID          string            `json:"batch_id"`
	Success          bool              `json:"success"`
	PersonName       string            `json:"person_name,omitempty"`
	TotalPeriods     int               `json:"total_periods_extracted"`
	PeriodsBySubtype map[string]int    `json:"periods_by_subtype,omitempty"`
	Documents        []DocumentResult  `json:"documents"`
	AttentionRecords []AttentionRecord `json:"attention_records"`
	PeriodUpdates    []PeriodUpdate    `json:"period_updates,omitempty"`
	Error            string            `json:"error,omitempty"`
}
