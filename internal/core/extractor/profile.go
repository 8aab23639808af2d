package extractor

import (
	"regexp"
	"strings"

	"extractor-service/internal/domain"
)

// fichaSubtype é o bucket único do perfil geométrico, que não classifica
// páginas por tipo de folha.
const fichaSubtype = domain.FolhaType("FICHA FINANCEIRA")

// CodePair relaciona dois códigos que disputam o mesmo campo de saída.
type CodePair struct {
	Primary   string
	Secondary string
	Field     string
	Label     string
	FolhaType domain.FolhaType
}

// DocumentProfile parametriza o motor para um modelo de documento. O motor
// em si não conhece códigos nem colunas; tudo que difere entre os modelos
// vive aqui, como dados imutáveis.
type DocumentProfile struct {
	Name string

	// Geometric liga o pipeline de blocos mensais (fichas financeiras).
	// Quando falso, o pipeline linha-a-linha com período de referência por
	// página (folhas de pagamento) é usado.
	Geometric bool

	// Rótulos dos cabeçalhos de coluna, só para o pipeline geométrico.
	CompLabel  string
	ValorLabel string

	// Quantas páginas um cabeçalho anual pode atravessar sem produzir valores.
	MaxBlockCarry int

	Rules []domain.MappingRule

	// SumPairs: pares fixos somados automaticamente, com registro de atenção.
	SumPairs []CodePair
	// FallbackPairs: o secundário só vale quando o primário falta ou é zero.
	FallbackPairs []CodePair

	// VacationAdjust liga o ajuste de férias sobre a base 3123.
	VacationAdjust bool

	// PersonName extrai o nome do titular das linhas da primeira página.
	PersonName func(lines []string) string
}

// pairCodes devolve o conjunto de códigos que participam de pares fixos de um
// subtipo; esses códigos ficam fora da detecção de duplicidade por descrição.
func (p DocumentProfile) pairCodes(folhaType domain.FolhaType) map[string]bool {
	codes := make(map[string]bool)
	for _, pair := range p.SumPairs {
		if pair.FolhaType == folhaType {
			codes[pair.Primary] = true
			codes[pair.Secondary] = true
		}
	}
	for _, pair := range p.FallbackPairs {
		if pair.FolhaType == folhaType {
			codes[pair.Primary] = true
			codes[pair.Secondary] = true
		}
	}
	return codes
}

// Códigos internos de armazenamento da ficha financeira.
const (
	codeSalario          = "1-Salario"
	codeHoras50          = "6-Horas"
	codeHoras100         = "14-Horas100"
	codeInsalubridade    = "8-Insalubridade"
	codeBaseINSS         = "3123-Base"
	codeINSSComp         = "527-INSS-Comp"
	codeINSSValor        = "527-INSS-Valor"
	codeFerias167        = "167-Ferias"
	codeFerias168        = "168-Ferias"
	codeFerias173        = "173-Ferias"
	codeFerias174        = "174-Ferias"
	codeInsalubridadeACS = "205-Insalubridade-ACS"
)

// FichaFinanceiraProfile descreve o modelo geométrico de ficha financeira:
// blocos anuais com colunas Comp./Valor por mês.
func FichaFinanceiraProfile() DocumentProfile {
	return DocumentProfile{
		Name:          "ficha-financeira",
		Geometric:     true,
		CompLabel:     "Comp.",
		ValorLabel:    "Valor",
		MaxBlockCarry: 3,
		Rules: []domain.MappingRule{
			{Code: codeSalario, Label: "SALARIO", Source: domain.SourceIndice},
			{Code: codeHoras50, SearchPrefix: "6 -", Label: "HORA EXTRA 50", Source: domain.SourceIndice},
			{Code: codeHoras100, SearchPrefix: "14 -", Label: "HORA EXTRA 100", Source: domain.SourceIndice},
			{Code: codeInsalubridade, Label: "ADIC. INSALUBRIDADE", Source: domain.SourceValor},
			{Code: codeInsalubridadeACS, SearchPrefix: "205", Label: "ADIC. INSALUBRIDADE ACS", Source: domain.SourceValor, AliasFor: codeInsalubridade},
			{Code: codeBaseINSS, Label: "BASE INSS", Source: domain.SourceValor},
			{Code: codeFerias167, SearchPrefix: "167", Label: "FERIAS 167", Source: domain.SourceValor},
			{Code: codeFerias168, SearchPrefix: "168", Label: "FERIAS 168", Source: domain.SourceValor},
			{Code: codeFerias173, SearchPrefix: "173", Label: "FERIAS 173", Source: domain.SourceValor},
			{Code: codeFerias174, SearchPrefix: "174", Label: "FERIAS 174", Source: domain.SourceValor},
			{Code: codeINSSComp, SearchPrefix: "527", Label: "INSS COMP", Source: domain.SourceIndice},
			{Code: codeINSSValor, SearchPrefix: "527", Label: "INSS VALOR", Source: domain.SourceValor},
		},
		VacationAdjust: true,
		PersonName:     fichaPersonName,
	}
}

// FolhaPagamentoProfile descreve o modelo de folha de pagamento mensal:
// páginas classificadas por "Tipo da folha:" e leitura linha a linha.
func FolhaPagamentoProfile() DocumentProfile {
	return DocumentProfile{
		Name: "folha-pagamento",
		Rules: []domain.MappingRule{
			{Code: "01003601", Label: "PREMIO PROD. MENSAL", Field: "X", Source: domain.SourceIndice, FallbackToValor: true, FolhaType: domain.FolhaNormal},
			{Code: "01003602", Label: "PREMIO PROD. MENSAL", Field: "X", Source: domain.SourceIndice, FallbackToValor: true, FolhaType: domain.FolhaNormal},
			{Code: "01007301", Label: "HORAS EXT.100%-180", Field: "Y", Source: domain.SourceIndice, FolhaType: domain.FolhaNormal},
			{Code: "01009001", Label: "ADIC.NOT.25%-180", Field: "AC", Source: domain.SourceIndice, FolhaType: domain.FolhaNormal},
			{Code: "01003501", Label: "HORAS EXT.75%-180", Field: "AA", Source: domain.SourceIndice, FolhaType: domain.FolhaNormal},
			{Code: "02007501", Label: "DIFER.PROV. HORAS EXTRAS 75%", Field: "AA", Source: domain.SourceIndice, FolhaType: domain.FolhaNormal},
			{Code: "09090301", Label: "SALARIO CONTRIB INSS", Field: "B", Source: domain.SourceValor, FolhaType: domain.FolhaNormal},
			{Code: "09090301", Label: "SALARIO CONTRIB INSS", Field: "B", Source: domain.SourceValor, FolhaType: domain.Folha13Salario},
			{Code: "09090101", Label: "REMUNERACAO BRUTA", Field: "B", Source: domain.SourceValor, FolhaType: domain.Folha13Salario},
		},
		SumPairs: []CodePair{
			{Primary: "01003601", Secondary: "01003602", Field: "X", Label: "PREMIO PROD. MENSAL", FolhaType: domain.FolhaNormal},
		},
		FallbackPairs: []CodePair{
			{Primary: "09090301", Secondary: "09090101", Field: "B", Label: "SALARIO CONTRIB INSS", FolhaType: domain.Folha13Salario},
		},
		PersonName: folhaPersonName,
	}
}

var fichaNameRegex = regexp.MustCompile(`^([A-Za-zÀ-ÿ'` + "`" + `\s]+?)\s+\d`)

// fichaPersonName lê o nome do titular da ficha financeira: a linha seguinte
// ao cabeçalho "Nome ... Matr/Contr", até o primeiro dígito.
func fichaPersonName(lines []string) string {
	for i, line := range lines {
		if !strings.Contains(line, "Nome") || !strings.Contains(line, "Matr/Contr") {
			continue
		}
		if i+1 >= len(lines) {
			return ""
		}
		candidate := lines[i+1]
		if m := fichaNameRegex.FindStringSubmatch(candidate); m != nil {
			return cleanPersonName(m[1])
		}
		return cleanPersonName(candidate)
	}
	return ""
}

var folhaNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Nome\s*:\s*([A-ZÁÇÃÂÊÔÉÍÓÚÀÈÌÒÙ\s]+?)(?:$|[A-Z]{2,}:)`),
	regexp.MustCompile(`(?i)Nome\s*:\s*(.+?)(?:Endere[çc]o|CPF|RG|$)`),
}

// folhaPersonName procura o padrão "Nome: FULANO" nas linhas da página.
func folhaPersonName(lines []string) string {
	for _, line := range lines {
		for _, pattern := range folhaNamePatterns {
			if m := pattern.FindStringSubmatch(line); m != nil {
				if name := cleanPersonName(m[1]); name != "" {
					return name
				}
			}
		}
	}
	return ""
}

var nonNameRegex = regexp.MustCompile(`[^\p{L}\s]`)

// Palavras de cabeçalho que não fazem parte de um nome próprio.
var excludedNameWords = map[string]bool{
	"NOME": true, "FUNCIONARIO": true, "FUNCIONÁRIO": true,
	"TRABALHADOR": true, "COLABORADOR": true, "EMPREGADO": true,
}

// cleanPersonName valida e higieniza um candidato a nome: maiúsculas,
// pontuação removida, palavras de cabeçalho descartadas, tamanho plausível.
func cleanPersonName(raw string) string {
	name := nonNameRegex.ReplaceAllString(raw, " ")
	name = strings.ToUpper(strings.TrimSpace(whitespaceRegex.ReplaceAllString(name, " ")))
	if len(name) < 3 || len(name) > 100 {
		return ""
	}

	var kept []string
	for _, word := range strings.Fields(name) {
		if excludedNameWords[word] {
			continue
		}
		kept = append(kept, word)
	}
	joined := strings.Join(kept, " ")
	if len(joined) < 3 {
		return ""
	}
	return joined
}
