package extractor

import (
	"regexp"

	"extractor-service/internal/domain"
)

var (
	tipoFolhaRegex    = regexp.MustCompile(`(?i)Tipo\s+da\s+folha\s*:\s*(.+)`)
	folhaNormalRegex  = regexp.MustCompile(`(?i)FOLHA\s+NORMAL`)
	folha13Regex      = regexp.MustCompile(`(?i)13\s*[ºo°]?\s*SAL[ÁA]RIO`)
	folhaIgnorarRegex = regexp.MustCompile(`(?i)F[ÉE]RIAS|ADIANTAMENTO|RESCIS[ÃA]O`)
)

// classifyPage determina o subtipo de uma página de folha de pagamento.
//
// A fonte primária é o marcador explícito "Tipo da folha:". Quando ele não
// existe, as dez primeiras linhas são inspecionadas com uma heurística mais
// frouxa; na ausência de qualquer pista, assume-se FOLHA NORMAL, o caso
// predominante nos arquivos reais.
func classifyPage(lines []string) domain.FolhaType {
	for _, line := range lines {
		m := tipoFolhaRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		declared := m[1]
		switch {
		case folha13Regex.MatchString(declared):
			return domain.Folha13Salario
		case folhaNormalRegex.MatchString(declared):
			return domain.FolhaNormal
		default:
			return domain.FolhaIgnorar
		}
	}

	limit := len(lines)
	if limit > 10 {
		limit = 10
	}
	for _, line := range lines[:limit] {
		if folha13Regex.MatchString(line) {
			return domain.Folha13Salario
		}
		if folhaIgnorarRegex.MatchString(line) {
			return domain.FolhaIgnorar
		}
	}
	return domain.FolhaNormal
}
