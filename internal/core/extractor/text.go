package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlphanumericRegex = regexp.MustCompile(`[^A-Z0-9 ]+`)
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Traços tipográficos que os geradores de PDF usam no lugar do hífen.
var dashReplacer = strings.NewReplacer(
	"‐", "-", "‑", "-", "‒", "-",
	"–", "-", "—", "-", "−", "-",
)

// normalizeText remove os acentos de uma string (NFD + marcas combinantes).
func normalizeText(str string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}))
	result, _, _ := transform.String(t, str)
	return result
}

// normalizeDescription produz a chave canônica de uma descrição para a
// detecção de duplicidades: sem acentos, maiúscula, só alfanuméricos e
// espaços simples.
func normalizeDescription(str string) string {
	result := strings.ToUpper(normalizeText(str))
	result = nonAlphanumericRegex.ReplaceAllString(result, "")
	result = whitespaceRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// normalizeCode prepara o texto de um token para comparação de prefixo de
// código: NFKD, hífens unificados e todo espaço em branco removido, de modo
// que "1 - Salario" e "1-Salario" coincidam.
func normalizeCode(str string) string {
	result, _, _ := transform.String(norm.NFKD, str)
	result = dashReplacer.Replace(result)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, result)
}
