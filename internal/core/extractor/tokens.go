package extractor

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"extractor-service/internal/domain"

	"github.com/ledongthuc/pdf"
)

const (
	// Tolerância vertical para agrupar fragmentos na mesma linha visual.
	rowTolerance = 2.0
	// Altura de página A4 em pontos, usada quando o MediaBox está ausente.
	defaultPageHeight = 842.0
)

// pageData reúne tudo que o motor precisa de uma página: os tokens
// posicionados, a altura da página e o texto reconstruído linha a linha.
type pageData struct {
	Number int
	Height float64
	Tokens []domain.Token
	Lines  []string
}

// Text devolve o texto completo da página com as linhas na ordem de leitura.
func (p pageData) Text() string {
	return strings.Join(p.Lines, "\n")
}

// readDocument abre um PDF em memória e extrai os tokens posicionados de
// todas as páginas. Páginas sem texto extraível são omitidas; um documento
// sem nenhum token é tratado como ilegível.
func readDocument(data []byte) (pages []pageData, err error) {
	// O parser de PDF pode entrar em pânico com arquivos corrompidos.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("falha ao interpretar o PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir o PDF: %w", err)
	}

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		height := pageHeight(page)
		tokens := assembleTokens(page.Content().Text, height)
		if len(tokens) == 0 {
			continue
		}

		pages = append(pages, pageData{
			Number: i,
			Height: height,
			Tokens: tokens,
			Lines:  tokenLines(tokens),
		})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("documento ilegível: nenhum texto extraível encontrado")
	}

	return pages, nil
}

// pageHeight lê a altura do MediaBox da página, com fallback para A4.
func pageHeight(page pdf.Page) float64 {
	box := page.V.Key("MediaBox")
	if box.Kind() == pdf.Array && box.Len() == 4 {
		y0 := box.Index(1).Float64()
		y1 := box.Index(3).Float64()
		if y1 > y0 {
			return y1 - y0
		}
	}
	return defaultPageHeight
}

// assembleTokens converte os fragmentos de texto do PDF (frequentemente um
// por caractere) em tokens de palavra com caixa delimitadora, já no sistema
// de coordenadas da página com origem no canto superior esquerdo.
func assembleTokens(fragments []pdf.Text, height float64) []domain.Token {
	type fragmentRow struct {
		y     float64
		items []pdf.Text
	}

	var rows []fragmentRow
	for _, frag := range fragments {
		if strings.TrimSpace(frag.S) == "" && !strings.Contains(frag.S, " ") {
			continue
		}
		placed := false
		for i := range rows {
			if abs(rows[i].y-frag.Y) < rowTolerance {
				rows[i].items = append(rows[i].items, frag)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, fragmentRow{y: frag.Y, items: []pdf.Text{frag}})
		}
	}

	var tokens []domain.Token
	for _, row := range rows {
		sort.SliceStable(row.items, func(i, j int) bool {
			return row.items[i].X < row.items[j].X
		})
		tokens = append(tokens, mergeRowFragments(row.items, height)...)
	}

	// Ordena por centro vertical e depois horizontal, a ordem de leitura
	// esperada pelos estágios de geometria.
	sort.SliceStable(tokens, func(i, j int) bool {
		ci, cj := tokens[i].CenterY(), tokens[j].CenterY()
		if ci != cj {
			return ci < cj
		}
		return tokens[i].Left < tokens[j].Left
	})

	return tokens
}

// mergeRowFragments junta fragmentos adjacentes de uma mesma linha em
// palavras. Um espaço explícito ou um vão horizontal maior que uma fração do
// tamanho da fonte encerra a palavra corrente.
func mergeRowFragments(items []pdf.Text, height float64) []domain.Token {
	var tokens []domain.Token

	var builder strings.Builder
	var left, right, top, bottom float64
	open := false

	flush := func() {
		if !open {
			return
		}
		text := strings.TrimSpace(builder.String())
		if text != "" {
			tokens = append(tokens, domain.Token{
				Text:   text,
				Left:   left,
				Right:  right,
				Top:    top,
				Bottom: bottom,
			})
		}
		builder.Reset()
		open = false
	}

	for _, frag := range items {
		trimmed := strings.TrimSpace(frag.S)
		if trimmed == "" {
			flush()
			continue
		}

		gapLimit := frag.FontSize * 0.3
		if gapLimit < 1.0 {
			gapLimit = 1.0
		}

		if open && frag.X-right > gapLimit {
			flush()
		}

		fragTop := height - frag.Y - frag.FontSize
		fragBottom := height - frag.Y

		if !open {
			left = frag.X
			top = fragTop
			bottom = fragBottom
			open = true
		} else {
			if fragTop < top {
				top = fragTop
			}
			if fragBottom > bottom {
				bottom = fragBottom
			}
		}

		builder.WriteString(frag.S)
		if frag.X+frag.W > right || builder.Len() == len(frag.S) {
			right = frag.X + frag.W
		}
	}
	flush()

	return tokens
}

// tokenLines reconstrói as linhas de texto da página a partir dos tokens,
// agrupando por centro vertical na ordem de leitura.
func tokenLines(tokens []domain.Token) []string {
	type line struct {
		center float64
		parts  []domain.Token
	}

	var lines []line
	for _, token := range tokens {
		placed := false
		for i := range lines {
			if abs(lines[i].center-token.CenterY()) < rowTolerance {
				lines[i].parts = append(lines[i].parts, token)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, line{center: token.CenterY(), parts: []domain.Token{token}})
		}
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].center < lines[j].center })

	result := make([]string, 0, len(lines))
	for _, l := range lines {
		sort.SliceStable(l.parts, func(i, j int) bool { return l.parts[i].Left < l.parts[j].Left })
		texts := make([]string, len(l.parts))
		for i, part := range l.parts {
			texts[i] = part.Text
		}
		result = append(result, strings.Join(texts, " "))
	}
	return result
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
