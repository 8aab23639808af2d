package extractor

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"extractor-service/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Modos de apresentação das horas extras no arquivo CARTÕES.
const (
	CartoesTimeModeDecimal = "decimal"
	CartoesTimeModeMinutes = "minutes"
)

// ProgressSink recebe atualizações de progresso (0-100) durante um lote.
type ProgressSink interface {
	Update(percent int, message string)
}

type nopProgress struct{}

func (nopProgress) Update(int, string) {}

// NamedFile é um documento PDF carregado em memória.
type NamedFile struct {
	Name string
	Data []byte
}

// CSVOutput é um arquivo CSV gerado, pronto para download.
type CSVOutput struct {
	Label    string
	FileName string
	Data     []byte
}

// FichaRequest descreve um lote de fichas financeiras.
type FichaRequest struct {
	Files           []NamedFile
	StartPeriod     domain.Period
	EndPeriod       domain.Period
	CartoesTimeMode string
	MaxWorkers      int
}

// FichaResult agrupa os CSVs gerados e o resumo do lote.
type FichaResult struct {
	Summary domain.BatchSummary
	Outputs []CSVOutput
}

// FolhaRequest descreve um lote de folhas de pagamento. Quando Template está
// presente, a saída é a planilha MODELO preenchida; caso contrário, CSVs.
type FolhaRequest struct {
	Files        []NamedFile
	StartPeriod  domain.Period
	EndPeriod    domain.Period
	Template     []byte
	TemplateName string
	Sheet        string
	MaxWorkers   int
}

// FolhaResult agrupa a saída de um lote de folhas de pagamento.
type FolhaResult struct {
	Summary      domain.BatchSummary
	Outputs      []CSVOutput
	Workbook     []byte
	WorkbookName string
}

// Service define a interface do serviço de extração de folhas e fichas.
type Service interface {
	ProcessFichaFinanceira(req FichaRequest) (*FichaResult, error)
	ProcessFolhaPagamento(req FolhaRequest) (*FolhaResult, error)
}

type service struct {
	logger   *zap.Logger
	progress ProgressSink
}

// Option configura o serviço de extração.
type Option func(*service)

// WithLogger injeta o logger estruturado do serviço.
func WithLogger(logger *zap.Logger) Option {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProgress injeta o receptor de progresso do serviço.
func WithProgress(sink ProgressSink) Option {
	return func(s *service) {
		if sink != nil {
			s.progress = sink
		}
	}
}

// NewService cria uma nova instância do serviço de extração.
func NewService(opts ...Option) Service {
	s := &service{
		logger:   zap.NewNop(),
		progress: nopProgress{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// documentParse é o resultado isolado de um único PDF.
type documentParse struct {
	values     aggregate
	personName string
}

// aggregateBatch processa os documentos do lote com um pool limitado de
// workers e mescla os resultados sob um mutex. A falha de um documento não
// derruba o lote; fica registrada no resultado daquele documento.
func (s *service) aggregateBatch(profile DocumentProfile, files []NamedFile, maxWorkers int) (aggregate, string, []domain.DocumentResult) {
	merged := make(aggregate)
	personName := ""
	results := make([]domain.DocumentResult, len(files))

	workers := maxWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, workers)
		completed int
	)

	for i := range files {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(index int, file NamedFile) {
			defer wg.Done()
			defer func() { <-semaphore }()

			s.logger.Info("lendo documento", zap.String("arquivo", file.Name))
			parsed, err := s.parseDocument(profile, file)

			mu.Lock()
			defer mu.Unlock()

			completed++
			percent := completed * 100 / len(files)
			s.progress.Update(percent, fmt.Sprintf("Processando %d/%d: %s", completed, len(files), file.Name))

			if err != nil {
				results[index] = domain.DocumentResult{FileName: file.Name, Error: err.Error()}
				s.logger.Warn("documento descartado",
					zap.String("arquivo", file.Name), zap.Error(err))
				return
			}
			results[index] = domain.DocumentResult{FileName: file.Name, Success: true}

			if parsed.personName != "" {
				if personName == "" {
					personName = parsed.personName
				} else if !strings.EqualFold(personName, parsed.personName) {
					s.logger.Warn("nomes diferentes encontrados nos PDFs; mantendo o primeiro",
						zap.String("mantido", personName),
						zap.String("descartado", parsed.personName))
				}
			}

			for folhaType, bucket := range parsed.values {
				for code, series := range bucket {
					target := merged.series(folhaType, code)
					for _, conflict := range mergeSeries(target, series) {
						s.logger.Warn("valor duplicado entre documentos; substituindo",
							zap.String("codigo", code),
							zap.String("periodo", conflict.Period.String()),
							zap.String("anterior", formatDecimal(conflict.Existing)),
							zap.String("novo", formatDecimal(conflict.Incoming)))
					}
				}
			}
		}(i, files[i])
	}

	wg.Wait()
	return merged, personName, results
}

// parseDocument despacha para o pipeline do perfil.
func (s *service) parseDocument(profile DocumentProfile, file NamedFile) (*documentParse, error) {
	pages, err := readDocument(file.Data)
	if err != nil {
		return nil, err
	}
	if profile.Geometric {
		return s.parseGeometric(profile, pages)
	}
	return s.parseLineBased(profile, pages)
}

// parseGeometric percorre as páginas de uma ficha financeira: localiza os
// centros de coluna (com fallback para os da página anterior), segmenta os
// blocos anuais e casa as linhas de código dentro de cada bloco. Blocos sem
// valores são carregados para as páginas seguintes até o limite do perfil.
func (s *service) parseGeometric(profile DocumentProfile, pages []pageData) (*documentParse, error) {
	parse := &documentParse{values: make(aggregate)}
	if profile.PersonName != nil {
		parse.personName = profile.PersonName(pages[0].Lines)
	}

	type activeBlock struct {
		block      domain.MonthBlock
		carryCount int
	}

	var pending []activeBlock
	var lastComp, lastValor []float64

	for _, page := range pages {
		comp, valor := columnCenters(page.Tokens, profile.CompLabel, profile.ValorLabel)
		if len(comp) > 0 {
			lastComp = comp
		} else {
			comp = lastComp
		}
		if len(valor) > 0 {
			lastValor = valor
		} else {
			valor = lastValor
		}

		extracted := monthBlocks(page.Tokens, page.Height, comp, valor)

		nextBlockStart := page.Height
		for _, block := range extracted {
			if block.YStart < nextBlockStart {
				nextBlockStart = block.YStart
			}
		}

		type pageBlock struct {
			block domain.MonthBlock
			state activeBlock
		}
		var blocks []pageBlock

		// Blocos herdados de páginas anteriores valem do topo da página até
		// o primeiro bloco novo.
		for _, active := range pending {
			carryEnd := nextBlockStart - blockGapMargin
			if carryEnd > page.Height {
				carryEnd = page.Height
			}
			if carryEnd < 0 {
				carryEnd = 0
			}
			carry := domain.MonthBlock{
				Year:   active.block.Year,
				Months: active.block.Months,
				YStart: 0,
				YEnd:   carryEnd,
			}
			blocks = append(blocks, pageBlock{block: carry, state: active})
		}
		for _, block := range extracted {
			blocks = append(blocks, pageBlock{block: block, state: activeBlock{block: block}})
		}

		var nextPending []activeBlock
		for _, pb := range blocks {
			blockHasValues := false

			for _, rule := range profile.Rules {
				occurrences := codeRowOccurrences(page.Tokens, rule.Prefix(), pb.block)
				for _, row := range occurrences {
					extractedValues := valuesFromRow(row, pb.block, rule.Source)
					if len(extractedValues) == 0 {
						continue
					}
					blockHasValues = true

					target := parse.values.series(fichaSubtype, rule.StorageCode())
					for _, conflict := range mergeSeries(target, extractedValues) {
						s.logger.Warn("valores conflitantes na mesma ficha; substituindo",
							zap.String("codigo", rule.Code),
							zap.String("periodo", conflict.Period.String()),
							zap.String("anterior", formatDecimal(conflict.Existing)),
							zap.String("novo", formatDecimal(conflict.Incoming)))
					}
				}
			}

			if !blockHasValues {
				next := pb.state.carryCount + 1
				if next <= profile.MaxBlockCarry {
					nextPending = append(nextPending, activeBlock{block: pb.state.block, carryCount: next})
				} else {
					s.logger.Warn("cabeçalho anual sem valores após o limite de páginas",
						zap.Int("ano", pb.state.block.Year),
						zap.Int("paginas", profile.MaxBlockCarry))
				}
			}
		}
		pending = nextPending
	}

	return parse, nil
}

// parseLineBased percorre as páginas de uma folha de pagamento: classifica
// cada página pelo marcador "Tipo da folha:", detecta o período de referência
// e varre as linhas em busca dos códigos das regras do subtipo.
func (s *service) parseLineBased(profile DocumentProfile, pages []pageData) (*documentParse, error) {
	parse := &documentParse{values: make(aggregate)}
	if profile.PersonName != nil {
		parse.personName = profile.PersonName(pages[0].Lines)
	}

	for _, page := range pages {
		folhaType := classifyPage(page.Lines)
		if folhaType == domain.FolhaIgnorar {
			s.logger.Debug("página ignorada pelo classificador", zap.Int("pagina", page.Number))
			continue
		}

		period, ok := referencePeriod(page.Text())
		if !ok {
			s.logger.Warn("página sem período de referência; pulando",
				zap.Int("pagina", page.Number))
			continue
		}

		for _, line := range page.Lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			for i := range profile.Rules {
				rule := &profile.Rules[i]
				if rule.FolhaType != folhaType || !strings.Contains(line, rule.Code) {
					continue
				}

				indice, valor := lastTwoNumbers(line)

				var value *decimal.Decimal
				switch rule.Source {
				case domain.SourceIndice:
					if indice != nil && !indice.IsZero() {
						value = indice
					} else if rule.FallbackToValor && valor != nil {
						value = valor
					}
				case domain.SourceValor:
					value = valor
				}

				if value != nil {
					parse.values.series(folhaType, rule.StorageCode())[period] = *value
				}
			}
		}
	}

	return parse, nil
}

// slugifyName converte o nome do titular em um identificador de arquivo:
// ASCII puro, espaços como sublinhado.
func slugifyName(name string) string {
	t := transform.Chain(norm.NFKD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}))
	ascii, _, _ := transform.String(t, name)
	ascii = strings.ReplaceAll(ascii, " ", "_")
	ascii = slugInvalidRegex.ReplaceAllString(ascii, "")
	if ascii == "" {
		return "resultado"
	}
	return ascii
}

var slugInvalidRegex = regexp.MustCompile(`[^A-Za-z0-9_\-]`)

// newBatchID gera o identificador único de um lote.
func newBatchID() string {
	return uuid.NewString()
}
