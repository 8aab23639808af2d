package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"extractor-service/internal/api/responses"
	"extractor-service/internal/core/extractor"
	"extractor-service/internal/domain"

	"github.com/gin-gonic/gin"
)

// Limite superior do pool de workers aceito por requisição.
const maxWorkersLimit = 16

// ExtractorHandler lida com as requisições da API de extração de folhas e fichas.
type ExtractorHandler struct {
	service extractor.Service
}

// NewExtractorHandler cria um novo handler de extração.
func NewExtractorHandler(service extractor.Service) *ExtractorHandler {
	return &ExtractorHandler{
		service: service,
	}
}

// getPeriodRange lê e valida os campos startPeriod/endPeriod do formulário.
func getPeriodRange(c *gin.Context) (start, end domain.Period, ok bool) {
	var err error
	start, err = extractor.ParsePeriod(c.PostForm("startPeriod"))
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Período inicial inválido", err.Error())
		return start, end, false
	}
	end, err = extractor.ParsePeriod(c.PostForm("endPeriod"))
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Período final inválido", err.Error())
		return start, end, false
	}
	if end.Before(start) {
		responses.Error(c, http.StatusBadRequest, "Período inicial não pode ser maior que o final")
		return start, end, false
	}
	return start, end, true
}

// getMaxWorkers lê o campo opcional maxWorkers, limitado a um teto fixo.
func getMaxWorkers(c *gin.Context) int {
	raw := strings.TrimSpace(c.PostForm("maxWorkers"))
	if raw == "" {
		return 4
	}
	workers, err := strconv.Atoi(raw)
	if err != nil || workers < 1 {
		return 4
	}
	if workers > maxWorkersLimit {
		return maxWorkersLimit
	}
	return workers
}

// readUploadedPDFs carrega para memória os PDFs do campo pdfFiles.
func readUploadedPDFs(c *gin.Context) ([]extractor.NamedFile, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Formulário multipart inválido")
		return nil, false
	}
	headers := form.File["pdfFiles"]
	if len(headers) == 0 {
		responses.Error(c, http.StatusBadRequest, "Nenhum PDF enviado no campo pdfFiles")
		return nil, false
	}

	files := make([]extractor.NamedFile, 0, len(headers))
	for _, header := range headers {
		if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
			responses.Error(c, http.StatusBadRequest, fmt.Sprintf("Extensão não suportada: %s", ext))
			return nil, false
		}
		data, ok := readFormFile(c, header)
		if !ok {
			return nil, false
		}
		files = append(files, extractor.NamedFile{Name: header.Filename, Data: data})
	}
	return files, true
}

func readFormFile(c *gin.Context, header *multipart.FileHeader) ([]byte, bool) {
	file, err := header.Open()
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, fmt.Sprintf("Não foi possível abrir o arquivo %s", header.Filename))
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, fmt.Sprintf("Não foi possível ler o arquivo %s", header.Filename))
		return nil, false
	}
	return data, true
}

// buildResultZip empacota as saídas e o resumo do lote em um único ZIP.
func buildResultZip(summary domain.BatchSummary, entries map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)

	resumo, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, err
	}
	entry, err := writer.Create("resumo.json")
	if err != nil {
		return nil, err
	}
	if _, err := entry.Write(resumo); err != nil {
		return nil, err
	}

	for name, data := range entries {
		entry, err := writer.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := entry.Write(data); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HandleFichaFinanceira processa um lote de fichas financeiras e devolve um
// ZIP com os CSVs de PROVENTOS, ADIC. INSALUBRIDADE PAGO e CARTÕES.
func (h *ExtractorHandler) HandleFichaFinanceira(c *gin.Context) {
	files, ok := readUploadedPDFs(c)
	if !ok {
		return
	}
	start, end, ok := getPeriodRange(c)
	if !ok {
		return
	}

	result, err := h.service.ProcessFichaFinanceira(extractor.FichaRequest{
		Files:           files,
		StartPeriod:     start,
		EndPeriod:       end,
		CartoesTimeMode: c.DefaultPostForm("cartoesTimeMode", extractor.CartoesTimeModeDecimal),
		MaxWorkers:      getMaxWorkers(c),
	})
	if err != nil {
		responses.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if !result.Summary.Success {
		responses.Error(c, http.StatusUnprocessableEntity, "Nenhum dado pôde ser extraído", result.Summary.Error)
		return
	}

	entries := make(map[string][]byte, len(result.Outputs))
	for _, output := range result.Outputs {
		entries[output.FileName] = output.Data
	}
	zipData, err := buildResultZip(result.Summary, entries)
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Falha ao empacotar os resultados")
		return
	}

	fileName := fmt.Sprintf("ficha_financeira_%s.zip", result.Summary.BatchID)
	responses.Attachment(c, fileName, "application/zip", zipData)
}

// HandleFolhaPagamento processa folhas de pagamento e preenche a planilha
// MODELO enviada no campo templateFile.
func (h *ExtractorHandler) HandleFolhaPagamento(c *gin.Context) {
	files, ok := readUploadedPDFs(c)
	if !ok {
		return
	}
	start, end, ok := getPeriodRange(c)
	if !ok {
		return
	}

	templateHeader, err := c.FormFile("templateFile")
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Planilha MODELO (.xlsx, .xlsm) não encontrada ou inválida")
		return
	}
	if ext := strings.ToLower(filepath.Ext(templateHeader.Filename)); ext != ".xlsx" && ext != ".xlsm" {
		responses.Error(c, http.StatusBadRequest, fmt.Sprintf("Extensão de planilha não suportada: %s", ext))
		return
	}
	template, ok := readFormFile(c, templateHeader)
	if !ok {
		return
	}

	result, err := h.service.ProcessFolhaPagamento(extractor.FolhaRequest{
		Files:        files,
		StartPeriod:  start,
		EndPeriod:    end,
		Template:     template,
		TemplateName: templateHeader.Filename,
		Sheet:        strings.TrimSpace(c.PostForm("sheet")),
		MaxWorkers:   getMaxWorkers(c),
	})
	if err != nil {
		responses.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if !result.Summary.Success {
		responses.Error(c, http.StatusUnprocessableEntity, "Não foi possível preencher a planilha", result.Summary.Error)
		return
	}

	zipData, err := buildResultZip(result.Summary, map[string][]byte{
		result.WorkbookName: result.Workbook,
	})
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Falha ao empacotar os resultados")
		return
	}

	fileName := fmt.Sprintf("folha_pagamento_%s.zip", result.Summary.BatchID)
	responses.Attachment(c, fileName, "application/zip", zipData)
}

// HandleFolhaPagamentoCSV processa folhas de pagamento e devolve as séries
// mensais extraídas como CSVs, sem planilha MODELO.
func (h *ExtractorHandler) HandleFolhaPagamentoCSV(c *gin.Context) {
	files, ok := readUploadedPDFs(c)
	if !ok {
		return
	}
	start, end, ok := getPeriodRange(c)
	if !ok {
		return
	}

	result, err := h.service.ProcessFolhaPagamento(extractor.FolhaRequest{
		Files:       files,
		StartPeriod: start,
		EndPeriod:   end,
		MaxWorkers:  getMaxWorkers(c),
	})
	if err != nil {
		responses.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if !result.Summary.Success {
		responses.Error(c, http.StatusUnprocessableEntity, "Nenhum dado pôde ser extraído", result.Summary.Error)
		return
	}

	entries := make(map[string][]byte, len(result.Outputs))
	for _, output := range result.Outputs {
		entries[output.FileName] = output.Data
	}
	zipData, err := buildResultZip(result.Summary, entries)
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Falha ao empacotar os resultados")
		return
	}

	fileName := fmt.Sprintf("folha_pagamento_csv_%s.zip", result.Summary.BatchID)
	responses.Attachment(c, fileName, "application/zip", zipData)
}
