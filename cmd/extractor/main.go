// cmd/extractor/main.go
package main

import (
	"log"
	"os"

	"extractor-service/internal/api/handlers"
	"extractor-service/internal/api/responses"
	"extractor-service/internal/core/extractor"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// zapProgress encaminha o progresso dos lotes para o logger estruturado.
type zapProgress struct {
	logger *zap.Logger
}

func (p zapProgress) Update(percent int, message string) {
	p.logger.Debug("progresso do lote", zap.Int("percentual", percent), zap.String("etapa", message))
}

func main() {
	// Variáveis de ambiente opcionais via .env (ex.: EXTRACTOR_PORT).
	_ = godotenv.Load()

	responses.InitLogger()
	logger := responses.Logger()

	extractorService := extractor.NewService(
		extractor.WithLogger(logger),
		extractor.WithProgress(zapProgress{logger: logger}),
	)
	extractorHandler := handlers.NewExtractorHandler(extractorService)

	router := gin.Default()

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/extract/ficha-financeira", extractorHandler.HandleFichaFinanceira)
		apiV1.POST("/extract/folha-pagamento", extractorHandler.HandleFolhaPagamento)
		apiV1.POST("/extract/folha-pagamento/csv", extractorHandler.HandleFolhaPagamentoCSV)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP", "service": "extractor-service"})
	})

	port := os.Getenv("EXTRACTOR_PORT")
	if port == "" {
		port = "8084"
	}
	log.Printf("🚀 Extractor Service (Go) iniciado e escutando na porta %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Falha ao iniciar o servidor de extração: ", err)
	}
}
