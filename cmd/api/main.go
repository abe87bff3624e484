package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Fiscal-Harmony/odoov19/internal/application/auth"
	appfiscal "github.com/Fiscal-Harmony/odoov19/internal/application/fiscal"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	"github.com/Fiscal-Harmony/odoov19/internal/infrastructure/harmony"
	infrapdf "github.com/Fiscal-Harmony/odoov19/internal/infrastructure/pdf"
	"github.com/Fiscal-Harmony/odoov19/internal/infrastructure/postgres"
	httpRouter "github.com/Fiscal-Harmony/odoov19/internal/interfaces/http"
	"github.com/Fiscal-Harmony/odoov19/pkg/config"
	"github.com/Fiscal-Harmony/odoov19/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool)
	docRepo := postgres.NewFiscalDocumentRepository(pool)
	configRepo := postgres.NewFiscalConfigRepository(pool)
	taxRepo := postgres.NewTaxMappingRepository(pool)
	currencyRepo := postgres.NewCurrencyMappingRepository(pool)
	logRepo := postgres.NewSubmissionLogRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Un cliente firmado por configuración fiscal: las credenciales viven por
	// bodega, los parámetros de transporte son compartidos.
	clientFactory := func(fc *entity.FiscalConfig) appfiscal.HarmonyClient {
		apiURL := fc.APIURL
		if apiURL == "" {
			apiURL = cfg.Harmony.DefaultAPIURL
		}
		return harmony.NewClient(apiURL, fc.APIKey, fc.APISecret, harmony.Options{
			Timeout:         fc.RequestTimeout(),
			PostSubmitDelay: cfg.Harmony.PostSubmitDelay,
		}, log)
	}

	submitter := appfiscal.NewSubmitter(
		docRepo, configRepo, taxRepo, currencyRepo, logRepo,
		clientFactory, cfg.Harmony.LeaseStaleAfter, log,
	)
	sweeper := appfiscal.NewSweeper(
		submitter, docRepo, logRepo,
		cfg.Harmony.LeaseStaleAfter, cfg.Harmony.RetentionDays, log,
	)
	ingestor := appfiscal.NewIngestor(txRunner, configRepo, submitter, log)
	configService := appfiscal.NewConfigService(
		configRepo, taxRepo, currencyRepo, txRunner, clientFactory, log,
	)
	pdfService := appfiscal.NewPDFService(
		docRepo, configRepo, clientFactory, infrapdf.NewMarotoReceiptGenerator(), log,
	)
	authUC := auth.NewAuthUseCase(userRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	// Barridos periódicos: reintentos + recuperación de envíos huérfanos,
	// retención de logs y sincronización de impuestos de los dispositivos.
	sweepCtx, stopSweeps := context.WithCancel(ctx)
	defer stopSweeps()
	go runSweeps(sweepCtx, sweeper, configService, cfg.Harmony, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Fiscal Harmony Bridge API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:        authUC,
		Ingestor:      ingestor,
		Submitter:     submitter,
		PDFService:    pdfService,
		ConfigService: configService,
		DocRepo:       docRepo,
		LogRepo:       logRepo,
		JWTSecret:     cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stopSweeps()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

// runSweeps ejecuta los barridos periódicos hasta que el contexto se cancele.
func runSweeps(ctx context.Context, sweeper *appfiscal.Sweeper, configs *appfiscal.ConfigService, hcfg config.HarmonyConfig, log *logger.Logger) {
	retryTicker := time.NewTicker(hcfg.RetryInterval)
	defer retryTicker.Stop()
	cleanupTicker := time.NewTicker(hcfg.CleanupInterval)
	defer cleanupTicker.Stop()
	taxSyncTicker := time.NewTicker(hcfg.CleanupInterval)
	defer taxSyncTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-retryTicker.C:
			if err := sweeper.RecoverStale(ctx); err != nil {
				log.Error().Err(err).Msg("recuperación de envíos huérfanos")
			}
			if err := sweeper.SweepRetries(ctx); err != nil {
				log.Error().Err(err).Msg("barrido de reintentos")
			}
		case <-cleanupTicker.C:
			if err := sweeper.CleanupLogs(ctx); err != nil {
				log.Error().Err(err).Msg("limpieza de logs de envío")
			}
		case <-taxSyncTicker.C:
			if err := configs.SyncAutoConfigs(ctx); err != nil {
				log.Error().Err(err).Msg("sincronización periódica de impuestos")
			}
		}
	}
}
