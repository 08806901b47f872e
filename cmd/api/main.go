package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fanai-server/internal/adapter/repo"
	"fanai-server/internal/artifacts"
	"fanai-server/internal/blobstore"
	"fanai-server/internal/generation"
	"fanai-server/internal/http/handlers"
	httpapi "fanai-server/internal/http/httpapi"
	"fanai-server/internal/infra"
	"fanai-server/internal/infra/state"
	"fanai-server/internal/refdata"
	"fanai-server/internal/synthesis"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	stateStore := state.NewStore(dbpool)

	ghClient, err := blobstore.NewClient(blobstore.Options{
		Token:  cfg.GitHubToken,
		Owner:  cfg.GitHubOwner,
		Branch: cfg.GitHubBranch,
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure github client")
	}
	blobs, err := blobstore.NewStore(ctx, ghClient, stateStore, cfg.GitHubRepo, cfg.GitHubRepoPrefix, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve active blob repository")
	}
	logger.Info().Str("repository", blobs.Repository()).Msg("blob store ready")

	catalog := refdata.NewService(blobs, refdata.NewCache(logger), cfg.CelebrityCacheTTL, cfg.TemplateCacheTTL, logger)
	artifactStore := artifacts.NewStore(blobs, cfg.ArtifactLookbackDays, logger)

	localStore, err := artifacts.NewLocalStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure local storage")
	}

	gemini, err := synthesis.NewGeminiClient(synthesis.GeminiOptions{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure gemini client")
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("gemini api key missing, upload analysis will pass everything")
	}
	engine := synthesis.NewEngine(gemini, logger)

	users := repo.NewUserRepository(dbpool)
	jobs := repo.NewGenerationRepository(dbpool)
	campaigns := repo.NewCampaignRepository(dbpool)

	pipeline := generation.NewOrchestrator(generation.Options{
		Users:         users,
		Jobs:          jobs,
		Campaigns:     campaigns,
		Refs:          catalog,
		Engine:        engine,
		Artifacts:     artifactStore,
		Local:         localStore,
		WatermarkText: cfg.WatermarkText,
		JobTimeout:    cfg.JobTimeout,
		Logger:        logger,
	})

	app := &handlers.App{
		Logger:    logger,
		Users:     users,
		Jobs:      jobs,
		Refs:      catalog,
		Pipeline:  pipeline,
		Artifacts: artifactStore,
		Local:     localStore,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, cfg))

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	// In-flight jobs finish on their own deadline before the process exits.
	pipeline.Wait()
	logger.Info().Msg("server stopped")
}
