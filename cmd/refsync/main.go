// Command refsync drops the reference-data caches and rewarms them from the
// blob store. Run it after editing celebrities.json or templates.json out of
// band.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fanai-server/internal/blobstore"
	"fanai-server/internal/infra"
	"fanai-server/internal/infra/state"
	"fanai-server/internal/refdata"
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
		logger.Fatal().Err(err).Msg("refsync: failed to connect database")
	}
	defer dbpool.Close()

	ghClient, err := blobstore.NewClient(blobstore.Options{
		Token:  cfg.GitHubToken,
		Owner:  cfg.GitHubOwner,
		Branch: cfg.GitHubBranch,
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("refsync: failed to configure github client")
	}
	blobs, err := blobstore.NewStore(ctx, ghClient, state.NewStore(dbpool), cfg.GitHubRepo, cfg.GitHubRepoPrefix, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("refsync: failed to resolve active blob repository")
	}

	catalog := refdata.NewService(blobs, refdata.NewCache(logger), cfg.CelebrityCacheTTL, cfg.TemplateCacheTTL, logger)
	catalog.Sync(ctx)

	logger.Info().
		Str("repository", blobs.Repository()).
		Int("celebrities", len(catalog.Celebrities(ctx))).
		Int("templates", len(catalog.Templates(ctx))).
		Msg("refsync: caches rewarmed")
}
