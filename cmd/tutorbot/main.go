package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/harshkolte01/tutor-bot/internal/config"
	"github.com/harshkolte01/tutor-bot/internal/db"
	"github.com/harshkolte01/tutor-bot/internal/embedcache"
	"github.com/harshkolte01/tutor-bot/internal/extract"
	"github.com/harshkolte01/tutor-bot/internal/filestore"
	"github.com/harshkolte01/tutor-bot/internal/handler"
	"github.com/harshkolte01/tutor-bot/internal/job"
	"github.com/harshkolte01/tutor-bot/internal/middleware"
	"github.com/harshkolte01/tutor-bot/internal/rag"
	"github.com/harshkolte01/tutor-bot/internal/repo"
	"github.com/harshkolte01/tutor-bot/internal/schedule"
	"github.com/harshkolte01/tutor-bot/internal/service"
	"github.com/harshkolte01/tutor-bot/internal/wrapper"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "tutorbot",
		Short: "tutor-bot ingestion backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the api server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("embedding_model", cfg.Wrapper.EmbeddingModel),
	)

	userRepo := repo.NewUserRepo(conn)
	docRepo := repo.NewDocumentRepo(conn)
	ingestionRepo := repo.NewIngestionRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)

	client, err := wrapper.New(wrapper.Config{
		BaseURL:    cfg.Wrapper.BaseURL,
		Key:        cfg.Wrapper.Key,
		Timeout:    time.Duration(cfg.Wrapper.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Wrapper.MaxRetries,
		BaseDelay:  time.Duration(cfg.Wrapper.BaseDelaySeconds * float64(time.Second)),
	})
	if err != nil {
		return fmt.Errorf("init wrapper client: %w", err)
	}
	var embedder rag.TextEmbedder = rag.NewEmbedder(client, cfg.Wrapper.EmbeddingModel, cfg.Wrapper.EmbeddingDim, cfg.Wrapper.EmbedBatchSize)
	embedder = embedcache.WrapLRU(embedder, cfg.Wrapper.CacheSize, time.Duration(cfg.Wrapper.CacheTTLMinutes)*time.Minute)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	ingestionService := service.NewIngestionService(ingestionRepo, chunkRepo, embedder, extract.NewPDFToText())
	documentService := service.NewDocumentService(docRepo, ingestionRepo, chunkRepo, store, ingestionService,
		cfg.Ingest.MaxUploadBytes, cfg.Ingest.MaxTextChars)

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(authService),
		Documents: handler.NewDocumentHandler(documentService, cfg.Ingest.MaxUploadBytes),
		Dev:       handler.NewDevHandler(client, cfg.Wrapper.ChatModel, cfg.Wrapper.EmbeddingModel),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewIngestionSweeperJob(ingestionRepo, cfg.Ingest.SweepAfterMinute), cfg.Ingest.SweepSchedule); err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
