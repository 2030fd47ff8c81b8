package main

import (
	"context"
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

	"github.com/xxxsen/notemate/internal/ai"
	"github.com/xxxsen/notemate/internal/config"
	"github.com/xxxsen/notemate/internal/db"
	"github.com/xxxsen/notemate/internal/filestore"
	"github.com/xxxsen/notemate/internal/handler"
	"github.com/xxxsen/notemate/internal/job"
	"github.com/xxxsen/notemate/internal/middleware"
	"github.com/xxxsen/notemate/internal/pdftext"
	"github.com/xxxsen/notemate/internal/repo"
	"github.com/xxxsen/notemate/internal/schedule"
	"github.com/xxxsen/notemate/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "notemate",
		Short: "notemate lecture study server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run notemate server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			logutil.GetLogger(context.Background()).Info("migrations applied")
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (optional, env vars override)")
	rootCmd.AddCommand(runCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func bootstrap(configPath string) (*config.Config, *db.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
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
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, conn, nil
}

func runServer(cfg *config.Config, conn *db.DB) error {
	log := logutil.GetLogger(context.Background())
	log.Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("ai_model", cfg.AI.Model),
	)
	if cfg.InsecureSecret() {
		log.Warn("using the default secret, set NOTEMATE_SECRET before exposing the server")
	}

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	manager := ai.NewManager(
		ai.NewGenerator(provider, cfg.AI.Model),
		ai.NewChatter(provider, cfg.AI.Model),
		ai.ManagerConfig{
			Timeout:       cfg.AI.TimeoutSeconds,
			MaxInputChars: cfg.AI.MaxInputChars,
			MaxHistory:    cfg.AI.MaxHistory,
		},
	)

	docRepo := repo.NewDocumentRepo(conn)
	pageRepo := repo.NewPageRepo(conn)
	imageRepo := repo.NewNoteImageRepo(conn)

	fileService := service.NewFileService(store, cfg.Secret, time.Duration(cfg.FileTokenTTLMinutes)*time.Minute)
	dictService := service.NewDictionaryService(docRepo, repo.NewDictionaryRepo(conn))
	documentService := service.NewDocumentService(conn, docRepo, pageRepo, store, pdftext.New(), fileService, cfg.MaxUploadSize)
	termService := service.NewTermService(docRepo, pageRepo, dictService, manager)
	chatService := service.NewChatService(conn, docRepo, pageRepo, repo.NewChatRepo(conn), dictService, manager)
	noteService := service.NewNoteService(docRepo, repo.NewNoteRepo(conn), imageRepo, store)

	deps := handler.RouterDeps{
		Documents:  handler.NewDocumentHandler(documentService, termService, cfg.MaxUploadSize),
		Notes:      handler.NewNoteHandler(noteService),
		Chats:      handler.NewChatHandler(chatService),
		Dictionary: handler.NewDictionaryHandler(dictService),
		Files:      handler.NewFileHandler(fileService, noteService),
		AILimit:    middleware.RateLimit(time.Duration(cfg.RateLimitSeconds) * time.Second),
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	cleanup := job.NewOrphanFileCleanupJob(store, docRepo, imageRepo, time.Duration(cfg.Cleanup.GraceMinutes)*time.Minute)
	if cfg.Cleanup.Cron != "" {
		if err := scheduler.AddJob(cleanup, cfg.Cleanup.Cron); err != nil {
			return fmt.Errorf("schedule cleanup: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()
	if cfg.Cleanup.Cron != "" {
		if err := scheduler.Trigger(cleanup.Name()); err != nil {
			log.Warn("trigger cleanup failed", zap.Error(err))
		}
	}

	log.Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server stopping...")
	return nil
}
