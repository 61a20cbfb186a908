package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "mentor/docs" // swagger 文档注册
	"mentor/internal/ai"
	"mentor/internal/budget"
	"mentor/internal/config"
	"mentor/internal/handler"
	"mentor/internal/pkg/ark"
	"mentor/internal/pkg/cache"
	"mentor/internal/pkg/database"
	"mentor/internal/pkg/extraction"
	"mentor/internal/pkg/jwt"
	"mentor/internal/pkg/mongodb"
	"mentor/internal/pkg/sanitize"
	"mentor/internal/pkg/storagefactory"
	"mentor/internal/ratelimit"
	"mentor/internal/repository"
	"mentor/internal/retrieval"
	"mentor/internal/server/middleware"
	"mentor/internal/service"
)

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine

	closers []func(ctx context.Context) error
	checks  map[string]handler.ReadyCheck

	limiter       *ratelimit.Limiter
	budget        *budget.Manager
	index         *retrieval.Index
	chatSvc       *service.ChatService
	conversations *service.ConversationService
	uploads       *service.UploadService
}

// New 创建服务器实例
func New(cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &Server{
		cfg:    cfg,
		engine: gin.New(),
		checks: make(map[string]handler.ReadyCheck),
	}

	if err := srv.setup(context.Background()); err != nil {
		_ = srv.close(context.Background())
		return nil, err
	}

	// 设置路由
	srv.setupRoutes()

	return srv, nil
}

// setup 按配置组装各组件
func (s *Server) setup(ctx context.Context) error {
	cfg := s.cfg

	// 1. 会话存储
	convStore, uploadStore, err := s.openStore()
	if err != nil {
		return err
	}

	// 2. Redis (可选)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			redisCache = rc
			s.closers = append(s.closers, func(context.Context) error { return rc.Close() })
			s.checks["redis"] = rc.Ping
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	// 3. 向量索引，文件不一致时拒绝启动
	index, err := retrieval.LoadIndex(cfg.Retrieval.VectorsPath, cfg.Retrieval.DocsPath)
	if err != nil {
		return fmt.Errorf("load vector index: %w", err)
	}
	s.index = index
	log.Info().Int("docs", index.Len()).Int("dim", index.Dim()).Msg("vector index loaded")

	var embedder retrieval.Embedder
	if cfg.Embedding.Enabled() {
		client, err := ark.NewEmbeddingClient(&cfg.Embedding)
		if err != nil {
			return fmt.Errorf("create embedding client: %w", err)
		}
		embedder = client
	} else if !index.Empty() {
		log.Warn().Msg("embedding not configured, domain questions fall back to general")
	}

	// 4. 限流、配额、输入校验
	s.limiter = ratelimit.New(cfg.Limits.Rate.Window, cfg.Limits.Rate.MaxRequests)
	s.budget = budget.NewManager(budget.Limits{
		Anonymous:  cfg.Limits.Budget.Anonymous,
		Registered: cfg.Limits.Budget.Registered,
	})
	counter, err := budget.NewCounter(cfg.Limits.Budget.Estimator)
	if err != nil {
		return err
	}
	guard, err := sanitize.NewGuard(cfg.Guard.MaxMessages, cfg.Guard.MaxMessageLength, cfg.Guard.DenyPatterns)
	if err != nil {
		return fmt.Errorf("compile guard patterns: %w", err)
	}

	// 5. 推理
	router, err := ai.NewRouter(cfg.AI.Routes, cfg.AI.DefaultRoute)
	if err != nil {
		return err
	}
	aiClient, err := ai.NewClient(ctx, &cfg.AI)
	if err != nil {
		return err
	}

	// 6. 业务服务
	s.conversations = service.NewConversationService(convStore, redisCache, cfg.Redis.ListTTL)
	s.checks["store"] = s.conversations.Ready

	s.chatSvc = service.NewChatService(service.ChatDeps{
		Guard:              guard,
		Limiter:            s.limiter,
		Budget:             s.budget,
		Counter:            counter,
		EstimateMultiplier: cfg.Limits.Budget.EstimateMultiplier,
		Augmenter: retrieval.NewAugmenter(
			retrieval.NewClassifier(cfg.Retrieval.Keywords), index, embedder, cfg.Retrieval.TopK,
		),
		Router:        router,
		Inference:     aiClient,
		Conversations: s.conversations,
	})

	store, err := storagefactory.NewStorage(&cfg.Storage)
	if err != nil {
		log.Warn().Err(err).Str("type", cfg.Storage.Type).Msg("upload storage unavailable, uploads will not be kept")
		store = nil
	}
	s.uploads = service.NewUploadService(service.UploadDeps{
		Config:    &cfg.Upload,
		Extractor: extraction.NewClient(&cfg.Upload.Extraction),
		Storage:   store,
		Uploads:   uploadStore,
		Limiter:   s.limiter,
		Analyzer:  aiClient,
		Router:    router,
	})

	log.Info().
		Str("provider", cfg.AI.Provider).
		Strs("routes", router.Categories()).
		Str("store", cfg.Store.Driver).
		Bool("embedding", embedder != nil).
		Msg("services initialized")
	return nil
}

// openStore 按 store.driver 打开 SQLite 或 MongoDB
func (s *Server) openStore() (repository.ConversationStore, repository.UploadStore, error) {
	switch s.cfg.Store.Driver {
	case "mongo":
		client, err := mongodb.New(&s.cfg.Mongo)
		if err != nil {
			return nil, nil, fmt.Errorf("connect MongoDB: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		log.Info().Str("database", s.cfg.Mongo.Database).Msg("connected to MongoDB")

		// 创建索引
		if err := mongodb.EnsureIndexes(client.Database()); err != nil {
			log.Warn().Err(err).Msg("failed to ensure indexes")
		}
		return repository.NewConversationRepo(client.Database()), repository.NewUploadRepo(client.Database()), nil
	default:
		db, err := database.OpenSQLite(&s.cfg.Store.SQLite, repository.Models()...)
		if err != nil {
			return nil, nil, err
		}
		s.closers = append(s.closers, func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		log.Info().Str("path", s.cfg.Store.SQLite.Path).Msg("opened SQLite store")
		repo := repository.NewGormRepo(db)
		return repo, repo, nil
	}
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS(s.cfg.Server.CORSOrigins))

	// 健康检查与指标
	healthHandler := handler.NewHealthHandler(s.checks)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)
	s.engine.GET("/metrics", handler.NewMetricsHandler(s.limiter, s.budget, s.index).Metrics)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	jwtSecret := s.cfg.Auth.JWTSecret
	if jwtSecret == "" {
		log.Warn().Msg("JWT secret not configured, all callers are treated as anonymous")
	}
	var jwtUtil *jwt.JWT
	if jwtSecret != "" {
		jwtUtil = jwt.NewJWT(jwtSecret)
	}

	// API v1
	v1 := s.engine.Group("/api/v1")
	v1.Use(middleware.Identify(jwtUtil))
	{
		chatHandler := handler.NewChatHandler(s.chatSvc)
		v1.POST("/chat", chatHandler.Chat)
		v1.GET("/usage", handler.NewUsageHandler(s.budget).Usage)

		fileHandler := handler.NewFileHandler(s.uploads)
		v1.POST("/files", fileHandler.Upload)
		v1.POST("/files/analyze", fileHandler.Analyze)

		// 需要登录的接口
		auth := v1.Group("")
		auth.Use(middleware.RequireAuth())
		{
			convHandler := handler.NewConversationHandler(s.conversations)
			auth.GET("/conversations", convHandler.List)
			auth.POST("/conversations", convHandler.Create)
			auth.GET("/conversations/:id/messages", convHandler.Messages)
			auth.PUT("/conversations/:id", convHandler.UpdateTitle)
		}
	}
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")
		shutdownErr := srv.Shutdown(context.Background())
		if err := s.close(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to close connections")
		}
		return shutdownErr
	case err := <-errCh:
		_ = s.close(context.Background())
		return err
	}
}

// close 按打开的逆序关闭连接
func (s *Server) close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
