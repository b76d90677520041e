// /cmd/web/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/ericoliveiras/gestao-clientes/internal/api"
	"github.com/ericoliveiras/gestao-clientes/internal/auth"
	"github.com/ericoliveiras/gestao-clientes/internal/cache"
	"github.com/ericoliveiras/gestao-clientes/internal/config"
	"github.com/ericoliveiras/gestao-clientes/internal/database"
	"github.com/ericoliveiras/gestao-clientes/internal/handler"
	"github.com/ericoliveiras/gestao-clientes/internal/logger"
	"github.com/ericoliveiras/gestao-clientes/internal/mail"
	"github.com/ericoliveiras/gestao-clientes/internal/middleware"
	"github.com/ericoliveiras/gestao-clientes/internal/service"
	"github.com/ericoliveiras/gestao-clientes/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Erro ao carregar a configuração: %v", err)
	}

	logg := logger.New(cfg.Log.Level)
	defer logg.Sync()
	gin.SetMode(cfg.Server.Mode)

	db, err := database.Connect(cfg.Database, logg)
	if err != nil {
		logg.Fatal("Falha ao conectar ao banco de dados", zap.Error(err))
	}

	store := cacheStore(cfg.Redis, logg)

	tokens, err := auth.NewTokenService(cfg.JWT, store)
	if err != nil {
		logg.Fatal("Falha ao configurar os tokens", zap.Error(err))
	}

	clock := time.Now
	loc := time.Local
	clients := service.NewClientService(db, clock)
	pedidos := service.NewPedidoService(db, clock)
	accounts := service.NewAccountService(db, tokens, mail.New(cfg.Mail, logg), cfg.Media.Root, clock)
	dashboard := service.NewDashboardService(db, clients, pedidos, store, cfg.Stats.CacheTTL, clock)

	metrics := middleware.NewMetrics(cfg.Log.SlowRequestThreshold())

	router := gin.New()
	router.Use(ginzap.Ginzap(logg, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logg, true))
	router.Use(middleware.RequestTime(logg, middleware.RequestTimeConfig{
		Log:           cfg.Log.RequestTime,
		SlowThreshold: cfg.Log.SlowRequestThreshold(),
	}))
	router.Use(metrics.Middleware())

	view.Load(router, cfg.Templates.Glob, loc)
	router.Static(service.MediaURL, cfg.Media.Root)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	cookieStore := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 14,
		HttpOnly: true,
		Secure:   cfg.Server.Mode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	}
	s := handler.Sessions{Store: cookieStore, Name: cfg.Session.Name, Log: logg}

	web := &handler.Web{
		Auth:    &handler.AuthHandler{Sessions: s, Accounts: accounts},
		Clients: &handler.ClientHandler{Sessions: s, Clients: clients, Pedidos: pedidos, Accounts: accounts},
		Pedidos: &handler.PedidoHandler{Sessions: s, Pedidos: pedidos, Clients: clients, Dashboard: dashboard, Location: loc, Now: clock},
	}
	web.Register(router)

	apiGroup := router.Group("/api", api.CORS(cfg.Server.CORSOrigins))
	api.New(api.Deps{
		Accounts:  accounts,
		Clients:   clients,
		Pedidos:   pedidos,
		Dashboard: dashboard,
		Tokens:    tokens,
		Log:       logg,
		Location:  loc,
		Now:       clock,
	}).Routes(apiGroup)

	logg.Info("Servidor rodando", zap.String("porta", cfg.Server.Port), zap.String("modo", cfg.Server.Mode))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logg.Fatal("Servidor encerrado", zap.Error(err))
	}
}

// cacheStore usa o Redis quando configurado e cai para a memória local.
func cacheStore(cfg config.RedisConfig, logg *zap.Logger) cache.Store {
	if cfg.Addr == "" {
		return cache.NewMemoryStore()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := cache.Connect(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		logg.Warn("Redis indisponível, usando cache em memória", zap.String("addr", cfg.Addr), zap.Error(err))
		return cache.NewMemoryStore()
	}
	return cache.NewRedisStore(client, "gestao:")
}
