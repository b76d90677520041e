// Package api expõe a API REST em JSON, autenticada por JWT.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ericoliveiras/gestao-clientes/internal/auth"
	"github.com/ericoliveiras/gestao-clientes/internal/permission"
	"github.com/ericoliveiras/gestao-clientes/internal/service"
)

// Deps são os serviços usados pelos handlers da API.
type Deps struct {
	Accounts  *service.AccountService
	Clients   *service.ClientService
	Pedidos   *service.PedidoService
	Dashboard *service.DashboardService
	Tokens    *auth.TokenService
	Log       *zap.Logger
	// Location interpreta as datas YYYY-MM-DD dos filtros.
	Location *time.Location
	Now      func() time.Time
}

type Handler struct {
	accounts  *service.AccountService
	clients   *service.ClientService
	pedidos   *service.PedidoService
	dashboard *service.DashboardService
	tokens    *auth.TokenService
	log       *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

func New(d Deps) *Handler {
	h := &Handler{
		accounts:  d.Accounts,
		clients:   d.Clients,
		pedidos:   d.Pedidos,
		dashboard: d.Dashboard,
		tokens:    d.Tokens,
		log:       d.Log,
		loc:       d.Location,
		now:       d.Now,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.loc == nil {
		h.loc = time.Local
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// CORS libera a API para os front-ends informados, ou para qualquer origem.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-Processing-Time", "X-Processing-Timestamp"},
		AllowCredentials: len(origins) > 0,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// Routes monta as rotas da API no grupo informado (normalmente /api).
func (h *Handler) Routes(rg *gin.RouterGroup) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/register", h.Register)
		authGroup.POST("/verify-token", h.VerifyToken)
		authGroup.POST("/logout", h.Authenticate, h.Logout)
	}

	rg.POST("/password/reset", h.PasswordReset)
	rg.POST("/password/reset/confirm", h.PasswordResetConfirm)

	private := rg.Group("", h.Authenticate)
	{
		private.GET("/user-info", h.UserInfo)
		private.GET("/profile", h.GetProfile)
		private.PATCH("/profile", h.UpdateProfile)
		private.GET("/profile/details", h.GetProfileDetails)
		private.PATCH("/profile/details", h.UpdateProfileDetails)
		private.POST("/profile/image", h.UploadProfileImage)
		private.DELETE("/profile/image", h.DeleteProfileImage)
		private.POST("/password/change", h.ChangePassword)
	}

	clients := rg.Group("/clients", h.Authenticate)
	{
		clients.GET("", h.Require(permission.View), h.ListClients)
		clients.POST("", h.Require(permission.Create), h.CreateClient)
		clients.GET("/stats", h.Require(permission.View), h.ClientStats)
		clients.POST("/bulk_delete", h.Require(permission.Bulk), h.BulkDeleteClients)
		clients.GET("/:id", h.Require(permission.View), h.GetClient)
		clients.PUT("/:id", h.Require(permission.Update), h.UpdateClient)
		clients.PATCH("/:id", h.Require(permission.Update), h.PatchClient)
		clients.DELETE("/:id", h.Require(permission.Delete), h.DeleteClient)
		clients.GET("/:id/pedidos", h.Require(permission.View), h.ClientPedidos)
	}

	pedidos := rg.Group("/pedidos", h.Authenticate)
	{
		pedidos.GET("", h.Require(permission.View), h.ListPedidos)
		pedidos.POST("", h.Require(permission.Create), h.CreatePedido)
		pedidos.GET("/stats", h.Require(permission.View), h.PedidoStats)
		pedidos.GET("/overdue", h.Require(permission.View), h.OverduePedidos)
		pedidos.POST("/bulk_actions", h.Require(permission.Bulk), h.BulkActions)
		pedidos.GET("/:id", h.Require(permission.View), h.GetPedido)
		pedidos.PUT("/:id", h.Require(permission.Update), h.UpdatePedido)
		pedidos.PATCH("/:id", h.Require(permission.Update), h.PatchPedido)
		pedidos.DELETE("/:id", h.Require(permission.Delete), h.DeletePedido)
		pedidos.PATCH("/:id/update_status", h.Require(permission.UpdateStatus), h.UpdatePedidoStatus)
		pedidos.POST("/:id/cancel", h.Require(permission.Cancel), h.CancelPedido)
	}

	admin := rg.Group("", h.Authenticate, h.Require(permission.ManageUsers))
	{
		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:id", h.GetUser)
		admin.GET("/groups", h.ListGroups)
		admin.GET("/groups/:id", h.GetGroup)
	}

	dashboard := rg.Group("/dashboard", h.Authenticate, h.Require(permission.View))
	{
		dashboard.GET("/overview", h.DashboardOverview)
		dashboard.GET("/quick_stats", h.QuickStats)
		dashboard.GET("/charts_data", h.ChartsData)
	}
}
