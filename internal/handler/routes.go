package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ericoliveiras/gestao-clientes/internal/permission"
)

// Web reúne os handlers das páginas.
type Web struct {
	Auth    *AuthHandler
	Clients *ClientHandler
	Pedidos *PedidoHandler
}

// Register monta as rotas web no router.
func (w *Web) Register(r gin.IRouter) {
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, homePath) })

	authRoutes := r.Group("/auth")
	{
		authRoutes.GET("/register/", w.Auth.ShowRegisterPage)
		authRoutes.POST("/register/", w.Auth.ProcessRegisterForm)
		authRoutes.GET("/login/", w.Auth.ShowLoginPage)
		authRoutes.POST("/login/", w.Auth.ProcessLoginForm)
		authRoutes.GET("/logout/", w.Auth.Logout)
		authRoutes.POST("/logout/", w.Auth.Logout)
	}

	need := w.Auth.Require
	private := r.Group("/", w.Auth.AuthRequired())

	clients := private.Group("/clients")
	{
		clients.GET("/", w.Clients.ListClients)
		clients.GET("/create_client/", need(permission.Create), w.Clients.ShowCreateClient)
		clients.POST("/create_client/", need(permission.Create), w.Clients.ProcessCreateClient)
		clients.GET("/update_client/:id", need(permission.Update), w.Clients.ShowUpdateClient)
		clients.POST("/update_client/:id", need(permission.Update), w.Clients.ProcessUpdateClient)
		clients.GET("/delete_client/:id", need(permission.Delete), w.Clients.ShowDeleteClient)
		clients.POST("/delete_client/:id", need(permission.Delete), w.Clients.ProcessDeleteClient)
		clients.GET("/detail_client/:id", w.Clients.DetailClient)
		clients.POST("/bulk_delete/", need(permission.Bulk), w.Clients.BulkDeleteClients)
		clients.GET("/manage_users/", need(permission.ManageUsers), w.Clients.ShowManageUsers)
		clients.POST("/manage_users/", need(permission.ManageUsers), w.Clients.ProcessManageUsers)
		clients.GET("/:id/pedidos/", w.Clients.ClientPedidos)
		clients.GET("/:id/pedidos/criar/", need(permission.Create), w.Clients.ShowCreatePedidoForClient)
		clients.POST("/:id/pedidos/criar/", need(permission.Create), w.Clients.ProcessCreatePedidoForClient)
	}

	pedidos := private.Group("/pedidos")
	{
		pedidos.GET("/", w.Pedidos.ListPedidos)
		pedidos.GET("/criar/", need(permission.Create), w.Pedidos.ShowCreatePedido)
		pedidos.POST("/criar/", need(permission.Create), w.Pedidos.ProcessCreatePedido)
		pedidos.POST("/acoes-lote/", need(permission.Bulk), w.Pedidos.BulkActions)
		pedidos.GET("/dashboard/", w.Pedidos.DashboardPedidos)
		pedidos.GET("/relatorios/", w.Pedidos.ReportsPedidos)
		pedidos.GET("/pdf/", w.Pedidos.PDFReport)
		pedidos.GET("/export-csv/", w.Pedidos.ExportCSV)
		pedidos.GET("/:id/", w.Pedidos.DetailPedido)
		pedidos.GET("/:id/editar/", need(permission.Update), w.Pedidos.ShowUpdatePedido)
		pedidos.POST("/:id/editar/", need(permission.Update), w.Pedidos.ProcessUpdatePedido)
		pedidos.GET("/:id/excluir/", need(permission.Delete), w.Pedidos.ShowDeletePedido)
		pedidos.POST("/:id/excluir/", need(permission.Delete), w.Pedidos.ProcessDeletePedido)
		pedidos.GET("/:id/status/", need(permission.UpdateStatus), w.Pedidos.ShowUpdateStatus)
		pedidos.POST("/:id/status/", need(permission.UpdateStatus), w.Pedidos.ProcessUpdateStatus)
		pedidos.GET("/:id/cancelar/", need(permission.Cancel), w.Pedidos.ShowCancelPedido)
		pedidos.POST("/:id/cancelar/", need(permission.Cancel), w.Pedidos.ProcessCancelPedido)
	}

	// A checagem de permissão fica no handler, que responde em JSON.
	private.POST("/ajax/pedidos/:id/status/", w.Pedidos.AjaxUpdateStatus)
}
