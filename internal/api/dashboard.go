package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DashboardOverview junta estatísticas, pedidos recentes e melhores clientes.
func (h *Handler) DashboardOverview(c *gin.Context) {
	ov, err := h.dashboard.Overview(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	conv := h.listConv()
	recent := make([]PedidoListDTO, 0, len(ov.RecentOrders))
	for _, p := range ov.RecentOrders {
		recent = append(recent, conv(p))
	}
	c.JSON(http.StatusOK, gin.H{
		"client_stats":  ov.ClientStats,
		"pedido_stats":  ov.PedidoStats,
		"recent_orders": recent,
		"top_clients":   ov.TopClients,
	})
}

func (h *Handler) QuickStats(c *gin.Context) {
	stats, err := h.dashboard.QuickStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ChartsData(c *gin.Context) {
	data, err := h.dashboard.ChartsData(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}
