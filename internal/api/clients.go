package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/service"
)

// optionalInt lê um inteiro da query; ausente ou inválido vira nil.
func optionalInt(c *gin.Context, key string) *int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return nil
	}
	return &v
}

func (h *Handler) ListClients(c *gin.Context) {
	f := service.ClientFilter{
		Search:   c.Query("search"),
		AgeMin:   optionalInt(c, "age_min"),
		AgeMax:   optionalInt(c, "age_max"),
		Ordering: c.Query("ordering"),
	}
	res, err := h.clients.List(c.Request.Context(), f, pageFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(c, res, func(s service.ClientSummary) ClientDTO {
		return newClientDTO(s.Client, s.TotalPedidos)
	}))
}

func (h *Handler) CreateClient(c *gin.Context) {
	var in service.ClientInput
	if !h.bindJSON(c, &in) {
		return
	}
	cl, err := h.clients.Create(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newClientDTO(*cl, 0))
}

func (h *Handler) ClientStats(c *gin.Context) {
	stats, err := h.clients.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type bulkDeleteRequest struct {
	ClientIDs []uint `json:"client_ids"`
}

func (h *Handler) BulkDeleteClients(c *gin.Context) {
	var req bulkDeleteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	n, err := h.clients.BulkDelete(c.Request.Context(), req.ClientIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, fmt.Sprintf("%d cliente(s) excluído(s) com sucesso", n), gin.H{"deleted_count": n})
}

func (h *Handler) GetClient(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	d, err := h.clients.Detail(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newClientDetailDTO(d))
}

func (h *Handler) UpdateClient(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	var in service.ClientInput
	if !h.bindJSON(c, &in) {
		return
	}
	cl, err := h.clients.Update(c.Request.Context(), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondClient(c, cl)
}

func (h *Handler) PatchClient(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	var p service.ClientPatch
	if !h.bindJSON(c, &p) {
		return
	}
	cl, err := h.clients.PartialUpdate(c.Request.Context(), id, p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondClient(c, cl)
}

// respondClient devolve o cliente com o total de pedidos atualizado.
func (h *Handler) respondClient(c *gin.Context, cl *model.Client) {
	d, err := h.clients.Detail(c.Request.Context(), cl.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newClientDTO(d.Client, d.TotalPedidos))
}

func (h *Handler) DeleteClient(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	if _, err := h.clients.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClientPedidos lista os pedidos do cliente, filtráveis por status e prioridade.
func (h *Handler) ClientPedidos(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	res, err := h.clients.Pedidos(c.Request.Context(), id, c.Query("status"), c.Query("prioridade"), pageFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	now := h.now()
	c.JSON(http.StatusOK, paginated(c, res.Pedidos, func(p model.Pedido) PedidoListDTO {
		return newPedidoListDTO(p, now)
	}))
}
