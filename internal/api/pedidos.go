package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/service"
)

// pedidoFilter lê os filtros da query; datas e valores malformados viram erro de campo.
func (h *Handler) pedidoFilter(c *gin.Context) (service.PedidoFilter, error) {
	fields := apperr.FieldSet{}
	f := service.PedidoFilter{
		Search:     c.Query("search"),
		Status:     c.Query("status"),
		Prioridade: c.Query("prioridade"),
		Ordering:   c.Query("ordering"),
	}
	if v := c.Query("cliente"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			fields.Add("cliente", "Informe um número inteiro.")
		}
		f.ClienteID = uint(id)
	}
	for key, dst := range map[string]**time.Time{"data_inicio": &f.DataInicio, "data_fim": &f.DataFim} {
		d, err := service.ParseDate(c.Query(key), h.loc)
		if err != nil {
			fields.Add(key, "Informe uma data válida.")
			continue
		}
		*dst = d
	}
	for key, dst := range map[string]**decimal.Decimal{"valor_min": &f.ValorMin, "valor_max": &f.ValorMax} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			fields.Add(key, "Informe um número.")
			continue
		}
		*dst = &d
	}
	if f.Status != "" && !model.StatusPedido(f.Status).Valid() {
		fields.Add("status", fmt.Sprintf("Faça uma escolha válida. %s não é uma das escolhas disponíveis.", f.Status))
	}
	if f.Prioridade != "" && !model.PrioridadePedido(f.Prioridade).Valid() {
		fields.Add("prioridade", fmt.Sprintf("Faça uma escolha válida. %s não é uma das escolhas disponíveis.", f.Prioridade))
	}
	return f, fields.Err()
}

func (h *Handler) listConv() func(model.Pedido) PedidoListDTO {
	now := h.now().In(h.loc)
	return func(p model.Pedido) PedidoListDTO { return newPedidoListDTO(p, now) }
}

func (h *Handler) ListPedidos(c *gin.Context) {
	f, err := h.pedidoFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.pedidos.List(c.Request.Context(), f, pageFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(c, res.Page, h.listConv()))
}

func (h *Handler) CreatePedido(c *gin.Context) {
	var in service.PedidoInput
	if !h.bindJSON(c, &in) {
		return
	}
	p, err := h.pedidos.Create(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondPedido(c, http.StatusCreated, p)
}

// respondPedido devolve o detalhe do pedido com o total de pedidos do cliente.
func (h *Handler) respondPedido(c *gin.Context, status int, p *model.Pedido) {
	d, err := h.detail(c, p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, d)
}

func (h *Handler) detail(c *gin.Context, p *model.Pedido) (PedidoDetailDTO, error) {
	n, err := h.clients.CountPedidos(c.Request.Context(), p.ClienteID)
	if err != nil {
		return PedidoDetailDTO{}, err
	}
	return newPedidoDetailDTO(*p, h.now().In(h.loc), n), nil
}

func (h *Handler) PedidoStats(c *gin.Context) {
	stats, err := h.pedidos.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// OverduePedidos lista os pedidos em aberto com entrega prevista já vencida.
func (h *Handler) OverduePedidos(c *gin.Context) {
	res, err := h.pedidos.Overdue(c.Request.Context(), pageFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(c, res, h.listConv()))
}

func (h *Handler) BulkActions(c *gin.Context) {
	var in service.BulkInput
	if !h.bindJSON(c, &in) {
		return
	}
	res, err := h.pedidos.BulkAction(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetPedido(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	p, err := h.pedidos.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondPedido(c, http.StatusOK, p)
}

func (h *Handler) UpdatePedido(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	var in service.PedidoInput
	if !h.bindJSON(c, &in) {
		return
	}
	p, err := h.pedidos.Update(c.Request.Context(), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondPedido(c, http.StatusOK, p)
}

func (h *Handler) PatchPedido(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	var patch service.PedidoPatch
	if !h.bindJSON(c, &patch) {
		return
	}
	p, err := h.pedidos.PartialUpdate(c.Request.Context(), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondPedido(c, http.StatusOK, p)
}

func (h *Handler) DeletePedido(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	if _, err := h.pedidos.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UpdatePedidoStatus(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	var in service.StatusInput
	if !h.bindJSON(c, &in) {
		return
	}
	p, err := h.pedidos.UpdateStatus(c.Request.Context(), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	d, err := h.detail(c, p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, fmt.Sprintf("Status do pedido %s atualizado com sucesso", p.NumeroPedido), gin.H{"pedido": d})
}

type cancelRequest struct {
	Motivo string `json:"motivo"`
}

// CancelPedido aceita corpo vazio; o motivo é opcional.
func (h *Handler) CancelPedido(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	var req cancelRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	p, err := h.pedidos.Cancel(c.Request.Context(), id, req.Motivo)
	if err != nil {
		h.respondError(c, err)
		return
	}
	d, err := h.detail(c, p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, fmt.Sprintf("Pedido %s cancelado com sucesso", p.NumeroPedido), gin.H{"pedido": d})
}
