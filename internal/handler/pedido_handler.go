package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/export"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/permission"
	"github.com/ericoliveiras/gestao-clientes/internal/service"
)

const (
	pedidosPerPage = 15
	pedidosPath    = "/pedidos/"
)

type PedidoHandler struct {
	Sessions
	Pedidos   *service.PedidoService
	Clients   *service.ClientService
	Dashboard *service.DashboardService
	// Location interpreta as datas YYYY-MM-DD dos filtros e formata as exportações.
	Location *time.Location
	Now      func() time.Time
}

func (h *PedidoHandler) loc() *time.Location {
	if h.Location == nil {
		return time.Local
	}
	return h.Location
}

func (h *PedidoHandler) now() time.Time {
	if h.Now == nil {
		return time.Now().In(h.loc())
	}
	return h.Now().In(h.loc())
}

// Choice é uma opção de select.
type Choice struct {
	Value string
	Label string
}

// Choices são as opções de status e prioridade dos formulários.
type Choices struct {
	Status     []Choice
	Prioridade []Choice
}

func choices() Choices {
	var out Choices
	for _, s := range model.StatusChoices {
		out.Status = append(out.Status, Choice{Value: string(s), Label: s.Label()})
	}
	for _, p := range model.PrioridadeChoices {
		out.Prioridade = append(out.Prioridade, Choice{Value: string(p), Label: p.Label()})
	}
	return out
}

func pedidoInputFrom(c *gin.Context) (service.PedidoInput, apperr.FieldSet) {
	fields := apperr.FieldSet{}
	in := service.PedidoInput{
		Descricao:           c.PostForm("descricao"),
		Status:              c.PostForm("status"),
		Prioridade:          c.PostForm("prioridade"),
		DataEntregaPrevista: c.PostForm("data_entrega_prevista"),
		Observacoes:         c.PostForm("observacoes"),
	}
	if v := strings.TrimSpace(c.PostForm("cliente")); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			fields.Add("cliente", "Cliente selecionado inválido.")
		}
		in.ClienteID = uint(id)
	}
	if v := strings.TrimSpace(c.PostForm("valor_total")); v != "" {
		d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", "."))
		if err != nil {
			fields.Add("valor_total", "Informe um número.")
		} else {
			in.ValorTotal = &d
		}
	}
	return in, fields
}

// filterFrom lê os filtros da busca de pedidos; erros ficam no FieldSet.
func (h *PedidoHandler) filterFrom(c *gin.Context, fields apperr.FieldSet) service.PedidoFilter {
	f := service.PedidoFilter{
		Search:     strings.TrimSpace(c.Query("search")),
		Status:     c.Query("status"),
		Prioridade: c.Query("prioridade"),
	}
	if v := c.Query("cliente"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			f.ClienteID = uint(id)
		} else {
			fields.Add("cliente", "Faça uma escolha válida.")
		}
	}
	if d, err := service.ParseDate(c.Query("data_inicio"), h.loc()); err != nil {
		fields.Add("data_inicio", "Informe uma data válida.")
	} else {
		f.DataInicio = d
	}
	if d, err := service.ParseDate(c.Query("data_fim"), h.loc()); err != nil {
		fields.Add("data_fim", "Informe uma data válida.")
	} else {
		f.DataFim = d
	}
	for key, dst := range map[string]**decimal.Decimal{"valor_min": &f.ValorMin, "valor_max": &f.ValorMax} {
		v := strings.TrimSpace(c.Query(key))
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", "."))
		if err != nil {
			fields.Add(key, "Informe um número.")
			continue
		}
		*dst = &d
	}
	if f.Status != "" && !model.StatusPedido(f.Status).Valid() {
		fields.Add("status", "Faça uma escolha válida.")
	}
	if f.Prioridade != "" && !model.PrioridadePedido(f.Prioridade).Valid() {
		fields.Add("prioridade", "Faça uma escolha válida.")
	}
	return f
}

// searchFilter devolve o filtro da busca; com erros, a busca não filtra nada.
func (h *PedidoHandler) searchFilter(c *gin.Context) (service.PedidoFilter, error) {
	fields := apperr.FieldSet{}
	f := h.filterFrom(c, fields)
	err := fields.Err()
	if err == nil {
		err = h.Pedidos.ValidateFilter(f)
	}
	if err != nil {
		return service.PedidoFilter{}, err
	}
	return f, nil
}

func (h *PedidoHandler) ListPedidos(c *gin.Context) {
	f, searchErr := h.searchFilter(c)
	res, err := h.Pedidos.List(c.Request.Context(), f, pageNumber(c, pedidosPerPage))
	if err != nil {
		h.fail(c, err)
		return
	}
	clients, err := h.Clients.All(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	data := gin.H{
		"Pedidos":  res.Page,
		"Stats":    res.Stats,
		"Clients":  clients,
		"Search":   c.Request.URL.Query(),
		"Query":    queryWithoutPage(c),
		"Choices":  choices(),
		"Now":      h.now(),
		"RawQuery": c.Request.URL.RawQuery,
	}
	if searchErr != nil {
		data["SearchErrors"] = formErrors(searchErr)
	}
	h.render(c, http.StatusOK, "pedidos.html", data)
}

func (h *PedidoHandler) formData(c *gin.Context, form gin.H) (gin.H, bool) {
	clients, err := h.Clients.All(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return gin.H{"Form": form, "Clients": clients, "Choices": choices()}, true
}

func (h *PedidoHandler) ShowCreatePedido(c *gin.Context) {
	data, ok := h.formData(c, gin.H{"status": string(model.StatusPendente), "prioridade": string(model.PrioridadeNormal)})
	if !ok {
		return
	}
	h.render(c, http.StatusOK, "create_pedido.html", data)
}

func (h *PedidoHandler) ProcessCreatePedido(c *gin.Context) {
	in, fields := pedidoInputFrom(c)
	err := fields.Err()
	if err == nil {
		p, createErr := h.Pedidos.Create(c.Request.Context(), in)
		if createErr == nil {
			h.redirectWith(c, FlashSuccess, fmt.Sprintf("Pedido %s criado com sucesso!", p.NumeroPedido), fmt.Sprintf("/pedidos/%d/", p.ID))
			return
		}
		err = createErr
	}
	data, ok := h.formData(c, postedForm(c))
	if !ok {
		return
	}
	h.formFailed(c, err, "create_pedido.html", data)
}

func (h *PedidoHandler) pedido(c *gin.Context) (*model.Pedido, bool) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return nil, false
	}
	p, err := h.Pedidos.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return p, true
}

func (h *PedidoHandler) DetailPedido(c *gin.Context) {
	p, ok := h.pedido(c)
	if !ok {
		return
	}
	h.render(c, http.StatusOK, "detail_pedido.html", gin.H{"Pedido": p, "Now": h.now(), "Choices": choices()})
}

func pedidoForm(p *model.Pedido) gin.H {
	form := gin.H{
		"cliente":     strconv.FormatUint(uint64(p.ClienteID), 10),
		"descricao":   p.Descricao,
		"valor_total": p.ValorTotal.StringFixed(2),
		"status":      string(p.Status),
		"prioridade":  string(p.Prioridade),
		"observacoes": p.Observacoes,
	}
	if p.DataEntregaPrevista != nil {
		form["data_entrega_prevista"] = p.DataEntregaPrevista.Format(time.DateOnly)
	}
	return form
}

func (h *PedidoHandler) ShowUpdatePedido(c *gin.Context) {
	p, ok := h.pedido(c)
	if !ok {
		return
	}
	data, ok := h.formData(c, pedidoForm(p))
	if !ok {
		return
	}
	data["Pedido"] = p
	h.render(c, http.StatusOK, "update_pedido.html", data)
}

func (h *PedidoHandler) ProcessUpdatePedido(c *gin.Context) {
	p, ok := h.pedido(c)
	if !ok {
		return
	}
	in, fields := pedidoInputFrom(c)
	err := fields.Err()
	if err == nil {
		updated, updateErr := h.Pedidos.Update(c.Request.Context(), p.ID, in)
		if updateErr == nil {
			h.redirectWith(c, FlashSuccess, fmt.Sprintf("Pedido %s atualizado com sucesso!", updated.NumeroPedido), fmt.Sprintf("/pedidos/%d/", p.ID))
			return
		}
		err = updateErr
	}
	data, ok := h.formData(c, postedForm(c))
	if !ok {
		return
	}
	data["Pedido"] = p
	h.formFailed(c, err, "update_pedido.html", data)
}

func (h *PedidoHandler) ShowDeletePedido(c *gin.Context) {
	p, ok := h.pedido(c)
	if !ok {
		return
	}
	h.render(c, http.StatusOK, "delete_pedido.html", gin.H{"Pedido": p})
}

func (h *PedidoHandler) ProcessDeletePedido(c *gin.Context) {
	p, ok := h.pedido(c)
	if !ok {
		return
	}
	if _, err := h.Pedidos.Delete(c.Request.Context(), p.ID); err != nil {
		h.redirectWith(c, FlashError, apperr.From(err).Message, pedidosPath)
		return
	}
	h.redirectWith(c, FlashSuccess, fmt.Sprintf("Pedido %s foi excluído com sucesso!", p.NumeroPedido), pedidosPath)
}

func (h *PedidoHandler) ShowUpdateStatus(c *gin.Context) {
	p, ok := h.pedido(c)
	if !ok {
		return
	}
	h.render(c, http.StatusOK, "update_pedido_status.html", gin.H{
		"Pedido":  p,
		"Form":    gin.H{"status": string(p.Status)},
		"Choices": choices(),
	})
}

func (h *PedidoHandler) ProcessUpdateStatus(c *gin.Context) {
	p, ok := h.pedido(c)
	if !ok {
		return
	}
	in := service.StatusInput{Status: c.PostForm("status"), Observacao: c.PostForm("observacao")}
	updated, err := h.Pedidos.UpdateStatus(c.Request.Context(), p.ID, in)
	if err != nil {
		h.formFailed(c, err, "update_pedido_status.html", gin.H{"Pedido": p, "Form": postedForm(c), "Choices": choices()})
		return
	}
	h.redirectWith(c, FlashSuccess,
		fmt.Sprintf("Status do pedido %s atualizado para %s!", updated.NumeroPedido, updated.Status.Label()),
		fmt.Sprintf("/pedidos/%d/", p.ID))
}

func (h *PedidoHandler) ShowCancelPedido(c *gin.Context) {
	p, ok := h.pedido(c)
	if !ok {
		return
	}
	if !p.CanBeCancelled() {
		h.redirectWith(c, FlashError, "Este pedido não pode ser cancelado.", fmt.Sprintf("/pedidos/%d/", p.ID))
		return
	}
	h.render(c, http.StatusOK, "cancel_pedido.html", gin.H{"Pedido": p})
}

func (h *PedidoHandler) ProcessCancelPedido(c *gin.Context) {
	p, ok := h.pedido(c)
	if !ok {
		return
	}
	back := fmt.Sprintf("/pedidos/%d/", p.ID)
	if !p.CanBeCancelled() {
		h.redirectWith(c, FlashError, "Este pedido não pode ser cancelado.", back)
		return
	}
	if _, err := h.Pedidos.Cancel(c.Request.Context(), p.ID, c.PostForm("motivo")); err != nil {
		h.redirectWith(c, FlashError, apperr.From(err).Message, back)
		return
	}
	h.redirectWith(c, FlashSuccess, fmt.Sprintf("Pedido %s foi cancelado com sucesso!", p.NumeroPedido), back)
}

// BulkActions aplica a ação do formulário aos pedido_ids[] marcados.
func (h *PedidoHandler) BulkActions(c *gin.Context) {
	ids := uintList(append(c.PostFormArray("pedido_ids[]"), c.PostFormArray("pedido_ids")...))
	if len(ids) == 0 {
		h.redirectWith(c, FlashWarning, "Nenhum pedido selecionado.", pedidosPath)
		return
	}
	in := service.BulkInput{
		PedidoIDs:   ids,
		Action:      c.PostForm("action"),
		NewStatus:   c.PostForm("new_status"),
		NewPriority: c.PostForm("new_priority"),
	}
	res, err := h.Pedidos.BulkAction(c.Request.Context(), in)
	if err != nil {
		msg := apperr.From(err).Message
		if apperr.From(err).Kind == apperr.KindInvalid {
			msg = "Por favor, corrija os erros no formulário."
		}
		h.redirectWith(c, FlashError, msg, pedidosPath)
		return
	}
	h.redirectWith(c, FlashSuccess, res.Message+"!", pedidosPath)
}

func (h *PedidoHandler) DashboardPedidos(c *gin.Context) {
	d, err := h.Dashboard.DashboardPedidos(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "dashboard_pedidos.html", gin.H{"Dashboard": d, "Choices": choices()})
}

// ReportsPedidos mostra o relatório do período; datas inválidas viram aviso.
func (h *PedidoHandler) ReportsPedidos(c *gin.Context) {
	rep, err := h.Dashboard.Reports(c.Request.Context(), c.Query("data_inicio"), c.Query("data_fim"))
	if err != nil {
		h.fail(c, err)
		return
	}
	for _, w := range rep.Warnings {
		h.flash(c, FlashError, w)
	}
	h.render(c, http.StatusOK, "reports_pedidos.html", gin.H{"Report": rep, "Now": h.now()})
}

// PDFReport gera o relatório em PDF com os filtros de data, status e prioridade.
func (h *PedidoHandler) PDFReport(c *gin.Context) {
	filtros := export.Filtros{
		DataInicio: c.Query("data_inicio"),
		DataFim:    c.Query("data_fim"),
		Status:     c.Query("status"),
		Prioridade: c.Query("prioridade"),
	}
	f := service.PedidoFilter{Status: filtros.Status, Prioridade: filtros.Prioridade}
	// Datas malformadas não filtram, mas continuam listadas no cabeçalho.
	if d, err := service.ParseDate(filtros.DataInicio, h.loc()); err == nil {
		f.DataInicio = d
	}
	if d, err := service.ParseDate(filtros.DataFim, h.loc()); err == nil {
		f.DataFim = d
	}

	summary, err := h.Pedidos.Summary(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	pedidos, err := h.Pedidos.Head(c.Request.Context(), f, export.MaxPDFPedidos)
	if err != nil {
		h.fail(c, err)
		return
	}

	now := h.now()
	var buf bytes.Buffer
	err = export.WritePDF(&buf, export.Report{
		Filtros:    filtros,
		Total:      summary.TotalPedidos,
		ValorTotal: summary.ValorTotal,
		ValorMedio: summary.ValorMedio,
		GeradoEm:   now,
		Pedidos:    pedidos,
		Location:   h.loc(),
	})
	if err != nil {
		h.fail(c, apperr.Internal.Explain("Erro ao gerar PDF.").Wrap(err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.PDFFilename(now)))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// ExportCSV exporta todos os pedidos da busca atual.
func (h *PedidoHandler) ExportCSV(c *gin.Context) {
	f, _ := h.searchFilter(c)
	pedidos, err := h.Pedidos.All(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, pedidos, h.loc()); err != nil {
		h.fail(c, apperr.Internal.Explain("Erro ao gerar CSV.").Wrap(err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.CSVFilename(h.now())))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// AjaxUpdateStatus troca o status e responde em JSON para a listagem.
func (h *PedidoHandler) AjaxUpdateStatus(c *gin.Context) {
	if !permission.Can(currentUser(c), permission.UpdateStatus) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Sem permissão"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Pedido não encontrado."})
		return
	}
	status := c.PostForm("status")
	if !model.StatusPedido(status).Valid() {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Status inválido"})
		return
	}
	p, err := h.Pedidos.UpdateStatus(c.Request.Context(), uint(id), service.StatusInput{Status: status})
	if err != nil {
		e := apperr.From(err)
		c.JSON(e.StatusCode(), gin.H{"success": false, "message": e.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"message":            "Status atualizado para " + p.Status.Label(),
		"new_status":         string(p.Status),
		"new_status_display": p.Status.Label(),
		"status_class":       p.Status.CSSClass(),
	})
}
