package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/service"
)

// Tamanhos de página das listagens web.
const (
	clientsPerPage       = 10
	clientPedidosPerPage = 10
)

type ClientHandler struct {
	Sessions
	Clients  *service.ClientService
	Pedidos  *service.PedidoService
	Accounts *service.AccountService
}

// pageNumber lê ?page; ausente ou inválido é a primeira.
func pageNumber(c *gin.Context, size int) service.Page {
	n, err := strconv.Atoi(c.Query("page"))
	if err != nil || n < 1 {
		n = 1
	}
	return service.Page{Number: n, Size: size}
}

// queryWithoutPage repete os filtros atuais nos links de paginação.
func queryWithoutPage(c *gin.Context) string {
	q := c.Request.URL.Query()
	q.Del("page")
	return q.Encode()
}

// formInt lê um inteiro opcional do formulário; texto inválido vira erro no campo.
func formInt(value, field string, fields apperr.FieldSet) *int {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		fields.Add(field, "Informe um número inteiro.")
		return nil
	}
	return &n
}

func (h *ClientHandler) ListClients(c *gin.Context) {
	fields := apperr.FieldSet{}
	f := service.ClientFilter{
		Search: strings.TrimSpace(c.Query("search")),
		AgeMin: formInt(c.Query("age_min"), "age_min", fields),
		AgeMax: formInt(c.Query("age_max"), "age_max", fields),
	}
	searchErr := fields.Err()
	if searchErr == nil {
		searchErr = h.Clients.ValidateFilter(f)
	}

	res, err := h.Clients.List(c.Request.Context(), f, pageNumber(c, clientsPerPage))
	if err != nil {
		h.fail(c, err)
		return
	}
	data := gin.H{
		"Clients":      res,
		"TotalClients": res.Total,
		"Search":       c.Request.URL.Query(),
		"Query":        queryWithoutPage(c),
	}
	if searchErr != nil {
		data["SearchErrors"] = formErrors(searchErr)
	}
	h.render(c, http.StatusOK, "clients.html", data)
}

func clientInputFrom(c *gin.Context) (service.ClientInput, apperr.FieldSet) {
	fields := apperr.FieldSet{}
	in := service.ClientInput{
		Name:  c.PostForm("name"),
		Email: c.PostForm("email"),
		Age:   formInt(c.PostForm("age"), "age", fields),
	}
	return in, fields
}

func (h *ClientHandler) ShowCreateClient(c *gin.Context) {
	h.render(c, http.StatusOK, "create_client.html", gin.H{"Form": gin.H{}})
}

func (h *ClientHandler) ProcessCreateClient(c *gin.Context) {
	in, fields := clientInputFrom(c)
	var err error
	if err = fields.Err(); err == nil {
		cl, createErr := h.Clients.Create(c.Request.Context(), in)
		if createErr == nil {
			h.redirectWith(c, FlashSuccess, fmt.Sprintf("Cliente %s criado com sucesso!", cl.Name), fmt.Sprintf("/clients/detail_client/%d", cl.ID))
			return
		}
		err = createErr
	}
	h.formFailed(c, err, "create_client.html", gin.H{"Form": postedForm(c)})
}

// formFailed mostra o formulário de novo com os erros e a mensagem geral.
func (s Sessions) formFailed(c *gin.Context, err error, tpl string, data gin.H) {
	e := apperr.From(err)
	if e.Kind != apperr.KindInvalid {
		s.fail(c, err)
		return
	}
	s.flash(c, FlashError, e.Message)
	data["Errors"] = formErrors(err)
	s.render(c, http.StatusBadRequest, tpl, data)
}

// postedForm devolve os valores enviados, para preencher o formulário de novo.
func postedForm(c *gin.Context) gin.H {
	_ = c.Request.ParseForm()
	out := gin.H{}
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func (h *ClientHandler) ShowUpdateClient(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	cl, err := h.Clients.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "update_client.html", gin.H{
		"Client": cl,
		"Form":   gin.H{"name": cl.Name, "email": cl.Email, "age": strconv.Itoa(cl.Age)},
	})
}

func (h *ClientHandler) ProcessUpdateClient(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	cl, err := h.Clients.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	in, fields := clientInputFrom(c)
	if err = fields.Err(); err == nil {
		updated, updateErr := h.Clients.Update(c.Request.Context(), id, in)
		if updateErr == nil {
			h.redirectWith(c, FlashSuccess, fmt.Sprintf("Cliente %s atualizado com sucesso!", updated.Name), fmt.Sprintf("/clients/detail_client/%d", id))
			return
		}
		err = updateErr
	}
	h.formFailed(c, err, "update_client.html", gin.H{"Client": cl, "Form": postedForm(c)})
}

func (h *ClientHandler) ShowDeleteClient(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	cl, err := h.Clients.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "delete_client.html", gin.H{"Client": cl})
}

func (h *ClientHandler) ProcessDeleteClient(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	cl, err := h.Clients.Delete(c.Request.Context(), id)
	if err != nil {
		if apperr.From(err).Kind == apperr.KindNotFound {
			h.fail(c, err)
			return
		}
		h.redirectWith(c, FlashError, apperr.From(err).Message, homePath)
		return
	}
	h.redirectWith(c, FlashSuccess, fmt.Sprintf("Cliente %s foi excluído com sucesso!", cl.Name), homePath)
}

func (h *ClientHandler) DetailClient(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	d, err := h.Clients.Detail(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "detail_client.html", gin.H{"Client": d.Client, "Detail": d})
}

// BulkDeleteClients aceita client_ids[] ou client_ids.
func (h *ClientHandler) BulkDeleteClients(c *gin.Context) {
	ids := uintList(append(c.PostFormArray("client_ids[]"), c.PostFormArray("client_ids")...))
	if len(ids) == 0 {
		h.redirectWith(c, FlashWarning, "Nenhum cliente selecionado.", homePath)
		return
	}
	n, err := h.Clients.BulkDelete(c.Request.Context(), ids)
	if err != nil {
		h.redirectWith(c, FlashError, apperr.From(err).Message, homePath)
		return
	}
	h.redirectWith(c, FlashSuccess, fmt.Sprintf("%d cliente(s) excluído(s) com sucesso!", n), homePath)
}

func (h *ClientHandler) ShowManageUsers(c *gin.Context) {
	users, err := h.Accounts.AllUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	groups, err := h.Accounts.Groups(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "manage_users.html", gin.H{"Users": users, "Groups": groups})
}

// ProcessManageUsers troca os grupos do usuário pelos marcados.
func (h *ClientHandler) ProcessManageUsers(c *gin.Context) {
	const back = "/clients/manage_users/"
	userID, err := strconv.ParseUint(c.PostForm("user_id"), 10, 32)
	if err != nil {
		h.redirectWith(c, FlashError, "Erro ao atualizar grupos: usuário inválido.", back)
		return
	}
	u, err := h.Accounts.SetUserGroups(c.Request.Context(), uint(userID), uintList(c.PostFormArray("groups")))
	if err != nil {
		h.redirectWith(c, FlashError, apperr.From(err).Message, back)
		return
	}
	h.redirectWith(c, FlashSuccess, fmt.Sprintf("Grupos do usuário %s atualizados com sucesso!", u.Username), back)
}

// ClientPedidos lista os pedidos do cliente com o resumo por status.
func (h *ClientHandler) ClientPedidos(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	status, prioridade := c.Query("status"), c.Query("prioridade")
	res, err := h.Clients.Pedidos(c.Request.Context(), id, status, prioridade, pageNumber(c, clientPedidosPerPage))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "client_pedidos.html", gin.H{
		"Client":     res.Client,
		"Pedidos":    res.Pedidos,
		"Stats":      res.Stats,
		"PorStatus":  res.Status,
		"Status":     status,
		"Prioridade": prioridade,
		"Query":      queryWithoutPage(c),
		"Choices":    choices(),
	})
}

func (h *ClientHandler) ShowCreatePedidoForClient(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	cl, err := h.Clients.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "create_pedido.html", gin.H{
		"Client":  cl,
		"Form":    gin.H{"cliente": strconv.FormatUint(uint64(cl.ID), 10), "status": "pendente", "prioridade": "normal"},
		"Choices": choices(),
	})
}

func (h *ClientHandler) ProcessCreatePedidoForClient(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	cl, err := h.Clients.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	in, fields := pedidoInputFrom(c)
	if err = fields.Err(); err == nil {
		p, createErr := h.Pedidos.CreateForClient(c.Request.Context(), id, in)
		if createErr == nil {
			h.redirectWith(c, FlashSuccess, fmt.Sprintf("Pedido %s criado com sucesso!", p.NumeroPedido), fmt.Sprintf("/pedidos/%d/", p.ID))
			return
		}
		err = createErr
	}
	h.formFailed(c, err, "create_pedido.html", gin.H{"Client": cl, "Form": postedForm(c), "Choices": choices()})
}
