package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/service"
)

// Paginated é o envelope das listagens paginadas.
type Paginated[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// paginated converte uma página do serviço, montando os links next/previous.
func paginated[S, T any](c *gin.Context, res service.PageResult[S], conv func(S) T) Paginated[T] {
	out := Paginated[T]{Count: res.Total, Results: make([]T, 0, len(res.Items))}
	for _, item := range res.Items {
		out.Results = append(out.Results, conv(item))
	}
	if res.HasNext() {
		link := pageLink(c, res.NextNumber())
		out.Next = &link
	}
	if res.HasPrevious() {
		link := pageLink(c, res.PrevNumber())
		out.Previous = &link
	}
	return out
}

func pageLink(c *gin.Context, number int) string {
	u := *c.Request.URL
	q := u.Query()
	if number == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}
	u.RawQuery = q.Encode()
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: c.Request.Host, Path: u.Path, RawQuery: u.RawQuery}).String()
}

// pageFrom lê page e page_size; valores inválidos usam o padrão.
func pageFrom(c *gin.Context) service.Page {
	p := service.Page{Number: 1, Size: service.DefaultPageSize}
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(c.Query("page_size")); err == nil && n > 0 {
		p.Size = min(n, service.MaxPageSize)
	}
	return p
}

// respondError traduz o erro para {"error", "fields"} com o status do Kind.
func (h *Handler) respondError(c *gin.Context, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		h.log.Error("erro na API",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Error(err),
		)
	}
	body := gin.H{"error": e.Message}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(e.StatusCode(), body)
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	h.respondError(c, apperr.Invalid.Explain("%s", msg))
}

// bindJSON lê o corpo; JSON malformado vira 400.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.badRequest(c, "JSON inválido: "+err.Error())
		return false
	}
	return true
}

// idParam lê o :id da rota.
func (h *Handler) idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		h.respondError(c, apperr.NotFound.Explain("Não encontrado."))
		return 0, false
	}
	return uint(id), true
}

func message(c *gin.Context, status int, msg string, extra gin.H) {
	body := gin.H{"message": msg}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func ok(c *gin.Context, msg string, extra gin.H) {
	message(c, http.StatusOK, msg, extra)
}
