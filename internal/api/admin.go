package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ericoliveiras/gestao-clientes/internal/service"
)

// ListUsers é a listagem de usuários, só leitura.
func (h *Handler) ListUsers(c *gin.Context) {
	f := service.UserFilter{Search: c.Query("search"), Ordering: c.Query("ordering")}
	res, err := h.accounts.Users(c.Request.Context(), f, pageFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(c, res, newUserDTO))
}

func (h *Handler) GetUser(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	u, err := h.accounts.UserByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserDTO(*u))
}

func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.accounts.Groups(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *Handler) GetGroup(c *gin.Context) {
	id, found := h.idParam(c)
	if !found {
		return
	}
	g, err := h.accounts.Group(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}
