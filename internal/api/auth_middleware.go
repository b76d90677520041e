package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/auth"
	"github.com/ericoliveiras/gestao-clientes/internal/middleware"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/permission"
)

const userKey = "api_user"

// Authenticate exige um token de acesso válido em Authorization: Bearer.
func (h *Handler) Authenticate(c *gin.Context) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		h.respondError(c, apperr.Unauthorized.Explain("As credenciais de autenticação não foram fornecidas."))
		return
	}
	if !strings.HasPrefix(header, "Bearer ") {
		h.respondError(c, apperr.Unauthorized.Explain("Token inválido"))
		return
	}

	claims, err := h.tokens.ParseAccess(c.Request.Context(), header)
	if errors.Is(err, auth.ErrTokenExpired) {
		h.respondError(c, apperr.Unauthorized.Explain("Token expirado"))
		return
	}
	if err != nil {
		h.respondError(c, apperr.Unauthorized.Explain("Token inválido").Wrap(err))
		return
	}

	u, err := h.accounts.UserByID(c.Request.Context(), claims.UserID)
	if err != nil || !u.IsActive {
		h.respondError(c, apperr.Unauthorized.Explain("Usuário não encontrado"))
		return
	}
	c.Set(userKey, u)
	c.Set(middleware.UsernameKey, u.Username)
	c.Next()
}

// Require barra quem não pertence a um grupo autorizado para a ação.
func (h *Handler) Require(action permission.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !permission.Can(currentUser(c), action) {
			h.respondError(c, apperr.Forbidden.Explain("Você não tem permissão para executar essa ação."))
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *model.Usuario {
	u, _ := c.MustGet(userKey).(*model.Usuario)
	return u
}
