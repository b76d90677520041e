package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/middleware"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/permission"
	"github.com/ericoliveiras/gestao-clientes/internal/service"
)

const homePath = "/clients/"

type AuthHandler struct {
	Sessions
	Accounts *service.AccountService
}

// ShowRegisterPage renderiza a página de cadastro.
func (h *AuthHandler) ShowRegisterPage(c *gin.Context) {
	h.render(c, http.StatusOK, "register.html", nil)
}

// ProcessRegisterForm cadastra, faz o login e leva para a lista de clientes.
func (h *AuthHandler) ProcessRegisterForm(c *gin.Context) {
	u, err := h.Accounts.RegisterWeb(c.Request.Context(), service.WebRegisterInput{
		Name:            c.PostForm("name"),
		Email:           c.PostForm("email"),
		Password:        c.PostForm("password"),
		ConfirmPassword: c.PostForm("confirm_password"),
	})
	if err != nil {
		h.logIfInternal(c, err)
		h.redirectWith(c, FlashError, apperr.From(err).Message, "/auth/register/")
		return
	}
	h.login(c, u)
	h.redirectWith(c, FlashSuccess, "Conta criada com sucesso!", homePath)
}

// ShowLoginPage renderiza a página de login.
func (h *AuthHandler) ShowLoginPage(c *gin.Context) {
	h.render(c, http.StatusOK, "login.html", gin.H{"Next": c.Query("next")})
}

// ProcessLoginForm aceita username ou email.
func (h *AuthHandler) ProcessLoginForm(c *gin.Context) {
	u, err := h.Accounts.Authenticate(c.Request.Context(), c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		h.logIfInternal(c, err)
		h.redirectWith(c, FlashError, apperr.From(err).Message, "/auth/login/")
		return
	}
	h.login(c, u)
	h.redirectWith(c, FlashSuccess, "Login realizado com sucesso!", safeNext(c.PostForm("next")))
}

func (h *AuthHandler) login(c *gin.Context, u *model.Usuario) {
	session := h.get(c)
	session.Values[sessionUserID] = u.ID
	h.save(c, session)
}

// safeNext só aceita caminhos locais.
func safeNext(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return homePath
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := h.get(c)
	delete(session.Values, sessionUserID)
	session.AddFlash("Logout realizado com sucesso!", FlashSuccess)
	h.save(c, session)
	c.Redirect(http.StatusFound, "/auth/login/")
}

func (h *AuthHandler) logIfInternal(c *gin.Context, err error) {
	if apperr.From(err).Kind == apperr.KindInternal {
		h.logger().Error("erro na autenticação web", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
}

// AuthRequired carrega o usuário da sessão ou manda para o login.
func (h *AuthHandler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := h.get(c)
		userID, ok := session.Values[sessionUserID].(uint)
		if !ok {
			c.Redirect(http.StatusFound, loginURL(c))
			c.Abort()
			return
		}

		u, err := h.Accounts.UserByID(c.Request.Context(), userID)
		if err != nil || !u.IsActive {
			h.logger().Info("sessão de usuário inexistente ou inativo encerrada", zap.Uint("user_id", userID))
			delete(session.Values, sessionUserID)
			h.save(c, session)
			c.Redirect(http.StatusFound, loginURL(c))
			c.Abort()
			return
		}

		c.Set(contextUser, u)
		c.Set(middleware.UsernameKey, u.Username)
		c.Next()
	}
}

// Require barra com 403 quem não pertence a um grupo autorizado para a ação.
func (h *AuthHandler) Require(action permission.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !permission.Can(currentUser(c), action) {
			c.String(http.StatusForbidden, "Você não tem permissão para acessar esta página.")
			c.Abort()
			return
		}
		c.Next()
	}
}
