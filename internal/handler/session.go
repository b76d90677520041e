// Package handler implementa as páginas web, autenticadas por sessão em cookie.
package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/permission"
)

// Tipos de mensagem flash, também usados como classe CSS.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

var flashKinds = []string{FlashSuccess, FlashError, FlashWarning, FlashInfo}

const (
	sessionUserID = "userID"
	contextUser   = "user"
)

// Sessions guarda o store de cookies e o nome da sessão.
type Sessions struct {
	Store sessions.Store
	Name  string
	Log   *zap.Logger
}

func (s Sessions) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s Sessions) get(c *gin.Context) *sessions.Session {
	session, err := s.Store.Get(c.Request, s.Name)
	if err != nil {
		// Cookie inválido: segue com a sessão nova que o store devolve.
		s.logger().Debug("sessão inválida descartada", zap.Error(err))
	}
	return session
}

func (s Sessions) save(c *gin.Context, session *sessions.Session) {
	if err := session.Save(c.Request, c.Writer); err != nil {
		s.logger().Warn("erro ao salvar sessão", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
}

// flash grava uma mensagem para a próxima página renderizada.
func (s Sessions) flash(c *gin.Context, kind, msg string) {
	session := s.get(c)
	session.AddFlash(msg, kind)
	s.save(c, session)
}

// redirectWith grava a mensagem e redireciona.
func (s Sessions) redirectWith(c *gin.Context, kind, msg, location string) {
	s.flash(c, kind, msg)
	c.Redirect(http.StatusFound, location)
}

// Flash é uma mensagem já lida da sessão.
type Flash struct {
	Kind    string
	Message string
}

func (s Sessions) popFlashes(c *gin.Context) []Flash {
	session := s.get(c)
	var out []Flash
	for _, kind := range flashKinds {
		for _, msg := range session.Flashes(kind) {
			if text, ok := msg.(string); ok {
				out = append(out, Flash{Kind: kind, Message: text})
			}
		}
	}
	s.save(c, session)
	return out
}

// render acrescenta usuário, permissões e mensagens aos dados do template.
func (s Sessions) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	u := currentUser(c)
	data["IsLoggedIn"] = u != nil
	data["User"] = u
	data["Flags"] = permission.FlagsFor(u)
	data["Flashes"] = s.popFlashes(c)
	c.HTML(status, name, data)
}

// fail mostra a página de erro com o status do Kind.
func (s Sessions) fail(c *gin.Context, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		s.logger().Error("erro na página", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	s.render(c, e.StatusCode(), "error.html", gin.H{"Status": e.StatusCode(), "Message": e.Message})
	c.Abort()
}

func currentUser(c *gin.Context) *model.Usuario {
	v, ok := c.Get(contextUser)
	if !ok {
		return nil
	}
	u, _ := v.(*model.Usuario)
	return u
}

// idParam lê o :id da rota; inválido vira 404.
func (s Sessions) idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		s.fail(c, apperr.NotFound.Explain("Página não encontrada."))
		return 0, false
	}
	return uint(id), true
}

// formErrors separa os erros por campo para o template.
func formErrors(err error) map[string][]string {
	e := apperr.From(err)
	if len(e.Fields) > 0 {
		return e.Fields
	}
	return map[string][]string{apperr.NonFieldErrors: {e.Message}}
}

// uintList lê uma lista de ids do formulário, ignorando os inválidos.
func uintList(values []string) []uint {
	out := make([]uint, 0, len(values))
	for _, v := range values {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			out = append(out, uint(id))
		}
	}
	return out
}

// loginURL monta o redirecionamento para o login com o destino original.
func loginURL(c *gin.Context) string {
	next := c.Request.URL.RequestURI()
	return "/auth/login/?next=" + url.QueryEscape(next)
}
