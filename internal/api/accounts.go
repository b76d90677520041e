package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/service"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login aceita username ou email no campo username.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bindJSON(c, &req) {
		return
	}
	access, err := h.accounts.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, "Token atualizado com sucesso", gin.H{
		"access":     access,
		"expires_in": int(h.tokens.AccessTTL().Seconds()),
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout revoga o refresh token informado.
func (h *Handler) Logout(c *gin.Context) {
	var req logoutRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.accounts.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, "Logout realizado com sucesso", nil)
}

func (h *Handler) Register(c *gin.Context) {
	var in service.RegisterInput
	if !h.bindJSON(c, &in) {
		return
	}
	u, pair, err := h.accounts.Register(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	message(c, http.StatusCreated, "Usuário registrado com sucesso", gin.H{
		"user": gin.H{
			"id":         u.ID,
			"username":   u.Username,
			"email":      u.Email,
			"first_name": u.FirstName,
			"last_name":  u.LastName,
		},
		"tokens": gin.H{
			"refresh": pair.Refresh,
			"access":  pair.Access,
		},
	})
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (h *Handler) VerifyToken(c *gin.Context) {
	var req verifyRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.accounts.Verify(c.Request.Context(), req.Token)
	if err != nil {
		e := apperr.From(err)
		if e.Kind == apperr.KindUnauthorized {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"valid": false, "error": e.Message})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UserInfo(c *gin.Context) {
	c.JSON(http.StatusOK, service.NewUserInfo(currentUser(c)))
}

func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.accounts.Profile(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateProfile aceita campos do usuário e do perfil no mesmo corpo.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var patch service.ProfilePatch
	if !h.bindJSON(c, &patch) {
		return
	}
	p, err := h.accounts.UpdateProfile(c.Request.Context(), currentUser(c).ID, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, "Perfil atualizado com sucesso", gin.H{"user": p})
}

func (h *Handler) GetProfileDetails(c *gin.Context) {
	p, err := h.accounts.ProfileDetails(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateProfileDetails altera só bio, telefone e data de nascimento.
func (h *Handler) UpdateProfileDetails(c *gin.Context) {
	var patch service.ProfilePatch
	if !h.bindJSON(c, &patch) {
		return
	}
	p, err := h.accounts.UpdateProfile(c.Request.Context(), currentUser(c).ID, patch.OnlyProfile())
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, "Perfil atualizado com sucesso", gin.H{"profile": p.Profile})
}

func (h *Handler) UploadProfileImage(c *gin.Context) {
	fh, err := c.FormFile("profile_image")
	if err != nil {
		h.respondError(c, apperr.Invalid.WithField("profile_image", "Nenhum arquivo foi submetido."))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.respondError(c, apperr.Internal.Wrap(err))
		return
	}
	defer f.Close()

	url, err := h.accounts.UploadPhoto(c.Request.Context(), currentUser(c).ID, fh.Filename, fh.Size, f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, "Imagem de perfil atualizada com sucesso", gin.H{"profile_image_url": url})
}

func (h *Handler) DeleteProfileImage(c *gin.Context) {
	if err := h.accounts.DeletePhoto(c.Request.Context(), currentUser(c).ID); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, "Imagem de perfil removida com sucesso", nil)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var in service.ChangePasswordInput
	if !h.bindJSON(c, &in) {
		return
	}
	if err := h.accounts.ChangePassword(c.Request.Context(), currentUser(c).ID, in); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, "Senha alterada com sucesso", nil)
}

type resetRequest struct {
	Email string `json:"email"`
}

func (h *Handler) PasswordReset(c *gin.Context) {
	var req resetRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, "Email de reset enviado com sucesso", nil)
}

func (h *Handler) PasswordResetConfirm(c *gin.Context) {
	var in service.ResetConfirmInput
	if !h.bindJSON(c, &in) {
		return
	}
	if err := h.accounts.ConfirmPasswordReset(c.Request.Context(), in); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, "Senha redefinida com sucesso", nil)
}
