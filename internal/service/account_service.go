package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/auth"
	"github.com/ericoliveiras/gestao-clientes/internal/mail"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/permission"
)

// Limites da foto de perfil.
const (
	MaxPhotoSize = 2 << 20
	PhotoDir     = "profile_photos"
	MediaURL     = "/media/"
)

var extensoesFoto = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true}

// ErrInvalidCredentials é devolvido para usuário inexistente, inativo ou senha errada.
var ErrInvalidCredentials = apperr.Unauthorized.Explain("Usuário ou senha inválida!")

// UserInfo são os dados do usuário devolvidos pela API.
type UserInfo struct {
	ID          uint       `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	Groups      []string   `json:"groups"`
	Permissions []string   `json:"permissions"`
	LastLogin   *time.Time `json:"last_login"`
	DateJoined  time.Time  `json:"date_joined"`
}

func NewUserInfo(u *model.Usuario) UserInfo {
	return UserInfo{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		Groups:      u.GroupNames(),
		Permissions: permission.UserPermissions(u),
		LastLogin:   u.LastLogin,
		DateJoined:  u.DateJoined,
	}
}

// ProfileDetails são os dados complementares do perfil.
type ProfileDetails struct {
	Bio             string    `json:"bio"`
	Phone           string    `json:"phone"`
	BirthDate       *string   `json:"birth_date"`
	ProfilePhotoURL *string   `json:"profile_photo_url"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CompleteProfile é o usuário com o perfil embutido.
type CompleteProfile struct {
	ID         uint            `json:"id"`
	Username   string          `json:"username"`
	Email      string          `json:"email"`
	FirstName  string          `json:"first_name"`
	LastName   string          `json:"last_name"`
	FullName   string          `json:"full_name"`
	IsActive   bool            `json:"is_active"`
	DateJoined time.Time       `json:"date_joined"`
	LastLogin  *time.Time      `json:"last_login"`
	Groups     []string        `json:"groups"`
	Profile    *ProfileDetails `json:"profile"`
}

func newProfileDetails(p *model.UserProfile) *ProfileDetails {
	if p == nil {
		return nil
	}
	d := &ProfileDetails{Bio: p.Bio, Phone: p.Phone, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
	if p.BirthDate != nil {
		s := p.BirthDate.Format("2006-01-02")
		d.BirthDate = &s
	}
	if p.ProfilePhoto != "" {
		url := MediaURL + p.ProfilePhoto
		d.ProfilePhotoURL = &url
	}
	return d
}

func newCompleteProfile(u *model.Usuario) *CompleteProfile {
	return &CompleteProfile{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		FullName:   strings.TrimSpace(u.FirstName + " " + u.LastName),
		IsActive:   u.IsActive,
		DateJoined: u.DateJoined,
		LastLogin:  u.LastLogin,
		Groups:     u.GroupNames(),
		Profile:    newProfileDetails(u.Profile),
	}
}

// WebRegisterInput é o formulário de cadastro das páginas web.
type WebRegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// RegisterInput é o cadastro pela API.
type RegisterInput struct {
	Username        string `json:"username" validate:"required,max=150"`
	Email           string `json:"email" validate:"required,email"`
	FirstName       string `json:"first_name" validate:"max=150"`
	LastName        string `json:"last_name" validate:"max=150"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
}

var registerMessages = map[string]string{
	"username.required":         "Este campo é obrigatório.",
	"username.max":              "Certifique-se de que este campo não tenha mais de 150 caracteres.",
	"email.required":            "Este campo é obrigatório.",
	"email.email":               "Insira um endereço de email válido.",
	"first_name.max":            "Certifique-se de que este campo não tenha mais de 150 caracteres.",
	"last_name.max":             "Certifique-se de que este campo não tenha mais de 150 caracteres.",
	"password.required":         "Este campo é obrigatório.",
	"password.min":              "Certifique-se de que este campo tenha mais de 8 caracteres.",
	"password_confirm.required": "Este campo é obrigatório.",
}

// LoginResult é a resposta do login pela API.
type LoginResult struct {
	Access    string   `json:"access"`
	Refresh   string   `json:"refresh"`
	User      UserInfo `json:"user"`
	Message   string   `json:"message"`
	ExpiresIn int      `json:"expires_in"`
}

// VerifyResult é a resposta da verificação de token.
type VerifyResult struct {
	Valid     bool       `json:"valid"`
	User      VerifyUser `json:"user"`
	ExpiresAt int64      `json:"expires_at"`
}

type VerifyUser struct {
	ID       uint     `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Groups   []string `json:"groups"`
}

// ProfilePatch é a atualização parcial do usuário e do perfil.
type ProfilePatch struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Bio       *string `json:"bio"`
	Phone     *string `json:"phone"`
	BirthDate *string `json:"birth_date"`
}

// OnlyProfile descarta os campos do usuário.
func (p ProfilePatch) OnlyProfile() ProfilePatch {
	return ProfilePatch{Bio: p.Bio, Phone: p.Phone, BirthDate: p.BirthDate}
}

type ChangePasswordInput struct {
	OldPassword        string `json:"old_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required,min=8"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required"`
}

type ResetConfirmInput struct {
	Token              string `json:"token" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required,min=8"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required"`
}

var passwordMessages = map[string]string{
	"old_password.required":         "Este campo é obrigatório.",
	"new_password.required":         "Este campo é obrigatório.",
	"new_password.min":              "Certifique-se de que este campo tenha mais de 8 caracteres.",
	"new_password_confirm.required": "Este campo é obrigatório.",
	"token.required":                "Este campo é obrigatório.",
}

// UserFilter são os filtros da listagem de usuários.
type UserFilter struct {
	Search   string
	Ordering string
}

var userOrdering = map[string]string{
	"username":    "username",
	"email":       "email",
	"date_joined": "date_joined",
}

// GroupInfo é o grupo com suas permissões.
type GroupInfo struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

type AccountService struct {
	db        *gorm.DB
	tokens    *auth.TokenService
	mailer    mail.Mailer
	mediaRoot string
	clock     Clock
}

func NewAccountService(db *gorm.DB, tokens *auth.TokenService, mailer mail.Mailer, mediaRoot string, clock Clock) *AccountService {
	return &AccountService{db: db, tokens: tokens, mailer: mailer, mediaRoot: mediaRoot, clock: clock}
}

// UserByID carrega o usuário com grupos e perfil.
func (s *AccountService) UserByID(ctx context.Context, id uint) (*model.Usuario, error) {
	var u model.Usuario
	if err := s.db.WithContext(ctx).Preload("Grupos").Preload("Profile").First(&u, id).Error; err != nil {
		return nil, notFound(err, "Usuário não encontrado.")
	}
	return &u, nil
}

func (s *AccountService) exists(ctx context.Context, column, value string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Usuario{}).Where("LOWER("+column+") = ?", strings.ToLower(value)).Count(&n).Error
	if err != nil {
		return false, apperr.Internal.Wrap(err)
	}
	return n > 0, nil
}

func (s *AccountService) createUser(ctx context.Context, u *model.Usuario, senha string) error {
	hash, err := auth.HashPassword(senha)
	if err != nil {
		return apperr.Internal.Wrap(err)
	}
	u.SenhaHash = hash
	u.IsActive = true
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g model.Grupo
		if err := tx.Where(model.Grupo{Name: model.GrupoFuncionarios}).FirstOrCreate(&g).Error; err != nil {
			return err
		}
		u.Grupos = []model.Grupo{g}
		return tx.Create(u).Error
	})
}

// RegisterWeb cadastra pelo formulário web. O nome vira o username.
func (s *AccountService) RegisterWeb(ctx context.Context, in WebRegisterInput) (*model.Usuario, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" || in.Password == "" {
		return nil, apperr.Invalid.Explain("Por favor, preencha todos os campos!")
	}
	taken, err := s.exists(ctx, "email", email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Invalid.Explain("Este email já foi cadastrado. Tente um diferente!")
	}
	if taken, err = s.exists(ctx, "username", name); err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Invalid.Explain("Este nome de usuário já foi cadastrado. Tente um diferente!")
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperr.Invalid.Explain("As passwords são diferentes!")
	}
	if len(in.Password) < auth.MinPasswordLength {
		return nil, apperr.Invalid.Explain("A password deve ter pelo menos 8 caracteres!")
	}

	u := &model.Usuario{Username: name, Email: email}
	if err := s.createUser(ctx, u, in.Password); err != nil {
		return nil, apperr.Internal.Explain("Erro: %s", err).Wrap(err)
	}
	return s.UserByID(ctx, u.ID)
}

// Register cadastra pela API, no grupo Funcionários, e emite os tokens.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.Usuario, *auth.TokenPair, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	fields := apperr.FieldSet{}
	checkStruct(in, registerMessages, fields)
	if !fields.Has("username") {
		taken, err := s.exists(ctx, "username", in.Username)
		if err != nil {
			return nil, nil, err
		}
		if taken {
			fields.Add("username", "Este nome de usuário já está em uso.")
		}
	}
	if !fields.Has("email") {
		taken, err := s.exists(ctx, "email", in.Email)
		if err != nil {
			return nil, nil, err
		}
		if taken {
			fields.Add("email", "Este email já está em uso.")
		}
	}
	if !fields.Has("password") && !fields.Has("password_confirm") && in.Password != in.PasswordConfirm {
		fields.Add("password_confirm", "As senhas não coincidem.")
	}
	if err := fields.Err(); err != nil {
		return nil, nil, err
	}

	u := &model.Usuario{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	}
	if err := s.createUser(ctx, u, in.Password); err != nil {
		return nil, nil, apperr.Internal.Wrap(err)
	}
	u, err := s.UserByID(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	pair, err := s.tokens.Issue(u)
	if err != nil {
		return nil, nil, apperr.Internal.Wrap(err)
	}
	return u, pair, nil
}

// Authenticate aceita username ou email e registra o último login.
func (s *AccountService) Authenticate(ctx context.Context, identifier, senha string) (*model.Usuario, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || senha == "" {
		return nil, apperr.Invalid.Explain("Por favor, preencha todos os campos!")
	}
	var u model.Usuario
	err := s.db.WithContext(ctx).Preload("Grupos").Preload("Profile").
		Where("username = ? OR LOWER(email) = ?", identifier, strings.ToLower(identifier)).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	if !u.IsActive || !auth.CheckPassword(u.SenhaHash, senha) {
		return nil, ErrInvalidCredentials
	}
	now := s.clock.now()
	if err := s.db.WithContext(ctx).Model(&u).UpdateColumn("last_login", now).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	u.LastLogin = &now
	return &u, nil
}

// Login autentica e emite o par de tokens da API.
func (s *AccountService) Login(ctx context.Context, identifier, senha string) (*LoginResult, error) {
	u, err := s.Authenticate(ctx, identifier, senha)
	if err != nil {
		return nil, err
	}
	pair, err := s.tokens.Issue(u)
	if err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	return &LoginResult{
		Access:    pair.Access,
		Refresh:   pair.Refresh,
		User:      NewUserInfo(u),
		Message:   "Login realizado com sucesso",
		ExpiresIn: int(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Refresh emite um novo token de acesso a partir do refresh token.
func (s *AccountService) Refresh(ctx context.Context, refresh string) (string, error) {
	invalid := apperr.Unauthorized.Explain("Token inválido")
	claims, err := s.tokens.ParseRefresh(ctx, refresh)
	if err != nil {
		return "", invalid.Wrap(err)
	}
	u, err := s.UserByID(ctx, claims.UserID)
	if err != nil || !u.IsActive {
		return "", invalid
	}
	access, _, err := s.tokens.IssueAccess(u)
	if err != nil {
		return "", apperr.Internal.Wrap(err)
	}
	return access, nil
}

// Logout revoga o refresh token até a sua expiração.
func (s *AccountService) Logout(ctx context.Context, refresh string) error {
	if strings.TrimSpace(refresh) == "" {
		return apperr.Invalid.Explain("Refresh token é obrigatório")
	}
	if err := s.tokens.RevokeRefresh(ctx, refresh); err != nil {
		return apperr.Invalid.Explain("Token inválido").Wrap(err)
	}
	return nil
}

// Verify valida um token de acesso e devolve o dono.
func (s *AccountService) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperr.Invalid.Explain("Token é obrigatório")
	}
	claims, err := s.tokens.ParseAccess(ctx, token)
	if errors.Is(err, auth.ErrTokenExpired) {
		return nil, apperr.Unauthorized.Explain("Token expirado")
	}
	if err != nil {
		return nil, apperr.Unauthorized.Explain("Token inválido").Wrap(err)
	}
	u, err := s.UserByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperr.Unauthorized.Explain("Token inválido")
	}
	return &VerifyResult{
		Valid:     true,
		User:      VerifyUser{ID: u.ID, Username: u.Username, Email: u.Email, Groups: u.GroupNames()},
		ExpiresAt: claims.ExpiresAt.Unix(),
	}, nil
}

// Profile devolve o usuário com o perfil.
func (s *AccountService) Profile(ctx context.Context, userID uint) (*CompleteProfile, error) {
	u, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newCompleteProfile(u), nil
}

// ProfileDetails devolve só o perfil estendido, criando-o se ainda não existir.
func (s *AccountService) ProfileDetails(ctx context.Context, userID uint) (*ProfileDetails, error) {
	if _, err := s.UserByID(ctx, userID); err != nil {
		return nil, err
	}
	prof, err := ensureProfile(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	return newProfileDetails(prof), nil
}

// UpdateProfile aplica os campos informados no usuário e no perfil, criando o perfil se preciso.
func (s *AccountService) UpdateProfile(ctx context.Context, userID uint, p ProfilePatch) (*CompleteProfile, error) {
	u, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	fields := apperr.FieldSet{}
	userUpdates := map[string]any{}
	if p.FirstName != nil {
		if len([]rune(*p.FirstName)) > 150 {
			fields.Add("first_name", "Certifique-se de que este campo não tenha mais de 150 caracteres.")
		}
		userUpdates["first_name"] = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		if len([]rune(*p.LastName)) > 150 {
			fields.Add("last_name", "Certifique-se de que este campo não tenha mais de 150 caracteres.")
		}
		userUpdates["last_name"] = strings.TrimSpace(*p.LastName)
	}
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		if err := validate.Var(email, "required,email"); err != nil {
			fields.Add("email", "Insira um endereço de email válido.")
		} else if email != strings.ToLower(u.Email) {
			taken, err := s.exists(ctx, "email", email)
			if err != nil {
				return nil, err
			}
			if taken {
				fields.Add("email", "Este email já está em uso.")
			}
		}
		userUpdates["email"] = email
	}

	profileUpdates := map[string]any{}
	if p.Bio != nil {
		if len([]rune(*p.Bio)) > 500 {
			fields.Add("bio", "Certifique-se de que este campo não tenha mais de 500 caracteres.")
		}
		profileUpdates["bio"] = *p.Bio
	}
	if p.Phone != nil {
		if len([]rune(*p.Phone)) > 20 {
			fields.Add("phone", "Certifique-se de que este campo não tenha mais de 20 caracteres.")
		}
		profileUpdates["phone"] = strings.TrimSpace(*p.Phone)
	}
	if p.BirthDate != nil {
		d, err := ParseDate(*p.BirthDate, time.UTC)
		if err != nil {
			fields.Add("birth_date", "Formato inválido para data. Use um dos formatos a seguir: YYYY-MM-DD.")
		}
		profileUpdates["birth_date"] = d
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(userUpdates) > 0 {
			if err := tx.Model(&model.Usuario{ID: u.ID}).Updates(userUpdates).Error; err != nil {
				return err
			}
		}
		if len(profileUpdates) > 0 {
			prof, err := ensureProfile(tx, u.ID)
			if err != nil {
				return err
			}
			return tx.Model(prof).Updates(profileUpdates).Error
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal.Explain("Erro ao atualizar perfil: %s", err).Wrap(err)
	}
	return s.Profile(ctx, userID)
}

func ensureProfile(tx *gorm.DB, userID uint) (*model.UserProfile, error) {
	prof := &model.UserProfile{}
	if err := tx.Where(model.UserProfile{UserID: userID}).FirstOrCreate(prof).Error; err != nil {
		return nil, err
	}
	return prof, nil
}

// UploadPhoto grava a foto como profile_photos/user_<id>_profile.<ext> e remove a anterior.
func (s *AccountService) UploadPhoto(ctx context.Context, userID uint, filename string, size int64, r io.Reader) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !extensoesFoto[ext] {
		return "", apperr.Invalid.WithField("profile_image", "Formato não suportado. Use JPG, JPEG, PNG ou GIF.")
	}
	if size > MaxPhotoSize {
		return "", apperr.Invalid.WithField("profile_image", "A imagem não pode ter mais de 2MB.")
	}

	dir := filepath.Join(s.mediaRoot, PhotoDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.Internal.Wrap(err)
	}
	rel := filepath.ToSlash(filepath.Join(PhotoDir, fmt.Sprintf("user_%d_profile.%s", userID, ext)))

	tmp := filepath.Join(dir, ".upload-"+uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return "", apperr.Internal.Wrap(err)
	}
	n, err := io.Copy(f, io.LimitReader(r, MaxPhotoSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxPhotoSize {
		_ = os.Remove(tmp)
		return "", apperr.Invalid.WithField("profile_image", "A imagem não pode ter mais de 2MB.")
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", apperr.Internal.Wrap(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prof, err := ensureProfile(tx, userID)
		if err != nil {
			return err
		}
		if prof.ProfilePhoto != "" && prof.ProfilePhoto != rel {
			_ = os.Remove(filepath.Join(s.mediaRoot, filepath.FromSlash(prof.ProfilePhoto)))
		}
		if err := os.Rename(tmp, filepath.Join(s.mediaRoot, filepath.FromSlash(rel))); err != nil {
			return err
		}
		return tx.Model(prof).Update("profile_photo", rel).Error
	})
	if err != nil {
		_ = os.Remove(tmp)
		return "", apperr.Internal.Explain("Erro ao salvar imagem: %s", err).Wrap(err)
	}
	return MediaURL + rel, nil
}

// DeletePhoto remove o arquivo e limpa o campo do perfil.
func (s *AccountService) DeletePhoto(ctx context.Context, userID uint) error {
	var prof model.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&prof).Error
	if err != nil {
		return notFound(err, "Perfil não encontrado")
	}
	if prof.ProfilePhoto == "" {
		return apperr.NotFound.Explain("Usuário não possui imagem de perfil")
	}
	if err := os.Remove(filepath.Join(s.mediaRoot, filepath.FromSlash(prof.ProfilePhoto))); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Internal.Wrap(err)
	}
	if err := s.db.WithContext(ctx).Model(&prof).Update("profile_photo", "").Error; err != nil {
		return apperr.Internal.Wrap(err)
	}
	return nil
}

func (s *AccountService) setPassword(ctx context.Context, userID uint, senha string) error {
	hash, err := auth.HashPassword(senha)
	if err != nil {
		return apperr.Internal.Wrap(err)
	}
	if err := s.db.WithContext(ctx).Model(&model.Usuario{ID: userID}).Update("senha_hash", hash).Error; err != nil {
		return apperr.Internal.Wrap(err)
	}
	return nil
}

// ChangePassword troca a senha conferindo a atual.
func (s *AccountService) ChangePassword(ctx context.Context, userID uint, in ChangePasswordInput) error {
	u, err := s.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	fields := apperr.FieldSet{}
	checkStruct(in, passwordMessages, fields)
	if !fields.Has("old_password") && !auth.CheckPassword(u.SenhaHash, in.OldPassword) {
		fields.Add("old_password", "Senha atual incorreta.")
	}
	if !fields.Has("new_password") && !fields.Has("new_password_confirm") && in.NewPassword != in.NewPasswordConfirm {
		fields.Add("new_password_confirm", "As senhas não coincidem.")
	}
	if err := fields.Err(); err != nil {
		return err
	}
	return s.setPassword(ctx, userID, in.NewPassword)
}

// RequestPasswordReset gera o token de redefinição e envia por email.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return apperr.Invalid.WithField("email", "Insira um endereço de email válido.")
	}
	var u model.Usuario
	err := s.db.WithContext(ctx).Where("LOWER(email) = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Invalid.WithField("email", "Usuário com este email não encontrado.")
	}
	if err != nil {
		return apperr.Internal.Wrap(err)
	}
	token, err := s.tokens.NewResetToken(ctx, u.ID)
	if err != nil {
		return apperr.Internal.Wrap(err)
	}
	body := "Use este token para resetar sua senha: " + token
	if err := s.mailer.Send(ctx, u.Email, "Reset de Senha - Sistema de Clientes", body); err != nil {
		return apperr.Internal.Explain("Erro ao enviar email").Wrap(err)
	}
	return nil
}

// ConfirmPasswordReset troca a senha usando o token recebido por email.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, in ResetConfirmInput) error {
	fields := apperr.FieldSet{}
	checkStruct(in, passwordMessages, fields)
	if !fields.Has("new_password") && !fields.Has("new_password_confirm") && in.NewPassword != in.NewPasswordConfirm {
		fields.Add("new_password_confirm", "As senhas não coincidem.")
	}
	if err := fields.Err(); err != nil {
		return err
	}
	userID, err := s.tokens.ConsumeResetToken(ctx, strings.TrimSpace(in.Token))
	if errors.Is(err, auth.ErrTokenInvalid) {
		return apperr.Invalid.WithField("token", "Token inválido ou expirado.")
	}
	if err != nil {
		return apperr.Internal.Wrap(err)
	}
	return s.setPassword(ctx, userID, in.NewPassword)
}

// Users lista os usuários com seus grupos.
func (s *AccountService) Users(ctx context.Context, f UserFilter, page Page) (PageResult[model.Usuario], error) {
	q := s.db.WithContext(ctx).Model(&model.Usuario{}).Preload("Grupos")
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like, like)
	}
	return paginate[model.Usuario](q.Order(ordering(f.Ordering, userOrdering, "username ASC")), page)
}

// AllUsers devolve todos os usuários, para a tela de gestão de grupos.
func (s *AccountService) AllUsers(ctx context.Context) ([]model.Usuario, error) {
	var users []model.Usuario
	if err := s.db.WithContext(ctx).Preload("Grupos").Order("username").Find(&users).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	return users, nil
}

func (s *AccountService) Groups(ctx context.Context) ([]GroupInfo, error) {
	var grupos []model.Grupo
	if err := s.db.WithContext(ctx).Order("id").Find(&grupos).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	out := make([]GroupInfo, 0, len(grupos))
	for _, g := range grupos {
		perms := g.PermissionList()
		if perms == nil {
			perms = []string{}
		}
		out = append(out, GroupInfo{ID: g.ID, Name: g.Name, Permissions: perms})
	}
	return out, nil
}

func (s *AccountService) Group(ctx context.Context, id uint) (*GroupInfo, error) {
	var g model.Grupo
	if err := s.db.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, notFound(err, "Grupo não encontrado.")
	}
	perms := g.PermissionList()
	if perms == nil {
		perms = []string{}
	}
	return &GroupInfo{ID: g.ID, Name: g.Name, Permissions: perms}, nil
}

// SetUserGroups substitui os grupos do usuário pelos informados.
func (s *AccountService) SetUserGroups(ctx context.Context, userID uint, groupIDs []uint) (*model.Usuario, error) {
	u, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	var grupos []model.Grupo
	if len(groupIDs) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", groupIDs).Find(&grupos).Error; err != nil {
			return nil, apperr.Internal.Wrap(err)
		}
		if len(grupos) != len(uniqueIDs(groupIDs)) {
			return nil, apperr.Invalid.Explain("Erro ao atualizar grupos: grupo inexistente.")
		}
	}
	if err := s.db.WithContext(ctx).Model(u).Association("Grupos").Replace(grupos); err != nil {
		return nil, apperr.Internal.Explain("Erro ao atualizar grupos: %s", err).Wrap(err)
	}
	return s.UserByID(ctx, userID)
}

func uniqueIDs(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
