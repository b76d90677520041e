package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/auth"
	"github.com/ericoliveiras/gestao-clientes/internal/cache"
	"github.com/ericoliveiras/gestao-clientes/internal/config"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/testutil"
)

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

type accountFixture struct {
	db     *gorm.DB
	svc    *AccountService
	tokens *auth.TokenService
	mailer *fakeMailer
	media  string
	now    *time.Time
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	db := testutil.NewDB(t)
	now := time.Now()
	store := cache.NewMemoryStore().WithClock(func() time.Time { return now })
	tokens, err := auth.NewTokenService(config.JWTConfig{
		Secret:        "segredo",
		RefreshSecret: "segredo-refresh",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "gestao-clientes",
	}, store)
	require.NoError(t, err)
	tokens.WithClock(func() time.Time { return now })
	mailer := &fakeMailer{}
	media := t.TempDir()
	return &accountFixture{
		db:     db,
		svc:    NewAccountService(db, tokens, mailer, media, func() time.Time { return now }),
		tokens: tokens,
		mailer: mailer,
		media:  media,
		now:    &now,
	}
}

func TestRegisterWeb(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	u, err := f.svc.RegisterWeb(ctx, WebRegisterInput{Name: "maria", Email: "Maria@Empresa.com", Password: "senhaforte123", ConfirmPassword: "senhaforte123"})
	require.NoError(t, err)
	assert.Equal(t, "maria", u.Username)
	assert.Equal(t, "maria@empresa.com", u.Email)
	assert.True(t, u.InGroup(model.GrupoFuncionarios))

	cases := []struct {
		name string
		in   WebRegisterInput
		msg  string
	}{
		{"email repetido", WebRegisterInput{Name: "outra", Email: "maria@empresa.com", Password: "senhaforte123", ConfirmPassword: "senhaforte123"}, "Este email já foi cadastrado. Tente um diferente!"},
		{"usuário repetido", WebRegisterInput{Name: "maria", Email: "m2@empresa.com", Password: "senhaforte123", ConfirmPassword: "senhaforte123"}, "Este nome de usuário já foi cadastrado. Tente um diferente!"},
		{"senhas diferentes", WebRegisterInput{Name: "joao", Email: "joao@empresa.com", Password: "senhaforte123", ConfirmPassword: "outrasenha123"}, "As passwords são diferentes!"},
		{"senha curta", WebRegisterInput{Name: "joao", Email: "joao@empresa.com", Password: "curta", ConfirmPassword: "curta"}, "A password deve ter pelo menos 8 caracteres!"},
		{"campos vazios", WebRegisterInput{Name: "joao"}, "Por favor, preencha todos os campos!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RegisterWeb(ctx, tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.msg, apperr.From(err).Message)
		})
	}
}

func TestAuthenticateByUsernameOrEmail(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	testutil.CreateUser(t, f.db, "carlos", model.GrupoGerentes)

	u, err := f.svc.Authenticate(ctx, "carlos", testutil.Password)
	require.NoError(t, err)
	require.NotNil(t, u.LastLogin)
	assert.True(t, u.InGroup(model.GrupoGerentes))

	_, err = f.svc.Authenticate(ctx, "CARLOS@empresa.com", testutil.Password)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, "carlos", "errada123")
	assert.ErrorIs(t, err, apperr.Unauthorized)
	assert.Equal(t, "Usuário ou senha inválida!", apperr.From(err).Message)

	_, err = f.svc.Authenticate(ctx, "ninguem", testutil.Password)
	assert.ErrorIs(t, err, apperr.Unauthorized)

	require.NoError(t, f.db.Model(&model.Usuario{}).Where("username = ?", "carlos").Update("is_active", false).Error)
	_, err = f.svc.Authenticate(ctx, "carlos", testutil.Password)
	assert.ErrorIs(t, err, apperr.Unauthorized)
}

func TestLoginRefreshLogoutVerify(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	testutil.CreateUser(t, f.db, "admin", model.GrupoAdministradores)

	res, err := f.svc.Login(ctx, "admin", testutil.Password)
	require.NoError(t, err)
	assert.Equal(t, "Login realizado com sucesso", res.Message)
	assert.Equal(t, 3600, res.ExpiresIn)
	assert.Equal(t, []string{"all"}, res.User.Permissions)
	assert.NotEmpty(t, res.Refresh)

	access, err := f.svc.Refresh(ctx, res.Refresh)
	require.NoError(t, err)
	claims, err := f.tokens.ParseAccess(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	v, err := f.svc.Verify(ctx, "Bearer "+res.Access)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, []string{model.GrupoAdministradores}, v.User.Groups)

	err = f.svc.Logout(ctx, "")
	assert.Equal(t, "Refresh token é obrigatório", apperr.From(err).Message)

	require.NoError(t, f.svc.Logout(ctx, res.Refresh))
	_, err = f.svc.Refresh(ctx, res.Refresh)
	assert.ErrorIs(t, err, apperr.Unauthorized)

	err = f.svc.Logout(ctx, "lixo")
	assert.Equal(t, "Token inválido", apperr.From(err).Message)

	_, err = f.svc.Verify(ctx, "")
	assert.Equal(t, "Token é obrigatório", apperr.From(err).Message)

	*f.now = f.now.Add(2 * time.Hour)
	_, err = f.svc.Verify(ctx, res.Access)
	assert.Equal(t, "Token expirado", apperr.From(err).Message)
}

func TestRegisterAPI(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	u, pair, err := f.svc.Register(ctx, RegisterInput{
		Username: "novo", Email: "novo@empresa.com", FirstName: "Novo", LastName: "Usuário",
		Password: "senhaforte123", PasswordConfirm: "senhaforte123",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{model.GrupoFuncionarios}, u.GroupNames())
	assert.NotEmpty(t, pair.Access)

	_, _, err = f.svc.Register(ctx, RegisterInput{
		Username: "novo", Email: "NOVO@empresa.com", Password: "curta", PasswordConfirm: "outra",
	})
	fields := fieldsOf(t, err)
	assert.Equal(t, []string{"Este nome de usuário já está em uso."}, fields["username"])
	assert.Equal(t, []string{"Este email já está em uso."}, fields["email"])
	assert.Equal(t, []string{"Certifique-se de que este campo tenha mais de 8 caracteres."}, fields["password"])
	assert.NotContains(t, fields, "password_confirm")

	_, _, err = f.svc.Register(ctx, RegisterInput{
		Username: "outro", Email: "outro@empresa.com", Password: "senhaforte123", PasswordConfirm: "senhaforte124",
	})
	assert.Equal(t, []string{"As senhas não coincidem."}, fieldsOf(t, err)["password_confirm"])
}

func TestUpdateProfile(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.db, "perfil", model.GrupoFuncionarios)
	testutil.CreateUser(t, f.db, "vizinho")

	p, err := f.svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, p.Profile)

	first, bio, birth := "Paula", "Confeiteira", "1990-04-02"
	p, err = f.svc.UpdateProfile(ctx, u.ID, ProfilePatch{FirstName: &first, Bio: &bio, BirthDate: &birth})
	require.NoError(t, err)
	assert.Equal(t, "Paula", p.FirstName)
	require.NotNil(t, p.Profile)
	assert.Equal(t, "Confeiteira", p.Profile.Bio)
	require.NotNil(t, p.Profile.BirthDate)
	assert.Equal(t, "1990-04-02", *p.Profile.BirthDate)

	email, longo, data := "vizinho@empresa.com", strings.Repeat("b", 501), "02/04/1990"
	_, err = f.svc.UpdateProfile(ctx, u.ID, ProfilePatch{Email: &email, Bio: &longo, BirthDate: &data})
	fields := fieldsOf(t, err)
	assert.Equal(t, []string{"Este email já está em uso."}, fields["email"])
	assert.Contains(t, fields, "bio")
	assert.Contains(t, fields, "birth_date")

	phone := "11 99999-0000"
	p, err = f.svc.UpdateProfile(ctx, u.ID, ProfilePatch{FirstName: &first, Phone: &phone}.OnlyProfile())
	require.NoError(t, err)
	assert.Equal(t, phone, p.Profile.Phone)
}

func TestProfilePhoto(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.db, "foto")

	err := f.svc.DeletePhoto(ctx, u.ID)
	assert.ErrorIs(t, err, apperr.NotFound)

	_, err = f.svc.UploadPhoto(ctx, u.ID, "avatar.bmp", 10, bytes.NewReader([]byte("x")))
	assert.Contains(t, fieldsOf(t, err), "profile_image")

	_, err = f.svc.UploadPhoto(ctx, u.ID, "avatar.png", MaxPhotoSize+1, bytes.NewReader(nil))
	assert.Equal(t, []string{"A imagem não pode ter mais de 2MB."}, fieldsOf(t, err)["profile_image"])

	url, err := f.svc.UploadPhoto(ctx, u.ID, "avatar.PNG", 4, bytes.NewReader([]byte("png!")))
	require.NoError(t, err)
	expected := "profile_photos/user_" + strconv.FormatUint(uint64(u.ID), 10) + "_profile.png"
	assert.Equal(t, MediaURL+expected, url)
	data, err := os.ReadFile(filepath.Join(f.media, filepath.FromSlash(expected)))
	require.NoError(t, err)
	assert.Equal(t, "png!", string(data))

	url, err = f.svc.UploadPhoto(ctx, u.ID, "avatar.gif", 3, bytes.NewReader([]byte("gif")))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, "_profile.gif"))
	_, err = os.Stat(filepath.Join(f.media, filepath.FromSlash(expected)))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, f.svc.DeletePhoto(ctx, u.ID))
	err = f.svc.DeletePhoto(ctx, u.ID)
	require.Error(t, err)
	assert.Equal(t, "Usuário não possui imagem de perfil", apperr.From(err).Message)
}

func TestChangePassword(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.db, "senha")

	err := f.svc.ChangePassword(ctx, u.ID, ChangePasswordInput{OldPassword: "errada", NewPassword: "novasenha123", NewPasswordConfirm: "novasenha123"})
	assert.Equal(t, []string{"Senha atual incorreta."}, fieldsOf(t, err)["old_password"])

	err = f.svc.ChangePassword(ctx, u.ID, ChangePasswordInput{OldPassword: testutil.Password, NewPassword: "novasenha123", NewPasswordConfirm: "novasenha124"})
	assert.Equal(t, []string{"As senhas não coincidem."}, fieldsOf(t, err)["new_password_confirm"])

	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, ChangePasswordInput{OldPassword: testutil.Password, NewPassword: "novasenha123", NewPasswordConfirm: "novasenha123"}))
	_, err = f.svc.Authenticate(ctx, "senha", "novasenha123")
	assert.NoError(t, err)
}

func TestPasswordReset(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	testutil.CreateUser(t, f.db, "esqueci")

	err := f.svc.RequestPasswordReset(ctx, "ninguem@empresa.com")
	assert.Equal(t, []string{"Usuário com este email não encontrado."}, fieldsOf(t, err)["email"])

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ESQUECI@empresa.com"))
	require.Len(t, f.mailer.sent, 1)
	sent := f.mailer.sent[0]
	assert.Equal(t, "esqueci@empresa.com", sent.To)
	assert.Equal(t, "Reset de Senha - Sistema de Clientes", sent.Subject)
	token := strings.TrimPrefix(sent.Body, "Use este token para resetar sua senha: ")
	assert.Len(t, token, 32)

	err = f.svc.ConfirmPasswordReset(ctx, ResetConfirmInput{Token: token, NewPassword: "resetada123", NewPasswordConfirm: "resetada12"})
	assert.Contains(t, fieldsOf(t, err), "new_password_confirm")

	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, ResetConfirmInput{Token: token, NewPassword: "resetada123", NewPasswordConfirm: "resetada123"}))
	_, err = f.svc.Authenticate(ctx, "esqueci", "resetada123")
	assert.NoError(t, err)

	err = f.svc.ConfirmPasswordReset(ctx, ResetConfirmInput{Token: token, NewPassword: "resetada123", NewPasswordConfirm: "resetada123"})
	assert.Equal(t, []string{"Token inválido ou expirado."}, fieldsOf(t, err)["token"])
}

func TestUsersAndGroups(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.db, "beto", model.GrupoFuncionarios)
	testutil.CreateUser(t, f.db, "alice", model.GrupoAdministradores)

	res, err := f.svc.Users(ctx, UserFilter{}, Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "alice", res.Items[0].Username)

	res, err = f.svc.Users(ctx, UserFilter{Search: "BET"}, Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, []string{model.GrupoFuncionarios}, res.Items[0].GroupNames())

	groups, err := f.svc.Groups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	ids := map[string]uint{}
	for _, g := range groups {
		ids[g.Name] = g.ID
	}

	got, err := f.svc.SetUserGroups(ctx, u.ID, []uint{ids[model.GrupoGerentes], ids[model.GrupoAdministradores]})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{model.GrupoGerentes, model.GrupoAdministradores}, got.GroupNames())

	got, err = f.svc.SetUserGroups(ctx, u.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, got.Grupos)

	_, err = f.svc.SetUserGroups(ctx, u.ID, []uint{999})
	assert.ErrorIs(t, err, apperr.Invalid)

	_, err = f.svc.Group(ctx, 999)
	assert.ErrorIs(t, err, apperr.NotFound)
}
