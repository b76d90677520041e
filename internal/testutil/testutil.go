// Package testutil monta o banco SQLite em memória e os usuários usados nos testes.
package testutil

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ericoliveiras/gestao-clientes/internal/auth"
	"github.com/ericoliveiras/gestao-clientes/internal/config"
	"github.com/ericoliveiras/gestao-clientes/internal/database"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/permission"
)

// Password é a senha de todos os usuários criados por CreateUser.
const Password = "senhaforte123"

// NewDB abre um SQLite em memória com todas as tabelas migradas.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", URL: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, EnsureGroups(db))
	return db
}

// EnsureGroups cria os três grupos padrão, se ainda não existirem.
func EnsureGroups(db *gorm.DB) error {
	for _, name := range permission.GroupOrder {
		g := model.Grupo{Name: name}
		if err := db.Where(model.Grupo{Name: name}).FirstOrCreate(&g).Error; err != nil {
			return err
		}
	}
	return nil
}

// CreateUser cria um usuário ativo nos grupos informados.
func CreateUser(t testing.TB, db *gorm.DB, username string, groups ...string) *model.Usuario {
	t.Helper()
	hash, err := auth.HashPassword(Password)
	require.NoError(t, err)

	u := &model.Usuario{
		Username:  username,
		Email:     username + "@empresa.com",
		FirstName: username,
		SenhaHash: hash,
		IsActive:  true,
	}
	if len(groups) > 0 {
		require.NoError(t, db.Where("name IN ?", groups).Find(&u.Grupos).Error)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateSuperuser cria um superusuário sem grupos.
func CreateSuperuser(t testing.TB, db *gorm.DB, username string) *model.Usuario {
	t.Helper()
	u := CreateUser(t, db, username)
	require.NoError(t, db.Model(u).Updates(map[string]any{"is_superuser": true, "is_staff": true}).Error)
	u.IsSuperuser, u.IsStaff = true, true
	return u
}

// CreateClient grava um cliente válido.
func CreateClient(t testing.TB, db *gorm.DB, name, email string, age int) *model.Client {
	t.Helper()
	c := &model.Client{Name: name, Email: email, Age: age}
	require.NoError(t, db.Create(c).Error)
	return c
}

// PedidoOpt ajusta o pedido antes de ser gravado.
type PedidoOpt func(*model.Pedido)

func WithStatus(s model.StatusPedido) PedidoOpt {
	return func(p *model.Pedido) { p.Status = s }
}

func WithPrioridade(pr model.PrioridadePedido) PedidoOpt {
	return func(p *model.Pedido) { p.Prioridade = pr }
}

func WithDataPedido(t time.Time) PedidoOpt {
	return func(p *model.Pedido) { p.DataPedido = t }
}

func WithEntregaPrevista(t time.Time) PedidoOpt {
	return func(p *model.Pedido) { p.DataEntregaPrevista = &t }
}

// CreatePedido grava um pedido para o cliente com o valor informado.
func CreatePedido(t testing.TB, db *gorm.DB, clienteID uint, valor string, opts ...PedidoOpt) *model.Pedido {
	t.Helper()
	p := &model.Pedido{
		ClienteID:  clienteID,
		Descricao:  "Pedido de teste com descrição longa",
		ValorTotal: decimal.RequireFromString(valor),
	}
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
