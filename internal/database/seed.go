// /internal/database/seed.go
package database

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ericoliveiras/gestao-clientes/internal/auth"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/permission"
)

// GroupResult informa se o grupo foi criado ou já existia.
type GroupResult struct {
	Name        string
	Created     bool
	Permissions []string
}

// SeedGroups cria os grupos padrão com suas permissões. Pode ser executado várias vezes.
func SeedGroups(db *gorm.DB) ([]GroupResult, error) {
	results := make([]GroupResult, 0, len(permission.GroupOrder))
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, name := range permission.GroupOrder {
			perms := permission.GroupPermissionsByModel[name]
			var g model.Grupo
			err := tx.Where("name = ?", name).First(&g).Error
			created := false
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				g = model.Grupo{Name: name}
				created = true
			case err != nil:
				return err
			}
			g.Permissoes = strings.Join(perms, ",")
			if err := tx.Save(&g).Error; err != nil {
				return fmt.Errorf("falha ao salvar grupo %s: %w", name, err)
			}
			results = append(results, GroupResult{Name: name, Created: created, Permissions: perms})
		}
		return nil
	})
	return results, err
}

// ErrUserExists é devolvido quando username ou email já estão em uso.
var ErrUserExists = errors.New("usuário já existe")

// CreateSuperuser cria um superusuário ativo.
func CreateSuperuser(db *gorm.DB, username, email, senha string) (*model.Usuario, error) {
	var count int64
	if err := db.Model(&model.Usuario{}).Where("username = ? OR email = ?", username, email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUserExists
	}
	if len(senha) < auth.MinPasswordLength {
		return nil, fmt.Errorf("a senha deve ter pelo menos %d caracteres", auth.MinPasswordLength)
	}

	hash, err := auth.HashPassword(senha)
	if err != nil {
		return nil, fmt.Errorf("falha ao criar hash da senha: %w", err)
	}
	u := &model.Usuario{
		Username:    username,
		Email:       strings.ToLower(email),
		SenhaHash:   hash,
		IsActive:    true,
		IsStaff:     true,
		IsSuperuser: true,
	}
	if err := db.Create(u).Error; err != nil {
		return nil, fmt.Errorf("falha ao criar o superusuário: %w", err)
	}
	return u, nil
}

// SeedConfig controla o volume de dados sintéticos.
type SeedConfig struct {
	Clientes  int
	Pedidos   int
	BatchSize int
}

// SeedStats resume o que foi inserido.
type SeedStats struct {
	Clientes int
	Pedidos  int
}

// SeedDataset popula clientes e pedidos com dados determinísticos.
func SeedDataset(ctx context.Context, db *gorm.DB, cfg SeedConfig) (SeedStats, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	rnd := rand.New(rand.NewSource(42))
	now := time.Now()

	var stats SeedStats
	clienteIDs, created, err := seedClientes(ctx, db, cfg, rnd)
	if err != nil {
		return stats, err
	}
	stats.Clientes = created
	if len(clienteIDs) == 0 {
		return stats, nil
	}

	var existing int64
	if err := db.WithContext(ctx).Model(&model.Pedido{}).Count(&existing).Error; err != nil {
		return stats, err
	}
	toCreate := cfg.Pedidos - int(existing)
	batch := make([]model.Pedido, 0, cfg.BatchSize)
	for i := 0; i < toCreate; i++ {
		batch = append(batch, buildSyntheticPedido(clienteIDs, rnd, now))
		if len(batch) == cfg.BatchSize || i == toCreate-1 {
			if err := db.WithContext(ctx).Create(&batch).Error; err != nil {
				return stats, err
			}
			stats.Pedidos += len(batch)
			batch = batch[:0]
		}
	}
	return stats, nil
}

func seedClientes(ctx context.Context, db *gorm.DB, cfg SeedConfig, rnd *rand.Rand) ([]uint, int, error) {
	var existing int64
	if err := db.WithContext(ctx).Model(&model.Client{}).Count(&existing).Error; err != nil {
		return nil, 0, err
	}
	created := 0
	batch := make([]model.Client, 0, cfg.BatchSize)
	toCreate := cfg.Clientes - int(existing)
	for i := 0; i < toCreate; i++ {
		idx := int(existing) + i
		nome := fmt.Sprintf("%s %s", randomChoice(primeirosNomes, rnd), randomChoice(sobrenomes, rnd))
		batch = append(batch, model.Client{
			Name:  nome,
			Email: fmt.Sprintf("cliente%05d@exemplo.com.br", idx+1),
			Age:   model.IdadeMinima + rnd.Intn(63),
		})
		if len(batch) == cfg.BatchSize || i == toCreate-1 {
			if err := db.WithContext(ctx).Create(&batch).Error; err != nil {
				return nil, created, err
			}
			created += len(batch)
			batch = batch[:0]
		}
	}

	var ids []uint
	if err := db.WithContext(ctx).Model(&model.Client{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, created, err
	}
	return ids, created, nil
}

func buildSyntheticPedido(clienteIDs []uint, rnd *rand.Rand, now time.Time) model.Pedido {
	dataPedido := now.Add(-time.Duration(rnd.Intn(365*24)) * time.Hour)
	status := model.StatusPedido(randomChoiceWeighted(statusPesos, rnd))
	p := model.Pedido{
		ClienteID:  clienteIDs[rnd.Intn(len(clienteIDs))],
		Descricao:  randomChoice(descricoes, rnd),
		ValorTotal: decimal.NewFromInt(int64(1000 + rnd.Intn(99000))).Shift(-2),
		Status:     status,
		Prioridade: model.PrioridadePedido(randomChoiceWeighted(prioridadePesos, rnd)),
		DataPedido: dataPedido,
	}
	p.NumeroPedido = model.NovoNumeroPedido(dataPedido)
	if rnd.Float64() > 0.2 {
		prevista := model.DateOf(dataPedido.AddDate(0, 0, 3+rnd.Intn(25)))
		p.DataEntregaPrevista = &prevista
	}
	if status == model.StatusEntregue {
		realizada := dataPedido.Add(time.Duration(24+rnd.Intn(240)) * time.Hour)
		p.DataEntregaRealizada = &realizada
	}
	return p
}

var (
	primeirosNomes = []string{"Ana", "Bruno", "Carla", "Diego", "Eduarda", "Felipe", "Gabriela", "Henrique", "Isabela", "João"}
	sobrenomes     = []string{"Silva", "Souza", "Oliveira", "Santos", "Pereira", "Lima", "Costa", "Almeida", "Ribeiro", "Carvalho"}
	descricoes     = []string{
		"Kit de materiais de escritório para a filial.",
		"Reposição de estoque de produtos de limpeza.",
		"Equipamentos de informática para o novo setor.",
		"Pedido recorrente de suprimentos mensais.",
		"Móveis para a sala de reuniões do segundo andar.",
	}
	statusPesos = map[string]int{
		string(model.StatusPendente):    20,
		string(model.StatusProcessando): 15,
		string(model.StatusEnviado):     15,
		string(model.StatusEntregue):    40,
		string(model.StatusCancelado):   10,
	}
	prioridadePesos = map[string]int{
		string(model.PrioridadeBaixa):   20,
		string(model.PrioridadeNormal):  50,
		string(model.PrioridadeAlta):    20,
		string(model.PrioridadeUrgente): 10,
	}
)

func randomChoice(items []string, rnd *rand.Rand) string {
	return items[rnd.Intn(len(items))]
}

// randomChoiceWeighted percorre as chaves em ordem fixa para manter a semente determinística.
func randomChoiceWeighted(weights map[string]int, rnd *rand.Rand) string {
	keys := make([]string, 0, len(weights))
	total := 0
	for k, w := range weights {
		keys = append(keys, k)
		total += w
	}
	sort.Strings(keys)
	n := rnd.Intn(total)
	for _, k := range keys {
		n -= weights[k]
		if n < 0 {
			return k
		}
	}
	return keys[0]
}
