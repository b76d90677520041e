package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
)

var (
	nomeValido        = regexp.MustCompile(`^[a-zA-ZÀ-ÿ\s]+$`)
	dominiosProibidos = []string{"tempmail.com", "10minutemail.com", "guerrillamail.com"}
	indicadoresJovem  = []string{"junior", "jr", "filho", "neto"}
	titleCaser        = cases.Title(language.BrazilianPortuguese)
)

// ClientInput são os campos editáveis de um cliente.
type ClientInput struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
	Age   *int   `json:"age" validate:"required"`
}

var clientMessages = map[string]string{
	"name.required":  "Nome é obrigatório.",
	"name.max":       "Nome deve ter no máximo 100 caracteres.",
	"email.required": "Email é obrigatório.",
	"email.email":    "Insira um endereço de email válido.",
	"email.max":      "Email deve ter no máximo 254 caracteres.",
	"age.required":   "Idade é obrigatória.",
}

// ClientFilter são os filtros da listagem de clientes.
type ClientFilter struct {
	Search   string
	AgeMin   *int
	AgeMax   *int
	Ordering string
}

var clientOrdering = map[string]string{
	"name":       "name",
	"email":      "email",
	"age":        "age",
	"created_at": "created_at",
}

// PedidosStats agrega quantidade, soma e média dos valores.
type PedidosStats struct {
	TotalPedidos int64  `json:"total_pedidos"`
	ValorTotal   string `json:"valor_total"`
	ValorMedio   string `json:"valor_medio"`
}

// ClientDetail é o cliente com o resumo dos seus pedidos.
type ClientDetail struct {
	Client           model.Client
	TotalPedidos     int64
	PedidosStats     PedidosStats
	PedidosPorStatus map[string]int64
}

// ClientStats resume as idades dos clientes.
type ClientStats struct {
	Total      int64            `json:"total"`
	AverageAge float64          `json:"average_age"`
	Youngest   int              `json:"youngest"`
	Oldest     int              `json:"oldest"`
	AgeGroups  map[string]int64 `json:"age_groups"`
}

// ClientSummary é a linha da listagem, com a contagem de pedidos.
type ClientSummary struct {
	model.Client
	TotalPedidos int64 `json:"total_pedidos"`
}

type ClientService struct {
	db    *gorm.DB
	clock Clock
}

func NewClientService(db *gorm.DB, clock Clock) *ClientService {
	return &ClientService{db: db, clock: clock}
}

// Validate limpa e valida os dados; existingID é o cliente em edição (0 na criação).
func (s *ClientService) Validate(ctx context.Context, in ClientInput, existingID uint) (model.Client, error) {
	fields := apperr.FieldSet{}
	in.Email = strings.TrimSpace(in.Email)
	checkStruct(in, clientMessages, fields)

	var out model.Client
	if !fields.Has("name") {
		switch {
		case !nomeValido.MatchString(in.Name):
			fields.Add("name", "Nome deve conter apenas letras e espaços.")
		case len([]rune(strings.TrimSpace(in.Name))) < 2:
			fields.Add("name", "Nome deve ter pelo menos 2 caracteres.")
		default:
			out.Name = strings.TrimSpace(titleCaser.String(in.Name))
		}
	}

	if !fields.Has("email") {
		email := strings.ToLower(in.Email)
		var existing model.Client
		err := s.db.WithContext(ctx).Where("LOWER(email) = ?", email).First(&existing).Error
		switch {
		case err == nil && existingID == 0:
			fields.Add("email", "Este email já está cadastrado.")
		case err == nil && existing.ID != existingID:
			fields.Add("email", "Este email já está sendo usado por outro cliente.")
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return out, apperr.Internal.Wrap(err)
		}
		if !fields.Has("email") {
			domain := email[strings.LastIndex(email, "@")+1:]
			for _, d := range dominiosProibidos {
				if domain == d {
					fields.Add("email", "Este domínio de email não é permitido.")
					break
				}
			}
		}
		out.Email = email
	}

	if !fields.Has("age") {
		age := *in.Age
		switch {
		case age < model.IdadeMinima:
			fields.Add("age", "Não aceitamos clientes menores de 18 anos.")
		case age > model.IdadeMaxima:
			fields.Add("age", "Idade deve ser realista (máximo 120 anos).")
		default:
			out.Age = age
		}
	}

	if out.Name != "" && out.Age > 80 {
		lower := strings.ToLower(out.Name)
		for _, ind := range indicadoresJovem {
			if strings.Contains(lower, ind) {
				fields.Add(apperr.NonFieldErrors, "Há uma inconsistência entre o nome e a idade informada.")
				break
			}
		}
	}

	if err := fields.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// ValidateFilter confere os limites de idade da busca.
func (s *ClientService) ValidateFilter(f ClientFilter) error {
	fields := apperr.FieldSet{}
	for field, v := range map[string]*int{"age_min": f.AgeMin, "age_max": f.AgeMax} {
		if v == nil {
			continue
		}
		if *v < model.IdadeMinima {
			fields.Add(field, fmt.Sprintf("Certifique-se que este valor seja maior ou igual a %d.", model.IdadeMinima))
		} else if *v > model.IdadeMaxima {
			fields.Add(field, fmt.Sprintf("Certifique-se que este valor seja menor ou igual a %d.", model.IdadeMaxima))
		}
	}
	if f.AgeMin != nil && f.AgeMax != nil && *f.AgeMin > *f.AgeMax {
		fields.Add(apperr.NonFieldErrors, "Idade mínima não pode ser maior que idade máxima.")
	}
	return fields.Err()
}

func (s *ClientService) filtered(ctx context.Context, f ClientFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&model.Client{})
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	if f.AgeMin != nil {
		q = q.Where("age >= ?", *f.AgeMin)
	}
	if f.AgeMax != nil {
		q = q.Where("age <= ?", *f.AgeMax)
	}
	return q.Order(ordering(f.Ordering, clientOrdering, "name ASC"))
}

// List devolve a página de clientes. Filtros inválidos são ignorados, como na busca do formulário.
func (s *ClientService) List(ctx context.Context, f ClientFilter, page Page) (PageResult[ClientSummary], error) {
	if s.ValidateFilter(f) != nil {
		f = ClientFilter{Ordering: f.Ordering}
	}
	res, err := paginate[model.Client](s.filtered(ctx, f), page)
	if err != nil {
		return PageResult[ClientSummary]{}, err
	}
	out := PageResult[ClientSummary]{Total: res.Total, Number: res.Number, Size: res.Size}
	counts, err := s.pedidoCounts(ctx, res.Items)
	if err != nil {
		return out, err
	}
	out.Items = make([]ClientSummary, 0, len(res.Items))
	for _, c := range res.Items {
		out.Items = append(out.Items, ClientSummary{Client: c, TotalPedidos: counts[c.ID]})
	}
	return out, nil
}

func (s *ClientService) pedidoCounts(ctx context.Context, clients []model.Client) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(clients))
	if len(clients) == 0 {
		return counts, nil
	}
	ids := make([]uint, 0, len(clients))
	for _, c := range clients {
		ids = append(ids, c.ID)
	}
	var rows []struct {
		ClienteID uint
		Total     int64
	}
	err := s.db.WithContext(ctx).Model(&model.Pedido{}).
		Select("cliente_id, COUNT(*) AS total").
		Where("cliente_id IN ?", ids).
		Group("cliente_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	for _, r := range rows {
		counts[r.ClienteID] = r.Total
	}
	return counts, nil
}

// CountPedidos conta os pedidos de um cliente.
func (s *ClientService) CountPedidos(ctx context.Context, clientID uint) (int64, error) {
	counts, err := s.pedidoCounts(ctx, []model.Client{{ID: clientID}})
	if err != nil {
		return 0, err
	}
	return counts[clientID], nil
}

// All devolve todos os clientes por nome, para os selects dos formulários.
func (s *ClientService) All(ctx context.Context) ([]model.Client, error) {
	var clients []model.Client
	if err := s.db.WithContext(ctx).Order("name").Find(&clients).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	return clients, nil
}

func (s *ClientService) Get(ctx context.Context, id uint) (*model.Client, error) {
	var c model.Client
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "Cliente não encontrado.")
	}
	return &c, nil
}

func (s *ClientService) Create(ctx context.Context, in ClientInput) (*model.Client, error) {
	c, err := s.Validate(ctx, in, 0)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, apperr.Internal.Explain("Erro ao salvar cliente: %s", err).Wrap(err)
	}
	return &c, nil
}

func (s *ClientService) Update(ctx context.Context, id uint, in ClientInput) (*model.Client, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.Validate(ctx, in, id)
	if err != nil {
		return nil, err
	}
	existing.Name, existing.Email, existing.Age = c.Name, c.Email, c.Age
	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, apperr.Internal.Explain("Erro ao atualizar cliente: %s", err).Wrap(err)
	}
	return existing, nil
}

// ClientPatch é a atualização parcial; campos nulos mantêm o valor atual.
type ClientPatch struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Age   *int    `json:"age"`
}

func (s *ClientService) PartialUpdate(ctx context.Context, id uint, p ClientPatch) (*model.Client, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in := ClientInput{Name: existing.Name, Email: existing.Email, Age: &existing.Age}
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Email != nil {
		in.Email = *p.Email
	}
	if p.Age != nil {
		in.Age = p.Age
	}
	return s.Update(ctx, id, in)
}

// Delete remove o cliente e os seus pedidos.
func (s *ClientService) Delete(ctx context.Context, id uint) (*model.Client, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cliente_id = ?", id).Delete(&model.Pedido{}).Error; err != nil {
			return err
		}
		return tx.Delete(c).Error
	})
	if err != nil {
		return nil, apperr.Internal.Explain("Erro ao excluir cliente: %s", err).Wrap(err)
	}
	return c, nil
}

// BulkDelete remove os clientes informados e devolve quantos existiam.
func (s *ClientService) BulkDelete(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.Invalid.Explain("Nenhum cliente selecionado")
	}
	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Client{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
			return err
		}
		if err := tx.Where("cliente_id IN ?", ids).Delete(&model.Pedido{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&model.Client{}).Error
	})
	if err != nil {
		return 0, apperr.Internal.Explain("Erro ao excluir clientes: %s", err).Wrap(err)
	}
	return count, nil
}

func aggregatePedidos(q *gorm.DB) (PedidosStats, error) {
	var row struct {
		Total int64
		Soma  decimal.Decimal
	}
	err := q.Select("COUNT(*) AS total, COALESCE(SUM(valor_total), 0) AS soma").Scan(&row).Error
	if err != nil {
		return PedidosStats{}, apperr.Internal.Wrap(err)
	}
	media := decimal.Zero
	if row.Total > 0 {
		media = row.Soma.Div(decimal.NewFromInt(row.Total))
	}
	return PedidosStats{
		TotalPedidos: row.Total,
		ValorTotal:   row.Soma.StringFixed(2),
		ValorMedio:   media.StringFixed(2),
	}, nil
}

func countBy(q *gorm.DB, column string) (map[string]int64, error) {
	var rows []struct {
		Chave string
		Total int64
	}
	err := q.Select(column + " AS chave, COUNT(*) AS total").Group(column).Scan(&rows).Error
	if err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Chave] = r.Total
	}
	return out, nil
}

// Detail devolve o cliente com as estatísticas dos seus pedidos.
func (s *ClientService) Detail(ctx context.Context, id uint) (*ClientDetail, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&model.Pedido{}).Where("cliente_id = ?", id)
	}
	stats, err := aggregatePedidos(base())
	if err != nil {
		return nil, err
	}
	porStatus, err := countBy(base(), "status")
	if err != nil {
		return nil, err
	}
	return &ClientDetail{
		Client:           *c,
		TotalPedidos:     stats.TotalPedidos,
		PedidosStats:     stats,
		PedidosPorStatus: porStatus,
	}, nil
}

// ClientPedidos é a página de pedidos de um cliente com o resumo por status.
type ClientPedidos struct {
	Client  model.Client
	Pedidos PageResult[model.Pedido]
	Stats   PedidosStats
	Status  map[string]int64
}

// Pedidos lista os pedidos do cliente, mais recentes primeiro.
func (s *ClientService) Pedidos(ctx context.Context, clientID uint, status, prioridade string, page Page) (*ClientPedidos, error) {
	c, err := s.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&model.Pedido{}).Where("cliente_id = ?", clientID)
		if status != "" {
			q = q.Where("status = ?", status)
		}
		if prioridade != "" {
			q = q.Where("prioridade = ?", prioridade)
		}
		return q
	}
	res, err := paginate[model.Pedido](base().Preload("Cliente").Order("data_pedido DESC"), page)
	if err != nil {
		return nil, err
	}
	stats, err := aggregatePedidos(s.db.WithContext(ctx).Model(&model.Pedido{}).Where("cliente_id = ?", clientID))
	if err != nil {
		return nil, err
	}
	porStatus, err := countBy(s.db.WithContext(ctx).Model(&model.Pedido{}).Where("cliente_id = ?", clientID), "status")
	if err != nil {
		return nil, err
	}
	return &ClientPedidos{Client: *c, Pedidos: res, Stats: stats, Status: porStatus}, nil
}

// Stats resume as idades de todos os clientes.
func (s *ClientService) Stats(ctx context.Context) (*ClientStats, error) {
	var row struct {
		Total    int64
		Media    float64
		Youngest int
		Oldest   int
	}
	err := s.db.WithContext(ctx).Model(&model.Client{}).
		Select("COUNT(*) AS total, COALESCE(AVG(age), 0) AS media, COALESCE(MIN(age), 0) AS youngest, COALESCE(MAX(age), 0) AS oldest").
		Scan(&row).Error
	if err != nil {
		return nil, apperr.Internal.Wrap(err)
	}

	var ages []int
	if err := s.db.WithContext(ctx).Model(&model.Client{}).Pluck("age", &ages).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	groups := make(map[string]int64)
	for _, a := range ages {
		groups[model.AgeGroupOf(a)]++
	}
	avg, _ := decimal.NewFromFloat(row.Media).Round(1).Float64()
	return &ClientStats{
		Total:      row.Total,
		AverageAge: avg,
		Youngest:   row.Youngest,
		Oldest:     row.Oldest,
		AgeGroups:  groups,
	}, nil
}
