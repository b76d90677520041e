package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
)

// Money é um valor monetário exibido com duas casas decimais.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money { return Money{d} }

func (m Money) String() string { return m.StringFixed(2) }

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.StringFixed(2))
}

var valorMaximo = decimal.New(1, 8)

// statusEmAberto são os status que ainda podem atrasar.
var statusEmAberto = []model.StatusPedido{model.StatusPendente, model.StatusProcessando, model.StatusEnviado}

// PedidoInput são os campos editáveis de um pedido.
type PedidoInput struct {
	ClienteID           uint             `json:"cliente" validate:"required"`
	Descricao           string           `json:"descricao" validate:"required"`
	ValorTotal          *decimal.Decimal `json:"valor_total" validate:"required"`
	Status              string           `json:"status"`
	Prioridade          string           `json:"prioridade"`
	DataEntregaPrevista string           `json:"data_entrega_prevista"`
	Observacoes         string           `json:"observacoes"`
}

var pedidoMessages = map[string]string{
	"cliente.required":     "Este campo é obrigatório.",
	"descricao.required":   "Este campo é obrigatório.",
	"valor_total.required": "Este campo é obrigatório.",
}

// PedidoFilter são os filtros da listagem, do CSV e do PDF.
type PedidoFilter struct {
	Search     string
	ClienteID  uint
	Status     string
	Prioridade string
	DataInicio *time.Time
	DataFim    *time.Time
	ValorMin   *decimal.Decimal
	ValorMax   *decimal.Decimal
	Ordering   string
}

// Empty indica se nenhum filtro foi informado.
func (f PedidoFilter) Empty() bool {
	return f.Search == "" && f.ClienteID == 0 && f.Status == "" && f.Prioridade == "" &&
		f.DataInicio == nil && f.DataFim == nil && f.ValorMin == nil && f.ValorMax == nil
}

var pedidoOrdering = map[string]string{
	"data_pedido":           "pedidos.data_pedido",
	"valor_total":           "pedidos.valor_total",
	"data_entrega_prevista": "pedidos.data_entrega_prevista",
}

// PedidoList é uma página de pedidos com as estatísticas de todo o filtro.
type PedidoList struct {
	Page  PageResult[model.Pedido]
	Stats PedidosStats
}

// StatusInput é a troca rápida de status.
type StatusInput struct {
	Status     string `json:"status" validate:"required"`
	Observacao string `json:"observacao" validate:"max=500"`
}

// Ações em lote aceitas.
const (
	BulkUpdateStatus   = "update_status"
	BulkUpdatePriority = "update_priority"
	BulkDelete         = "delete"
)

// BulkInput é a ação em lote sobre pedidos.
type BulkInput struct {
	PedidoIDs   []uint `json:"pedido_ids" validate:"required,min=1"`
	Action      string `json:"action" validate:"required,oneof=update_status update_priority delete"`
	NewStatus   string `json:"new_status"`
	NewPriority string `json:"new_priority"`
}

var bulkMessages = map[string]string{
	"pedido_ids.required": "Este campo é obrigatório.",
	"pedido_ids.min":      "Certifique-se de que este campo não tenha menos de 1 elementos.",
	"action.required":     "Este campo é obrigatório.",
	"action.oneof":        "Ação inválida.",
}

// BulkResult resume o efeito da ação em lote.
type BulkResult struct {
	Affected int64  `json:"affected_count"`
	Message  string `json:"message"`
}

// PedidoStats são as estatísticas gerais de pedidos.
type PedidoStats struct {
	TotalOrders          int64            `json:"total_orders"`
	TotalRevenue         Money            `json:"total_revenue"`
	AverageOrderValue    Money            `json:"average_order_value"`
	MonthlyOrders        int64            `json:"monthly_orders"`
	MonthlyRevenue       Money            `json:"monthly_revenue"`
	StatusDistribution   map[string]int64 `json:"status_distribution"`
	PriorityDistribution map[string]int64 `json:"priority_distribution"`
	OverdueOrders        int64            `json:"overdue_orders"`
}

type PedidoService struct {
	db    *gorm.DB
	clock Clock
}

func NewPedidoService(db *gorm.DB, clock Clock) *PedidoService {
	return &PedidoService{db: db, clock: clock}
}

// Validate limpa e valida os dados do formulário ou da API.
func (s *PedidoService) Validate(ctx context.Context, in PedidoInput) (model.Pedido, error) {
	return s.validate(ctx, in, true)
}

// validate só recusa previsão no passado quando checkPrevista é verdadeiro.
func (s *PedidoService) validate(ctx context.Context, in PedidoInput, checkPrevista bool) (model.Pedido, error) {
	fields := apperr.FieldSet{}
	checkStruct(in, pedidoMessages, fields)
	now := s.clock.now()

	var out model.Pedido
	if !fields.Has("cliente") {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Client{}).Where("id = ?", in.ClienteID).Count(&count).Error; err != nil {
			return out, apperr.Internal.Wrap(err)
		}
		if count == 0 {
			fields.Add("cliente", "Cliente selecionado inválido.")
		}
		out.ClienteID = in.ClienteID
	}

	if !fields.Has("descricao") {
		desc := strings.TrimSpace(in.Descricao)
		if len([]rune(desc)) < 10 {
			fields.Add("descricao", "Descrição deve ter pelo menos 10 caracteres.")
		}
		out.Descricao = desc
	}

	if !fields.Has("valor_total") {
		v := *in.ValorTotal
		switch {
		case v.IsNegative():
			fields.Add("valor_total", "O valor total não pode ser negativo.")
		case v.GreaterThanOrEqual(valorMaximo):
			fields.Add("valor_total", "Certifique-se de que não haja mais de 10 dígitos no total.")
		case v.Exponent() < -2 && !v.Equal(v.Round(2)):
			fields.Add("valor_total", "Certifique-se de que não haja mais de 2 casas decimais.")
		default:
			out.ValorTotal = v
		}
	}

	out.Status = model.StatusPendente
	if in.Status != "" {
		st := model.StatusPedido(in.Status)
		if !st.Valid() {
			fields.Add("status", fmt.Sprintf("\"%s\" não é um escolha válido.", in.Status))
		}
		out.Status = st
	}
	out.Prioridade = model.PrioridadeNormal
	if in.Prioridade != "" {
		pr := model.PrioridadePedido(in.Prioridade)
		if !pr.Valid() {
			fields.Add("prioridade", fmt.Sprintf("\"%s\" não é um escolha válido.", in.Prioridade))
		}
		out.Prioridade = pr
	}

	if prevista, err := ParseDate(in.DataEntregaPrevista, now.Location()); err != nil {
		fields.Add("data_entrega_prevista", "Informe uma data válida.")
	} else if prevista != nil {
		if checkPrevista && prevista.Before(model.DateOf(now)) {
			fields.Add("data_entrega_prevista", "A data de entrega prevista não pode ser no passado.")
		}
		out.DataEntregaPrevista = prevista
	}

	out.Observacoes = strings.TrimSpace(in.Observacoes)
	if out.Status == model.StatusEntregue {
		t := now
		out.DataEntregaRealizada = &t
	}

	if err := fields.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// ValidateFilter confere os intervalos de data e de valor.
func (s *PedidoService) ValidateFilter(f PedidoFilter) error {
	fields := apperr.FieldSet{}
	if f.DataInicio != nil && f.DataFim != nil && f.DataInicio.After(*f.DataFim) {
		fields.Add(apperr.NonFieldErrors, "A data de início não pode ser posterior à data de fim.")
	}
	if f.ValorMin != nil && f.ValorMax != nil && f.ValorMin.GreaterThan(*f.ValorMax) {
		fields.Add(apperr.NonFieldErrors, "O valor mínimo não pode ser maior que o valor máximo.")
	}
	return fields.Err()
}

// Filtered monta a consulta com os filtros, sem ordenação.
func (s *PedidoService) Filtered(ctx context.Context, f PedidoFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&model.Pedido{})
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		clientes := s.db.WithContext(ctx).Model(&model.Client{}).Select("id").Where("LOWER(name) LIKE ?", like)
		q = q.Where("LOWER(pedidos.numero_pedido) LIKE ? OR LOWER(pedidos.descricao) LIKE ? OR pedidos.cliente_id IN (?)", like, like, clientes)
	}
	if f.ClienteID != 0 {
		q = q.Where("pedidos.cliente_id = ?", f.ClienteID)
	}
	if f.Status != "" {
		q = q.Where("pedidos.status = ?", f.Status)
	}
	if f.Prioridade != "" {
		q = q.Where("pedidos.prioridade = ?", f.Prioridade)
	}
	if f.DataInicio != nil {
		start, _ := dayRange(*f.DataInicio)
		q = q.Where("pedidos.data_pedido >= ?", start)
	}
	if f.DataFim != nil {
		_, end := dayRange(*f.DataFim)
		q = q.Where("pedidos.data_pedido < ?", end)
	}
	if f.ValorMin != nil {
		q = q.Where("pedidos.valor_total >= ?", *f.ValorMin)
	}
	if f.ValorMax != nil {
		q = q.Where("pedidos.valor_total <= ?", *f.ValorMax)
	}
	return q
}

// List devolve a página de pedidos e as estatísticas do filtro.
func (s *PedidoService) List(ctx context.Context, f PedidoFilter, page Page) (*PedidoList, error) {
	if err := s.ValidateFilter(f); err != nil {
		return nil, err
	}
	stats, err := aggregatePedidos(s.Filtered(ctx, f))
	if err != nil {
		return nil, err
	}
	q := s.Filtered(ctx, f).Preload("Cliente").
		Order(ordering(f.Ordering, pedidoOrdering, "pedidos.data_pedido DESC"))
	res, err := paginate[model.Pedido](q, page)
	if err != nil {
		return nil, err
	}
	return &PedidoList{Page: res, Stats: stats}, nil
}

// All devolve todos os pedidos do filtro, mais recentes primeiro, para exportação.
func (s *PedidoService) All(ctx context.Context, f PedidoFilter) ([]model.Pedido, error) {
	var pedidos []model.Pedido
	err := s.Filtered(ctx, f).Preload("Cliente").Order("pedidos.data_pedido DESC").Find(&pedidos).Error
	if err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	return pedidos, nil
}

// Head devolve os n pedidos mais recentes do filtro.
func (s *PedidoService) Head(ctx context.Context, f PedidoFilter, n int) ([]model.Pedido, error) {
	var pedidos []model.Pedido
	err := s.Filtered(ctx, f).Preload("Cliente").Order("pedidos.data_pedido DESC").Limit(n).Find(&pedidos).Error
	if err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	return pedidos, nil
}

// Summary agrega quantidade, soma e média dos pedidos do filtro.
func (s *PedidoService) Summary(ctx context.Context, f PedidoFilter) (PedidosStats, error) {
	return aggregatePedidos(s.Filtered(ctx, f))
}

func (s *PedidoService) Get(ctx context.Context, id uint) (*model.Pedido, error) {
	var p model.Pedido
	if err := s.db.WithContext(ctx).Preload("Cliente").First(&p, id).Error; err != nil {
		return nil, notFound(err, "Pedido não encontrado.")
	}
	return &p, nil
}

func (s *PedidoService) Create(ctx context.Context, in PedidoInput) (*model.Pedido, error) {
	p, err := s.Validate(ctx, in)
	if err != nil {
		return nil, err
	}
	p.DataPedido = s.clock.now()
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, apperr.Internal.Explain("Erro ao salvar pedido: %s", err).Wrap(err)
	}
	return s.Get(ctx, p.ID)
}

// CreateForClient cria o pedido com o cliente fixado, ignorando o informado.
func (s *PedidoService) CreateForClient(ctx context.Context, clientID uint, in PedidoInput) (*model.Pedido, error) {
	var c model.Client
	if err := s.db.WithContext(ctx).First(&c, clientID).Error; err != nil {
		return nil, notFound(err, "Cliente não encontrado.")
	}
	in.ClienteID = clientID
	return s.Create(ctx, in)
}

func (s *PedidoService) Update(ctx context.Context, id uint, in PedidoInput) (*model.Pedido, error) {
	return s.update(ctx, id, in, true)
}

func (s *PedidoService) update(ctx context.Context, id uint, in PedidoInput, checkPrevista bool) (*model.Pedido, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.validate(ctx, in, checkPrevista)
	if err != nil {
		return nil, err
	}
	existing.ClienteID = p.ClienteID
	existing.Descricao = p.Descricao
	existing.ValorTotal = p.ValorTotal
	existing.Status = p.Status
	existing.Prioridade = p.Prioridade
	existing.DataEntregaPrevista = p.DataEntregaPrevista
	existing.Observacoes = p.Observacoes
	if p.Status == model.StatusEntregue && existing.DataEntregaRealizada == nil {
		existing.DataEntregaRealizada = p.DataEntregaRealizada
	}
	existing.Cliente = model.Client{}
	if err := s.db.WithContext(ctx).Omit("Cliente").Save(existing).Error; err != nil {
		return nil, apperr.Internal.Explain("Erro ao atualizar pedido: %s", err).Wrap(err)
	}
	return s.Get(ctx, id)
}

// PedidoPatch é a atualização parcial pela API.
type PedidoPatch struct {
	ClienteID           *uint            `json:"cliente"`
	Descricao           *string          `json:"descricao"`
	ValorTotal          *decimal.Decimal `json:"valor_total"`
	Status              *string          `json:"status"`
	Prioridade          *string          `json:"prioridade"`
	DataEntregaPrevista *string          `json:"data_entrega_prevista"`
	Observacoes         *string          `json:"observacoes"`
}

func (s *PedidoService) PartialUpdate(ctx context.Context, id uint, p PedidoPatch) (*model.Pedido, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	valor := existing.ValorTotal
	in := PedidoInput{
		ClienteID:   existing.ClienteID,
		Descricao:   existing.Descricao,
		ValorTotal:  &valor,
		Status:      string(existing.Status),
		Prioridade:  string(existing.Prioridade),
		Observacoes: existing.Observacoes,
	}
	if existing.DataEntregaPrevista != nil {
		in.DataEntregaPrevista = existing.DataEntregaPrevista.Format("2006-01-02")
	}
	if p.ClienteID != nil {
		in.ClienteID = *p.ClienteID
	}
	if p.Descricao != nil {
		in.Descricao = *p.Descricao
	}
	if p.ValorTotal != nil {
		in.ValorTotal = p.ValorTotal
	}
	if p.Status != nil {
		in.Status = *p.Status
	}
	if p.Prioridade != nil {
		in.Prioridade = *p.Prioridade
	}
	if p.DataEntregaPrevista != nil {
		in.DataEntregaPrevista = *p.DataEntregaPrevista
	}
	if p.Observacoes != nil {
		in.Observacoes = *p.Observacoes
	}
	// A previsão guardada só é revalidada quando vem no PATCH.
	return s.update(ctx, id, in, p.DataEntregaPrevista != nil)
}

func (s *PedidoService) Delete(ctx context.Context, id uint) (*model.Pedido, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(&model.Pedido{}, id).Error; err != nil {
		return nil, apperr.Internal.Explain("Erro ao excluir pedido: %s", err).Wrap(err)
	}
	return p, nil
}

// UpdateStatus troca o status e registra a observação, se informada.
func (s *PedidoService) UpdateStatus(ctx context.Context, id uint, in StatusInput) (*model.Pedido, error) {
	fields := apperr.FieldSet{}
	checkStruct(in, map[string]string{
		"status.required": "Este campo é obrigatório.",
		"observacao.max":  "Certifique-se de que este campo não tenha mais de 500 caracteres.",
	}, fields)
	st := model.StatusPedido(in.Status)
	if !fields.Has("status") && !st.Valid() {
		fields.Add("status", fmt.Sprintf("\"%s\" não é um escolha válido.", in.Status))
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.ChangeStatus(st, strings.TrimSpace(in.Observacao), s.clock.now())
	if err := s.save(ctx, p); err != nil {
		return nil, apperr.Internal.Explain("Erro ao atualizar status: %s", err).Wrap(err)
	}
	return p, nil
}

// Cancel cancela o pedido registrando o motivo.
func (s *PedidoService) Cancel(ctx context.Context, id uint, motivo string) (*model.Pedido, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanBeCancelled() {
		return nil, apperr.Invalid.Explain("Este pedido não pode ser cancelado")
	}
	p.Cancel(strings.TrimSpace(motivo), s.clock.now())
	if err := s.save(ctx, p); err != nil {
		return nil, apperr.Internal.Explain("Erro ao cancelar pedido: %s", err).Wrap(err)
	}
	return p, nil
}

func (s *PedidoService) save(ctx context.Context, p *model.Pedido) error {
	return s.db.WithContext(ctx).Model(p).Select("status", "observacoes", "data_entrega_realizada", "updated_at").
		Updates(map[string]any{
			"status":                 p.Status,
			"observacoes":            p.Observacoes,
			"data_entrega_realizada": p.DataEntregaRealizada,
			"updated_at":             s.clock.now(),
		}).Error
}

// BulkAction aplica a ação aos pedidos selecionados.
func (s *PedidoService) BulkAction(ctx context.Context, in BulkInput) (*BulkResult, error) {
	fields := apperr.FieldSet{}
	checkStruct(in, bulkMessages, fields)
	switch in.Action {
	case BulkUpdateStatus:
		if in.NewStatus == "" {
			fields.Add("new_status", `Este campo é obrigatório quando a ação é "update_status".`)
		} else if !model.StatusPedido(in.NewStatus).Valid() {
			fields.Add("new_status", fmt.Sprintf("\"%s\" não é um escolha válido.", in.NewStatus))
		}
	case BulkUpdatePriority:
		if in.NewPriority == "" {
			fields.Add("new_priority", `Este campo é obrigatório quando a ação é "update_priority".`)
		} else if !model.PrioridadePedido(in.NewPriority).Valid() {
			fields.Add("new_priority", fmt.Sprintf("\"%s\" não é um escolha válido.", in.NewPriority))
		}
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	res := &BulkResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := func() *gorm.DB { return tx.Model(&model.Pedido{}).Where("id IN ?", in.PedidoIDs) }
		if err := q().Count(&res.Affected).Error; err != nil {
			return err
		}
		switch in.Action {
		case BulkUpdateStatus:
			st := model.StatusPedido(in.NewStatus)
			res.Message = fmt.Sprintf("%d pedido(s) tiveram o status atualizado para %s", res.Affected, st.Label())
			return q().Updates(map[string]any{"status": st, "updated_at": s.clock.now()}).Error
		case BulkUpdatePriority:
			pr := model.PrioridadePedido(in.NewPriority)
			res.Message = fmt.Sprintf("%d pedido(s) tiveram a prioridade atualizada para %s", res.Affected, pr.Label())
			return q().Updates(map[string]any{"prioridade": pr, "updated_at": s.clock.now()}).Error
		default:
			res.Message = fmt.Sprintf("%d pedido(s) excluído(s) com sucesso", res.Affected)
			return tx.Where("id IN ?", in.PedidoIDs).Delete(&model.Pedido{}).Error
		}
	})
	if err != nil {
		return nil, apperr.Internal.Explain("Erro ao executar ação em lote: %s", err).Wrap(err)
	}
	return res, nil
}

func (s *PedidoService) overdueQuery(ctx context.Context) *gorm.DB {
	today := model.DateOf(s.clock.now())
	return s.db.WithContext(ctx).Model(&model.Pedido{}).
		Where("pedidos.data_entrega_prevista < ? AND pedidos.status IN ?", today, statusEmAberto)
}

// Overdue lista os pedidos atrasados pela data prevista.
func (s *PedidoService) Overdue(ctx context.Context, page Page) (PageResult[model.Pedido], error) {
	return paginate[model.Pedido](s.overdueQuery(ctx).Preload("Cliente").Order("pedidos.data_entrega_prevista ASC"), page)
}

// OverdueCount conta os pedidos atrasados.
func (s *PedidoService) OverdueCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.overdueQuery(ctx).Count(&n).Error; err != nil {
		return 0, apperr.Internal.Wrap(err)
	}
	return n, nil
}

func sumValor(q *gorm.DB) (decimal.Decimal, error) {
	var row struct{ Soma decimal.Decimal }
	if err := q.Select("COALESCE(SUM(pedidos.valor_total), 0) AS soma").Scan(&row).Error; err != nil {
		return decimal.Zero, apperr.Internal.Wrap(err)
	}
	return row.Soma, nil
}

// Stats calcula as estatísticas gerais. Receita considera apenas pedidos entregues.
func (s *PedidoService) Stats(ctx context.Context) (*PedidoStats, error) {
	now := s.clock.now()
	inicioMes := monthStart(now)
	base := func() *gorm.DB { return s.db.WithContext(ctx).Model(&model.Pedido{}) }

	stats := &PedidoStats{}
	if err := base().Count(&stats.TotalOrders).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	var entregues int64
	if err := base().Where("status = ?", model.StatusEntregue).Count(&entregues).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	receita, err := sumValor(base().Where("status = ?", model.StatusEntregue))
	if err != nil {
		return nil, err
	}
	stats.TotalRevenue = NewMoney(receita)
	if entregues > 0 {
		stats.AverageOrderValue = NewMoney(receita.Div(decimal.NewFromInt(entregues)))
	}
	if err := base().Where("data_pedido >= ?", inicioMes).Count(&stats.MonthlyOrders).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	mensal, err := sumValor(base().Where("status = ? AND data_pedido >= ?", model.StatusEntregue, inicioMes))
	if err != nil {
		return nil, err
	}
	stats.MonthlyRevenue = NewMoney(mensal)

	if stats.StatusDistribution, err = countBy(base(), "status"); err != nil {
		return nil, err
	}
	if stats.PriorityDistribution, err = countBy(base(), "prioridade"); err != nil {
		return nil, err
	}
	if stats.OverdueOrders, err = s.OverdueCount(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}
