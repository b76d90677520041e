// /internal/model/pedido.go
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatusPedido define os possíveis status de um pedido
type StatusPedido string

const (
	StatusPendente    StatusPedido = "pendente"
	StatusProcessando StatusPedido = "processando"
	StatusEnviado     StatusPedido = "enviado"
	StatusEntregue    StatusPedido = "entregue"
	StatusCancelado   StatusPedido = "cancelado"
)

// StatusChoices segue a ordem de exibição nos formulários.
var StatusChoices = []StatusPedido{
	StatusPendente, StatusProcessando, StatusEnviado, StatusEntregue, StatusCancelado,
}

var statusLabels = map[StatusPedido]string{
	StatusPendente:    "Pendente",
	StatusProcessando: "Processando",
	StatusEnviado:     "Enviado",
	StatusEntregue:    "Entregue",
	StatusCancelado:   "Cancelado",
}

var statusClasses = map[StatusPedido]string{
	StatusPendente:    "warning",
	StatusProcessando: "info",
	StatusEnviado:     "primary",
	StatusEntregue:    "success",
	StatusCancelado:   "danger",
}

func (s StatusPedido) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s StatusPedido) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// CSSClass é a classe do badge usado nos templates.
func (s StatusPedido) CSSClass() string {
	if c, ok := statusClasses[s]; ok {
		return c
	}
	return "secondary"
}

// PrioridadePedido define a prioridade de atendimento.
type PrioridadePedido string

const (
	PrioridadeBaixa   PrioridadePedido = "baixa"
	PrioridadeNormal  PrioridadePedido = "normal"
	PrioridadeAlta    PrioridadePedido = "alta"
	PrioridadeUrgente PrioridadePedido = "urgente"
)

var PrioridadeChoices = []PrioridadePedido{
	PrioridadeBaixa, PrioridadeNormal, PrioridadeAlta, PrioridadeUrgente,
}

var prioridadeLabels = map[PrioridadePedido]string{
	PrioridadeBaixa:   "Baixa",
	PrioridadeNormal:  "Normal",
	PrioridadeAlta:    "Alta",
	PrioridadeUrgente: "Urgente",
}

var prioridadeClasses = map[PrioridadePedido]string{
	PrioridadeBaixa:   "secondary",
	PrioridadeNormal:  "info",
	PrioridadeAlta:    "warning",
	PrioridadeUrgente: "danger",
}

func (p PrioridadePedido) Valid() bool {
	_, ok := prioridadeLabels[p]
	return ok
}

func (p PrioridadePedido) Label() string {
	if l, ok := prioridadeLabels[p]; ok {
		return l
	}
	return string(p)
}

func (p PrioridadePedido) CSSClass() string {
	if c, ok := prioridadeClasses[p]; ok {
		return c
	}
	return "secondary"
}

// Formatos de data usados nas observações e nos relatórios.
const (
	LayoutDataHora = "02/01/2006 15:04"
	LayoutData     = "02/01/2006"
)

// Pedido representa um pedido feito por um cliente.
type Pedido struct {
	ID                   uint             `gorm:"primaryKey" json:"id"`
	NumeroPedido         string           `gorm:"size:20;not null;uniqueIndex" json:"numero_pedido"`
	ClienteID            uint             `gorm:"not null;index" json:"cliente"`
	Cliente              Client           `gorm:"foreignKey:ClienteID" json:"-"`
	Descricao            string           `gorm:"type:text;not null" json:"descricao"`
	ValorTotal           decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"valor_total"`
	Status               StatusPedido     `gorm:"size:20;not null;default:'pendente';index" json:"status"`
	Prioridade           PrioridadePedido `gorm:"size:10;not null;default:'normal'" json:"prioridade"`
	DataPedido           time.Time        `gorm:"not null;index" json:"data_pedido"`
	DataEntregaPrevista  *time.Time       `gorm:"type:date" json:"data_entrega_prevista"`
	DataEntregaRealizada *time.Time       `json:"data_entrega_realizada"`
	Observacoes          string           `gorm:"type:text" json:"observacoes"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

func (p Pedido) String() string {
	return fmt.Sprintf("Pedido %s - %s", p.NumeroPedido, p.Cliente.Name)
}

// BeforeCreate preenche número, data e valores padrão do pedido.
func (p *Pedido) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if p.DataPedido.IsZero() {
		p.DataPedido = now
	}
	if p.NumeroPedido == "" {
		p.NumeroPedido = NovoNumeroPedido(p.DataPedido)
	}
	if p.Status == "" {
		p.Status = StatusPendente
	}
	if p.Prioridade == "" {
		p.Prioridade = PrioridadeNormal
	}
	return nil
}

// NovoNumeroPedido gera um número no formato PED-YYYYMMDD-XXXXXXXX.
func NovoNumeroPedido(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("PED-%s-%s", t.Format("20060102"), suffix)
}

// StatusLabel e os métodos seguintes existem para os templates.
func (p Pedido) StatusLabel() string     { return p.Status.Label() }
func (p Pedido) StatusClass() string     { return p.Status.CSSClass() }
func (p Pedido) PrioridadeLabel() string { return p.Prioridade.Label() }
func (p Pedido) PrioridadeClass() string { return p.Prioridade.CSSClass() }

func (p Pedido) emAberto() bool {
	return p.Status == StatusPendente || p.Status == StatusProcessando || p.Status == StatusEnviado
}

// IsOverdue indica se a entrega prevista já passou e o pedido segue em aberto.
func (p Pedido) IsOverdue(now time.Time) bool {
	if p.DataEntregaPrevista == nil || !p.emAberto() {
		return false
	}
	return diasEntre(now, *p.DataEntregaPrevista) < 0
}

// DaysUntilDelivery devolve nil quando não há previsão ou o pedido já terminou.
func (p Pedido) DaysUntilDelivery(now time.Time) *int {
	if p.DataEntregaPrevista == nil || p.Status == StatusEntregue || p.Status == StatusCancelado {
		return nil
	}
	days := diasEntre(now, *p.DataEntregaPrevista)
	return &days
}

func (p Pedido) CanBeCancelled() bool {
	return p.Status == StatusPendente || p.Status == StatusProcessando
}

// AppendObservacao acrescenta um parágrafo às observações.
func (p *Pedido) AppendObservacao(text string) {
	if p.Observacoes == "" {
		p.Observacoes = text
		return
	}
	p.Observacoes += "\n\n" + text
}

// Cancel marca o pedido como cancelado e registra o motivo.
func (p *Pedido) Cancel(motivo string, now time.Time) {
	p.Status = StatusCancelado
	p.AppendObservacao(fmt.Sprintf("[%s] Pedido cancelado. Motivo: %s", now.Format(LayoutDataHora), motivo))
}

// ChangeStatus altera o status e registra a observação, se houver.
func (p *Pedido) ChangeStatus(status StatusPedido, observacao string, now time.Time) {
	p.Status = status
	if status == StatusEntregue && p.DataEntregaRealizada == nil {
		t := now
		p.DataEntregaRealizada = &t
	}
	if observacao != "" {
		p.AppendObservacao(fmt.Sprintf("[%s] Status alterado para '%s': %s", now.Format(LayoutDataHora), status.Label(), observacao))
	}
}

// diasEntre conta dias de calendário de a até b, ignorando fuso e horário.
func diasEntre(a, b time.Time) int {
	ya, ma, da := a.Date()
	yb, mb, db := b.Date()
	ta := time.Date(ya, ma, da, 0, 0, 0, 0, time.UTC)
	tb := time.Date(yb, mb, db, 0, 0, 0, 0, time.UTC)
	return int(tb.Sub(ta).Hours() / 24)
}

// DateOf trunca o horário, mantendo o fuso de t.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
