package api

import (
	"time"

	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/service"
)

// ClientDTO é o cliente na listagem e nas respostas de escrita.
type ClientDTO struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Age          int       `json:"age"`
	AgeGroup     string    `json:"age_group"`
	DisplayName  string    `json:"display_name"`
	TotalPedidos int64     `json:"total_pedidos"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newClientDTO(c model.Client, totalPedidos int64) ClientDTO {
	return ClientDTO{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		Age:          c.Age,
		AgeGroup:     c.AgeGroup(),
		DisplayName:  c.DisplayName(),
		TotalPedidos: totalPedidos,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// ClientDetailDTO acrescenta o resumo dos pedidos.
type ClientDetailDTO struct {
	ClientDTO
	PedidosStats     service.PedidosStats `json:"pedidos_stats"`
	PedidosPorStatus map[string]int64     `json:"pedidos_por_status"`
}

func newClientDetailDTO(d *service.ClientDetail) ClientDetailDTO {
	return ClientDetailDTO{
		ClientDTO:        newClientDTO(d.Client, d.TotalPedidos),
		PedidosStats:     d.PedidosStats,
		PedidosPorStatus: d.PedidosPorStatus,
	}
}

// pedidoFields são os campos comuns à listagem e ao detalhe.
type pedidoFields struct {
	ID                     uint          `json:"id"`
	NumeroPedido           string        `json:"numero_pedido"`
	Descricao              string        `json:"descricao"`
	ValorTotal             service.Money `json:"valor_total"`
	Status                 string        `json:"status"`
	StatusDisplay          string        `json:"status_display"`
	StatusDisplayClass     string        `json:"status_display_class"`
	Prioridade             string        `json:"prioridade"`
	PrioridadeDisplay      string        `json:"prioridade_display"`
	PrioridadeDisplayClass string        `json:"prioridade_display_class"`
	DataPedido             time.Time     `json:"data_pedido"`
	DataEntregaPrevista    *string       `json:"data_entrega_prevista"`
	IsOverdue              bool          `json:"is_overdue"`
	DaysUntilDelivery      *int          `json:"days_until_delivery"`
	CanBeCancelled         bool          `json:"can_be_cancelled"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

func newPedidoFields(p model.Pedido, now time.Time) pedidoFields {
	f := pedidoFields{
		ID:                     p.ID,
		NumeroPedido:           p.NumeroPedido,
		Descricao:              p.Descricao,
		ValorTotal:             service.NewMoney(p.ValorTotal),
		Status:                 string(p.Status),
		StatusDisplay:          p.Status.Label(),
		StatusDisplayClass:     p.Status.CSSClass(),
		Prioridade:             string(p.Prioridade),
		PrioridadeDisplay:      p.Prioridade.Label(),
		PrioridadeDisplayClass: p.Prioridade.CSSClass(),
		DataPedido:             p.DataPedido,
		IsOverdue:              p.IsOverdue(now),
		DaysUntilDelivery:      p.DaysUntilDelivery(now),
		CanBeCancelled:         p.CanBeCancelled(),
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
	if p.DataEntregaPrevista != nil {
		s := p.DataEntregaPrevista.Format(time.DateOnly)
		f.DataEntregaPrevista = &s
	}
	return f
}

// PedidoListDTO é o pedido na listagem, com nome e email do cliente.
type PedidoListDTO struct {
	pedidoFields
	Cliente      uint   `json:"cliente"`
	ClienteNome  string `json:"cliente_nome"`
	ClienteEmail string `json:"cliente_email"`
}

func newPedidoListDTO(p model.Pedido, now time.Time) PedidoListDTO {
	return PedidoListDTO{
		pedidoFields: newPedidoFields(p, now),
		Cliente:      p.ClienteID,
		ClienteNome:  p.Cliente.Name,
		ClienteEmail: p.Cliente.Email,
	}
}

// PedidoDetailDTO traz o cliente completo e as observações.
type PedidoDetailDTO struct {
	pedidoFields
	Cliente              ClientDTO  `json:"cliente"`
	DataEntregaRealizada *time.Time `json:"data_entrega_realizada"`
	Observacoes          string     `json:"observacoes"`
}

func newPedidoDetailDTO(p model.Pedido, now time.Time, totalPedidosCliente int64) PedidoDetailDTO {
	return PedidoDetailDTO{
		pedidoFields:         newPedidoFields(p, now),
		Cliente:              newClientDTO(p.Cliente, totalPedidosCliente),
		DataEntregaRealizada: p.DataEntregaRealizada,
		Observacoes:          p.Observacoes,
	}
}

// GroupDTO é o grupo resumido dentro do usuário.
type GroupDTO struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// UserDTO é o usuário na listagem administrativa.
type UserDTO struct {
	ID         uint       `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	IsActive   bool       `json:"is_active"`
	DateJoined time.Time  `json:"date_joined"`
	Groups     []GroupDTO `json:"groups"`
	GroupNames []string   `json:"group_names"`
}

func newUserDTO(u model.Usuario) UserDTO {
	groups := make([]GroupDTO, 0, len(u.Grupos))
	for _, g := range u.Grupos {
		groups = append(groups, GroupDTO{ID: g.ID, Name: g.Name})
	}
	return UserDTO{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsActive:   u.IsActive,
		DateJoined: u.DateJoined,
		Groups:     groups,
		GroupNames: u.GroupNames(),
	}
}
