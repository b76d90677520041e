package model

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgeGroupOf(t *testing.T) {
	cases := map[int]string{
		18: FaixaEtaria18a25, 25: FaixaEtaria18a25, 26: FaixaEtaria26a35,
		35: FaixaEtaria26a35, 50: FaixaEtaria36a50, 51: FaixaEtaria51a65,
		65: FaixaEtaria51a65, 66: FaixaEtariaAcima65, 120: FaixaEtariaAcima65,
	}
	for age, want := range cases {
		assert.Equal(t, want, AgeGroupOf(age), "idade %d", age)
	}
}

func TestClientDisplay(t *testing.T) {
	c := Client{Name: "Maria Silva", Email: "maria@teste.com"}
	assert.Equal(t, "Maria Silva (maria@teste.com)", c.DisplayName())
	assert.Equal(t, "Client: Maria Silva", c.String())
}

func TestNovoNumeroPedido(t *testing.T) {
	n := NovoNumeroPedido(time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^PED-20240309-[0-9A-F]{8}$`), n)
	assert.NotEqual(t, n, NovoNumeroPedido(time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)))
}

func TestBeforeCreateDefaults(t *testing.T) {
	p := &Pedido{}
	require.NoError(t, p.BeforeCreate(nil))
	assert.Equal(t, StatusPendente, p.Status)
	assert.Equal(t, PrioridadeNormal, p.Prioridade)
	assert.False(t, p.DataPedido.IsZero())
	assert.Contains(t, p.NumeroPedido, "PED-")
}

func TestPedidoOverdue(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	ontem := now.AddDate(0, 0, -1)
	hoje := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	p := Pedido{Status: StatusEnviado, DataEntregaPrevista: &ontem}
	assert.True(t, p.IsOverdue(now))
	assert.Equal(t, -1, *p.DaysUntilDelivery(now))

	p.Status = StatusEntregue
	assert.False(t, p.IsOverdue(now))
	assert.Nil(t, p.DaysUntilDelivery(now))

	p = Pedido{Status: StatusPendente, DataEntregaPrevista: &hoje}
	assert.False(t, p.IsOverdue(now))
	assert.Equal(t, 0, *p.DaysUntilDelivery(now))

	p = Pedido{Status: StatusPendente}
	assert.False(t, p.IsOverdue(now))
	assert.Nil(t, p.DaysUntilDelivery(now))
}

func TestPedidoCancel(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 5, 0, 0, time.UTC)
	p := Pedido{Status: StatusProcessando, Observacoes: "Cliente pediu pressa."}
	require.True(t, p.CanBeCancelled())

	p.Cancel("desistência", now)
	assert.Equal(t, StatusCancelado, p.Status)
	assert.Equal(t, "Cliente pediu pressa.\n\n[10/05/2024 09:05] Pedido cancelado. Motivo: desistência", p.Observacoes)
	assert.False(t, p.CanBeCancelled())
}

func TestPedidoChangeStatus(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 5, 0, 0, time.UTC)
	p := Pedido{Status: StatusEnviado}
	p.ChangeStatus(StatusEntregue, "recebido na portaria", now)
	assert.Equal(t, StatusEntregue, p.Status)
	require.NotNil(t, p.DataEntregaRealizada)
	assert.Equal(t, "[10/05/2024 09:05] Status alterado para 'Entregue': recebido na portaria", p.Observacoes)

	p.ChangeStatus(StatusProcessando, "", now)
	assert.Equal(t, "[10/05/2024 09:05] Status alterado para 'Entregue': recebido na portaria", p.Observacoes)
}

func TestChoicesLabels(t *testing.T) {
	assert.Equal(t, "Processando", StatusProcessando.Label())
	assert.Equal(t, "danger", StatusCancelado.CSSClass())
	assert.False(t, StatusPedido("pago").Valid())
	assert.Equal(t, "Urgente", PrioridadeUrgente.Label())
	assert.Equal(t, "secondary", PrioridadeBaixa.CSSClass())
	assert.True(t, PrioridadeAlta.Valid())
}

func TestUsuarioHelpers(t *testing.T) {
	u := Usuario{Username: "joao", Grupos: []Grupo{{Name: GrupoGerentes}}}
	assert.Equal(t, "joao", u.FullName())
	u.FirstName, u.LastName = "João", "Souza"
	assert.Equal(t, "João Souza", u.FullName())
	assert.True(t, u.InGroup(GrupoAdministradores, GrupoGerentes))
	assert.False(t, u.InGroup(GrupoFuncionarios))
	assert.Equal(t, []string{GrupoGerentes}, u.GroupNames())

	g := Grupo{Permissoes: "view_client,add_client"}
	assert.Equal(t, []string{"view_client", "add_client"}, g.PermissionList())
}
