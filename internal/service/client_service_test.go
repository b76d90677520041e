package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/testutil"
)

var agora = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func relogio() time.Time { return agora }

func intPtr(v int) *int { return &v }

func fieldsOf(t *testing.T, err error) map[string][]string {
	t.Helper()
	require.Error(t, err)
	e := apperr.From(err)
	require.Equal(t, apperr.KindInvalid, e.Kind, err.Error())
	return e.Fields
}

func TestClientValidateCleansInput(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewClientService(db, relogio)

	c, err := svc.Validate(context.Background(), ClientInput{Name: "  joão da silva ", Email: " JOAO@Mail.com ", Age: intPtr(30)}, 0)
	require.NoError(t, err)
	assert.Equal(t, "João Da Silva", c.Name)
	assert.Equal(t, "joao@mail.com", c.Email)
	assert.Equal(t, 30, c.Age)
}

func TestClientValidateRejects(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewClientService(db, relogio)
	ctx := context.Background()
	existente := testutil.CreateClient(t, db, "Maria Souza", "maria@mail.com", 40)

	cases := []struct {
		name  string
		in    ClientInput
		field string
		msg   string
	}{
		{"menor de idade", ClientInput{Name: "Ana", Email: "ana@mail.com", Age: intPtr(17)}, "age", "Não aceitamos clientes menores de 18 anos."},
		{"idade irreal", ClientInput{Name: "Ana", Email: "ana@mail.com", Age: intPtr(121)}, "age", "Idade deve ser realista (máximo 120 anos)."},
		{"idade ausente", ClientInput{Name: "Ana", Email: "ana@mail.com"}, "age", "Idade é obrigatória."},
		{"nome com dígitos", ClientInput{Name: "Ana 2", Email: "ana@mail.com", Age: intPtr(20)}, "name", "Nome deve conter apenas letras e espaços."},
		{"nome curto", ClientInput{Name: "A", Email: "ana@mail.com", Age: intPtr(20)}, "name", "Nome deve ter pelo menos 2 caracteres."},
		{"email inválido", ClientInput{Name: "Ana", Email: "ana", Age: intPtr(20)}, "email", "Insira um endereço de email válido."},
		{"domínio proibido", ClientInput{Name: "Ana", Email: "ana@tempmail.com", Age: intPtr(20)}, "email", "Este domínio de email não é permitido."},
		{"email repetido", ClientInput{Name: "Ana", Email: "MARIA@mail.com", Age: intPtr(20)}, "email", "Este email já está cadastrado."},
		{"nome e idade", ClientInput{Name: "Carlos Junior", Email: "cj@mail.com", Age: intPtr(85)}, apperr.NonFieldErrors, "Há uma inconsistência entre o nome e a idade informada."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Validate(ctx, tc.in, 0)
			fields := fieldsOf(t, err)
			assert.Equal(t, []string{tc.msg}, fields[tc.field])
		})
	}

	_, err := svc.Validate(ctx, ClientInput{Name: "Maria Souza", Email: "maria@mail.com", Age: intPtr(41)}, existente.ID)
	assert.NoError(t, err)

	outro := testutil.CreateClient(t, db, "Jose Lima", "jose@mail.com", 50)
	_, err = svc.Validate(ctx, ClientInput{Name: "Jose Lima", Email: "maria@mail.com", Age: intPtr(50)}, outro.ID)
	assert.Equal(t, []string{"Este email já está sendo usado por outro cliente."}, fieldsOf(t, err)["email"])
}

func TestClientListFiltersAndPaginates(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewClientService(db, relogio)
	ctx := context.Background()

	ana := testutil.CreateClient(t, db, "Ana Costa", "ana@mail.com", 22)
	testutil.CreateClient(t, db, "Bruno Alves", "bruno@mail.com", 35)
	testutil.CreateClient(t, db, "Carla Dias", "carla@empresa.com", 60)
	testutil.CreatePedido(t, db, ana.ID, "10.00", testutil.WithDataPedido(agora))
	testutil.CreatePedido(t, db, ana.ID, "20.00", testutil.WithDataPedido(agora))

	res, err := svc.List(ctx, ClientFilter{}, Page{Number: 1, Size: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
	assert.Equal(t, 2, res.NumPages())
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Ana Costa", res.Items[0].Name)
	assert.EqualValues(t, 2, res.Items[0].TotalPedidos)
	assert.True(t, res.HasNext())

	res, err = svc.List(ctx, ClientFilter{Search: "EMPRESA"}, Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Carla Dias", res.Items[0].Name)

	res, err = svc.List(ctx, ClientFilter{AgeMin: intPtr(30), AgeMax: intPtr(59), Ordering: "-age"}, Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Bruno Alves", res.Items[0].Name)

	res, err = svc.List(ctx, ClientFilter{}, Page{Number: 9, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Number)

	// idade mínima maior que a máxima descarta os filtros
	res, err = svc.List(ctx, ClientFilter{AgeMin: intPtr(60), AgeMax: intPtr(20)}, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
}

func TestClientValidateFilter(t *testing.T) {
	svc := NewClientService(nil, relogio)
	err := svc.ValidateFilter(ClientFilter{AgeMin: intPtr(10), AgeMax: intPtr(200)})
	fields := fieldsOf(t, err)
	assert.Equal(t, []string{"Certifique-se que este valor seja maior ou igual a 18."}, fields["age_min"])
	assert.Equal(t, []string{"Certifique-se que este valor seja menor ou igual a 120."}, fields["age_max"])

	err = svc.ValidateFilter(ClientFilter{AgeMin: intPtr(50), AgeMax: intPtr(30)})
	assert.Equal(t, []string{"Idade mínima não pode ser maior que idade máxima."}, fieldsOf(t, err)[apperr.NonFieldErrors])

	assert.NoError(t, svc.ValidateFilter(ClientFilter{}))
}

func TestClientCrud(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewClientService(db, relogio)
	ctx := context.Background()

	c, err := svc.Create(ctx, ClientInput{Name: "paulo mendes", Email: "paulo@mail.com", Age: intPtr(33)})
	require.NoError(t, err)
	assert.Equal(t, "Paulo Mendes", c.Name)

	c, err = svc.PartialUpdate(ctx, c.ID, ClientPatch{Age: intPtr(34)})
	require.NoError(t, err)
	assert.Equal(t, 34, c.Age)
	assert.Equal(t, "paulo@mail.com", c.Email)

	testutil.CreatePedido(t, db, c.ID, "99.90", testutil.WithDataPedido(agora))
	deleted, err := svc.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paulo Mendes", deleted.Name)

	var pedidos int64
	db.Model(&model.Pedido{}).Count(&pedidos)
	assert.Zero(t, pedidos)

	_, err = svc.Get(ctx, c.ID)
	assert.ErrorIs(t, err, apperr.NotFound)
}

func TestClientBulkDelete(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewClientService(db, relogio)
	ctx := context.Background()

	_, err := svc.BulkDelete(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, "Nenhum cliente selecionado", apperr.From(err).Message)

	a := testutil.CreateClient(t, db, "Ana", "a@mail.com", 20)
	b := testutil.CreateClient(t, db, "Bia", "b@mail.com", 20)
	testutil.CreateClient(t, db, "Caio", "c@mail.com", 20)
	testutil.CreatePedido(t, db, a.ID, "5.00", testutil.WithDataPedido(agora))

	n, err := svc.BulkDelete(ctx, []uint{a.ID, b.ID, 999})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	var restantes int64
	db.Model(&model.Client{}).Count(&restantes)
	assert.EqualValues(t, 1, restantes)
}

func TestClientDetailAndPedidos(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewClientService(db, relogio)
	ctx := context.Background()

	c := testutil.CreateClient(t, db, "Ana", "a@mail.com", 20)
	testutil.CreatePedido(t, db, c.ID, "10.00", testutil.WithDataPedido(agora))
	testutil.CreatePedido(t, db, c.ID, "20.00", testutil.WithDataPedido(agora.Add(time.Hour)), testutil.WithStatus(model.StatusEntregue))
	testutil.CreatePedido(t, db, c.ID, "30.50", testutil.WithDataPedido(agora.Add(2*time.Hour)), testutil.WithPrioridade(model.PrioridadeUrgente))

	d, err := svc.Detail(ctx, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, d.TotalPedidos)
	assert.Equal(t, "60.50", d.PedidosStats.ValorTotal)
	assert.Equal(t, "20.17", d.PedidosStats.ValorMedio)
	assert.Equal(t, map[string]int64{"pendente": 2, "entregue": 1}, d.PedidosPorStatus)

	cp, err := svc.Pedidos(ctx, c.ID, "", string(model.PrioridadeUrgente), Page{Size: 10})
	require.NoError(t, err)
	require.Len(t, cp.Pedidos.Items, 1)
	assert.Equal(t, "30.50", cp.Pedidos.Items[0].ValorTotal.StringFixed(2))
	assert.EqualValues(t, 3, cp.Stats.TotalPedidos)

	cp, err = svc.Pedidos(ctx, c.ID, "", "", Page{Size: 10})
	require.NoError(t, err)
	require.Len(t, cp.Pedidos.Items, 3)
	assert.True(t, cp.Pedidos.Items[0].DataPedido.After(cp.Pedidos.Items[2].DataPedido))

	_, err = svc.Detail(ctx, 404)
	assert.ErrorIs(t, err, apperr.NotFound)
}

func TestClientStats(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewClientService(db, relogio)

	testutil.CreateClient(t, db, "Ana", "a@mail.com", 20)
	testutil.CreateClient(t, db, "Bia", "b@mail.com", 30)
	testutil.CreateClient(t, db, "Caio", "c@mail.com", 71)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.Equal(t, 40.3, stats.AverageAge)
	assert.Equal(t, 20, stats.Youngest)
	assert.Equal(t, 71, stats.Oldest)
	assert.Equal(t, map[string]int64{"18-25": 1, "26-35": 1, "65+": 1}, stats.AgeGroups)
}
