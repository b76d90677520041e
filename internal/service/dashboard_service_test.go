package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ericoliveiras/gestao-clientes/internal/cache"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/testutil"
)

func newDashboard(t *testing.T, db *gorm.DB, store cache.Store) *DashboardService {
	t.Helper()
	clients := NewClientService(db, relogio)
	pedidos := NewPedidoService(db, relogio)
	return NewDashboardService(db, clients, pedidos, store, time.Minute, relogio)
}

// seedDashboard grava dois clientes com pedidos espalhados em três meses.
func seedDashboard(t *testing.T, db *gorm.DB) (*model.Client, *model.Client) {
	t.Helper()
	ana := testutil.CreateClient(t, db, "Ana Costa", "ana@mail.com", 22)
	bia := testutil.CreateClient(t, db, "Bia Lima", "bia@mail.com", 40)
	testutil.CreateClient(t, db, "Caio Reis", "caio@mail.com", 70)

	testutil.CreatePedido(t, db, ana.ID, "100.00", testutil.WithDataPedido(agora), testutil.WithStatus(model.StatusEntregue))
	testutil.CreatePedido(t, db, ana.ID, "50.00", testutil.WithDataPedido(agora.Add(-time.Hour)))
	testutil.CreatePedido(t, db, bia.ID, "30.00", testutil.WithDataPedido(agora.AddDate(0, 0, -3)), testutil.WithPrioridade(model.PrioridadeAlta))
	testutil.CreatePedido(t, db, bia.ID, "20.00", testutil.WithDataPedido(agora.AddDate(0, -1, 0)), testutil.WithStatus(model.StatusEntregue))
	testutil.CreatePedido(t, db, bia.ID, "10.00", testutil.WithDataPedido(agora.AddDate(0, -2, 0)),
		testutil.WithEntregaPrevista(model.DateOf(agora).AddDate(0, 0, -1)), testutil.WithStatus(model.StatusProcessando))
	testutil.CreatePedido(t, db, bia.ID, "5.00", testutil.WithDataPedido(agora.AddDate(-2, 0, 0)), testutil.WithStatus(model.StatusEntregue))
	return ana, bia
}

func TestDashboardOverview(t *testing.T) {
	db := testutil.NewDB(t)
	ana, bia := seedDashboard(t, db)
	svc := newDashboard(t, db, nil)

	o, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, o.ClientStats.Total)
	assert.EqualValues(t, 6, o.PedidoStats.TotalOrders)
	assert.Equal(t, "125.00", o.PedidoStats.TotalRevenue.String())
	require.Len(t, o.RecentOrders, 6)
	assert.Equal(t, "100.00", o.RecentOrders[0].ValorTotal.StringFixed(2))
	assert.Equal(t, "Ana Costa", o.RecentOrders[0].Cliente.Name)

	require.Len(t, o.TopClients, 2)
	assert.Equal(t, ana.ID, o.TopClients[0].ID)
	assert.Equal(t, "150.00", o.TopClients[0].TotalSpent.String())
	assert.Equal(t, bia.ID, o.TopClients[1].ID)
	assert.EqualValues(t, 4, o.TopClients[1].TotalOrders)
}

func TestDashboardQuickStatsIsCached(t *testing.T) {
	db := testutil.NewDB(t)
	ana, _ := seedDashboard(t, db)
	now := agora
	store := cache.NewMemoryStore().WithClock(func() time.Time { return now })
	svc := newDashboard(t, db, store)
	ctx := context.Background()

	q, err := svc.QuickStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, q.TotalClients)
	assert.EqualValues(t, 6, q.TotalOrders)
	assert.EqualValues(t, 2, q.OrdersToday)
	assert.EqualValues(t, 3, q.OrdersThisMonth)
	assert.EqualValues(t, 1, q.OverdueOrders)
	assert.EqualValues(t, 2, q.PendingOrders)
	assert.Equal(t, "125.00", q.TotalRevenue.String())
	assert.Equal(t, "100.00", q.MonthlyRevenue.String())

	testutil.CreatePedido(t, db, ana.ID, "1.00", testutil.WithDataPedido(agora))
	q, err = svc.QuickStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6, q.TotalOrders)
	assert.Equal(t, "125.00", q.TotalRevenue.String())

	now = now.Add(2 * time.Minute)
	q, err = svc.QuickStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 7, q.TotalOrders)
}

func TestDashboardChartsData(t *testing.T) {
	db := testutil.NewDB(t)
	seedDashboard(t, db)
	svc := newDashboard(t, db, nil)

	c, err := svc.ChartsData(context.Background())
	require.NoError(t, err)
	require.Len(t, c.DailyOrders, 2)
	assert.Equal(t, DailyPoint{Date: "2024-06-12", Count: 1, Revenue: c.DailyOrders[0].Revenue}, c.DailyOrders[0])
	assert.Equal(t, "30.00", c.DailyOrders[0].Revenue.String())
	assert.Equal(t, "2024-06-15", c.DailyOrders[1].Date)
	assert.EqualValues(t, 2, c.DailyOrders[1].Count)
	assert.Equal(t, "150.00", c.DailyOrders[1].Revenue.String())

	require.Len(t, c.MonthlyRevenue, 2)
	assert.Equal(t, "2024-05", c.MonthlyRevenue[0].Month)
	assert.Equal(t, "20.00", c.MonthlyRevenue[0].Revenue.String())
	assert.Equal(t, "2024-06", c.MonthlyRevenue[1].Month)
	assert.EqualValues(t, 1, c.MonthlyRevenue[1].Orders)

	assert.Equal(t, map[string]int64{"entregue": 3, "pendente": 2, "processando": 1}, c.StatusDistribution)
	assert.Equal(t, map[string]int64{"normal": 5, "alta": 1}, c.PriorityDistribution)
	assert.Len(t, c.TopClients, 2)
}

func TestDashboardPedidos(t *testing.T) {
	db := testutil.NewDB(t)
	_, bia := seedDashboard(t, db)
	svc := newDashboard(t, db, nil)

	d, err := svc.DashboardPedidos(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, d.Atrasados)
	assert.EqualValues(t, 3, d.PedidosMes)
	require.NotEmpty(t, d.TopClientes)
	assert.Equal(t, bia.ID, d.TopClientes[0].ID)
	assert.EqualValues(t, 2, d.PorStatus["pendente"])
}

func TestReports(t *testing.T) {
	db := testutil.NewDB(t)
	ana, bia := seedDashboard(t, db)
	svc := newDashboard(t, db, nil)
	ctx := context.Background()

	rep, err := svc.Reports(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, rep.Warnings)
	assert.EqualValues(t, 6, rep.Gerais.TotalPedidos)
	assert.Equal(t, "215.00", rep.Gerais.ValorTotal)

	require.Len(t, rep.PorStatus, 3)
	assert.Equal(t, "entregue", rep.PorStatus[0].Chave)
	assert.Equal(t, "Entregue", rep.PorStatus[0].Label)
	assert.EqualValues(t, 3, rep.PorStatus[0].Count)
	assert.Equal(t, "125.00", rep.PorStatus[0].ValorTotal.String())

	require.Len(t, rep.TopValor, 2)
	assert.Equal(t, ana.ID, rep.TopValor[0].ID)
	assert.Equal(t, bia.ID, rep.TopQuantidade[0].ID)

	// o pedido de dois anos atrás fica fora da série mensal
	var meses []string
	for _, m := range rep.PorMes {
		meses = append(meses, m.Month)
	}
	assert.Equal(t, []string{"2024-04", "2024-05", "2024-06"}, meses)
	assert.EqualValues(t, 1, rep.TotalAtrasados)
	require.Len(t, rep.Atrasados, 1)
	assert.Equal(t, "Bia Lima", rep.Atrasados[0].Cliente.Name)

	rep, err = svc.Reports(ctx, "2024-06-01", "2024-06-30")
	require.NoError(t, err)
	assert.EqualValues(t, 3, rep.Gerais.TotalPedidos)
	require.Len(t, rep.TopValor, 2)
	assert.Equal(t, "30.00", rep.TopValor[1].TotalSpent.String())
	assert.Zero(t, rep.TotalAtrasados)

	rep, err = svc.Reports(ctx, "01-06-2024", "ontem")
	require.NoError(t, err)
	assert.Equal(t, []string{"Data de início inválida.", "Data de fim inválida."}, rep.Warnings)
	assert.EqualValues(t, 6, rep.Gerais.TotalPedidos)
}
