package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
	"github.com/ericoliveiras/gestao-clientes/internal/cache"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
)

const quickStatsKey = "dashboard:quick_stats"

// TopClient é um cliente no ranking por valor ou por quantidade de pedidos.
type TopClient struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	TotalSpent  Money  `json:"total_spent"`
	TotalOrders int64  `json:"total_orders"`
}

// Overview é a visão geral do dashboard da API.
type Overview struct {
	ClientStats  *ClientStats   `json:"client_stats"`
	PedidoStats  *PedidoStats   `json:"pedido_stats"`
	RecentOrders []model.Pedido `json:"recent_orders"`
	TopClients   []TopClient    `json:"top_clients"`
}

// QuickStats são os números dos widgets do dashboard.
type QuickStats struct {
	TotalClients    int64 `json:"total_clients"`
	TotalOrders     int64 `json:"total_orders"`
	OrdersToday     int64 `json:"orders_today"`
	OrdersThisMonth int64 `json:"orders_this_month"`
	OverdueOrders   int64 `json:"overdue_orders"`
	PendingOrders   int64 `json:"pending_orders"`
	TotalRevenue    Money `json:"total_revenue"`
	MonthlyRevenue  Money `json:"monthly_revenue"`
}

type DailyPoint struct {
	Date    string `json:"date"`
	Count   int64  `json:"count"`
	Revenue Money  `json:"revenue"`
}

type MonthlyPoint struct {
	Month   string `json:"month"`
	Revenue Money  `json:"revenue"`
	Orders  int64  `json:"orders"`
}

// ChartsData alimenta os gráficos do dashboard.
type ChartsData struct {
	DailyOrders          []DailyPoint     `json:"daily_orders"`
	MonthlyRevenue       []MonthlyPoint   `json:"monthly_revenue"`
	StatusDistribution   map[string]int64 `json:"status_distribution"`
	PriorityDistribution map[string]int64 `json:"priority_distribution"`
	TopClients           []TopClient      `json:"top_clients"`
}

// DashboardPedidos é o painel web de pedidos.
type DashboardPedidos struct {
	Stats         *PedidoStats
	PorStatus     map[string]int64
	PorPrioridade map[string]int64
	Atrasados     int64
	PedidosMes    int64
	TopClientes   []TopClient
}

// GroupTotal é a contagem e a soma de um status ou prioridade.
type GroupTotal struct {
	Chave      string
	Label      string
	Count      int64
	ValorTotal Money
}

// Report é o relatório de pedidos de um período.
type Report struct {
	DataInicio     string
	DataFim        string
	Warnings       []string
	Gerais         PedidosStats
	PorStatus      []GroupTotal
	PorPrioridade  []GroupTotal
	TopValor       []TopClient
	TopQuantidade  []TopClient
	PorMes         []MonthlyPoint
	Atrasados      []model.Pedido
	TotalAtrasados int64
}

type DashboardService struct {
	db       *gorm.DB
	clients  *ClientService
	pedidos  *PedidoService
	cache    cache.Store
	cacheTTL time.Duration
	clock    Clock
}

func NewDashboardService(db *gorm.DB, clients *ClientService, pedidos *PedidoService, store cache.Store, cacheTTL time.Duration, clock Clock) *DashboardService {
	return &DashboardService{db: db, clients: clients, pedidos: pedidos, cache: store, cacheTTL: cacheTTL, clock: clock}
}

type topClientRow struct {
	ID          uint
	Name        string
	TotalSpent  decimal.Decimal
	TotalOrders int64
}

// topClients ranqueia clientes com ao menos um pedido em q.
func topClients(q *gorm.DB, order string, limit int, onlyPositive bool) ([]TopClient, error) {
	q = q.Table("clients").
		Select("clients.id AS id, clients.name AS name, COALESCE(SUM(pedidos.valor_total), 0) AS total_spent, COUNT(pedidos.id) AS total_orders").
		Joins("JOIN pedidos ON pedidos.cliente_id = clients.id").
		Group("clients.id, clients.name")
	if onlyPositive {
		q = q.Having("SUM(pedidos.valor_total) > 0")
	}
	var rows []topClientRow
	if err := q.Order(order).Order("clients.id").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	out := make([]TopClient, 0, len(rows))
	for _, r := range rows {
		out = append(out, TopClient{ID: r.ID, Name: r.Name, TotalSpent: NewMoney(r.TotalSpent), TotalOrders: r.TotalOrders})
	}
	return out, nil
}

func (s *DashboardService) pedidosQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&model.Pedido{})
}

// Overview junta as estatísticas de clientes e pedidos, os 10 pedidos mais
// recentes e os 5 clientes que mais gastaram.
func (s *DashboardService) Overview(ctx context.Context) (*Overview, error) {
	clientStats, err := s.clients.Stats(ctx)
	if err != nil {
		return nil, err
	}
	pedidoStats, err := s.pedidos.Stats(ctx)
	if err != nil {
		return nil, err
	}
	var recent []model.Pedido
	if err := s.pedidosQuery(ctx).Preload("Cliente").Order("data_pedido DESC").Limit(10).Find(&recent).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	top, err := topClients(s.db.WithContext(ctx), "total_spent DESC", 5, true)
	if err != nil {
		return nil, err
	}
	return &Overview{ClientStats: clientStats, PedidoStats: pedidoStats, RecentOrders: recent, TopClients: top}, nil
}

// QuickStats devolve os números rápidos, do cache quando possível.
func (s *DashboardService) QuickStats(ctx context.Context) (*QuickStats, error) {
	var stats QuickStats
	if s.cache != nil {
		err := cache.GetJSON(ctx, s.cache, quickStatsKey, &stats)
		if err == nil {
			return &stats, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			return nil, apperr.Internal.Wrap(err)
		}
	}

	now := s.clock.now()
	hoje, amanha := dayRange(now)
	inicioMes := monthStart(now)
	count := func(dst *int64, where string, args ...any) error {
		q := s.pedidosQuery(ctx)
		if where != "" {
			q = q.Where(where, args...)
		}
		return q.Count(dst).Error
	}

	if err := s.db.WithContext(ctx).Model(&model.Client{}).Count(&stats.TotalClients).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	checks := []error{
		count(&stats.TotalOrders, ""),
		count(&stats.OrdersToday, "data_pedido >= ? AND data_pedido < ?", hoje, amanha),
		count(&stats.OrdersThisMonth, "data_pedido >= ?", inicioMes),
		count(&stats.PendingOrders, "status = ?", model.StatusPendente),
	}
	if err := errors.Join(checks...); err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	overdue, err := s.pedidos.OverdueCount(ctx)
	if err != nil {
		return nil, err
	}
	stats.OverdueOrders = overdue

	total, err := sumValor(s.pedidosQuery(ctx).Where("status = ?", model.StatusEntregue))
	if err != nil {
		return nil, err
	}
	mensal, err := sumValor(s.pedidosQuery(ctx).Where("status = ? AND data_pedido >= ?", model.StatusEntregue, inicioMes))
	if err != nil {
		return nil, err
	}
	stats.TotalRevenue = NewMoney(total)
	stats.MonthlyRevenue = NewMoney(mensal)

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, quickStatsKey, stats, s.cacheTTL); err != nil {
			return nil, apperr.Internal.Wrap(err)
		}
	}
	return &stats, nil
}

type pedidoPoint struct {
	DataPedido time.Time
	ValorTotal decimal.Decimal
}

func (s *DashboardService) points(q *gorm.DB) ([]pedidoPoint, error) {
	var rows []pedidoPoint
	if err := q.Select("data_pedido, valor_total").Order("data_pedido").Scan(&rows).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	return rows, nil
}

// bucket agrupa os pedidos pela chave de data, em ordem crescente.
func bucket(rows []pedidoPoint, loc *time.Location, layout string) ([]string, map[string]int64, map[string]decimal.Decimal) {
	counts := map[string]int64{}
	sums := map[string]decimal.Decimal{}
	for _, r := range rows {
		k := r.DataPedido.In(loc).Format(layout)
		counts[k]++
		sums[k] = sums[k].Add(r.ValorTotal)
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, counts, sums
}

func monthly(rows []pedidoPoint, loc *time.Location) []MonthlyPoint {
	keys, counts, sums := bucket(rows, loc, "2006-01")
	out := make([]MonthlyPoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, MonthlyPoint{Month: k, Revenue: NewMoney(sums[k]), Orders: counts[k]})
	}
	return out
}

// ChartsData monta as séries diárias dos últimos 30 dias, a receita mensal
// dos últimos 12 meses e as distribuições.
func (s *DashboardService) ChartsData(ctx context.Context) (*ChartsData, error) {
	now := s.clock.now()
	inicio30, _ := dayRange(now.AddDate(0, 0, -30))
	inicio12 := monthStart(now).AddDate(0, 0, -365)

	diarios, err := s.points(s.pedidosQuery(ctx).Where("data_pedido >= ?", inicio30))
	if err != nil {
		return nil, err
	}
	keys, counts, sums := bucket(diarios, now.Location(), "2006-01-02")
	daily := make([]DailyPoint, 0, len(keys))
	for _, k := range keys {
		daily = append(daily, DailyPoint{Date: k, Count: counts[k], Revenue: NewMoney(sums[k])})
	}

	mensais, err := s.points(s.pedidosQuery(ctx).Where("data_pedido >= ? AND status = ?", inicio12, model.StatusEntregue))
	if err != nil {
		return nil, err
	}

	out := &ChartsData{DailyOrders: daily, MonthlyRevenue: monthly(mensais, now.Location())}
	if out.StatusDistribution, err = countBy(s.pedidosQuery(ctx), "status"); err != nil {
		return nil, err
	}
	if out.PriorityDistribution, err = countBy(s.pedidosQuery(ctx), "prioridade"); err != nil {
		return nil, err
	}
	if out.TopClients, err = topClients(s.db.WithContext(ctx), "total_spent DESC", 10, true); err != nil {
		return nil, err
	}
	return out, nil
}

// DashboardPedidos monta o painel web de pedidos.
func (s *DashboardService) DashboardPedidos(ctx context.Context) (*DashboardPedidos, error) {
	stats, err := s.pedidos.Stats(ctx)
	if err != nil {
		return nil, err
	}
	top, err := topClients(s.db.WithContext(ctx), "total_orders DESC", 5, false)
	if err != nil {
		return nil, err
	}
	return &DashboardPedidos{
		Stats:         stats,
		PorStatus:     stats.StatusDistribution,
		PorPrioridade: stats.PriorityDistribution,
		Atrasados:     stats.OverdueOrders,
		PedidosMes:    stats.MonthlyOrders,
		TopClientes:   top,
	}, nil
}

func totalsBy(q *gorm.DB, column string, label func(string) string) ([]GroupTotal, error) {
	var rows []struct {
		Chave string
		Total int64
		Soma  decimal.Decimal
	}
	err := q.Select(column + " AS chave, COUNT(*) AS total, COALESCE(SUM(valor_total), 0) AS soma").
		Group(column).Order(column).Scan(&rows).Error
	if err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	out := make([]GroupTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, GroupTotal{Chave: r.Chave, Label: label(r.Chave), Count: r.Total, ValorTotal: NewMoney(r.Soma)})
	}
	return out, nil
}

// Reports monta o relatório do período. Datas inválidas viram avisos e não filtram.
func (s *DashboardService) Reports(ctx context.Context, dataInicio, dataFim string) (*Report, error) {
	now := s.clock.now()
	rep := &Report{DataInicio: dataInicio, DataFim: dataFim}

	f := PedidoFilter{}
	if d, err := ParseDate(dataInicio, now.Location()); err != nil {
		rep.Warnings = append(rep.Warnings, "Data de início inválida.")
	} else {
		f.DataInicio = d
	}
	if d, err := ParseDate(dataFim, now.Location()); err != nil {
		rep.Warnings = append(rep.Warnings, "Data de fim inválida.")
	} else {
		f.DataFim = d
	}
	periodo := func() *gorm.DB { return s.pedidos.Filtered(ctx, f) }

	var err error
	if rep.Gerais, err = aggregatePedidos(periodo()); err != nil {
		return nil, err
	}
	if rep.PorStatus, err = totalsBy(periodo(), "status", func(k string) string {
		return model.StatusPedido(k).Label()
	}); err != nil {
		return nil, err
	}
	if rep.PorPrioridade, err = totalsBy(periodo(), "prioridade", func(k string) string {
		return model.PrioridadePedido(k).Label()
	}); err != nil {
		return nil, err
	}

	noPeriodo := s.db.WithContext(ctx).Where("pedidos.id IN (?)", periodo().Select("pedidos.id"))
	if rep.TopValor, err = topClients(noPeriodo.Session(&gorm.Session{}), "total_spent DESC", 10, false); err != nil {
		return nil, err
	}
	if rep.TopQuantidade, err = topClients(noPeriodo.Session(&gorm.Session{}), "total_orders DESC", 10, false); err != nil {
		return nil, err
	}

	ultimoAno, err := s.points(periodo().Where("pedidos.data_pedido >= ?", now.AddDate(0, 0, -365)))
	if err != nil {
		return nil, err
	}
	rep.PorMes = monthly(ultimoAno, now.Location())

	atrasados := func() *gorm.DB {
		return periodo().Where("pedidos.data_entrega_prevista < ? AND pedidos.status IN ?", model.DateOf(now), statusEmAberto)
	}
	if err := atrasados().Count(&rep.TotalAtrasados).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	if err := atrasados().Preload("Cliente").Order("pedidos.data_entrega_prevista").Find(&rep.Atrasados).Error; err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	return rep, nil
}
