package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ericoliveiras/gestao-clientes/internal/cache"
	"github.com/ericoliveiras/gestao-clientes/internal/database"
	"github.com/ericoliveiras/gestao-clientes/internal/service"
)

var setupGroupsCmd = &cobra.Command{
	Use:   "setup-groups",
	Short: "Cria os grupos padrão e suas permissões",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := connect()
		if err != nil {
			return err
		}
		results, err := database.SeedGroups(db)
		if err != nil {
			return err
		}
		printGroups(cmd.OutOrStdout(), results)
		return nil
	},
}

func printGroups(w io.Writer, results []database.GroupResult) {
	for _, r := range results {
		if r.Created {
			fmt.Fprintf(w, "Grupo %q criado.\n", r.Name)
		} else {
			fmt.Fprintf(w, "Grupo %q já existia, permissões atualizadas.\n", r.Name)
		}
		for _, p := range r.Permissions {
			fmt.Fprintf(w, "  - %s\n", p)
		}
	}
	fmt.Fprintln(w, "Grupos configurados com sucesso!")
}

var superuserFlags struct {
	username string
	email    string
	password string
}

var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Cria um superusuário",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := connect()
		if err != nil {
			return err
		}
		u, err := database.CreateSuperuser(db, superuserFlags.username, superuserFlags.email, superuserFlags.password)
		if errors.Is(err, database.ErrUserExists) {
			return fmt.Errorf("o usuário %q ou o email %q já está em uso", superuserFlags.username, superuserFlags.email)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Superusuário %q criado (id %d).\n", u.Username, u.ID)
		return nil
	},
}

var seedFlags database.SeedConfig

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Popula o banco com clientes e pedidos sintéticos",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, log, err := connect()
		if err != nil {
			return err
		}
		start := time.Now()
		stats, err := database.SeedDataset(cmd.Context(), db, seedFlags)
		if err != nil {
			return err
		}
		log.Info("Dados sintéticos inseridos",
			zap.Int("clientes", stats.Clientes),
			zap.Int("pedidos", stats.Pedidos),
			zap.Duration("duracao", time.Since(start)))
		fmt.Fprintf(cmd.OutOrStdout(), "%d cliente(s) e %d pedido(s) criados.\n", stats.Clientes, stats.Pedidos)
		return nil
	},
}

var relatorioFlags struct {
	inicio string
	fim    string
}

var relatorioCmd = &cobra.Command{
	Use:   "relatorio",
	Short: "Mostra o relatório de pedidos do período",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := connect()
		if err != nil {
			return err
		}
		clients := service.NewClientService(db, time.Now)
		pedidos := service.NewPedidoService(db, time.Now)
		dashboard := service.NewDashboardService(db, clients, pedidos, cache.NewMemoryStore(), 0, time.Now)

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		rep, err := dashboard.Reports(ctx, relatorioFlags.inicio, relatorioFlags.fim)
		if err != nil {
			return err
		}
		return renderRelatorio(cmd.OutOrStdout(), rep)
	},
}

func init() {
	createSuperuserCmd.Flags().StringVar(&superuserFlags.username, "username", "admin", "nome de usuário")
	createSuperuserCmd.Flags().StringVar(&superuserFlags.email, "email", "", "email do superusuário")
	createSuperuserCmd.Flags().StringVar(&superuserFlags.password, "password", "", "senha do superusuário")
	_ = createSuperuserCmd.MarkFlagRequired("email")
	_ = createSuperuserCmd.MarkFlagRequired("password")

	seedCmd.Flags().IntVar(&seedFlags.Clientes, "clientes", 200, "total de clientes desejado")
	seedCmd.Flags().IntVar(&seedFlags.Pedidos, "pedidos", 2000, "total de pedidos desejado")
	seedCmd.Flags().IntVar(&seedFlags.BatchSize, "batch", 500, "tamanho do lote de inserção")

	relatorioCmd.Flags().StringVar(&relatorioFlags.inicio, "inicio", "", "data inicial (AAAA-MM-DD)")
	relatorioCmd.Flags().StringVar(&relatorioFlags.fim, "fim", "", "data final (AAAA-MM-DD)")
}

// renderRelatorio imprime o relatório em tabelas.
func renderRelatorio(w io.Writer, rep *service.Report) error {
	for _, warning := range rep.Warnings {
		fmt.Fprintln(w, "Aviso:", warning)
	}
	periodo := "todo o período"
	if rep.DataInicio != "" || rep.DataFim != "" {
		periodo = strings.TrimSpace(fmt.Sprintf("%s a %s", orDash(rep.DataInicio), orDash(rep.DataFim)))
	}
	fmt.Fprintf(w, "Relatório de pedidos (%s)\n", periodo)
	fmt.Fprintf(w, "Pedidos: %d  Valor total: R$ %s  Valor médio: R$ %s\n\n",
		rep.Gerais.TotalPedidos, rep.Gerais.ValorTotal, rep.Gerais.ValorMedio)

	if err := renderTotals(w, "Status", rep.PorStatus); err != nil {
		return err
	}
	if err := renderTotals(w, "Prioridade", rep.PorPrioridade); err != nil {
		return err
	}

	top := tablewriter.NewWriter(w)
	top.Header("Cliente", "Pedidos", "Valor")
	rows := make([][]string, 0, len(rep.TopValor))
	for _, c := range rep.TopValor {
		rows = append(rows, []string{c.Name, strconv.FormatInt(c.TotalOrders, 10), c.TotalSpent.String()})
	}
	if err := top.Bulk(rows); err != nil {
		return err
	}
	if err := top.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nPedidos atrasados: %d\n", rep.TotalAtrasados)
	return nil
}

func renderTotals(w io.Writer, title string, totals []service.GroupTotal) error {
	table := tablewriter.NewWriter(w)
	table.Header(title, "Pedidos", "Valor")
	rows := make([][]string, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []string{t.Label, strconv.FormatInt(t.Count, 10), t.ValorTotal.String()})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
