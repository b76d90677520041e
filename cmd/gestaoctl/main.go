// Package main é a linha de comando de administração da gestão de clientes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ericoliveiras/gestao-clientes/internal/config"
	"github.com/ericoliveiras/gestao-clientes/internal/database"
	"github.com/ericoliveiras/gestao-clientes/internal/logger"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:           "gestaoctl",
	Short:         "Administração da gestão de clientes",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "diretório com o config.yaml")
	rootCmd.AddCommand(setupGroupsCmd, createSuperuserCmd, seedCmd, relatorioCmd)
}

// connect carrega a configuração e abre o banco já migrado.
func connect() (*gorm.DB, *zap.Logger, error) {
	var paths []string
	if configDir != "" {
		paths = append(paths, configDir)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.Log.Level)
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("falha ao conectar ao banco de dados: %w", err)
	}
	return db, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Erro:", err)
		os.Exit(1)
	}
}
