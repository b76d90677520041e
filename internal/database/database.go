// /internal/database/database.go
package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ericoliveiras/gestao-clientes/internal/config"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
)

// Models são as tabelas gerenciadas pelo AutoMigrate, em ordem de dependência.
var Models = []any{
	&model.Grupo{}, &model.Usuario{}, &model.UserProfile{}, &model.Client{}, &model.Pedido{},
}

func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(cfg.URL), nil
	case "mysql":
		return mysql.Open(cfg.URL), nil
	case "sqlite":
		return sqlite.Open(cfg.URL), nil
	default:
		return nil, fmt.Errorf("driver de banco de dados não suportado: %q", cfg.Driver)
	}
}

// Open conecta ao banco configurado e ajusta o pool de conexões.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar ao banco de dados (%s): %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		// Uma única conexão evita "database is locked".
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
	} else {
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	log.Info("Conexão com o banco de dados estabelecida", zap.String("driver", cfg.Driver))
	return db, nil
}

// Migrate executa as migrações de todas as tabelas.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("Executando migrações do banco de dados...")
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("falha ao executar migrações: %w", err)
	}
	log.Info("Migrações concluídas com sucesso.")
	return nil
}

// Connect abre a conexão e aplica as migrações.
func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, log); err != nil {
		return nil, err
	}
	return db, nil
}
