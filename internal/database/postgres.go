package database

import (
	"fmt"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/RalphPichler23/twi-react-backend/internal/config"
)

// postgresDialector builds a gorm dialector that runs on lib/pq
func postgresDialector(cfg config.PostgresConfig) gorm.Dialector {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslmode)

	return postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        dsn,
	})
}
