package database

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/env"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// Settings are the DB_* connection values.
type Settings struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

// SettingsFromEnv reads DB_USER, DB_PASSWORD, DB_HOST, DB_PORT and DB_NAME.
func SettingsFromEnv() Settings {
	return Settings{
		User:     env.GetEnv("DB_USER", "feebook"),
		Password: env.GetEnv("DB_PASSWORD", ""),
		Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
		Port:     env.GetEnv("DB_PORT", "3306"),
		Name:     env.GetEnv("DB_NAME", "feebook_db"),
	}
}

// DSN is the go-sql-driver data source name used by gorm.
func (s Settings) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		s.User, s.Password, s.Host, s.Port, s.Name)
}

// MigrateURL is the golang-migrate database URL. Migrations need
// multi-statement support.
func (s Settings) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true&parseTime=true",
		s.User, s.Password, s.Host, s.Port, s.Name)
}

// String is safe to log.
func (s Settings) String() string {
	return fmt.Sprintf("%s@%s:%s/%s", s.User, s.Host, s.Port, s.Name)
}

// DSN builds the data source name from the environment.
func DSN() string {
	return SettingsFromEnv().DSN()
}

// AllModels lists the tables AutoMigrate manages in development.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserSettings{},
		&models.Provider{},
		&models.ProviderVerification{},
		&models.BankAccount{},
		&models.Member{},
		&models.FeePlan{},
		&models.Consumer{},
		&models.ConsumerIdentity{},
		&models.ConsumerMembership{},
		&models.Transaction{},
		&models.PaymentWebhookEvent{},
	}
}

// Open connects and configures the pool from DB_MAX_OPEN_CONNS and
// DB_MAX_IDLE_CONNS.
func Open(dsn string) (*gorm.DB, error) {
	level := logger.Warn
	if env.IsDev() {
		level = logger.Info
	}
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                      dsn,
		DefaultStringSize:        256,
		DisableDatetimePrecision: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(env.GetInt("DB_MAX_OPEN_CONNS", 25))
	sqlDB.SetMaxIdleConns(env.GetInt("DB_MAX_IDLE_CONNS", 5))
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// SetupDatabase opens DB, retrying while the database container starts.
// The schema comes from cmd/migrate; DB_AUTO_MIGRATE additionally runs
// gorm's AutoMigrate, which defaults to on in development.
func SetupDatabase() {
	settings := SettingsFromEnv()
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		DB, err = Open(settings.DSN())
		if err == nil {
			break
		}
		log.Warnf("Database %s not reachable (attempt %d/%d): %v", settings, attempt, connectAttempts, err)
		if attempt < connectAttempts {
			time.Sleep(time.Duration(attempt) * connectBackoff)
		}
	}
	if err != nil {
		panic(fmt.Errorf("connect database %s: %w", settings, err))
	}
	log.Infof("Connected to database %s", settings)

	if env.GetBool("DB_AUTO_MIGRATE", env.IsDev()) {
		if err := DB.AutoMigrate(AllModels()...); err != nil {
			log.Errorf("AutoMigrate failed: %v", err)
		}
	}
}
