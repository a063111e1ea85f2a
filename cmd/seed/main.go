// Seed provisions attorney accounts. Running it twice is harmless: an email
// that already exists is left untouched.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	almalead "github.com/phbpx/almalead"
	"github.com/phbpx/almalead/auth"
	"github.com/phbpx/almalead/postgres"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {

	log, err := newLog("almalead-seed")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if err := run(log); err != nil {
		log.Errorw("seed", "err", err)
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		DB struct {
			User       string `conf:"default:almalead"`
			Password   string `conf:"default:almalead,mask"`
			Host       string `conf:"default:localhost"`
			Name       string `conf:"default:almalead"`
			DisableTLS bool   `conf:"default:true"`
		}
		Attorney struct {
			Email     string `conf:"default:attorney@almalead.com"`
			Password  string `conf:"required,mask"`
			FirstName string `conf:"default:Admin"`
			LastName  string `conf:"default:Attorney"`
		}
	}{}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	help, err := conf.Parse("LEAD", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// Database Support

	db, err := postgres.Open(postgres.Config{
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("updating database schema: %w", err)
	}

	// =========================================================================
	// Attorney

	hash, err := auth.HashPassword(cfg.Attorney.Password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	user := almalead.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(cfg.Attorney.Email)),
		PasswordHash: hash,
		FirstName:    cfg.Attorney.FirstName,
		LastName:     cfg.Attorney.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = postgres.NewUserRepository(db).Create(ctx, user)
	switch {
	case errors.Is(err, almalead.ErrDuplicatedUser):
		log.Infow("seed", "status", "attorney already exists", "email", user.Email)
		return nil
	case err != nil:
		return fmt.Errorf("creating attorney: %w", err)
	}

	log.Infow("seed", "status", "attorney created", "email", user.Email, "user_id", user.ID)
	return nil
}

func newLog(serviceName string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}
