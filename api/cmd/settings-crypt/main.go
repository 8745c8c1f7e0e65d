package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/config"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/services"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/db/sqlstore"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/infrastructure/crypto"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "settings-crypt",
		Short:         "Encryption-at-rest tooling for tenant notification settings",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is normal in containers
			if envFile != "" {
				_ = godotenv.Load(envFile)
			}
		},
		Example: "  settings-crypt verify\n" +
			"  settings-crypt migrate --dry-run\n" +
			"  settings-crypt rotate\n" +
			"  settings-crypt serve",
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading configuration")

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newRotateCommand(),
		newVerifyCommand(),
		newGenerateKeyCommand(),
		newPostureCommand(),
		newShowCommand(),
	)
	return root
}

// runtime is everything a subcommand needs, built once per invocation.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sqlx.DB
	catalog  *domain.Catalog
	registry *domain.SensitiveFieldRegistry
	cipher   *crypto.FieldCipher
	codec    *services.FieldCodec
	sessions domain.SessionFactory
	audit    *services.AuditLogger
}

// openRuntime resolves key material first so a missing key fails before any
// database work. 🛡️ ErrKeyUnavailable is fatal for every command that uses it.
func openRuntime(ctx context.Context, logger *slog.Logger) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	cipher, origin, err := crypto.NewFieldCipherFromSource(cfg.KeySource())
	if err != nil {
		return nil, err
	}
	logger.Info("Encryption key loaded",
		slog.String("origin", string(origin)),
		slog.String("key_id", cipher.KeyID()),
		slog.Int("retired_keys", len(cfg.PreviousEncryptionKey)))
	if origin == crypto.KeyOriginDerived {
		logger.Warn("Using key derived from SECRET_KEY; set SETTINGS_ENCRYPTION_KEY for production")
	}

	db, err := sqlstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := sqlstore.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	catalog := domain.DefaultCatalog()
	registry := domain.DefaultSensitiveFieldRegistry()
	return &runtime{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		catalog:  catalog,
		registry: registry,
		cipher:   cipher,
		codec:    services.NewFieldCodec(cipher, registry, logger),
		sessions: sqlstore.Factory(db, catalog),
		audit:    services.NewAuditLogger(sqlstore.NewAuditRepository(db), logger),
	}, nil
}

func (rt *runtime) Close() error {
	return rt.db.Close()
}

func (rt *runtime) migrationService() *services.MigrationService {
	return services.NewMigrationService(rt.sessions, rt.catalog, rt.cipher, rt.codec, rt.audit, rt.logger)
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// entityTypes returns the requested type, or every protected type.
func entityTypes(registry *domain.SensitiveFieldRegistry, requested string) ([]string, error) {
	if requested == "" {
		return registry.EntityTypes(), nil
	}
	if !registry.Protects(requested) {
		return nil, fmt.Errorf("%w: %s has no protected fields", domain.ErrUnknownEntityType, requested)
	}
	return []string{requested}, nil
}
