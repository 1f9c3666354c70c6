package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/consentry/consentry/internal/config"
	"github.com/consentry/consentry/internal/domain/audit"
	"github.com/consentry/consentry/internal/gateway"
	"github.com/consentry/consentry/internal/platform/auth"
	"github.com/consentry/consentry/internal/platform/db"
	"github.com/consentry/consentry/internal/platform/middleware"
	"github.com/consentry/consentry/internal/registry"
	"github.com/consentry/consentry/internal/remote"
	"github.com/consentry/consentry/internal/wallet"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "consentry",
		Short: "Patient consent registry gateway",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(walletCmd())
	rootCmd.AddCommand(consentCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// loadKeystore opens the configured key file, generating a fresh key on
// first use.
func loadKeystore(cfg *config.Config, logger zerolog.Logger) (*wallet.Keystore, error) {
	ks, err := wallet.Load(cfg.WalletKeyFile)
	if err == nil {
		return ks, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	ks, err = wallet.Generate()
	if err != nil {
		return nil, err
	}
	if err := ks.Save(cfg.WalletKeyFile); err != nil {
		return nil, err
	}
	addr, _ := ks.ConnectedAddress()
	logger.Info().Str("address", addr).Str("file", cfg.WalletKeyFile).Msg("generated new wallet key")
	return ks, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the consent gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ks, err := loadKeystore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open wallet keystore")
	}

	client := remote.NewClient(cfg.RegistryURL, cfg.RegistryToken, cfg.RegistryTimeout, logger)
	store := registry.NewStore(client)
	engine := registry.NewEngine(registry.NewBinder(ks), client, store, ks, logger)

	handler := gateway.NewHandler(engine, store, client, ks)

	ctx := context.Background()
	if cfg.AuditEnabled() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		auditSvc := audit.NewService(audit.NewRepoPG(pool), logger)
		engine.SetRecorder(auditSvc)
		handler.SetAudit(auditSvc)
		logger.Info().Msg("audit trail enabled")
	} else {
		logger.Warn().Msg("DATABASE_URL not set; audit trail is disabled")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", handler.Health)

	api := e.Group("/api")
	if cfg.ResolvedAuthMode() == "development" {
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			Secret:   []byte(cfg.AuthSecret),
		}))
	}
	handler.RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.AuditEnabled() {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.AuditEnabled() {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the signing wallet",
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			force, _ := cmd.Flags().GetBool("force")

			if _, err := os.Stat(file); err == nil && !force {
				return fmt.Errorf("key file %s already exists (use --force to overwrite)", file)
			}

			ks, err := wallet.Generate()
			if err != nil {
				return err
			}
			if err := ks.Save(file); err != nil {
				return err
			}
			addr, _ := ks.ConnectedAddress()
			fmt.Printf("Wallet key written to %s\nAddress: %s\n", file, addr)
			return nil
		},
	}
	generateCmd.Flags().String("file", "wallet.key", "Path for the key file")
	generateCmd.Flags().Bool("force", false, "Overwrite an existing key file")
	cmd.AddCommand(generateCmd)

	addressCmd := &cobra.Command{
		Use:   "address",
		Short: "Print the wallet address",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			ks, err := wallet.Load(file)
			if err != nil {
				return err
			}
			addr, _ := ks.ConnectedAddress()
			fmt.Println(addr)
			return nil
		},
	}
	addressCmd.Flags().String("file", "wallet.key", "Path to the key file")
	cmd.AddCommand(addressCmd)

	return cmd
}

// newEngine builds a CLI-side engine against the configured registry.
func newEngine(logger zerolog.Logger) (*registry.Engine, *registry.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	ks, err := loadKeystore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	client := remote.NewClient(cfg.RegistryURL, cfg.RegistryToken, cfg.RegistryTimeout, logger)
	store := registry.NewStore(client)
	engine := registry.NewEngine(registry.NewBinder(ks), client, store, ks, logger)
	return engine, store, nil
}

// shortHex abbreviates an address or tx hash to its first six and last
// four characters, the form the UI shows.
func shortHex(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func consentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Manage consent records",
	}
	logger := newLogger()

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Sign and submit a new consent record",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			purpose, _ := cmd.Flags().GetString("purpose")

			engine, _, err := newEngine(logger)
			if err != nil {
				return err
			}
			rec, err := engine.Create(cmd.Context(), patientID, registry.Purpose(purpose))
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
	createCmd.Flags().String("patient", "", "Patient identifier")
	createCmd.Flags().String("purpose", "", "Consent purpose (exact display string)")
	cmd.AddCommand(createCmd)

	transition := func(use, short string, run func(ctx context.Context, engine *registry.Engine, id string) (*registry.ConsentRecord, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <consent-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, _, err := newEngine(logger)
				if err != nil {
					return err
				}
				rec, err := run(cmd.Context(), engine, args[0])
				if err != nil {
					return err
				}
				return printJSON(rec)
			},
		}
	}
	cmd.AddCommand(transition("approve", "Activate a pending consent", func(ctx context.Context, e *registry.Engine, id string) (*registry.ConsentRecord, error) {
		return e.Approve(ctx, id)
	}))
	cmd.AddCommand(transition("reject", "Reject a pending consent", func(ctx context.Context, e *registry.Engine, id string) (*registry.ConsentRecord, error) {
		return e.Reject(ctx, id)
	}))
	cmd.AddCommand(transition("revoke", "Revoke an active consent", func(ctx context.Context, e *registry.Engine, id string) (*registry.ConsentRecord, error) {
		return e.Revoke(ctx, id)
	}))

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List consent records",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			statusRaw, _ := cmd.Flags().GetString("status")
			walletAddr, _ := cmd.Flags().GetString("wallet")

			scope := registry.Scope{SubjectID: patientID}
			if statusRaw != "" && statusRaw != string(registry.FilterAll) {
				status, err := registry.ParseStatus(statusRaw)
				if err != nil {
					return err
				}
				scope.Status = &status
			}

			_, store, err := newEngine(logger)
			if err != nil {
				return err
			}
			records, err := store.Load(cmd.Context(), scope)
			if err != nil {
				return err
			}
			if walletAddr != "" {
				records = registry.FilterWallet(records, walletAddr)
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(records)
			}

			fmt.Printf("%-12s %-14s %-42s %-8s %-13s %s\n", "ID", "PATIENT", "PURPOSE", "STATUS", "WALLET", "TX")
			for _, rec := range records {
				fmt.Printf("%-12s %-14s %-42s %-8s %-13s %s\n",
					rec.ID, rec.SubjectID, rec.Purpose, rec.Status,
					shortHex(rec.WalletAddress), shortHex(rec.BlockchainTxHash))
			}
			return nil
		},
	}
	listCmd.Flags().String("patient", "", "Filter by patient identifier")
	listCmd.Flags().String("status", "all", "Filter by status (pending|active|revoked|all)")
	listCmd.Flags().String("wallet", "", "Filter by wallet address")
	listCmd.Flags().Bool("json", false, "Print full records as JSON")
	cmd.AddCommand(listCmd)

	return cmd
}
