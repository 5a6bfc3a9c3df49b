package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/config"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/server"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/loginlog"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/jwt"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/settings"

	// Registra los adapters pg y sqlite vía init()
	_ "github.com/dropDatabas3/hellojohn-dingtalk/internal/store/adapters/dal"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded (%v), using process environment", err)
	}

	var (
		cfgPath = envOr("DINGTALK_CONFIG", "")
		cfg     *config.Config
	)

	root := &cobra.Command{
		Use:           "dingtalk",
		Short:         "Login y vinculación de cuentas con DingTalk",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cfg = c
			logger.Init(logger.Config{
				Env:         c.App.Env,
				Level:       c.Log.Level,
				ServiceName: "dingtalk-login",
				Version:     version,
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "archivo YAML de configuración (env DINGTALK_CONFIG)")

	// ─── serve ───
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := server.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					logger.L().Warn("shutdown cleanup", logger.Err(err))
				}
			}()

			go app.Sweeper.Run(ctx)
			return server.Serve(ctx, cfg, app.Handler)
		},
	})

	// ─── migrate ───
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			dal, err := server.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer dal.Close()
			fmt.Println("migrations up to date")
			return nil
		},
	})

	// ─── cleanup-logs ───
	var days int
	cleanup := &cobra.Command{
		Use:   "cleanup-logs",
		Short: "Borra registros de login más viejos que la retención",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dal, err := server.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer dal.Close()

			if !cmd.Flags().Changed("days") {
				vals, err := settings.New(dal.Settings(), cfg.Settings, 0).Load(ctx)
				if err != nil {
					return err
				}
				days = vals.LogRetentionDays()
			}
			svc := loginlog.NewService(loginlog.Deps{Attempts: dal.Attempts(), Location: cfg.Location()})
			n, err := svc.Cleanup(ctx, days)
			if err != nil {
				return err
			}
			fmt.Printf("deleted=%d retention_days=%d\n", n, days)
			return nil
		},
	}
	cleanup.Flags().IntVar(&days, "days", 0, "días de retención (default: ajuste log_retention_days)")
	root.AddCommand(cleanup)

	// ─── settings ───
	settingsCmd := &cobra.Command{Use: "settings", Short: "Lee y escribe ajustes administrables"}
	withSettings := func(cmd *cobra.Command, fn func(context.Context, *settings.Service) error) error {
		dal, err := server.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dal.Close()
		return fn(cmd.Context(), settings.New(dal.Settings(), cfg.Settings, 0))
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Lista los ajustes efectivos (secretos enmascarados)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, func(ctx context.Context, s *settings.Service) error {
				vals, err := s.Load(ctx)
				if err != nil {
					return err
				}
				m := vals.Map(true)
				for _, k := range vals.SortedKeys() {
					fmt.Printf("%s=%s\n", k, m[k])
				}
				return nil
			})
		},
	})

	var reveal bool
	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Muestra un ajuste",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !settings.Known(key) {
				return fmt.Errorf("ajuste desconocido %q", key)
			}
			return withSettings(cmd, func(ctx context.Context, s *settings.Service) error {
				vals, err := s.Load(ctx)
				if err != nil {
					return err
				}
				fmt.Println(vals.Map(!reveal)[key])
				return nil
			})
		},
	}
	get.Flags().BoolVar(&reveal, "reveal", false, "muestra secretos sin enmascarar")
	settingsCmd.AddCommand(get)

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persiste un ajuste",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, func(ctx context.Context, s *settings.Service) error {
				if err := s.Set(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("%s updated\n", args[0])
				return nil
			})
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "unset <key>",
		Short: "Borra el valor persistido (vuelve al default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, func(ctx context.Context, s *settings.Service) error {
				return s.Unset(ctx, args[0])
			})
		},
	})
	root.AddCommand(settingsCmd)

	// ─── admin-token ───
	var (
		sub      string
		username string
		ttl      time.Duration
	)
	adminToken := &cobra.Command{
		Use:   "admin-token",
		Short: "Emite un bearer token para la API de administración",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(sub) == "" {
				return fmt.Errorf("falta --sub")
			}
			if ttl <= 0 {
				ttl = config.Dur(cfg.Admin.TokenTTL)
			}
			iss := jwt.NewIssuer(server.AdminTokenIssuer, cfg.Admin.TokenSecret, ttl)
			if !iss.Enabled() {
				return fmt.Errorf("admin.token_secret no configurado")
			}
			tok, exp, err := iss.IssueAdmin(sub, username)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			fmt.Fprintf(os.Stderr, "expires_at=%s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	adminToken.Flags().StringVar(&sub, "sub", "", "id del administrador")
	adminToken.Flags().StringVar(&username, "username", "", "nombre visible del administrador")
	adminToken.Flags().DurationVar(&ttl, "ttl", 0, "vida del token (default: admin.token_ttl)")
	root.AddCommand(adminToken)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
