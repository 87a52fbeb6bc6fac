package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-storefront/notify"
	"go-storefront/payment/checkout"
	"go-storefront/payment/gateway"
	"go-storefront/service"
	"go-storefront/web"
	"go-storefront/web/db"
	"go-storefront/web/email"
)

func serveCmd() *cobra.Command {
	var (
		addr    string
		migrate bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the storefront HTTP API: payment request and verify, payment status,
signup and login, admin coupons and notifications.

Examples:
  storefront serve
  storefront serve --addr :9090 --migrate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if migrate {
				if err := db.Sync(a.conn); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}
			if addr == "" {
				addr = ":" + a.cfg.Port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :$PORT)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply schema migrations before serving")

	return cmd
}

func runServe(ctx context.Context, a *app, addr string) error {
	cfg := a.cfg

	notifiers := notify.Multi{
		notify.NewRecorder(a.conn, cfg.AdminPanelURL),
	}
	if cfg.AdminEmail != "" && cfg.SMTP.Enabled() {
		notifiers = append(notifiers, notify.NewMailer(email.NewSender(cfg.SMTP), cfg.AdminEmail, cfg.AdminPanelURL, a.logger))
	}
	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			return fmt.Errorf("connect amqp: %w", err)
		}
		defer conn.Close()

		rabbit, err := notify.NewRabbit(conn)
		if err != nil {
			return err
		}
		defer rabbit.Close()
		notifiers = append(notifiers, rabbit)
	}

	client := gateway.NewClient(gateway.Options{
		MerchantID:  cfg.MerchantID,
		BaseURL:     cfg.GatewayBaseURL,
		StartPayURL: cfg.StartPayURL,
		Currency:    cfg.Currency,
		Timeout:     cfg.GatewayTimeout,
	})
	store := checkout.NewStore(a.conn)
	svc := checkout.NewService(store, client, notifiers, cfg.MerchantID, a.logger)

	router := web.NewRouter(web.Deps{
		DB:                 a.conn,
		Checkout:           svc,
		Store:              store,
		Logger:             a.logger,
		JWTSecret:          cfg.JWTSecret,
		AdminKey:           cfg.AdminKey,
		CORSAllowOrigins:   cfg.CORSAllowOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	a.logger.Info("payment gateway",
		zap.String("base_url", cfg.GatewayBaseURL),
		zap.Bool("sandbox", cfg.Sandbox),
		zap.Int("notifiers", len(notifiers)))

	return service.Start(ctx, "storefront", addr, router, a.logger)
}
