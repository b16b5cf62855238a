package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/medelle/practice-api/internal/config"
	"github.com/medelle/practice-api/internal/email"
	appointmenthandler "github.com/medelle/practice-api/internal/handler/appointment"
	authhandler "github.com/medelle/practice-api/internal/handler/auth"
	consultationhandler "github.com/medelle/practice-api/internal/handler/consultation"
	"github.com/medelle/practice-api/internal/handler/health"
	patienthandler "github.com/medelle/practice-api/internal/handler/patient"
	paymenthandler "github.com/medelle/practice-api/internal/handler/payment"
	"github.com/medelle/practice-api/internal/handler/prometheus"
	userhandler "github.com/medelle/practice-api/internal/handler/user"
	"github.com/medelle/practice-api/internal/middleware"
	"github.com/medelle/practice-api/internal/paypal"
	"github.com/medelle/practice-api/internal/router"
	"github.com/medelle/practice-api/internal/service/appointment"
	authsvc "github.com/medelle/practice-api/internal/service/auth"
	"github.com/medelle/practice-api/internal/service/consultation"
	"github.com/medelle/practice-api/internal/service/integrity"
	"github.com/medelle/practice-api/internal/service/patient"
	"github.com/medelle/practice-api/internal/service/subscription"
	"github.com/medelle/practice-api/internal/service/user"
	"github.com/medelle/practice-api/pkg/auth"
	"github.com/medelle/practice-api/pkg/security"
	"github.com/medelle/practice-api/pkg/validator"
)

func serveCmd(configPath *string) *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			// the in-memory store is invisible to a separate worker process
			if withWorker || a.cfg.Storage.Driver == config.DriverMemory {
				if err := a.outboxWorkers(ctx, a.broker()); err != nil {
					return err
				}
			}

			return a.serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the outbox worker in this process")
	return cmd
}

func (a *app) buildRouter() *router.Router {
	cfg := a.cfg
	v := validator.New()
	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, nil)
	coord := integrity.NewCoordinator(a.store)

	mailer := email.NewSMTPService(email.Config{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		From:        cfg.SMTP.From,
		FromName:    cfg.SMTP.FromName,
		FrontendURL: cfg.FrontendURL,
	})

	payments := paypal.NewClient(paypal.Config{
		BaseURL:      cfg.PayPal.BaseURL,
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		PlanID:       cfg.PayPal.PlanID,
		WebhookID:    cfg.PayPal.WebhookID,
		Locale:       cfg.PayPal.Locale,
		FrontendURL:  cfg.FrontendURL,
		Timeout:      cfg.PayPal.Timeout,
	}, a.paymentLogger(), a.metrics)

	subs := subscription.NewService(a.store, payments, subscription.Config{
		VerifyWebhooks:  cfg.IsProduction(),
		AllowSimulation: cfg.IsDevelopment(),
	}, a.metrics)

	handlers := router.Handlers{
		Health:       health.NewHandler(a.store),
		Prometheus:   prometheus.New(a.registry),
		Auth:         authhandler.NewHandler(authsvc.NewService(a.store, jwtSvc, hasher, a.ledger(), mailer, subs, v)),
		User:         userhandler.NewHandler(user.NewService(a.store, coord, hasher, v)),
		Patient:      patienthandler.NewHandler(patient.NewService(a.store, coord, v)),
		Appointment:  appointmenthandler.NewHandler(appointment.NewService(a.store, coord, v)),
		Consultation: consultationhandler.NewHandler(consultation.NewService(a.store, coord, v)),
		Payment:      paymenthandler.NewHandler(subs),
	}

	r := router.NewRouter(a.logger, a.metrics, middleware.NewAuthMiddleware(jwtSvc), handlers, router.RouterConfig{
		Production:     cfg.IsProduction(),
		RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:      cfg.RateLimit.Burst,
		RateLimitOff:   !cfg.RateLimit.Enabled,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	r.Setup()
	return r
}

func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      a.buildRouter().Engine(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", srv.Addr).Str("environment", a.cfg.Environment).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info().Msg("Server exited")
	return nil
}
