// Package main запускает HTTP-сервер сервиса отложенных покупок.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/akazarov/layaway-system/internal/config"
	"github.com/akazarov/layaway-system/internal/fiscal"
	"github.com/akazarov/layaway-system/internal/handler"
	"github.com/akazarov/layaway-system/internal/keymap"
	"github.com/akazarov/layaway-system/internal/middleware"
	"github.com/akazarov/layaway-system/internal/printer"
	"github.com/akazarov/layaway-system/internal/queue"
	"github.com/akazarov/layaway-system/internal/receipt"
	"github.com/akazarov/layaway-system/internal/repository"
	"github.com/akazarov/layaway-system/internal/service"
	"github.com/akazarov/layaway-system/internal/terminal"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var fiscalClient *fiscal.Client
	if cfg.FiscalSystemAddress != "" {
		fiscalClient = fiscal.NewClient(cfg.FiscalSystemAddress)
	}

	var printerClient *printer.Client
	if cfg.PrinterAddress != "" {
		printerClient = printer.NewClient(cfg.PrinterAddress)
	}

	var publisher *queue.Publisher
	if cfg.AmqpURL != "" {
		publisher, err = queue.NewPublisher(context.Background(), cfg.AmqpURL, logger)
		if err != nil {
			sugar.Fatalw("amqp initialization error", "error", err.Error())
		}
		defer publisher.Close()
	}

	svc := service.NewService(repo, fiscalClient, printerClient, publisher, logger, service.Options{
		WalkInCustomerID:  cfg.WalkInCustomerID,
		ExpirationDays:    cfg.ExpirationDays,
		MinInitialPercent: cfg.MinInitialPercent,
		ReceiptHeader: receipt.Header{
			CompanyName: cfg.CompanyName,
			TaxID:       cfg.CompanyTaxID,
			Address:     cfg.CompanyAddress,
			Phone:       cfg.CompanyPhone,
		},
	})
	defer svc.Close()

	shortcuts, err := svc.ListKeyboardShortcuts(context.Background())
	if err != nil {
		sugar.Fatalw("load keyboard shortcuts error", "error", err.Error())
	}
	terminals := terminal.NewManager(keymap.Build(shortcuts))

	authMiddleware := middleware.NewAuthMiddleware("layaway-secret")
	h := handler.NewHandler(svc, terminals, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фонового процесса, помечающего просроченные резервы
	g.Go(func() error {
		svc.StartExpirationSweep(ctx, time.Minute)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting layaway server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
