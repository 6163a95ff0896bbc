package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/account"
	"github.com/NaveenV-27/MangaKart-ui/internal/backend"
	"github.com/NaveenV-27/MangaKart-ui/internal/cart"
	"github.com/NaveenV-27/MangaKart-ui/internal/cart/snapshot"
	"github.com/NaveenV-27/MangaKart-ui/internal/catalog"
	"github.com/NaveenV-27/MangaKart-ui/internal/content"
	"github.com/NaveenV-27/MangaKart-ui/internal/handlers"
	"github.com/NaveenV-27/MangaKart-ui/internal/httpserver"
	"github.com/NaveenV-27/MangaKart-ui/internal/platform/config"
	"github.com/NaveenV-27/MangaKart-ui/internal/platform/observability"
	"github.com/NaveenV-27/MangaKart-ui/internal/web"
)

type rootOptions struct {
	envFile      string
	templatesDir string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "MangaKart storefront web server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file read before the environment")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	serve.Flags().StringVar(&opts.templatesDir, "templates", "", "read templates from this directory and reload them on every request")

	show := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context(), config.WithEnvFile(opts.envFile))
			if err != nil {
				return err
			}
			for _, line := range cfg.Redacted() {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	root.AddCommand(serve, show)
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

func runServe(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(ctx, config.WithEnvFile(opts.envFile))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	baseLogger, err := observability.NewLogger(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("storefront")

	client, err := backend.NewClient(backend.ClientDeps{
		BaseURL:         cfg.Backend.BaseURL,
		Timeout:         cfg.Backend.Timeout,
		BreakerFailures: cfg.Backend.BreakerFailures,
		BreakerOpenFor:  cfg.Backend.BreakerOpenFor,
		UserCookie:      cfg.Security.UserCookie,
		AdminCookie:     cfg.Security.AdminCookie,
		Logger:          logger.Named("backend"),
	})
	if err != nil {
		return fmt.Errorf("initialise backend client: %w", err)
	}

	catalogClient := catalog.NewClient(catalog.ClientDeps{
		Backend:   client,
		CacheTTL:  cfg.Catalog.CacheTTL,
		CacheSize: cfg.Catalog.CacheSize,
		Logger:    logger.Named("catalog"),
	})
	accounts := account.NewService(account.ServiceDeps{Backend: client, Logger: logger.Named("account")})
	contentService := content.NewService(content.ServiceDeps{
		Backend:  client,
		OnChange: catalogClient.Invalidate,
		Logger:   logger.Named("content"),
	})

	storage, err := snapshot.NewStorage(cfg.Snapshot)
	if err != nil {
		return fmt.Errorf("initialise snapshot storage: %w", err)
	}
	var snapshots cart.Snapshotter
	var adapter *snapshot.Adapter
	if storage != nil {
		adapter = snapshot.NewAdapter(snapshot.AdapterDeps{
			Storage: storage,
			Wait:    cfg.Cart.DebounceWait,
			Logger:  logger.Named("snapshot"),
		})
		snapshots = adapter
	}

	ordering, err := cart.ParseOrdering(cfg.Cart.Ordering)
	if err != nil {
		return err
	}
	registry, err := cart.NewRegistry(cart.RegistryDeps{
		Gateway:   cart.NewHTTPGateway(client),
		Ordering:  ordering,
		Size:      cfg.Cart.RegistrySize,
		Snapshots: snapshots,
		Logger:    logger.Named("cart"),
	})
	if err != nil {
		return fmt.Errorf("initialise cart registry: %w", err)
	}

	renderer, err := web.NewRenderer(web.RendererOptions{
		Dir:    opts.templatesDir,
		Dev:    opts.templatesDir != "",
		Logger: logger.Named("web"),
	})
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	h, err := handlers.New(handlers.Deps{
		Renderer: renderer,
		Catalog:  catalogClient,
		Accounts: accounts,
		Content:  contentService,
		Carts:    registry,
		Cookies: handlers.CookieOptions{
			UserName:  cfg.Security.UserCookie,
			AdminName: cfg.Security.AdminCookie,
			Secure:    cfg.Security.SecureCookie,
		},
		Logger: logger.Named("handlers"),
	})
	if err != nil {
		return err
	}

	server := httpserver.New(httpserver.Config{
		Server:   cfg.Server,
		Security: cfg.Security,
		CORS:     cfg.CORS,
		Handlers: h,
		Logger:   logger,
	})

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	serveErr := make(chan error, 1)
	go func() {
		serverLogger.Info("mangakart storefront listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-shutdown:
		logger.Info("shutdown signal received; draining requests")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	registry.Close()
	if adapter != nil {
		if err := adapter.Close(); err != nil {
			logger.Warn("snapshot storage close error", zap.Error(err))
		}
	}
	return nil
}
