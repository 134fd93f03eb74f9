package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"user-admin/auth"
	"user-admin/config"
	"user-admin/controllers"
	"user-admin/database"
	grpcserver "user-admin/grpc_server"
	"user-admin/registry"
	"user-admin/repositories"
	"user-admin/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	migrate bool
	seed    bool
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root, opts)
		},
	}
	serve.Flags().BoolVar(&opts.migrate, "migrate", true, "apply pending migrations before serving")
	serve.Flags().BoolVar(&opts.seed, "seed", true, "seed roles, permissions and the admin account before serving")
	return serve
}

func runServe(ctx context.Context, root *rootOptions, opts *serveOptions) error {
	cfg, logger, db, err := bootstrap(root)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	defer closeDB(db, logger)

	if cfg.UsesDefaultSecret() {
		logger.Warn("JWT secret is not configured, using the insecure default; set USERADMIN_JWT_SECRET")
	}

	if opts.migrate {
		ran, err := database.Migrate(ctx, db)
		if err != nil {
			return err
		}
		if len(ran) > 0 {
			logger.Info("Migrations applied", zap.Strings("migrations", ran))
		}
	}
	if opts.seed {
		if err := database.Seed(ctx, db, cfg.Admin, logger); err != nil {
			return err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}

	store := repositories.NewStore(db)
	tokens := auth.NewTokenIssuer([]byte(cfg.JwtSecret), cfg.JwtTTL, cfg.ServiceName)
	userService := services.NewUserService(store, logger, services.WithDefaultPageSize(cfg.PageSize))
	authService := services.NewAuthService(store, tokens, logger)

	var reg registry.ServiceRegistry
	if cfg.Consul.Enabled {
		reg, err = registry.NewConsulRegistry(cfg.Consul.Address, logger)
		if err != nil {
			return err
		}
	}

	container := controllers.NewContainer(
		controllers.NewUserController(userService, tokens, logger),
		controllers.NewAuthController(authService, logger),
		sqlDB.PingContext,
		logger,
	)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           container,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcServer, healthServer := grpcserver.NewServer(grpcserver.Deps{
		Users:    userService,
		Auth:     authService,
		Tokens:   tokens,
		Registry: reg,
		Logger:   logger,
	})
	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port %d: %w", cfg.GRPCPort, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.Int("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC server listening", zap.Int("port", cfg.GRPCPort))
		if err := grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	var registered []string
	if reg != nil {
		registered, err = registerInstances(reg, cfg)
		if err != nil {
			logger.Error("Service registration failed", zap.Error(err))
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down servers")

		for _, id := range registered {
			_ = reg.Deregister(id)
		}
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown did not complete", zap.Error(err))
		}

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server shutdown completed")
	return nil
}

// registerInstances registers the HTTP and gRPC endpoints with their checks and
// returns the ids to deregister on shutdown.
func registerInstances(reg registry.ServiceRegistry, cfg *config.Config) ([]string, error) {
	httpInstance := registry.NewInstance(cfg.ServiceName, cfg.AdvertiseHost, cfg.HTTPPort, "http")
	httpCheck := registry.CreateHTTPCheck(httpInstance.ID, cfg.AdvertiseHost, cfg.HTTPPort, "/health", "10s", "2s")
	if err := reg.Register(httpInstance, httpCheck); err != nil {
		return nil, err
	}

	grpcInstance := registry.NewInstance(cfg.ServiceName, cfg.AdvertiseHost, cfg.GRPCPort, "grpc")
	grpcTarget := fmt.Sprintf("%s:%d/%s", cfg.AdvertiseHost, cfg.GRPCPort, grpcserver.UserAdminServiceName)
	grpcCheck := registry.CreateGRPCCheck(grpcInstance.ID, grpcTarget, "10s", "2s", false)
	if err := reg.Register(grpcInstance, grpcCheck); err != nil {
		return []string{httpInstance.ID}, err
	}
	return []string{httpInstance.ID, grpcInstance.ID}, nil
}
