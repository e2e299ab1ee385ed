// Command userapi serves the example user catalog over HTTP, the frame
// transport and NATS.
//
// Configuration is read from a YAML file (-config, UAPI_CONFIG, uapi.yaml
// or config.yaml), a .env file and UAPI_* environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"

	"github.com/unruly-software/api"
	"github.com/unruly-software/api/codec"
	"github.com/unruly-software/api/config"
	"github.com/unruly-software/api/example/userapi"
	"github.com/unruly-software/api/httpadapter"
	"github.com/unruly-software/api/natsadapter"
	"github.com/unruly-software/api/observability"
	"github.com/unruly-software/api/registry"
	"github.com/unruly-software/api/server"
	"github.com/unruly-software/api/topic"
)

func main() {
	if err := run(); err != nil {
		slog.Error("userapi failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := cfg.Logging.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepo(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeRepo()

	succeeded := topic.New[api.Success](topic.WithName("succeeded"), topic.WithLogger(logger))
	failed := topic.New[api.Failure](topic.WithName("failed"), topic.WithLogger(logger))
	defer observability.Observe(observability.SideServer, succeeded, failed)()

	d, err := userapi.NewDispatcher(repo, logger, server.WithNotifications(succeeded, failed), server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("implementing catalog: %w", err)
	}

	errCh := make(chan error, 3)

	// --- HTTP ---
	opts := []httpadapter.Option{
		httpadapter.WithLogger(logger),
		httpadapter.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
	}
	if cfg.HTTP.StatusErrors {
		opts = append(opts, httpadapter.WithErrorHandler(httpadapter.StatusErrorHandler))
	}
	root := chi.NewRouter()
	root.Use(observability.HTTPMetrics)
	root.Handle("/metrics", observability.Handler())
	root.Mount("/", httpadapter.NewRouter(d, userapi.HTTPEnv, opts...))

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      root,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	go func() {
		logger.Info("http listening", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	// --- frame transport ---
	var frameSrv *server.Server[userapi.Meta, userapi.Env]
	if cfg.Frame.Addr != "" {
		frameSrv, err = startFrame(ctx, cfg, d, logger, errCh)
		if err != nil {
			return err
		}
	}

	// --- NATS ---
	var svc *natsadapter.Service
	if cfg.NATS.Mode != "off" {
		nc, closeNATS, err := connectNATS(cfg.NATS, logger)
		if err != nil {
			return err
		}
		defer closeNATS()

		svc, err = natsadapter.Serve(nc, d, userapi.NATSEnv,
			natsadapter.WithQueue(cfg.NATS.Queue),
			natsadapter.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		logger.Info("nats serving", "subjects", svc.Subjects(), "queue", cfg.NATS.Queue)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		logger.Error("server error, shutting down", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	var errs []error
	errs = append(errs, err)
	if svc != nil {
		errs = append(errs, svc.Drain())
	}
	if frameSrv != nil {
		errs = append(errs, frameSrv.Shutdown(shutdownCtx))
	}
	errs = append(errs, httpSrv.Shutdown(shutdownCtx))
	return errors.Join(errs...)
}

func openRepo(ctx context.Context, cfg config.Storage) (userapi.UserRepo, func(), error) {
	switch cfg.Type {
	case "postgres":
		repo, err := userapi.NewPostgresRepo(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres")
		return repo, repo.Close, nil
	default:
		slog.Info("storage enabled", "type", "memory")
		return userapi.NewMemoryRepo(), func() {}, nil
	}
}

func startFrame(ctx context.Context, cfg *config.Config, d *server.Dispatcher[userapi.Meta, userapi.Env], logger *slog.Logger, errCh chan<- error) (*server.Server[userapi.Meta, userapi.Env], error) {
	srv := server.NewServer(d, userapi.FrameEnv,
		server.WithServerLogger(logger),
		server.WithMaxBody(cfg.Frame.MaxBody),
	)
	if err := srv.Listen("tcp", cfg.Frame.Addr); err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}
	typ, _ := codec.Parse(cfg.Frame.Codec)
	logger.Info("frame listening", "addr", srv.Addr().String(), "codec", typ.String())

	reg, err := openRegistry(cfg.Registry, logger)
	if err != nil {
		return nil, err
	}
	if reg != nil {
		addr := cfg.Registry.AdvertiseAddr
		if addr == "" {
			addr = advertised(srv.Addr())
		}
		inst := registry.Instance{Addr: addr, Weight: cfg.Registry.Weight}
		if err := srv.Register(ctx, reg, cfg.Registry.Service, inst, cfg.Registry.TTL); err != nil {
			return nil, fmt.Errorf("registering %s: %w", cfg.Registry.Service, err)
		}
		logger.Info("registered", "service", cfg.Registry.Service, "addr", addr, "registry", cfg.Registry.Type)
	}

	go func() {
		if err := srv.Serve(); err != nil {
			errCh <- fmt.Errorf("frame: %w", err)
		}
	}()
	return srv, nil
}

func openRegistry(cfg config.Registry, logger *slog.Logger) (registry.Registry, error) {
	switch cfg.Type {
	case "etcd":
		reg, err := registry.NewEtcdRegistry(cfg.Endpoints, cfg.DialTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting etcd: %w", err)
		}
		return reg, nil
	case "memory":
		return registry.NewMemoryRegistry(), nil
	}
	return nil, nil
}

// advertised replaces an unspecified listen host with loopback.
func advertised(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok || !tcp.IP.IsUnspecified() {
		return addr.String()
	}
	return net.JoinHostPort("127.0.0.1", fmt.Sprint(tcp.Port))
}

func connectNATS(cfg config.NATS, logger *slog.Logger) (*nats.Conn, func(), error) {
	if cfg.Mode == "embedded" {
		nc, ns, err := natsadapter.RunEmbedded(natsadapter.EmbeddedConfig{
			ServerName: "userapi",
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("embedded nats: %w", err)
		}
		logger.Info("embedded nats running", "url", ns.ClientURL())
		return nc, func() {
			nc.Close()
			ns.Shutdown()
		}, nil
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("userapi"))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting nats: %w", err)
	}
	return nc, nc.Close, nil
}
