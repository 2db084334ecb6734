package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edirooss/streambed-server/internal/config"
	"github.com/edirooss/streambed-server/internal/http/handler"
	"github.com/edirooss/streambed-server/internal/infrastructure/gstlaunch"
	"github.com/edirooss/streambed-server/internal/infrastructure/logring"
	"github.com/edirooss/streambed-server/internal/metrics"
	"github.com/edirooss/streambed-server/internal/redis"
	"github.com/edirooss/streambed-server/internal/service"
	"github.com/edirooss/streambed-server/internal/session"
	"github.com/edirooss/streambed-server/internal/stats"
	"github.com/edirooss/streambed-server/internal/store"
	"github.com/edirooss/streambed-server/internal/supervisor"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the relay and serve the control port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := buildLogger(opts.Verbose)
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, log, opts.configPath())
		},
	}
}

func run(ctx context.Context, log *zap.Logger, path string) error {
	f, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Info("starting streambed-server",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("config", path),
	)
	log.Debug("configuration", zap.String("file", spew.Sdump(f)))

	m := metrics.New()
	agg := stats.New(log, f.StatsInterval)
	logs := logring.NewManager()

	eng := gstlaunch.New(log, logs, gstlaunch.Options{
		Binary:    f.GstLaunch,
		UserAgent: "streambed/" + config.Version,
	})
	sup := supervisor.New(log, eng, agg, supervisor.Options{
		BuildSlots:      int64(f.BuildSlots),
		TeardownTimeout: f.TeardownTimeout,
	})

	st := store.New()
	if err := st.Load(f.Global(), f.Flows); err != nil {
		log.Warn("configuration loaded with rejected fields", zap.Error(err))
	}
	relay := service.NewRelayService(log, st, sup, config.NewFilePersister(path, f))

	sess := session.New(log, relay, session.Options{Metrics: m})
	agg.Subscribe(sess)
	agg.Subscribe(m)

	g, gctx := errgroup.WithContext(ctx)

	if f.RedisAddress != "" {
		rdb := redis.NewClient(f.RedisAddress, 0, log)
		defer rdb.Close()
		if err := rdb.Ping(ctx); err != nil {
			log.Warn("redis unreachable; status reports will not be mirrored until it is", zap.Error(err))
		}
		mirror := redis.NewStatusMirror(log, redis.NewStatusRepository(log, rdb), 0)
		agg.Subscribe(mirror)
		g.Go(func() error { return mirror.Run(gctx) })
	}

	ln, err := net.Listen("tcp", f.ControlAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", f.ControlAddress, err)
	}
	log.Info("control port listening", zap.String("addr", ln.Addr().String()))

	relay.Bootstrap()

	g.Go(func() error { return sess.Serve(gctx, ln) })
	g.Go(func() error { return agg.Run(gctx) })
	if f.HTTPAddress != "" {
		g.Go(func() error {
			return serveHTTP(gctx, log, f, handler.NewFlowsHandler(log, st, agg, logs), m)
		})
	}
	if f.Watch {
		g.Go(func() error { return service.NewConfigSync(log, relay, path, 0).Run(gctx) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	sctx, cancel := context.WithTimeout(context.Background(), f.TeardownTimeout+time.Second)
	defer cancel()
	if serr := sup.Shutdown(sctx); serr != nil {
		log.Warn("flows still tearing down at exit", zap.Error(serr))
	}
	log.Info("stopped")
	return err
}

// serveHTTP runs the read-only API until ctx is done.
func serveHTTP(ctx context.Context, log *zap.Logger, f *config.File, flows *handler.FlowsHandler, m *metrics.Metrics) error {
	if !f.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer()

	r := handler.NewRouter(log, flows, handler.RouterOptions{
		Dev:            f.Dev,
		TrustedProxies: []string{"127.0.0.1"},
		Metrics:        m.Handler(),
	})

	httpsrv := &http.Server{
		Addr:              f.HTTPAddress,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("running HTTP server", zap.String("addr", httpsrv.Addr))
		errc <- httpsrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpsrv.Shutdown(sctx); err != nil {
		return err
	}
	log.Info("HTTP server closed")
	return nil
}
