package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"sfucore/examples/jwtadmission"
	dataplanewebrtc "sfucore/internal/dataplane/webrtc"
	"sfucore/internal/distributed"
	"sfucore/internal/domain"
	"sfucore/internal/engine"
	"sfucore/internal/monitoring"
	"sfucore/internal/platform/config"
	"sfucore/internal/platform/logging"
	"sfucore/internal/platform/tracing"
	httptransport "sfucore/internal/transport/http"
	"sfucore/internal/transport/http/middleware"
	wstransport "sfucore/internal/transport/websocket"
)

// dataPlaneProxy exists to break the construction cycle between engine.New
// (which needs a DataPlane up front) and webrtc.New (which needs an
// already-built *engine.Engine). It forwards to the real SFU once bind
// assigns it, which always happens before eng.Start is called.
type dataPlaneProxy struct {
	real engine.DataPlane
}

func (p *dataPlaneProxy) bind(real engine.DataPlane) { p.real = real }

func (p *dataPlaneProxy) CreateTee(kind engine.TeeKind, trackID domain.TrackID, owner domain.EndpointID) (engine.Tee, error) {
	return p.real.CreateTee(kind, trackID, owner)
}

func (p *dataPlaneProxy) CreateRawBranch(parent engine.Tee, trackID domain.TrackID) (engine.Tee, error) {
	return p.real.CreateRawBranch(parent, trackID)
}

func (p *dataPlaneProxy) NotifyNewTracks(endpointID domain.EndpointID, tracks []domain.Track) error {
	return p.real.NotifyNewTracks(endpointID, tracks)
}

func (p *dataPlaneProxy) NotifyRemoveTracks(endpointID domain.EndpointID, trackIDs []domain.TrackID) error {
	return p.real.NotifyRemoveTracks(endpointID, trackIDs)
}

func (p *dataPlaneProxy) NotifySetDisplayManager(endpointID domain.EndpointID, enabled bool) error {
	return p.real.NotifySetDisplayManager(endpointID, enabled)
}

func (p *dataPlaneProxy) NotifyCustomEvent(endpointID domain.EndpointID, payload []byte) error {
	return p.real.NotifyCustomEvent(endpointID, payload)
}

func main() {
	startTime := time.Now()

	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/sfucore/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	log := logging.New(cfg.Logging.Level)
	defer log.Sync()
	sugar := log.Sugar()

	if cfg.Monitoring.TracingEnabled {
		tp, err := tracing.Init(tracing.Config{Enabled: true, ServiceName: "sfucore-engine", JaegerURL: cfg.Monitoring.JaegerURL, SampleRate: 1.0})
		if err != nil {
			sugar.Warnw("tracing init failed, continuing without it", "error", err)
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	if len(cfg.WebRTC.ICEServers) == 0 {
		cfg.WebRTC.ICEServers = []config.ICEServerConfig{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}

	collector := monitoring.NewCollector()

	proxy := &dataPlaneProxy{}
	eng := engine.New(domain.SessionConfig{ID: cfg.Session.ID, DisplayManager: cfg.Session.DisplayManager}, proxy, log)
	sfu := dataplanewebrtc.New(cfg.WebRTC, eng, collector, log)
	proxy.bind(sfu)

	wsServer := wstransport.New(eng, wstransport.Config{
		PingInterval: cfg.Transport.PingInterval,
		PongTimeout:  cfg.Transport.PongTimeout,
		ReadTimeout:  cfg.Transport.ReadTimeout,
		WriteTimeout: cfg.Transport.WriteTimeout,
	}, log)

	var remoteObserver *distributed.RemoteObserver
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		instanceID := cfg.Session.ID
		remoteObserver = distributed.New(rdb, cfg.Redis.Channel, instanceID, log)
		eng.Register(remoteObserver)
	}

	if cfg.Admission.Enabled {
		jwtadmission.New(eng, cfg.Admission.JWTSecret, cfg.Admission.TokenTTL, jwtadmission.Role(cfg.Admission.MinRole), log)
	}

	healthChecker := monitoring.NewHealthChecker()
	if cfg.Redis.Enabled {
		rdbCheck := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		healthChecker.AddCheck("redis", func(ctx context.Context) (bool, error) {
			return true, rdbCheck.Ping(ctx).Err()
		}, 10*time.Second, 2*time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)
	defer eng.Stop()
	healthChecker.StartBackgroundChecks(ctx)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Tracing(), middleware.Recovery(log), middleware.ErrorHandler(log))
	router.Use(middleware.RateLimit(cfg.RateLimiting.HTTP, cfg.RateLimiting.Enabled))

	adminHandler := httptransport.NewAdminHandler(eng)
	adminHandler.BindSDPNegotiator(sfu)
	adminHandler.SetupRoutes(router)

	router.GET("/ws", func(c *gin.Context) { wsServer.HandleWebSocket(c.Writer, c.Request) })

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now(), "uptime": time.Since(startTime).String()})
	})
	router.GET("/ready", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := healthChecker.CheckAll(checkCtx)
		if status.Status != "healthy" {
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	})
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		sugar.Infow("starting admin/control HTTP server", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		sugar.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		sugar.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			sugar.Errorw("error force closing server", "error", closeErr)
		}
	}

	if remoteObserver != nil {
		if err := remoteObserver.Close(); err != nil {
			sugar.Errorw("error closing remote observer", "error", err)
		}
	}

	sugar.Info("sfucore engine stopped")
}
