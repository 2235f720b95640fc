package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/harentsoaR/dermacare-api/internal/app"
	"github.com/harentsoaR/dermacare-api/internal/config"
	"github.com/harentsoaR/dermacare-api/internal/handlers"
	"github.com/harentsoaR/dermacare-api/internal/logger"
	"github.com/harentsoaR/dermacare-api/internal/metrics"
	"github.com/harentsoaR/dermacare-api/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	log := logger.New(cfg.LogLevel)
	log.WithFields(logrus.Fields{
		"store": cfg.StoreDriver,
		"port":  cfg.Port,
	}).Info("starting dermacare api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	st, err := app.OpenStore(connectCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.StoreDriver, err)
	}

	// --- Services ---
	m := metrics.New()
	svc, err := app.NewServices(cfg, st, log, m)
	if err != nil {
		log.Fatalf("failed to build services: %v", err)
	}

	h := &handlers.Handler{
		Sessions:  svc.Sessions,
		Profiles:  svc.Profiles,
		Doctors:   svc.Doctors,
		Reports:   svc.Reports,
		Engine:    svc.Engine,
		Dashboard: svc.Dashboard,
		Ping:      st.Ping,
		Metrics:   m.Handler(),
		Log:       log,
	}

	// --- Router ---
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), m.GinMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	limiter := middleware.NewRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst)
	go limiter.Sweep(ctx)
	h.RegisterRoutes(r, limiter)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()
	log.Infof("listening on :%s", cfg.Port)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	svc.Notifications.Wait(shutdownCtx)
	if err := st.Close(shutdownCtx); err != nil {
		log.WithError(err).Error("store close")
	}
}
