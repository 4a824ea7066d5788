package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quickpoll/internal/broadcast"
	"quickpoll/internal/clock"
	"quickpoll/internal/config"
	"quickpoll/internal/db"
	"quickpoll/internal/events"
	"quickpoll/internal/metrics"
	"quickpoll/internal/mirror"
	"quickpoll/internal/rooms"
	"quickpoll/internal/stream"
	"quickpoll/internal/wshub"
)

const (
	busSize      = 1024
	sinkQueue    = 1000
	shutdownWait = 10 * time.Second
)

func Run() error {
	appCfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bus := events.NewBus(busSize)
	roomStore := rooms.NewStore(rooms.Config{
		PollDuration: appCfg.PollDurationTime(),
		ClosedTTL:    appCfg.RoomTTLTime(),
	}, bus, clock.Real())
	hub := wshub.NewHub()
	m := metrics.New(reg)

	srv := &Server{
		Rooms:    roomStore,
		Hub:      hub,
		Metrics:  m,
		Registry: reg,
	}
	sinks := []broadcast.Sink{hub, m}

	// Background writers finish their queues before Run returns.
	var workers sync.WaitGroup
	startWorker := func(run func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			run(ctx)
		}()
	}

	// Optional database connection
	if appCfg.DatabaseURL != "" {
		database, err := db.Connect(appCfg.DatabaseURL)
		if err != nil {
			log.Printf("[DB] Failed to connect: %v (running without database)\n", err)
		} else {
			if err := database.Migrate(); err != nil {
				log.Printf("[DB] Migration failed: %v\n", err)
			}
			defer database.Close()
			srv.DB = database
			archiver := db.NewArchiver(database, sinkQueue)
			startWorker(archiver.Run)
			sinks = append(sinks, archiver)
			log.Println("[DB] Database connected and migrations applied")
		}
	} else {
		log.Println("[DB] DATABASE_URL not set, running without database")
	}

	if appCfg.RedisURL != "" {
		rm, err := mirror.NewRedisMirror(ctx, appCfg.RedisURL, appCfg.RoomTTLTime(), sinkQueue)
		if err != nil {
			log.Printf("[Redis] %v (running without mirror)\n", err)
		} else {
			defer rm.Close()
			srv.Mirror = rm
			startWorker(rm.Run)
			sinks = append(sinks, rm)
			log.Println("[Redis] Snapshot mirror enabled")
		}
	}

	if len(appCfg.KafkaBrokers) > 0 {
		ks := stream.NewKafkaSink(appCfg.KafkaBrokers, appCfg.KafkaTopic, sinkQueue)
		startWorker(ks.Run)
		sinks = append(sinks, ks)
		log.Printf("[Kafka] Publishing room events to %s\n", appCfg.KafkaTopic)
	}

	srv.Broadcaster = broadcast.NewBroadcaster(bus, sinks...)

	go roomStore.RunSweeper(ctx, appCfg.SweepIntervalTime())

	httpSrv := &http.Server{
		Addr:    "0.0.0.0:" + appCfg.Port,
		Handler: srv.Router(),
	}
	go func() {
		<-ctx.Done()
		log.Println("[Server] Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Server] Shutdown error: %v\n", err)
		}
	}()

	fmt.Printf("Server listening on http://localhost:%s\n", appCfg.Port)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stop()
		workers.Wait()
		return err
	}
	workers.Wait()
	return nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/ws", s.handleWS)
	r.Get("/health", s.handleHealth)
	if s.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	}
	r.Get("/rooms/{code}", s.handleRoomSnapshot)
	r.Get("/rooms/{code}/events", s.handleEvents)
	r.Get("/history", s.handleHistory)
	r.Get("/history/{code}", s.handleHistoryPoll)

	return r
}
