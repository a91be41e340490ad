package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"liveview/relay/internal/admin"
	"liveview/relay/internal/api"
	"liveview/relay/internal/codes"
	"liveview/relay/internal/config"
	"liveview/relay/internal/events"
	"liveview/relay/internal/logging"
	"liveview/relay/internal/relay"
	"liveview/relay/internal/transport"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.Server.Env, cfg.Server.LogLevel)

	reg := codes.New(codes.WithMaxAttempts(cfg.Codes.MaxAttempts))
	ev := events.NewStore()

	hub := transport.NewHub(log, transport.Options{
		SendBuffer:      cfg.WS.SendBuffer,
		WriteTimeout:    cfg.WS.WriteTimeout,
		PingInterval:    cfg.WS.PingInterval,
		MaxMessageBytes: cfg.WS.MaxMessageBytes,
		OriginPatterns:  cfg.Server.CORSAllow,
	})
	hub.Handler = relay.New(reg, hub, ev, log)

	h := api.NewHandlers(reg, hub, ev, log)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(h, cfg.Server.CORSAllow),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var adm *admin.Server
	if addr := cfg.Admin.GRPCAddr; addr != "" && addr != "off" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Error("admin.listen", "addr", addr, "err", err)
			os.Exit(1)
		}
		adm = admin.NewServer(reg, hub, log)
		go func() {
			if err := adm.Serve(lis); err != nil {
				log.Error("admin.serve", "err", err)
			}
		}()
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received; stopping server")
		if adm != nil {
			adm.Stop()
		}
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// hijacked websocket connections are not tracked by Shutdown
		if err := hub.Close(sctx); err != nil {
			log.Warn("hub.close", "err", err)
		}
		_ = srv.Shutdown(sctx)
	}()

	log.Info("server starting", "addr", srv.Addr, "env", cfg.Server.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
	log.Info("server stopped", "live_codes", reg.Len())
}
