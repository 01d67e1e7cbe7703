// Command siaserver-demo wires up the protocol engine with an
// in-memory account store, logrus logging and a Prometheus /metrics
// endpoint. It is illustrative wiring, not a supported CLI surface —
// a real deployment builds its own account persistence and sink.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/simeonmiteff/sia-server/pkg/account"
	"github.com/simeonmiteff/sia-server/pkg/server"
	"github.com/simeonmiteff/sia-server/pkg/sia"
)

func main() {
	log := logrus.StandardLogger()

	accounts := account.NewStore()
	if err := accounts.Add(account.New("AAA", nil, nil)); err != nil {
		log.Fatalf("registering demo account: %v", err)
	}

	counters := sia.NewCounters()
	registry := prometheus.NewRegistry()

	srv, err := server.New(server.Config{
		Accounts: accounts,
		Counters: counters,
		Sink: func(_ context.Context, ev *sia.SIAEvent) {
			log.WithFields(logrus.Fields{
				"event_id": ev.ID.String(),
				"account":  ev.Frame.Account,
				"response": ev.Response,
			}).Info("accepted event")
		},
		Logger:     log,
		Registerer: registry,
	})
	if err != nil {
		log.Fatalf("building server: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(":9090", mux); err != nil {
			log.WithError(err).Warn("metrics endpoint stopped")
		}
	}()

	go func() {
		if err := srv.ListenAndServeTCP(ctx, ":7700"); err != nil {
			log.WithError(err).Error("tcp loop stopped")
		}
	}()
	go func() {
		if err := srv.ListenAndServeOH(ctx, ":7701"); err != nil {
			log.WithError(err).Error("oh loop stopped")
		}
	}()
	go func() {
		if err := srv.ListenAndServeUDP(ctx, ":7700"); err != nil {
			log.WithError(err).Error("udp loop stopped")
		}
	}()

	<-ctx.Done()
	fmt.Println("shutting down")
	srv.Shutdown()
	srv.Wait()
}
