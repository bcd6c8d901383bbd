// Command simcore hosts the Scheduling & Response Core: it reads one
// or more scripts, wires the core components together, and runs until
// signalled, mirroring the original StandAloneSimulator's
// simulatorTopLevel driver shape (start -> run until signalled -> stop).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/execsim/simcore/internal/admission"
	"github.com/execsim/simcore/internal/agenda"
	"github.com/execsim/simcore/internal/config"
	"github.com/execsim/simcore/internal/journal"
	"github.com/execsim/simcore/internal/observability"
	"github.com/execsim/simcore/internal/relay"
	"github.com/execsim/simcore/internal/response"
	"github.com/execsim/simcore/internal/script"
	"github.com/execsim/simcore/internal/scheduler"
	"github.com/execsim/simcore/internal/telemetrymirror"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	managers := response.NewMap()
	ag := agenda.New()
	reader := script.NewReader(managers, ag)

	for _, path := range cfg.ScriptPaths {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("script: open %s: %v", path, err)
		}
		err = reader.ReadScript(path, f, false)
		f.Close()
		if err != nil {
			log.Fatalf("script: %v", err)
		}
	}
	if cfg.TelemetryFile != "" {
		f, err := os.Open(cfg.TelemetryFile)
		if err != nil {
			log.Fatalf("script: open -t %s: %v", cfg.TelemetryFile, err)
		}
		err = reader.ReadScript(cfg.TelemetryFile, f, true)
		f.Close()
		if err != nil {
			log.Fatalf("script: %v", err)
		}
	}

	commandCount := managers.Len()
	telemetryCount := ag.Size()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []scheduler.Option{
		scheduler.WithMetrics(observability.Recorder{}),
	}

	if cfg.AdmissionRate > 0 {
		opts = append(opts, scheduler.WithAdmission(admission.NewLimiter(cfg.AdmissionRate, cfg.AdmissionBurst)))
	}

	if redisAddr := os.Getenv("SIMCORE_REDIS_ADDR"); redisAddr != "" {
		mirror, err := telemetrymirror.New(redisAddr, os.Getenv("SIMCORE_REDIS_PASSWORD"), 0)
		if err != nil {
			log.Printf("telemetrymirror: %v, continuing without it", err)
		} else {
			defer mirror.Close()
			opts = append(opts, scheduler.WithTelemetryMirror(mirror))
		}
	}

	if pgDSN := os.Getenv("SIMCORE_JOURNAL_DSN"); pgDSN != "" {
		j, err := journal.New(ctx, pgDSN, nil)
		if err != nil {
			log.Printf("journal: %v, continuing without it", err)
		} else {
			defer j.Close()
			opts = append(opts, scheduler.WithJournal(j))
		}
	}

	// The CommRelay and the Scheduler refer to each other (CommRelay
	// reads incoming frames and drives the Scheduler; the Scheduler
	// calls CommRelay.SendResponse on dispatch), so construction ties
	// the knot with SetRelay: build the Scheduler with no relay yet,
	// build the relay against it, then bind the relay back in before
	// starting.
	sched := scheduler.New(ag, managers, nil, opts...)
	wsRelay := relay.NewWSRelay(sched, nil)
	sched.SetRelay(wsRelay)

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("scheduler: start: %v", err)
	}

	go wsRelay.Run(ctx)

	if cfg.DebugConfig != "" {
		reloader := config.NewReloader(cfg.DebugConfig, os.Args[1:], nil)
		reloaded, err := reloader.Watch(ctx)
		if err != nil {
			log.Printf("config: hot-reload disabled: %v", err)
		} else {
			go func() {
				for next := range reloaded {
					if next.AdmissionRate > 0 {
						sched.SetAdmission(admission.NewLimiter(next.AdmissionRate, next.AdmissionBurst))
					} else {
						sched.SetAdmission(nil)
					}
					log.Printf("config: reloaded from %s", cfg.DebugConfig)
				}
			}()
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/ws", wsRelay)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/scheduler/debug/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sched.Snapshot())
	})

	addr := cfg.CentralAddr
	if addr == "" {
		addr = ":7500"
	}

	fmt.Println("====================================")
	fmt.Println("simcore: Scheduling & Response Core")
	fmt.Println("====================================")
	fmt.Printf("Agent name:   %s\n", cfg.AgentName)
	fmt.Printf("Listening on: %s\n", addr)
	fmt.Printf("Scripts:      %v\n", cfg.ScriptPaths)
	fmt.Printf("Commands:     %d\n", commandCount)
	fmt.Printf("Telemetry:    %d\n", telemetryCount)
	fmt.Println("====================================")

	server := &http.Server{Addr: addr, Handler: mux}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("simcore: received shutdown signal")
		sched.Stop()
		server.Close()
		cancel()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("simcore: %v", err)
	}
}
