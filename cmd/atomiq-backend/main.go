package main

import (
	"log"
	"time"

	"github.com/atomiq/atomiq/core/events"
	"github.com/atomiq/atomiq/core/infra/buildinfo"
	"github.com/atomiq/atomiq/core/infra/config"
	"github.com/atomiq/atomiq/core/infra/metrics"
	"github.com/atomiq/atomiq/core/job"
	"github.com/atomiq/atomiq/core/pipeline"
	"github.com/atomiq/atomiq/core/server"
)

func main() {
	log.Println("atomiq backend starting...")
	buildinfo.Log("atomiq-backend")
	cfg := config.Load()

	var mirrors []job.Mirror
	if cfg.RedisURL != "" {
		mirror, err := job.NewRedisMirror(cfg.RedisURL, 24*time.Hour)
		if err != nil {
			log.Fatalf("redis mirror init failed: %v", err)
		}
		mirrors = append(mirrors, mirror)
	}
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			log.Fatalf("nats publisher init failed: %v", err)
		}
		defer pub.Close()
		mirrors = append(mirrors, pub)
	}

	reg := job.NewRegistry(job.MultiMirror(mirrors...))
	m := metrics.NewProm("atomiq")
	pl := pipeline.New(cfg, reg, m)
	srv := server.New(cfg, reg, pl, metrics.NewServerProm("atomiq"))

	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
