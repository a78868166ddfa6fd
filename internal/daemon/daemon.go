// Package daemon wires storage, workers, the job controller and the HTTP
// server into one long-running process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/mediaforge-app/mediaforge/internal/api"
	"github.com/mediaforge-app/mediaforge/internal/app/jobs"
	"github.com/mediaforge-app/mediaforge/internal/infra/blobstore"
	"github.com/mediaforge-app/mediaforge/internal/infra/bus"
	"github.com/mediaforge-app/mediaforge/internal/infra/inference"
	"github.com/mediaforge-app/mediaforge/internal/infra/sqlite"
)

// shutdownGrace bounds how long in-flight jobs get to record a final status.
const shutdownGrace = 30 * time.Second

// Daemon owns every long-lived component.
type Daemon struct {
	Config     Config
	DB         *sqlite.DB
	Controller *jobs.Controller
	Blobs      *blobstore.Store // nil when archiving is disabled
	Bus        *bus.Client      // nil when NATS is disabled

	server *http.Server
}

// New opens storage and builds the controller. Call Close when done.
func New(cfg Config) (*Daemon, error) {
	db, err := sqlite.Open(cfg.DatabaseDir())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	d := &Daemon{Config: cfg, DB: db}

	if cfg.Archive.Enabled {
		d.Blobs = blobstore.New(cfg.ArchiveDir(), cfg.PublicURL(), &http.Client{Timeout: cfg.ArchiveTimeout()})
		if err := d.Blobs.Init(); err != nil {
			db.Close()
			return nil, fmt.Errorf("init archive: %w", err)
		}
	}

	d.Controller = jobs.New(jobs.Config{
		PollInterval:  cfg.PollInterval(),
		Timeout:       cfg.JobTimeout(),
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
	}, db, db)

	tw := jobs.NewTranscriptionWorkflow(inference.NewTranscriber(cfg.Transcription.BaseURL, cfg.Transcription.APIKey, nil))
	tw.MinCost = cfg.Transcription.MinCost
	tw.CostPerMinute = cfg.Transcription.CostPerMinute
	tw.MaxURLLength = cfg.Transcription.MaxURLLength
	tw.MaxDuration = cfg.Transcription.MaxDuration
	d.Controller.RegisterWorkflow(tw)

	vw := jobs.NewVideoWorkflow(inference.NewVideoSynth(cfg.Video.BaseURL, cfg.Video.APIKey, cfg.Video.Model, nil), nil)
	if d.Blobs != nil {
		vw.Archiver = d.Blobs
	}
	vw.Price = cfg.Video.Cost
	vw.MaxPromptLength = cfg.Video.MaxPromptLength
	d.Controller.RegisterWorkflow(vw)

	if cfg.NATS.Enabled {
		c, err := bus.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			// Events are best effort; jobs still run without them.
			log.Printf("[daemon] NATS unavailable at %s: %v", cfg.NATS.URL, err)
		} else {
			d.Bus = c
			d.Controller.SetEventPublisher(c)
		}
	}

	return d, nil
}

// Handler builds the HTTP API.
func (d *Daemon) Handler() http.Handler {
	srv := api.NewServer(&api.JobsAPI{
		Controller: d.Controller,
		Catalog:    d.DB,
		Accounts:   d.DB,
	})
	if d.Config.Metrics.Enabled {
		srv.EnableMetrics()
	}
	if d.Blobs != nil {
		srv.ServeBlobs(d.Blobs.BlobDir())
	}
	return srv.Handler()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	// Jobs left behind by a previous process are failed before serving.
	if _, err := d.Controller.Sweep(ctx, d.Config.StaleAfter()); err != nil {
		log.Printf("[daemon] startup sweep: %v", err)
	}
	go d.sweepLoop(ctx)

	d.server = &http.Server{
		Addr:              d.Config.Addr(),
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] listening on %s", d.server.Addr)
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	log.Printf("[daemon] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[daemon] http shutdown: %v", err)
	}
	if err := d.Controller.Shutdown(shutdownCtx); err != nil {
		log.Printf("[daemon] controller shutdown: %v", err)
	}
	return nil
}

func (d *Daemon) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(d.Config.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Controller.Sweep(ctx, d.Config.StaleAfter()); err != nil {
				log.Printf("[daemon] sweep: %v", err)
			}
		}
	}
}

// Close releases storage and the event bus.
func (d *Daemon) Close() error {
	if d.Bus != nil {
		d.Bus.Close()
	}
	return d.DB.Close()
}
