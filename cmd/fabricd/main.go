// Command fabricd wires a small demonstration pipeline: a MASTER source
// filter generating synthetic raw video, a OneToOne transform, a
// OneToMany fanout, and two sink filters, then runs it under the
// scheduler and periodically logs GetState, the same way cmd/prism/main.go
// drives a relay under an errgroup until a signal arrives.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/fabric/filter"
	"github.com/zsiec/fabric/frame"
	"github.com/zsiec/fabric/ingest/srtsource"
	"github.com/zsiec/fabric/pipeline"
	"github.com/zsiec/fabric/queue"
	"github.com/zsiec/fabric/sink/fanout"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	mgr := pipeline.New(pipeline.Options{Workers: 4}, slog.Default())

	slog.Info("fabricd starting", "version", version, "run_id", mgr.ID())

	if err := buildDemoPipeline(mgr); err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mgr.Run(ctx)
	})

	g.Go(func() error {
		return logState(ctx, mgr)
	})

	if err := g.Wait(); err != nil {
		slog.Error("fabricd exited with error", "error", err)
		os.Exit(1)
	}
}

// buildDemoPipeline wires source(1) -> passthrough(2) -> fanout(3) ->
// tail(4), tail(5). Source is either a synthetic MASTER generator (the
// default) or, when SRT_ADDR is set, a real srtsource.Source pulling from
// a remote SRT listener, demonstrating the NETWORK-role path end to end.
func buildDemoPipeline(mgr *pipeline.Manager) error {
	videoCfg := queue.VideoConfig{Codec: frame.VCodecRaw, PixelFormat: frame.PixYUV420P, Width: 320, Height: 180}

	var source filter.Filter
	if addr := os.Getenv("SRT_ADDR"); addr != "" {
		slog.Info("using SRT network source", "addr", addr)
		source = srtsource.New(1, addr, videoCfg, slog.Default())
	} else {
		source = newGenerator(1, videoCfg, 33*time.Millisecond)
	}
	if err := mgr.AddFilter(source); err != nil {
		return err
	}

	pass := newPassthrough(2)
	if err := mgr.AddFilter(pass); err != nil {
		return err
	}

	fan := fanout.New(3, fanout.Config{QueueDepth: frame.DefaultVideoFrames, Video: videoCfg, Kind: frame.KindVideo}, slog.Default())
	if err := mgr.AddFilter(fan); err != nil {
		return err
	}

	counter := newCountingTail(4)
	if err := mgr.AddFilter(counter); err != nil {
		return err
	}
	logging := newLoggingTail(5, 30)
	if err := mgr.AddFilter(logging); err != nil {
		return err
	}

	if err := mgr.Connect(1, 10, 2, 20); err != nil {
		return err
	}
	if err := mgr.Connect(2, 30, 3, 40); err != nil {
		return err
	}
	if err := mgr.Connect(3, 50, 4, 60); err != nil {
		return err
	}
	if err := mgr.Connect(3, 51, 5, 61); err != nil {
		return err
	}
	return nil
}

func logState(ctx context.Context, mgr *pipeline.Manager) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st := mgr.GetState()
			for _, fs := range st.Filters {
				slog.Info("filter state", "id", fs.ID, "role", fs.Role, "cycles", fs.Cycles, "faults", fs.Faults)
			}
		}
	}
}
