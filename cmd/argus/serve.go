package argus

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arguslabs/argus/broadcast"
	"github.com/arguslabs/argus/cmd/argus/selfsample"
	"github.com/arguslabs/argus/config"
	"github.com/arguslabs/argus/event"
	"github.com/arguslabs/argus/obs"
	"github.com/arguslabs/argus/ring"
	"github.com/arguslabs/argus/server"
)

var selfSample bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Argus event-distribution core and dashboard endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&selfSample, "self-sample", false,
		"run the optional self-sampling CPU producer instead of waiting for an external event source")
}

func runServe(ctx context.Context) error {
	log := obs.Logger()
	defer obs.Sync()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	vtRing, err := ring.New[event.VirtualThreadEvent](cfg.Buffer.Size)
	if err != nil {
		log.Fatal("failed to create virtual-thread ring buffer", zap.Error(err))
	}
	gcRing, err := ring.New[event.GCEvent](cfg.Buffer.Size)
	if err != nil {
		log.Fatal("failed to create gc ring buffer", zap.Error(err))
	}
	cpuRing, err := ring.New[event.CPUEvent](cfg.Buffer.Size)
	if err != nil {
		log.Fatal("failed to create cpu ring buffer", zap.Error(err))
	}
	allocRing, err := ring.New[event.AllocationEvent](cfg.Buffer.Size)
	if err != nil {
		log.Fatal("failed to create allocation ring buffer", zap.Error(err))
	}

	metrics := obs.New()

	bc := broadcast.New(broadcast.Options{
		Streams: broadcast.Streams{
			VirtualThread: vtRing,
			GC:            gcRing,
			CPU:           cpuRing,
			Allocation:    allocRing,
		},
		RecentCapacity:   cfg.RecentEvents.Size,
		ThreadPerThread:  cfg.ThreadEvents.PerThread,
		ThreadMaxThreads: cfg.ThreadEvents.MaxThreads,
		EndedRetention:   time.Duration(cfg.EndedRetentionMS) * time.Millisecond,
		Metrics:          metrics,
		Logger:           log,
	})

	go bc.Run()
	defer bc.Stop()

	if selfSample {
		go func() {
			if err := selfsample.Run(ctx, cpuRing); err != nil {
				log.Warn("self-sample producer exited", zap.Error(err))
			}
		}()
	}

	if !cfg.Server.Enabled {
		log.Info("server.enabled is false; running headless until shutdown")
		<-ctx.Done()
		return nil
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	endpoint := server.New(addr, bc, cfg.Subscriber.QueueCapacity, metrics, log)

	errCh := make(chan error, 1)
	go func() {
		if err := endpoint.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("subscription endpoint failed", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return endpoint.Shutdown(shutdownCtx)
}
