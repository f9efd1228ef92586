// Package selfsample is a reference CPU-event producer for running
// Argus against its own process when no real runtime event source is
// wired up. It is demo/diagnostic tooling only, not part of the core
// spec.md contract (§1 treats the event source as an opaque external
// producer); it exists so `argus serve --self-sample` has something
// to show on a dashboard out of the box.
package selfsample

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"github.com/arguslabs/argus/event"
	"github.com/arguslabs/argus/ring"
)

// Interval is the sampling period (one CPUEvent published per tick).
const Interval = 1 * time.Second

// Run samples this process's CPU load and the host's system-wide CPU
// load once per Interval, publishing a CPUEvent to buf, until ctx is
// cancelled.
func Run(ctx context.Context, buf *ring.Buffer[event.CPUEvent]) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			buf.Publish(sample(proc))
		}
	}
}

func sample(proc *process.Process) event.CPUEvent {
	processPct, _ := proc.Percent(0)
	systemPcts, _ := cpu.Percent(0, false)

	var systemPct float64
	if len(systemPcts) > 0 {
		systemPct = systemPcts[0]
	}

	var rusage unix.Rusage
	_ = unix.Getrusage(unix.RUSAGE_SELF, &rusage)
	threadNanos := uint64(rusage.Utime.Sec)*1e9 + uint64(rusage.Utime.Usec)*1e3

	return event.CPUEvent{
		Timestamp:          time.Now(),
		ProcessLoad:        clampLoad(processPct / 100),
		SystemLoad:         clampLoad(systemPct / 100),
		ThreadCPUTimeNanos: threadNanos,
	}
}

func clampLoad(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
