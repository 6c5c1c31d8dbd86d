package workers

import (
	"context"
	"log/slog"
	"os"
	"time"
	"whirl/contract"

	"github.com/shirou/gopsutil/process"
)

// ConnectionCounter is anything that knows how many sockets are open.
type ConnectionCounter interface {
	Len() int
}

// HeartbeatWorker samples the process footprint and the connection count
// at a fixed interval and hands them to the metrics sink.
type HeartbeatWorker struct {
	log         *slog.Logger
	metrics     contract.IMetrics
	connections ConnectionCounter
	interval    time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, metrics contract.IMetrics,
	connections ConnectionCounter, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{
		log:         log,
		metrics:     metrics,
		connections: connections,
		interval:    interval,
	}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.beat(p)
		}
	}
}

func (w *HeartbeatWorker) beat(p *process.Process) {
	rss, cpu, err := selfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "err", err)
		return
	}
	connections := w.connections.Len()
	w.metrics.ProcessStats(rss, cpu, connections)
	w.log.Debug("Heartbeat", "rss", rss, "cpu", cpu, "connections", connections)
}

// selfStats retrieves resident memory and CPU usage of the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
