package metrics

// CommandStats is one entry of the "commands" object in the /metrics
// JSON dump, matching spec.md §6's shape exactly.
type CommandStats struct {
	Count         uint64       `json:"count"`
	AvgWaitMs     float64      `json:"avg_wait_ms"`
	StddevWaitMs  float64      `json:"stddev_wait_ms"`
	AvgExecMs     float64      `json:"avg_exec_ms"`
	StddevExecMs  float64      `json:"stddev_exec_ms"`
	QueueSize     int64        `json:"queue_size"`
	QueueCapacity int64        `json:"queue_capacity"`
	Workers       WorkerCounts `json:"workers"`
}

// WorkerCounts is the nested "workers" object per command.
type WorkerCounts struct {
	Total int64 `json:"total"`
	Busy  int64 `json:"busy"`
	Idle  int64 `json:"idle"`
}

// Dump is the full /metrics JSON payload.
type Dump struct {
	UptimeSeconds int64                   `json:"uptime_seconds"`
	TotalRequests int64                   `json:"total_requests"`
	TotalErrors   int64                   `json:"total_errors"`
	Commands      map[string]CommandStats `json:"commands"`
}

// Dump renders the current state of every registered task's stats
// plus the global counters and uptime.
func (a *Aggregator) Dump() Dump {
	a.mu.RLock()
	names := make([]string, 0, len(a.tasks))
	entries := make([]*taskEntry, 0, len(a.tasks))
	for name, e := range a.tasks {
		names = append(names, name)
		entries = append(entries, e)
	}
	a.mu.RUnlock()

	commands := make(map[string]CommandStats, len(names))
	for i, name := range names {
		s := entries[i].snapshot()
		commands[name] = CommandStats{
			Count:         s.count,
			AvgWaitMs:     s.avgWaitMs,
			StddevWaitMs:  s.stddevWaitMs,
			AvgExecMs:     s.avgExecMs,
			StddevExecMs:  s.stddevExecMs,
			QueueSize:     s.queueSize,
			QueueCapacity: s.queueCapacity,
			Workers: WorkerCounts{
				Total: s.workersTotal,
				Busy:  s.workersBusy,
				Idle:  s.idle,
			},
		}
	}

	return Dump{
		UptimeSeconds: int64(a.Uptime().Seconds()),
		TotalRequests: a.TotalRequests(),
		TotalErrors:   a.TotalErrors(),
		Commands:      commands,
	}
}
