package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type AlertLevel int

const (
	AlertLevelInfo AlertLevel = iota
	AlertLevelWarning
	AlertLevelCritical
)

func (l AlertLevel) String() string {
	switch l {
	case AlertLevelWarning:
		return "warning"
	case AlertLevelCritical:
		return "critical"
	default:
		return "info"
	}
}

// Alerter receives health transitions.
type Alerter interface {
	SendAlert(level AlertLevel, message string, err error)
}

// Pinger is satisfied by pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LogAlerter writes alerts to a structured logger.
type LogAlerter struct {
	Logger *slog.Logger
}

func (a LogAlerter) SendAlert(level AlertLevel, message string, err error) {
	attrs := []any{"alert_level", level.String()}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	if level == AlertLevelInfo {
		a.Logger.Info(message, attrs...)
		return
	}
	a.Logger.Error(message, attrs...)
}

// ConnectionMonitor pings the registry and alerts on transitions only.
type ConnectionMonitor struct {
	pool        Pinger
	alerter     Alerter
	onHealth    func(healthy bool)
	pingTimeout time.Duration

	mu        sync.RWMutex
	isHealthy bool
}

// NewConnectionMonitor builds a monitor. onHealth, if set, observes every
// check result.
func NewConnectionMonitor(pool Pinger, alerter Alerter, onHealth func(healthy bool)) *ConnectionMonitor {
	return &ConnectionMonitor{
		pool:        pool,
		alerter:     alerter,
		onHealth:    onHealth,
		pingTimeout: 5 * time.Second,
		isHealthy:   true,
	}
}

// Start blocks, checking every interval until ctx is done.
func (cm *ConnectionMonitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cm.Check(ctx)
		}
	}
}

// Check pings once and returns the resulting health.
func (cm *ConnectionMonitor) Check(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, cm.pingTimeout)
	defer cancel()

	err := cm.pool.Ping(checkCtx)
	healthy := err == nil

	cm.mu.Lock()
	changed := healthy != cm.isHealthy
	cm.isHealthy = healthy
	cm.mu.Unlock()

	if cm.onHealth != nil {
		cm.onHealth(healthy)
	}
	if changed && cm.alerter != nil {
		if healthy {
			cm.alerter.SendAlert(AlertLevelInfo, "registry connection recovered", nil)
		} else {
			cm.alerter.SendAlert(AlertLevelCritical, "registry connection unhealthy", err)
		}
	}
	return healthy
}

func (cm *ConnectionMonitor) IsHealthy() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.isHealthy
}
