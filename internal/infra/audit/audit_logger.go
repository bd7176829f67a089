package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spounge-ai/parishvault/internal/domain"
)

// Logger writes audit events as structured "audit_event" records, each with
// a checksum over its identifying fields.
type Logger struct {
	logger *slog.Logger
	now    func() time.Time
}

var _ domain.AuditLogger = (*Logger)(nil)

func NewAuditLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger, now: time.Now}
}

func (l *Logger) Record(ctx context.Context, event *domain.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	if event.Actor == "" {
		event.Actor = ActorFromContext(ctx)
	}
	event.Checksum = checksum(event)

	attrs := []slog.Attr{
		slog.String("audit_id", event.ID),
		slog.String("action", event.Action),
		slog.String("actor", event.Actor),
		slog.Bool("success", event.Success),
		slog.Time("timestamp", event.Timestamp),
		slog.String("checksum", event.Checksum),
	}
	if event.PublicID != "" {
		attrs = append(attrs, slog.String("public_id", event.PublicID))
	}
	if event.KeyVersion > 0 {
		attrs = append(attrs, slog.Int("key_version", event.KeyVersion))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	if len(event.Details) > 0 {
		keys := make([]string, 0, len(event.Details))
		for k := range event.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		details := make([]any, 0, len(keys))
		for _, k := range keys {
			details = append(details, slog.String(k, event.Details[k]))
		}
		attrs = append(attrs, slog.Group("details", details...))
	}

	l.logger.LogAttrs(ctx, slog.LevelInfo, "audit_event", attrs...)
}

func checksum(event *domain.AuditEvent) string {
	data := map[string]any{
		"id":          event.ID,
		"timestamp":   event.Timestamp.Unix(),
		"action":      event.Action,
		"actor":       event.Actor,
		"public_id":   event.PublicID,
		"key_version": event.KeyVersion,
		"success":     event.Success,
	}

	// map keys marshal in sorted order
	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}
