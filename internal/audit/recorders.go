package audit

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// LogRecorder пишет события в zap
type LogRecorder struct {
	log *zap.Logger
}

func NewLogRecorder(log *zap.Logger) *LogRecorder {
	return &LogRecorder{log: log.Named("audit")}
}

func (r *LogRecorder) Record(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.Time("occurred_at", event.OccurredAt),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.FamilyID != "" {
		fields = append(fields, zap.String("family_id", event.FamilyID))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	for k, v := range event.Detail {
		fields = append(fields, zap.String("detail."+k, v))
	}

	if event.Type == EventTokenReuseDetected {
		r.log.Warn("событие безопасности", fields...)
	} else {
		r.log.Info("событие безопасности", fields...)
	}
	return nil
}

// Multi : рассылка события всем получателям, ошибки склеиваются
type Multi []Recorder

func (m Multi) Record(ctx context.Context, event Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
