// Package monitoring records scenario results as structured run logs and
// Prometheus metrics.
package monitoring

import (
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/modelplex/proxycheck/internal/scenario"
)

// RunLog writes one JSON record per scenario result, tagged with a run id.
type RunLog struct {
	enabled bool
	runID   string
	logger  *zap.Logger
}

// NewRunLog creates a run log writing JSON lines to w. A disabled run log
// discards everything.
func NewRunLog(enabled bool, w io.Writer) *RunLog {
	if !enabled {
		return NewRunLogWithLogger(false, zap.NewNop())
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		zap.InfoLevel,
	)
	return NewRunLogWithLogger(true, zap.New(core))
}

// NewRunLogWithLogger wraps an existing zap logger.
func NewRunLogWithLogger(enabled bool, logger *zap.Logger) *RunLog {
	runID := uuid.NewString()
	return &RunLog{
		enabled: enabled,
		runID:   runID,
		logger:  logger.With(zap.String("run_id", runID)),
	}
}

// RunID identifies every record written by this run log.
func (l *RunLog) RunID() string {
	return l.runID
}

// Record implements scenario.Recorder.
func (l *RunLog) Record(result scenario.Result) {
	if !l.enabled {
		return
	}

	fields := []zap.Field{
		zap.String("scenario", result.Info.Name),
		zap.String("provider", result.Info.Provider),
		zap.String("model", result.Info.Model),
		zap.Bool("stream", result.Info.Stream),
		zap.String("outcome", string(result.Outcome)),
		zap.Duration("duration", result.Duration),
	}

	if result.Diagnosis.Err != nil {
		fields = append(fields,
			zap.String("category", string(result.Diagnosis.Category)),
			zap.Error(result.Diagnosis.Err),
		)
		if result.Diagnosis.StatusCode != 0 {
			fields = append(fields, zap.Int("status_code", result.Diagnosis.StatusCode))
		}
		l.logger.Warn("scenario finished", fields...)
		return
	}

	l.logger.Info("scenario finished", fields...)
}

// Sync flushes buffered records.
func (l *RunLog) Sync() error {
	return l.logger.Sync()
}
