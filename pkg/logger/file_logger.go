package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewFileLogger returns a JSON zap logger writing to a rotated file; it backs
// the outbound HTTP request log.
func NewFileLogger(filePath string) *zap.Logger {
	writer := zapcore.AddSync(rotator(filePath))

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		writer,
		zap.InfoLevel,
	)
	return zap.New(core)
}
