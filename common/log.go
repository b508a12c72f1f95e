package common

import (
	"log/syslog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger: timestamped console lines on stdout,
// teed into the system log when a syslog socket is reachable. Syslog being
// unavailable (containers, tests) downgrades silently to stdout only.
func NewLogger(tag string, syslogTee bool) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	enc := zapcore.NewConsoleEncoder(encCfg)

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if syslogTee {
		if w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, tag); err == nil {
			sinks = append(sinks, zapcore.AddSync(w))
		}
	}
	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), zapcore.InfoLevel)
	return zap.New(core).Sugar()
}
