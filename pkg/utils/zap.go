package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level  = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	logger = newLogger(level)
)

func GetLogger() *zap.SugaredLogger {
	return logger
}

// SetLevel changes the level of the shared logger and of every logger
// already derived from it.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

func newLogger(lvl zap.AtomicLevel) *zap.SugaredLogger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:  "msg",
		LevelKey:    "level",
		TimeKey:     "time",
		NameKey:     "logger",
		EncodeLevel: zapcore.CapitalLevelEncoder,
		EncodeTime:  zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeName:  zapcore.FullNameEncoder,
	})
	out := zapcore.Lock(os.Stderr)

	return zap.New(zapcore.NewCore(enc, out, lvl), zap.ErrorOutput(out)).Sugar()
}
