package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"canvastrmnl/errors"
)

var errInvalidInterfaceType = errors.NewError("logger", errors.ErrInvalidInterfaceType.Error(), nil)

var (
	out   = newLogWriter(os.Stdout)
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base  = zap.New(zapcore.NewCore(newEncoder(), zapcore.AddSync(out), level))
	sugar = base.Sugar()
)

var logFileName string

func newEncoder() zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "module",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	}
	return zapcore.NewConsoleEncoder(cfg)
}

// Set up the logger to use a log file. Invoking it will start logging to file as well as console.
// Must provide the path to where the log files should go.
func UseConfigFile(logPath string) error {
	err := os.MkdirAll(logPath, os.ModePerm)
	if err != nil {
		return errors.NewError("logger", "could not create log directory", err)
	}

	logFileName = filepath.Join(logPath, time.Now().Format("2006-01-02_150405")+".log")
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return errors.NewError("logger", "could not open log file", err)
	}
	out.setFile(logFile)
	return nil
}

// SetDebug toggles debug output.
func SetDebug(on bool) {
	if on {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
}

// SetOutput redirects console output. Mostly useful in tests.
func SetOutput(w io.Writer) {
	out.setOutput(w)
}

// Sync flushes any buffered log entries.
func Sync() error {
	return base.Sync()
}

// NOTE: error case will always match before errors.ErrorWrapper since ErrorWrapper has its own
// Error() method (which error also has)

func message(format any, v ...any) (string, bool) {
	switch a := format.(type) {
	case string:
		return fmt.Sprintf(a, v...), true
	case error:
		if len(v) == 0 {
			return a.Error(), true
		}
		return fmt.Sprintf(a.Error(), v...), true
	default:
		return errInvalidInterfaceType.Error(), false
	}
}

func Info(format any, v ...any) {
	msg, ok := message(format, v...)
	if !ok {
		Fatal(errInvalidInterfaceType)
	}
	sugar.Info(msg)
}

func Debug(format any, v ...any) {
	msg, ok := message(format, v...)
	if !ok {
		Fatal(errInvalidInterfaceType)
	}
	sugar.Debug(msg)
}

func Warn(format any, v ...any) {
	msg, ok := message(format, v...)
	if !ok {
		Fatal(errInvalidInterfaceType)
	}
	sugar.Warn(msg)
}

func Error(format any, v ...any) {
	msg, ok := message(format, v...)
	if !ok {
		Fatal(errInvalidInterfaceType)
	}
	sugar.Error(msg)
}

// This will log the error, then call os.Exit(1)
func Fatal(format any, v ...any) {
	msg, _ := message(format, v...)
	sugar.Fatal(msg)
}

// Logger is a logger scoped to a single module, and optionally a set of
// key/value fields such as a request id.
type Logger struct {
	s *zap.SugaredLogger
}

// Named returns a logger whose entries carry the given module name.
func Named(module string) *Logger {
	return &Logger{s: sugar.Named(module)}
}

// With returns a copy of l that attaches the given key/value pairs to every entry.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{s: l.s.With(kv...)}
}

func (l *Logger) Info(format string, v ...any)  { l.s.Infof(format, v...) }
func (l *Logger) Debug(format string, v ...any) { l.s.Debugf(format, v...) }
func (l *Logger) Warn(format string, v ...any)  { l.s.Warnf(format, v...) }
func (l *Logger) Error(format string, v ...any) { l.s.Errorf(format, v...) }
