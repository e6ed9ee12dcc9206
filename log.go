package framewire

import (
	"os"

	"github.com/rs/zerolog"
)

// LogLevel mirrors the teacher's transport.go LogLevel, kept as a distinct
// type from zerolog.Level so callers overriding Logf are not coupled to the
// backing library.
type LogLevel int

const (
	DEBUG = LogLevel(1)
	INFO  = LogLevel(2)
	WARN  = LogLevel(3)
	ERROR = LogLevel(4)
	FATAL = LogLevel(5)
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	}
	panic("invalid LogLevel")
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	}
	return zerolog.InfoLevel
}

var baseLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// Logf is the package-level logging hook, kept in the teacher's shape (a
// var the caller may reassign) but, unlike the teacher's no-op default,
// backed by zerolog so a program that never overrides it still gets
// structured, leveled output.
var Logf = func(lvl LogLevel, f string, args ...interface{}) {
	baseLogger.WithLevel(lvl.zerolog()).Msgf(f, args...)
}

// logFrame is a small helper used by the frame codec (EncodeFrame/
// DecodeFrame) to attach the src/dst endpoint pair and sequence number to a log line,
// mirroring how the teacher logs conv/sn in its trace build.
func logFrame(lvl LogLevel, msg string, h *Header) {
	Logf(lvl, "%s src=0x%08x dst=0x%08x seq=%d cmd=%d flags=0x%02x",
		msg, h.SrcEndpoint, h.DstEndpoint, h.Sequence, h.CmdType, h.Flags)
}
