// Package logger owns the process-wide zerolog logger of the auth service.
//
// Call Init once from main and Get everywhere else. Every line the logger
// writes passes through a redacting writer: signed JWTs and bcrypt hashes
// that leak into a message or an error string are masked before they reach
// the output. Code that needs to correlate a token across log lines logs
// TokenFingerprint instead of the token.
package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultService = "auth-service"
	redacted       = "[REDACTED]"
)

// Options are read once, by the first Init.
type Options struct {
	// Level is trace, debug, info, warn or error. Anything else means info.
	Level string
	// Pretty switches to zerolog's console writer for local runs.
	Pretty bool
	// Output defaults to os.Stdout.
	Output io.Writer
	// Service is stamped on every entry. Defaults to "auth-service".
	Service string
}

var (
	instance    zerolog.Logger
	once        sync.Once
	initialized bool
)

var secretPatterns = []*regexp.Regexp{
	// header.payload.signature, where the header is base64url JSON.
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
	regexp.MustCompile(`\$2[aby]?\$\d{2}\$[./A-Za-z0-9]{53}`),
}

// Init builds the logger on first call and returns it; later calls return the
// same logger and ignore opts.
func Init(opts Options) zerolog.Logger {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano

		out := opts.Output
		if out == nil {
			out = os.Stdout
		}
		if opts.Pretty {
			out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		}

		service := opts.Service
		if service == "" {
			service = defaultService
		}

		lvl := parseLevel(opts.Level)
		zerolog.SetGlobalLevel(lvl)

		instance = zerolog.New(Redact(out)).
			Level(lvl).
			With().
			Timestamp().
			Str("service", service).
			Caller().
			Logger()

		initialized = true
	})
	return instance
}

// Get panics before Init.
func Get() zerolog.Logger {
	if !initialized {
		panic("logger: Get() called before Init()")
	}
	return instance
}

// Reset lets tests call Init again.
func Reset() {
	once = sync.Once{}
	instance = zerolog.Logger{}
	initialized = false
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

// TokenFingerprint returns a short, stable identifier for a bearer or refresh
// token. It is safe to log; the token cannot be recovered from it.
func TokenFingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

// Redact wraps w so that JWTs and bcrypt hashes are masked in everything
// written through it.
func Redact(w io.Writer) io.Writer {
	return redactingWriter{w: w}
}

type redactingWriter struct {
	w io.Writer
}

// Write reports len(p) on success so zerolog does not treat the shorter
// masked line as a short write.
func (r redactingWriter) Write(p []byte) (int, error) {
	out := p
	for _, re := range secretPatterns {
		out = re.ReplaceAll(out, []byte(redacted))
	}
	if _, err := r.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
