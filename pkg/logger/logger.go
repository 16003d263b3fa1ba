package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger é a interface para logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	// With devolve um logger que acrescenta os pares chave/valor em toda mensagem
	With(keysAndValues ...interface{}) Logger
}

// ZeroLogger implementa Logger sobre o zerolog
type ZeroLogger struct {
	zl zerolog.Logger
}

// Options configura o logger criado por NewLogger
type Options struct {
	Level  string
	Format string // "json" ou "console"
	Output io.Writer
}

// NewLogger cria uma nova instância de Logger
func NewLogger(opts Options) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &ZeroLogger{zl: zl}
}

// NewNop cria um logger que descarta tudo; usado em testes
func NewNop() Logger {
	return &ZeroLogger{zl: zerolog.Nop()}
}

// Info registra uma mensagem de informação
func (l *ZeroLogger) Info(msg string, keysAndValues ...interface{}) {
	l.zl.Info().Fields(fields(keysAndValues)).Msg(msg)
}

// Error registra uma mensagem de erro
func (l *ZeroLogger) Error(msg string, keysAndValues ...interface{}) {
	l.zl.Error().Fields(fields(keysAndValues)).Msg(msg)
}

// Debug registra uma mensagem de debug
func (l *ZeroLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.zl.Debug().Fields(fields(keysAndValues)).Msg(msg)
}

// Warn registra uma mensagem de aviso
func (l *ZeroLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.zl.Warn().Fields(fields(keysAndValues)).Msg(msg)
}

// With devolve um logger filho com contexto fixo
func (l *ZeroLogger) With(keysAndValues ...interface{}) Logger {
	return &ZeroLogger{zl: l.zl.With().Fields(fields(keysAndValues)).Logger()}
}

// fields converte a lista chave/valor em mapa; chaves sem valor recebem "MISSING"
func fields(keysAndValues []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if i+1 >= len(keysAndValues) {
			m[key] = "MISSING"
			break
		}
		val := keysAndValues[i+1]
		if err, isErr := val.(error); isErr && err != nil {
			val = err.Error()
		}
		m[key] = val
	}
	return m
}
