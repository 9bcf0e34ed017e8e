// Package logger は zerolog による構造化ロガーを構築します。
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options はロガーの設定です。
type Options struct {
	// Level は trace / debug / info / warn / error のいずれかです。不明な値は info になります。
	Level string
	// Format が "console" の場合は人間向けの出力、それ以外は JSON です。
	Format  string
	Output  io.Writer
	Service string
}

// New は Options に従ってロガーを生成します。
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	return ctx.Logger()
}

// ParseLevel は文字列をログレベルへ変換します。空文字や不明な値は info になります。
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
