package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration
type Config struct {
	Dir   string
	Debug bool
	// Stderr 为 nil 时使用 os.Stderr。
	Stderr io.Writer
}

// New creates a logger writing to stderr and to a daily rotating file
// logs/sign_YYYYMMDD.log. The returned closer flushes the file writer.
func New(cfg Config) (*log.Logger, io.Closer, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(dir, fmt.Sprintf("sign_%s.log", time.Now().Format("20060102"))),
		MaxSize:    10, // megabytes
		MaxBackups: 7,
		MaxAge:     30, // days
		Compress:   true,
	}

	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	level := log.InfoLevel
	if cfg.Debug {
		level = log.DebugLevel
	}

	l := log.NewWithOptions(io.MultiWriter(stderr, fileWriter), log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           level,
		Prefix:          "signer",
	})
	return l, fileWriter, nil
}
