package db

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/smith3v/taskmood-bot/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	originalLogger := logger.Logger
	t.Cleanup(func() {
		logger.Logger = originalLogger
		logger.SetLogLevel(logger.INFO)
	})
	var buf bytes.Buffer
	logger.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	return &buf
}

func TestQueryLoggerTraceLevels(t *testing.T) {
	buf := captureLogs(t)

	lg, err := newGormLogger("info")
	if err != nil {
		t.Fatalf("failed to create gorm logger: %v", err)
	}
	l := lg.(*queryLogger)
	ctx := context.Background()

	logger.SetLogLevel(logger.INFO)
	l.slowThreshold = time.Nanosecond
	l.Trace(ctx, time.Now().Add(-time.Millisecond), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	if !strings.Contains(buf.String(), "gorm slow query") {
		t.Fatalf("expected slow query warning, got: %s", buf.String())
	}

	buf.Reset()
	l.slowThreshold = time.Hour
	l.Trace(ctx, time.Now().Add(-time.Millisecond), func() (string, int64) {
		return "SELECT 2", 1
	}, nil)
	if !strings.Contains(buf.String(), "gorm query") {
		t.Fatalf("expected info query log, got: %s", buf.String())
	}

	buf.Reset()
	logger.SetLogLevel(logger.ERROR)
	l.Trace(ctx, time.Now().Add(-time.Millisecond), func() (string, int64) {
		return "SELECT 3", 1
	}, errors.New("boom"))
	if !strings.Contains(buf.String(), "gorm query error") {
		t.Fatalf("expected error log, got: %s", buf.String())
	}
}

func TestQueryLoggerSkipsRecordNotFound(t *testing.T) {
	buf := captureLogs(t)

	lg, _ := newGormLogger("info")
	lg.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM reminder_settings", 0
	}, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("expected record-not-found to be silent, got: %s", buf.String())
	}
}

func TestNewGormLoggerLevels(t *testing.T) {
	cases := []struct {
		value   string
		want    gormlogger.LogLevel
		wantErr bool
	}{
		{"", gormlogger.Warn, false},
		{"silent", gormlogger.Silent, false},
		{"nope", gormlogger.Warn, true},
	}
	for _, tc := range cases {
		lg, err := newGormLogger(tc.value)
		if (err != nil) != tc.wantErr {
			t.Fatalf("newGormLogger(%q) error = %v, wantErr %v", tc.value, err, tc.wantErr)
		}
		if got := lg.(*queryLogger).level; got != tc.want {
			t.Fatalf("newGormLogger(%q) level = %v, want %v", tc.value, got, tc.want)
		}
	}
}
