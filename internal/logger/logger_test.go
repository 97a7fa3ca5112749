package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer and restores the
// previous writer, level and format on cleanup.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)

	mu.Lock()
	origOutput, origColor := output, useColor
	mu.Unlock()
	origLevel := GetLevel()
	origFormat, _ := currentFormat.Load().(string)

	InitWithWriter(buf, "", "", false)

	t.Cleanup(func() {
		InitWithWriter(origOutput, origLevel.String(), origFormat, origColor)
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugShowsEverything", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		for _, want := range []string{"DEBUG", "INFO", "WARN", "ERROR", "debug message", "error message"} {
			assert.Contains(t, out, want)
		}
	})

	t.Run("WarnHidesInfo", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("WARN")

		Debug("debug message")
		Info("info message")
		Warn("warn message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
	})

	t.Run("ErrorAlwaysLogged", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("ERROR")

		Warn("warn message")
		Error("error message")

		assert.NotContains(t, buf.String(), "warn message")
		assert.Contains(t, buf.String(), "error message")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{" warning ", LevelWarn, true},
		{"Error", LevelError, true},
		{"verbose", LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	_ = captureOutput(t)
	SetLevel("WARN")
	SetLevel("loud")
	assert.Equal(t, LevelWarn, GetLevel())
}

func TestTextFormatting(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("text")

	Info("header cached", KeyShard, "model-00001-of-00002.safetensors", KeyHeaderSize, uint64(1024), "note", "two words")

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "header cached")
	assert.Contains(t, line, "shard=model-00001-of-00002.safetensors")
	assert.Contains(t, line, "header_size=1024")
	assert.Contains(t, line, `note="two words"`)
}

func TestTextGroups(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewColorTextHandler(&buf, nil, false))

	l.WithGroup("fetch").Info("done", "shards", 3)
	l.Info("grouped", slog.Group("cache", slog.Bool("hit", true)))

	out := buf.String()
	assert.Contains(t, out, "fetch.shards=3")
	assert.Contains(t, out, "cache.hit=true")
}

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("json")

	Info("loaded", KeyRepo, "org/model", KeyShards, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "loaded", rec["msg"])
	assert.Equal(t, "org/model", rec[KeyRepo])
	assert.Equal(t, float64(2), rec[KeyShards])
}

func TestContextLogging(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("DEBUG")
	SetFormat("json")

	lc := NewLogContext("org/model", "main").WithTrace("abc", "def")
	ctx := ShardContext(WithContext(context.Background(), lc), "model.safetensors")

	DebugCtx(ctx, "fetching header", KeyOffset, 8)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "abc", rec[KeyTraceID])
	assert.Equal(t, "def", rec[KeySpanID])
	assert.Equal(t, "org/model", rec[KeyRepo])
	assert.Equal(t, "main", rec[KeyRevision])
	assert.Equal(t, "model.safetensors", rec[KeyShard])

	// The parent context is not modified by ShardContext.
	assert.Empty(t, FromContext(WithContext(context.Background(), lc)).Shard)
}

func TestContextWithoutLogContext(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("text")

	InfoCtx(context.Background(), "plain")
	assert.Contains(t, buf.String(), "plain")
	assert.NotContains(t, buf.String(), KeyTraceID)

	ctx := ShardContext(context.Background(), "a.safetensors")
	require.NotNil(t, FromContext(ctx))
	assert.Equal(t, "a.safetensors", FromContext(ctx).Shard)
}

func TestLogContextClone(t *testing.T) {
	var nilCtx *LogContext
	assert.Nil(t, nilCtx.Clone())
	assert.Zero(t, nilCtx.DurationMs())

	lc := NewLogContext("org/model", "v1")
	c := lc.WithShard("x")
	assert.Equal(t, "x", c.Shard)
	assert.Empty(t, lc.Shard)
	assert.Equal(t, lc.Repo, c.Repo)
}

func TestErrAttr(t *testing.T) {
	assert.True(t, Err(nil).Equal(slog.Attr{}))
	assert.Equal(t, "boom", Err(assertErr("boom")).Value.String())
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestConcurrentLogging(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("text")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Info("concurrent", "worker", i)
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 16*50)
}

func TestInitFileOutput(t *testing.T) {
	_ = captureOutput(t)
	path := filepath.Join(t.TempDir(), "tensorscope.log")

	require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))
	Info("to file")
	require.NoError(t, Init(Config{Output: "stderr"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestInitBadPath(t *testing.T) {
	_ = captureOutput(t)
	err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}

func BenchmarkLogDisabled(b *testing.B) {
	InitWithWriter(new(bytes.Buffer), "ERROR", "text", false)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Debug("disabled", KeyShard, "x")
	}
}

func BenchmarkLogText(b *testing.B) {
	InitWithWriter(new(bytes.Buffer), "INFO", "text", false)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Info("enabled", KeyShard, "x", KeyOffset, i)
	}
}
