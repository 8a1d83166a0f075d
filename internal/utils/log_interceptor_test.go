package utils

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogInterceptor_PrefixesLines(t *testing.T) {
	var out bytes.Buffer
	li := NewLogInterceptor(&out)
	li.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	n, err := li.Write([]byte("first\nsec"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	_, err = li.Write([]byte("ond\r\nthird"))
	require.NoError(t, err)
	require.NoError(t, li.Close())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "line=1 time=2024-05-01T10:00:00Z first", lines[0])
	assert.Equal(t, "line=2 time=2024-05-01T10:00:00Z second", lines[1])
	assert.Equal(t, "line=3 time=2024-05-01T10:00:00Z third", lines[2])
}

func TestMultiLogHandler_FansOut(t *testing.T) {
	var debugOut, infoOut bytes.Buffer
	debug := slog.NewTextHandler(&debugOut, &slog.HandlerOptions{Level: slog.LevelDebug})
	info := slog.NewTextHandler(&infoOut, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiLogHandler(debug, nil, info)).With("pass", "p1")
	logger.Debug("scan", "path", "a.txt")
	logger.Info("done")

	assert.Contains(t, debugOut.String(), "msg=scan")
	assert.Contains(t, debugOut.String(), "pass=p1")
	assert.NotContains(t, infoOut.String(), "msg=scan")
	assert.Contains(t, infoOut.String(), "msg=done")
	assert.True(t, NewMultiLogHandler(info).Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, NewMultiLogHandler(info).Enabled(context.Background(), slog.LevelDebug))
}
