package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/toastd/internal/engine"
	"github.com/jmylchreest/toastd/internal/model"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testNotifications() []model.Notification {
	return []model.Notification{
		{
			ID:        "01HZX0000000000000000000A1",
			Title:     "Download Complete",
			Body:      "myfile.zip has finished downloading",
			Duration:  5,
			Type:      "new_message",
			SurfaceID: "toast-surface-1",
			CreatedAt: testNow.Add(-6 * time.Minute).Unix(),
			Timestamp: testNow.Add(-5 * time.Minute).Unix(),
		},
		{
			ID:        "01HZX0000000000000000000B2",
			Title:     "Queued",
			Body:      "line one\nline two",
			Type:      "alert",
			CreatedAt: testNow.Add(-2 * time.Hour).Unix(),
		},
	}
}

func plainFormatter(opts FormatterOptions) *PlainFormatter {
	opts.Color = false
	f := NewPlainFormatter(opts)
	f.now = func() time.Time { return testNow }
	return f
}

func TestNewFormatter(t *testing.T) {
	for _, format := range []FormatType{FormatPlain, FormatJSON, FormatYAML, ""} {
		f, err := NewFormatter(format, DefaultFormatterOptions())
		require.NoError(t, err)
		assert.NotNil(t, f)
	}

	_, err := NewFormatter("dmenu", DefaultFormatterOptions())
	assert.Error(t, err)
}

func TestPlainFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, plainFormatter(DefaultFormatterOptions()).Format(&buf, testNotifications()))

	out := buf.String()
	assert.Contains(t, out, "[1] <new_message> Download Complete (shown 5 minutes ago)")
	assert.Contains(t, out, "[2] <alert> Queued (queued 2 hours ago)")
	assert.Contains(t, out, "line one line two", "newlines are flattened")
	assert.Contains(t, out, "surface: toast-surface-1")
	assert.Contains(t, out, "duration: 5s")
	assert.Contains(t, out, "duration: sticky")
}

func TestPlainFormatter_Options(t *testing.T) {
	opts := DefaultFormatterOptions()
	opts.ShowIndex = false
	opts.BodyMaxLen = 10
	opts.TimeFormat = time.RFC3339

	var buf bytes.Buffer
	require.NoError(t, plainFormatter(opts).Format(&buf, testNotifications()[:1]))

	out := buf.String()
	assert.False(t, strings.HasPrefix(out, "[1]"))
	assert.Contains(t, out, "myfile....")
	assert.Contains(t, out, testNow.Add(-5*time.Minute).Local().Format(time.RFC3339))
}

func TestPlainFormatter_MultiByteBody(t *testing.T) {
	opts := DefaultFormatterOptions()
	opts.BodyMaxLen = 6

	n := testNotifications()[0]
	n.Body = "ビルドが完了しました"

	var buf bytes.Buffer
	require.NoError(t, plainFormatter(opts).Format(&buf, []model.Notification{n}))
	assert.Contains(t, buf.String(), "    ビルド...\n")
	assert.True(t, utf8.ValidString(buf.String()))
}

func TestPlainFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, plainFormatter(DefaultFormatterOptions()).Format(&buf, nil))
	assert.Equal(t, "no notifications\n", buf.String())
}

func TestPlainFormatter_Summaries(t *testing.T) {
	f := plainFormatter(DefaultFormatterOptions())

	var buf bytes.Buffer
	require.NoError(t, f.FormatPool(&buf, engine.PoolStatus{
		PooledCount: 1, TotalCount: 3, ReservedCount: 1, MaxWindows: 4, PooledIDs: []string{"toast-surface-2"},
	}))
	assert.Contains(t, buf.String(), "surfaces    3 / 4")
	assert.Contains(t, buf.String(), "pooled ids  toast-surface-2")

	buf.Reset()
	require.NoError(t, f.FormatStatus(&buf, engine.Status{Queued: 1200, History: 3}))
	assert.Contains(t, buf.String(), "1,200")
	assert.Contains(t, buf.String(), "history            3")
}

func TestJSONFormatter(t *testing.T) {
	f := NewJSONFormatter()

	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, testNotifications()))
	var got []model.Notification
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, testNotifications(), got)

	buf.Reset()
	require.NoError(t, f.Format(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	require.NoError(t, f.FormatStatus(&buf, engine.Status{Queued: 2}))
	assert.Contains(t, buf.String(), `"queued": 2`)
}

func TestYAMLFormatter(t *testing.T) {
	f := NewYAMLFormatter()

	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, testNotifications()))
	assert.Contains(t, buf.String(), "notification_type: new_message")
	assert.Contains(t, buf.String(), "surface_id: toast-surface-1")

	var got []model.Notification
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, testNotifications(), got)

	buf.Reset()
	require.NoError(t, f.FormatPool(&buf, engine.PoolStatus{MaxWindows: 4}))
	assert.Contains(t, buf.String(), "max_windows: 4")
}
