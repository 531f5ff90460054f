package collect

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/jacoelho/i5validator/errors"
	"github.com/jacoelho/i5validator/report"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestHandlerCollectsAllSeverities(t *testing.T) {
	var logs bytes.Buffer
	h := NewHandler("doc.xml", true, newTestLogger(&logs))

	h.Warning(xerrors.Finding{Message: `element "x" not allowed anywhere; expected "a"`, Line: 5, Column: 2})
	h.Error(xerrors.Finding{Message: `element "x" not allowed anywhere; expected "b"`, Line: 7, Column: 4})
	h.FatalError(xerrors.Finding{Message: `element "x" not allowed anywhere.`, Line: 7, Column: 4})

	doc := h.Report()
	require.Len(t, doc, 1)
	info := doc[`element "x" not allowed anywhere`]
	require.NotNil(t, info)
	assert.Equal(t, []report.Occurrence{{Line: 5, Column: 2}, {Line: 7, Column: 4}, {Line: 7, Column: 4}}, info.Occurrences())
	assert.Equal(t, 3, h.Events())

	out := logs.String()
	assert.Contains(t, out, `doc.xml at 5:2 ERROR element \"x\" not allowed anywhere`)
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "severity=warning")
	assert.Contains(t, out, "severity=error")
	assert.Contains(t, out, "severity=fatal")
}

func TestHandlerSeverityFollowsCallback(t *testing.T) {
	tests := []struct {
		name    string
		deliver func(*Handler, xerrors.Finding)
		want    string
	}{
		{name: "warning", deliver: (*Handler).Warning, want: "severity=warning"},
		{name: "error", deliver: (*Handler).Error, want: "severity=error"},
		{name: "fatal", deliver: (*Handler).FatalError, want: "severity=fatal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			h := NewHandler("doc.xml", false, newTestLogger(&logs))
			tt.deliver(h, xerrors.NewFinding(xerrors.SeverityWarning, "doc.xml", 3, 1, "boom"))
			assert.Contains(t, logs.String(), tt.want)
		})
	}
}

func TestHandlerWithoutRecordOnlyLogs(t *testing.T) {
	var logs bytes.Buffer
	h := NewHandler("doc.xml", false, newTestLogger(&logs))

	h.Error(xerrors.Finding{Message: "boom", Line: 1, Column: 1})

	assert.Empty(t, h.Report())
	assert.Equal(t, 1, h.Events())
	assert.Contains(t, logs.String(), "doc.xml at 1:1 ERROR boom")
}

func TestHandlerReset(t *testing.T) {
	h := NewHandler("doc.xml", true, slog.New(slog.DiscardHandler))
	h.Error(xerrors.Finding{Message: "boom", Line: 1, Column: 1})
	require.Len(t, h.Report(), 1)

	h.Reset()
	assert.Empty(t, h.Report())
	assert.Zero(t, h.Events())
}

func TestHandlerNeverStoresEmptyKey(t *testing.T) {
	h := NewHandler("doc.xml", true, slog.New(slog.DiscardHandler))
	h.Error(xerrors.Finding{Line: -1, Column: -1})

	_, ok := h.Report()[""]
	assert.False(t, ok)
	assert.Equal(t, 1, h.Report()[report.UnspecifiedMessage].Count())
}
