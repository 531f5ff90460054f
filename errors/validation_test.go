package errors

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindingErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		want string
		f    Finding
	}{
		{
			name: "message only",
			f:    Finding{Message: "boom", Line: -1, Column: -1, Severity: SeverityFatal},
			want: "fatal: boom",
		},
		{
			name: "with position",
			f:    Finding{Message: "element \"x\" not allowed anywhere", Line: 3, Column: 7, Severity: SeverityError},
			want: "3:7: error: element \"x\" not allowed anywhere",
		},
		{
			name: "with system id",
			f:    Finding{Message: "odd", SystemID: "a.xml", Line: 1, Column: 2, Severity: SeverityWarning},
			want: "a.xml:1:2: warning: odd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.Error())
		})
	}
}

func TestAsFinding(t *testing.T) {
	f := NewFindingf(SeverityFatal, "doc.xml", 2, 3, "bad %s", "tag")
	wrapped := errors.Join(io.EOF, &f)

	got, ok := AsFinding(wrapped)
	require.True(t, ok)
	assert.True(t, got.Fatal())
	assert.Equal(t, "bad tag", got.Message)

	_, ok = AsFinding(io.EOF)
	assert.False(t, ok)
	_, ok = AsFinding(nil)
	assert.False(t, ok)
}

func TestDispatchRoutesBySeverity(t *testing.T) {
	var rec Recorder
	Dispatch(&rec, Finding{Message: "w", Severity: SeverityWarning})
	Dispatch(&rec, Finding{Message: "e", Severity: SeverityError})
	Dispatch(&rec, Finding{Message: "f", Severity: SeverityFatal})
	Dispatch(nil, Finding{Message: "ignored"})

	assert.Equal(t, []string{"w", "e", "f"}, rec.Messages())
}

func TestWrapfKeepsKindAndCause(t *testing.T) {
	err := Wrapf(ErrIO, io.ErrUnexpectedEOF, "read %s", "a.xml.gz")

	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "i/o failure: read a.xml.gz: unexpected EOF", err.Error())
}
