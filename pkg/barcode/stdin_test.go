package barcode

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderSourceEmitsCodes(t *testing.T) {
	t.Parallel()

	src := NewReaderSource(strings.NewReader("012345678912\n\n  036000291452  \n"), nil)
	require.NoError(t, src.Start(context.Background()))

	var got []string
	for det := range src.Detections() {
		assert.Equal(t, "manual", det.Type)
		assert.Equal(t, float64(1), det.Confidence)
		assert.False(t, det.Timestamp.IsZero())
		got = append(got, det.Data)
	}
	assert.Equal(t, []string{"012345678912", "036000291452"}, got)
}

func TestReaderSourceClosesOnEOF(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	src := NewReaderSource(pr, nil)
	require.NoError(t, src.Start(context.Background()))

	go func() { _, _ = pw.Write([]byte("111111111111\n")) }()
	select {
	case det := <-src.Detections():
		assert.Equal(t, "111111111111", det.Data)
	case <-time.After(time.Second):
		t.Fatal("no detection emitted")
	}

	require.NoError(t, pw.Close())
	select {
	case _, open := <-src.Detections():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("stream did not close on EOF")
	}
}
