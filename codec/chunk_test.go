package codec_test

import (
	"bytes"
	"errors"
	"testing"

	"go.osspkg.com/casecheck"

	"github.com/vnode/shim/codec"
)

func TestUnit_SendReceiveChunk_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "Case1_empty", body: []byte{}},
		{name: "Case2_small", body: []byte("INCR")},
		{name: "Case3_large", body: bytes.Repeat([]byte{0x42}, 1<<16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			err := codec.SendChunk(buf, tt.body)
			casecheck.NoError(t, err)

			got, err := codec.ReceiveChunk(buf)
			casecheck.NoError(t, err)
			if len(tt.body) == 0 {
				casecheck.True(t, len(got) == 0)
				return
			}
			casecheck.True(t, bytes.Equal(got, tt.body))
		})
	}
}

func TestUnit_ReceiveChunk_CleanClose(t *testing.T) {
	_, err := codec.ReceiveChunk(bytes.NewReader(nil))
	casecheck.Error(t, err)

	var disc *codec.Disconnect
	casecheck.True(t, errors.As(err, &disc))
	casecheck.Equal(t, "closed connection", disc.Reason)
}

func TestUnit_ReceiveChunk_TruncatedHeader(t *testing.T) {
	_, err := codec.ReceiveChunk(bytes.NewReader([]byte{0x01, 0x02}))
	casecheck.Error(t, err)

	var disc *codec.Disconnect
	casecheck.True(t, errors.As(err, &disc))
}

func TestUnit_ReceiveChunk_TruncatedPayload(t *testing.T) {
	buf := &bytes.Buffer{}
	casecheck.NoError(t, codec.SendChunk(buf, []byte("hello world")))

	truncated := bytes.NewReader(buf.Bytes()[:6])
	_, err := codec.ReceiveChunk(truncated)
	casecheck.Error(t, err)
}

func TestUnit_ReceiveChunk_OversizeHeader(t *testing.T) {
	hdr := []byte{0xff, 0xff, 0xff, 0x7f}
	_, err := codec.ReceiveChunk(bytes.NewReader(hdr))
	casecheck.Error(t, err)

	var disc *codec.Disconnect
	casecheck.True(t, errors.As(err, &disc))
}

type shortWriter struct {
	max int
}

func (w *shortWriter) Write(b []byte) (int, error) {
	if len(b) > w.max {
		return w.max, nil
	}
	return len(b), nil
}

func TestUnit_SendChunk_ShortWriteDisconnects(t *testing.T) {
	err := codec.SendChunk(&shortWriter{max: 2}, []byte("payload"))
	casecheck.Error(t, err)

	var disc *codec.Disconnect
	casecheck.True(t, errors.As(err, &disc))
}

type flakyWriter struct {
	chunks [][]byte
	calls  int
}

func (w *flakyWriter) Write(b []byte) (int, error) {
	w.calls++
	n := len(b)
	if n > 3 {
		n = 3
	}
	w.chunks = append(w.chunks, append([]byte(nil), b[:n]...))
	return n, nil
}

func TestUnit_SendChunkReliable_RetriesShortWrites(t *testing.T) {
	w := &flakyWriter{}
	err := codec.SendChunkReliable(w, []byte("hello world"))
	casecheck.NoError(t, err)
	casecheck.True(t, w.calls > 1)

	var got []byte
	for _, c := range w.chunks {
		got = append(got, c...)
	}

	buf := bytes.NewReader(got)
	body, err := codec.ReceiveChunk(buf)
	casecheck.NoError(t, err)
	casecheck.True(t, bytes.Equal(body, []byte("hello world")))
}
