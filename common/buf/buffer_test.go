package buf_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	mRand "math/rand"
	"syscall"
	"testing"

	"github.com/sagernet/sing-echo/common/buf"
	E "github.com/sagernet/sing-echo/common/exceptions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vb "github.com/v2fly/v2ray-core/v5/common/buf"
)

type readResult struct {
	data []byte
	err  error
}

type scriptedReader struct {
	results []readResult
	calls   int
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	r.calls++
	if len(r.results) == 0 {
		return 0, syscall.EAGAIN
	}
	result := r.results[0]
	if len(result.data) > len(p) {
		r.results[0].data = result.data[len(p):]
		return copy(p, result.data), nil
	}
	r.results = r.results[1:]
	return copy(p, result.data), result.err
}

type limitedWriter struct {
	bytes.Buffer
	limit int
	err   error
	calls int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.err != nil {
		return -1, w.err
	}
	if w.limit > 0 && len(p) > w.limit {
		p = p[:w.limit]
	}
	return w.Buffer.Write(p)
}

func randomBytes(t *testing.T, n int) []byte {
	data := make([]byte, n)
	_, err := io.ReadFull(rand.Reader, data)
	require.NoError(t, err)
	return data
}

func TestBuffer(t *testing.T) {
	t.Parallel()
	v := vb.New()
	defer v.Release()
	_, err := v.ReadFullFrom(rand.Reader, 1024)
	require.NoError(t, err)
	payload := append([]byte(nil), v.Bytes()...)
	buffer := buf.NewSize(64)
	defer buffer.Release()
	buffer.Write(payload)
	v.Write(payload)
	buffer.Write(payload)

	require.Equal(t, v.Bytes(), buffer.Bytes())
}

func TestBufferRoundTrip(t *testing.T) {
	t.Parallel()
	random := mRand.New(mRand.NewSource(1))
	buffer := buf.NewSize(16)
	defer buffer.Release()
	var expected, actual bytes.Buffer
	for i := 0; i < 500; i++ {
		chunk := make([]byte, random.Intn(300))
		random.Read(chunk)
		expected.Write(chunk)
		before := buffer.Len()
		n, err := buffer.Write(chunk)
		require.NoError(t, err)
		require.Equal(t, len(chunk), n)
		require.Equal(t, before+len(chunk), buffer.Len())
		require.GreaterOrEqual(t, buffer.FreeLen(), 0)

		out := make([]byte, random.Intn(400))
		n, err = buffer.Read(out)
		require.NoError(t, err)
		actual.Write(out[:n])
	}
	rest := make([]byte, buffer.Len())
	n, _ := buffer.Read(rest)
	actual.Write(rest[:n])
	require.True(t, buffer.IsEmpty())
	require.Equal(t, expected.Bytes(), actual.Bytes())
}

func TestBufferReadEmpty(t *testing.T) {
	t.Parallel()
	buffer := buf.New()
	defer buffer.Release()
	n, err := buffer.Read(make([]byte, 16))
	require.NoError(t, err)
	require.Zero(t, n)
	require.True(t, buffer.IsEmpty())
}

func TestBufferCompact(t *testing.T) {
	t.Parallel()
	buffer := buf.NewSize(64)
	defer buffer.Release()
	data := randomBytes(t, 48)
	buffer.Write(data)
	buffer.Read(make([]byte, 40))
	require.Equal(t, 40, buffer.Prependable())
	require.Equal(t, 16, buffer.FreeLen())

	extra := randomBytes(t, 30)
	buffer.Write(extra)
	require.Equal(t, 64, buffer.Cap())
	require.Zero(t, buffer.Prependable())
	require.Equal(t, append(data[40:], extra...), buffer.Bytes())
}

func TestBufferWritableInPlace(t *testing.T) {
	t.Parallel()
	buffer := buf.NewSize(64)
	defer buffer.Release()
	buffer.Write(randomBytes(t, 16))
	buffer.Read(make([]byte, 8))
	buffer.Write(randomBytes(t, 8))
	require.Equal(t, 8, buffer.Prependable())
	require.Equal(t, 64, buffer.Cap())
}

func TestBufferGrow(t *testing.T) {
	t.Parallel()
	buffer := buf.NewSize(64)
	defer buffer.Release()
	data := randomBytes(t, 60)
	buffer.Write(data)
	buffer.Read(make([]byte, 10))

	extra := randomBytes(t, 20)
	buffer.Write(extra)
	require.GreaterOrEqual(t, buffer.Cap(), 128)
	require.Equal(t, append(data[10:], extra...), buffer.Bytes())

	large := randomBytes(t, 100*1024)
	buffer.Write(large)
	require.GreaterOrEqual(t, buffer.Cap(), 100*1024+70)
	require.Equal(t, append(append(data[10:], extra...), large...), buffer.Bytes())
}

func TestBufferZeroSize(t *testing.T) {
	t.Parallel()
	buffer := buf.NewSize(0)
	defer buffer.Release()
	require.Zero(t, buffer.Cap())
	buffer.WriteString("hello")
	require.Equal(t, "hello", string(buffer.Bytes()))
	require.GreaterOrEqual(t, buffer.Cap(), buf.DefaultSize)
}

func TestBufferReset(t *testing.T) {
	t.Parallel()
	buffer := buf.NewSize(64)
	defer buffer.Release()
	buffer.Write(randomBytes(t, 50))
	buffer.Read(make([]byte, 10))
	buffer.Reset()
	require.True(t, buffer.IsEmpty())
	require.Zero(t, buffer.Prependable())
	require.Equal(t, 64, buffer.FreeLen())
	require.Equal(t, 64, buffer.Cap())
}

func TestBufferReadFromFD(t *testing.T) {
	t.Parallel()
	buffer := buf.NewSize(64)
	defer buffer.Release()
	reader := &scriptedReader{results: []readResult{
		{data: []byte("ping")},
		{err: syscall.EAGAIN},
		{err: syscall.EINTR},
		{data: nil},
	}}

	data, err := buffer.ReadFromFD(reader)
	require.NoError(t, err)
	require.Equal(t, "ping", string(data))
	require.Equal(t, 4, buffer.Len())

	for i := 0; i < 2; i++ {
		data, err = buffer.ReadFromFD(reader)
		require.ErrorIs(t, err, E.ErrWouldBlock)
		require.Nil(t, data)
		require.Equal(t, 4, buffer.Len())
		require.Equal(t, 60, buffer.FreeLen())
	}

	_, err = buffer.ReadFromFD(reader)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 4, buffer.Len())
}

func TestBufferReadFromFDFault(t *testing.T) {
	t.Parallel()
	buffer := buf.NewSize(64)
	defer buffer.Release()
	reader := &scriptedReader{results: []readResult{
		{err: syscall.ECONNRESET},
		{err: io.EOF},
	}}
	_, err := buffer.ReadFromFD(reader)
	require.ErrorIs(t, err, syscall.ECONNRESET)
	require.False(t, E.IsWouldBlock(err))
	_, err = buffer.ReadFromFD(reader)
	require.ErrorIs(t, err, io.EOF)
}

func TestBufferReadFromFDGrowsWhenFull(t *testing.T) {
	t.Parallel()
	buffer := buf.NewSize(64)
	defer buffer.Release()
	payload := randomBytes(t, 64)
	buffer.Write(payload)
	require.Zero(t, buffer.FreeLen())

	reader := &scriptedReader{results: []readResult{{data: []byte("more")}}}
	data, err := buffer.ReadFromFD(reader)
	require.NoError(t, err)
	require.Equal(t, "more", string(data))
	require.Equal(t, 128, buffer.Cap())
	require.Equal(t, append(payload, "more"...), buffer.Bytes())
}

func TestBufferWriteToFD(t *testing.T) {
	t.Parallel()
	buffer := buf.NewSize(64)
	defer buffer.Release()
	writer := &limitedWriter{limit: 7}

	n, err := buffer.WriteToFD(writer)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, writer.calls)

	payload := randomBytes(t, 20)
	buffer.Write(payload)
	for !buffer.IsEmpty() {
		calls := writer.calls
		n, err = buffer.WriteToFD(writer)
		require.NoError(t, err)
		require.LessOrEqual(t, n, 7)
		require.Equal(t, calls+1, writer.calls)
	}
	require.Equal(t, payload, writer.Bytes())
}

func TestBufferWriteToFDErrors(t *testing.T) {
	t.Parallel()
	buffer := buf.NewSize(64)
	defer buffer.Release()
	buffer.WriteString("pending")

	writer := &limitedWriter{err: syscall.EAGAIN}
	n, err := buffer.WriteToFD(writer)
	require.ErrorIs(t, err, E.ErrWouldBlock)
	require.Zero(t, n)
	require.Equal(t, 7, buffer.Len())

	writer.err = syscall.EPIPE
	_, err = buffer.WriteToFD(writer)
	require.True(t, errors.Is(err, syscall.EPIPE))
	require.Equal(t, 7, buffer.Len())
}

func TestBufferAdvance(t *testing.T) {
	t.Parallel()
	buffer := buf.As([]byte("hello world"))
	buffer.Advance(6)
	assert.Equal(t, "world", string(buffer.Bytes()))
	buffer.Advance(100)
	assert.True(t, buffer.IsEmpty())
	buffer.Release()
}
