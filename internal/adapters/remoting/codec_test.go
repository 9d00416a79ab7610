package remoting

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/holoship/internal/domain"
)

func gradient(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i / 64)
	}
	return out
}

func TestCompressRoundTrip(t *testing.T) {
	data := gradient(64 * 1024)
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			payload, used, err := compress(data, c)
			require.NoError(t, err)
			assert.Equal(t, c, used)
			if c != CompressionNone {
				assert.Less(t, len(payload), len(data))
			}

			out, err := decompress(payload, used, len(data))
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, out))
		})
	}
}

func TestCompressIncompressibleFallsBack(t *testing.T) {
	data := make([]byte, 4096)
	_, err := rand.Read(data)
	require.NoError(t, err)

	for _, c := range []Compression{CompressionLZ4, CompressionZstd} {
		payload, used, err := compress(data, c)
		require.NoError(t, err)
		assert.Equal(t, CompressionNone, used, c.String())
		assert.Equal(t, data, payload)
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	data := gradient(8192)
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		payload, used, err := compress(data, c)
		require.NoError(t, err)
		_, err = decompress(payload, used, len(data)+1)
		assert.Error(t, err, c.String())
	}
}

func TestDecompressRejectsSizeBeforeAllocating(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		for _, size := range []int{-1, maxFrameSize + 1, 1 << 40} {
			assert.NotPanics(t, func() {
				_, err := decompress([]byte{0}, c, size)
				assert.Error(t, err, "%s size %d", c, size)
			})
		}
	}
}

func TestDecodeFrameRejectsBadGeometry(t *testing.T) {
	valid, err := encodeFrame(domain.FrameImage{
		Width:  4,
		Height: 4,
		Stride: 16,
		Pixels: gradient(64),
	}, CompressionLZ4)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(m *frameMsg)
	}{
		{"negative size", func(m *frameMsg) { m.Size = -1 }},
		{"huge size", func(m *frameMsg) { m.Size = 1 << 40 }},
		{"size does not match rows", func(m *frameMsg) { m.Size = 65 }},
		{"short stride", func(m *frameMsg) { m.Stride = 8; m.Size = 32 }},
		{"zero height", func(m *frameMsg) { m.Height = 0; m.Size = 0 }},
		{"oversized width", func(m *frameMsg) { m.Width = domain.MaxViewportDim + 1 }},
		{"empty header", func(m *frameMsg) { *m = frameMsg{Compression: CompressionLZ4, Size: -1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			assert.NotPanics(t, func() {
				_, err := decodeFrame(m)
				assert.ErrorIs(t, err, errFrameGeometry)
			})
		})
	}

	_, err = decodeFrame(valid)
	assert.NoError(t, err)
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{"", CompressionLZ4, false},
		{"none", CompressionNone, false},
		{"lz4", CompressionLZ4, false},
		{"zstd", CompressionZstd, false},
		{"gzip", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFrameDigest(t *testing.T) {
	img := domain.FrameImage{
		Number: 7,
		Camera: 3,
		Width:  16,
		Height: 16,
		Stride: 64,
		Pixels: gradient(16 * 64),
	}

	m, err := encodeFrame(img, CompressionZstd)
	require.NoError(t, err)

	got, err := decodeFrame(m)
	require.NoError(t, err)
	assert.Equal(t, img, got)

	m.Digest[0] ^= 0xff
	_, err = decodeFrame(m)
	assert.ErrorIs(t, err, errDigestMismatch)
}

func TestFrameCarriesDepthFlag(t *testing.T) {
	for _, depth := range []bool{false, true} {
		img := domain.FrameImage{Width: 2, Height: 2, Stride: 8, Pixels: gradient(16), CommitDepth: depth}
		m, err := encodeFrame(img, CompressionNone)
		require.NoError(t, err)
		assert.Equal(t, depth, m.Depth)

		got, err := decodeFrame(m)
		require.NoError(t, err)
		assert.Equal(t, depth, got.CommitDepth)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, domain.ReasonConnectionLost, classify(io.EOF))
	assert.Equal(t, domain.ReasonNetworkTimeout, classify(timeoutErr{}))
}
