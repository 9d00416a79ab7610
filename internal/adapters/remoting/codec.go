package remoting

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// Compression identifies the frame payload codec. Values are part of the
// wire format.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a codec name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "", "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

var errIncompressible = errors.New("incompressible")

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("remoting: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("remoting: zstd decoder initialization failed: " + err.Error())
	}
}

// compress returns the payload and the codec actually used. Data that does
// not shrink is sent uncompressed.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	var (
		out []byte
		err error
	)
	switch c {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		out, err = compressLZ4(data)
	case CompressionZstd:
		out, err = compressZstd(data)
	default:
		return nil, 0, fmt.Errorf("unsupported compression: %d", c)
	}
	if errors.Is(err, errIncompressible) {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return out, c, nil
}

// decompress reverses compress. size must match the original length.
func decompress(payload []byte, c Compression, size int) ([]byte, error) {
	if size < 0 || size > maxFrameSize {
		return nil, fmt.Errorf("decompress: size %d out of range", size)
	}
	switch c {
	case CompressionNone:
		if len(payload) != size {
			return nil, fmt.Errorf("uncompressed payload: size %d does not match expected %d", len(payload), size)
		}
		return payload, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
		}
		return out, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %d", c)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if n == 0 || n >= len(data) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}

func compressZstd(data []byte) ([]byte, error) {
	out := zstdEncoder.EncodeAll(data, nil)
	if len(out) >= len(data) {
		return nil, errIncompressible
	}
	return out, nil
}

// digest is the blake3 hash of raw frame pixels.
func digest(pixels []byte) [32]byte {
	return blake3.Sum256(pixels)
}
