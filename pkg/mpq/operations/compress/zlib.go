package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/provide-io/mpqpack/pkg/mpq/operations"
)

func init() {
	operations.Register(NewZlibCodec())
}

// ZlibCodec implements deflate sectors with a zlib wrapper.
type ZlibCodec struct {
	operations.BaseCodec
	Level int
}

// NewZlibCodec creates a zlib codec at the best compression level.
func NewZlibCodec() *ZlibCodec {
	return &ZlibCodec{
		BaseCodec: operations.BaseCodec{
			CodecMask: operations.MASK_ZLIB,
			CodecName: "ZLIB",
		},
		Level: zlib.BestCompression,
	}
}

// Compress compresses a sector with zlib.
func (c *ZlibCodec) Compress(input []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw, err := zlib.NewWriterLevel(&buf, c.Level)
	if err != nil {
		return nil, fmt.Errorf("creating zlib writer: %w", err)
	}
	if _, err := zw.Write(input); err != nil {
		zw.Close()
		return nil, fmt.Errorf("writing zlib data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing zlib writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress inflates a zlib sector.
func (c *ZlibCodec) Decompress(input []byte, outSize int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("creating zlib reader: %w", err)
	}
	defer zr.Close()

	return readSector(zr, outSize)
}

// readSector reads a decoder to EOF. When outSize is known the buffer is
// sized up front and one extra byte is allowed so oversized output shows up.
func readSector(r io.Reader, outSize int) ([]byte, error) {
	if outSize < 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading sector: %w", err)
		}
		return data, nil
	}

	buf := bytes.NewBuffer(make([]byte, 0, outSize))
	if _, err := io.Copy(buf, io.LimitReader(r, int64(outSize)+1)); err != nil {
		return nil, fmt.Errorf("reading sector: %w", err)
	}
	return buf.Bytes(), nil
}
