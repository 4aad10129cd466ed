package compress

import (
	"bytes"
	"fmt"

	"github.com/dsnet/compress/bzip2"

	"github.com/provide-io/mpqpack/pkg/mpq/operations"
)

func init() {
	operations.Register(NewBzip2Codec())
}

// Bzip2Codec implements BZIP2 sectors.
type Bzip2Codec struct {
	operations.BaseCodec
}

// NewBzip2Codec creates a new BZIP2 codec
func NewBzip2Codec() *Bzip2Codec {
	return &Bzip2Codec{
		BaseCodec: operations.BaseCodec{
			CodecMask: operations.MASK_BZIP2,
			CodecName: "BZIP2",
		},
	}
}

// Compress compresses a sector using BZIP2
func (c *Bzip2Codec) Compress(input []byte) ([]byte, error) {
	var buf bytes.Buffer

	bw, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: 9})
	if err != nil {
		return nil, fmt.Errorf("creating bzip2 writer: %w", err)
	}
	if _, err := bw.Write(input); err != nil {
		bw.Close()
		return nil, fmt.Errorf("writing bzip2 data: %w", err)
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("closing bzip2 writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress restores a BZIP2 sector
func (c *Bzip2Codec) Decompress(input []byte, outSize int) ([]byte, error) {
	br, err := bzip2.NewReader(bytes.NewReader(input), &bzip2.ReaderConfig{})
	if err != nil {
		return nil, fmt.Errorf("creating bzip2 reader: %w", err)
	}
	defer br.Close()

	return readSector(br, outSize)
}
