package vectorindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
)

// Binary layout of vectors.bin:
//
//	Magic    uint32  "BSV1"
//	Version  uint32
//	Dims     uint32
//	Count    uint32
//	Checksum uint32  CRC32-C of the uncompressed payload
//	Reserved uint32
//	Payload  zstd(count*dims little-endian float32 bits)
const (
	magic      = 0x42535631
	version    = 1
	headerSize = 24
)

var (
	// ErrInvalidMagic is returned for data that is not a vector blob.
	ErrInvalidMagic = errors.New("vectorindex: invalid magic number")
	// ErrUnsupportedVersion is returned for blobs written by a newer format.
	ErrUnsupportedVersion = errors.New("vectorindex: unsupported version")
	// ErrChecksum is returned when the payload does not match its checksum.
	ErrChecksum = errors.New("vectorindex: checksum mismatch")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Checksum returns the CRC32-C of the raw vector payload. It is recorded in the manifest.
func (ix *Index) Checksum() uint32 {
	return crc32.Checksum(ix.payload(), castagnoli)
}

// WriteTo serializes the index. Reading it back yields bit-identical vectors.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	payload := ix.payload()

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:], magic)
	binary.LittleEndian.PutUint32(header[4:], version)
	binary.LittleEndian.PutUint32(header[8:], uint32(ix.dims))
	binary.LittleEndian.PutUint32(header[12:], uint32(ix.count))
	binary.LittleEndian.PutUint32(header[16:], crc32.Checksum(payload, castagnoli))

	n, err := w.Write(header)
	written := int64(n)
	if err != nil {
		return written, fmt.Errorf("write header: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return written, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()

	compressed := enc.EncodeAll(payload, nil)
	n, err = w.Write(compressed)
	written += int64(n)
	if err != nil {
		return written, fmt.Errorf("write payload: %w", err)
	}
	return written, nil
}

// Read deserializes an index written by WriteTo and verifies its checksum.
func Read(r io.Reader) (*Index, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if binary.LittleEndian.Uint32(header[0:]) != magic {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(header[4:]); v != version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	dims := int(binary.LittleEndian.Uint32(header[8:]))
	count := int(binary.LittleEndian.Uint32(header[12:]))
	sum := binary.LittleEndian.Uint32(header[16:])
	if dims == 0 || count == 0 {
		return nil, fmt.Errorf("vectorindex: empty header (dims=%d, count=%d)", dims, count)
	}

	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	payload, err := dec.DecodeAll(compressed, make([]byte, 0, dims*count*4))
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	if len(payload) != dims*count*4 {
		return nil, fmt.Errorf("vectorindex: payload is %d bytes, want %d", len(payload), dims*count*4)
	}
	if crc32.Checksum(payload, castagnoli) != sum {
		return nil, ErrChecksum
	}

	data := make([]float32, dims*count)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	return &Index{dims: dims, count: count, data: data}, nil
}

// Unmarshal is Read over a byte slice.
func Unmarshal(b []byte) (*Index, error) {
	return Read(bytes.NewReader(b))
}

func (ix *Index) payload() []byte {
	buf := make([]byte, len(ix.data)*4)
	for i, f := range ix.data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
