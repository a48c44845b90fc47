// Package format implements the shared binary artifact convention used by
// every on-disk file the pipeline produces: a fixed-layout header, a body of
// flat arrays, and a CRC-64-ISO footer. It generalizes the single fixed
// layout the teacher's pkg/graph/binary.go used for graph.bin into a
// convention every stage's writer/reader can share.
package format

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc64"
	"io"
	"os"
	"unsafe"

	"github.com/nbgroute/nbgroute/pkg/rerr"
)

// ISOTable is the CRC-64-ISO polynomial table used for every format's footer,
// matching the crc crate's CRC_64_GO_ISO used by the original reference
// implementation.
var ISOTable = crc64.MakeTable(crc64.ISO)

// HeaderPad is the boundary every format's header is zero-padded to.
const HeaderPad = 16

// Magic identifies a format. Printed as its 4-byte ASCII form in errors.
type Magic [4]byte

func (m Magic) String() string { return string(m[:]) }

// Writer wraps an atomically-renamed temp file with a running CRC-64 hash
// over every byte written (header included), so Finish can emit the footer
// without a second pass over the body.
type Writer struct {
	f       *os.File
	tmpPath string
	path    string
	hash    hash.Hash64
	written int64
}

// Create opens path+".tmp" for writing. Call Finish to hash, checksum, and
// atomically rename into place; if the writer is abandoned without Finish,
// callers should call Abort to remove the temp file.
func Create(path string) (*Writer, error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", rerr.ErrIO, tmp, err)
	}
	return &Writer{f: f, tmpPath: tmp, path: path, hash: crc64.New(ISOTable)}, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if n > 0 {
		w.hash.Write(p[:n])
		w.written += int64(n)
	}
	return n, err
}

// WriteHeader writes the 4-byte magic and the u16 version. No reserved field
// follows the version and nothing is padded here; callers append their own
// format-specific header fields with WriteField and then call PadHeader.
func WriteHeader(w *Writer, magic Magic, version uint16) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, version)
}

// PadHeader zero-pads the header to HeaderPad-byte alignment. Call after
// writing magic+version+any fixed fields, before the body.
func PadHeader(w *Writer) error {
	rem := w.written % HeaderPad
	if rem == 0 {
		return nil
	}
	pad := make([]byte, HeaderPad-rem)
	_, err := w.Write(pad)
	return err
}

// WriteField writes any fixed-size little-endian value (uint32, uint64,
// [32]byte, etc.) into the header or body.
func WriteField(w *Writer, v any) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// Finish writes the CRC-64 footer (body_crc twice, per §6.1/§9a) and
// atomically renames the temp file into place.
func (w *Writer) Finish() error {
	sum := w.hash.Sum64()
	if err := binary.Write(w.f, binary.LittleEndian, sum); err != nil {
		w.f.Close()
		os.Remove(w.tmpPath)
		return fmt.Errorf("%w: write body_crc: %v", rerr.ErrIO, err)
	}
	if err := binary.Write(w.f, binary.LittleEndian, sum); err != nil {
		w.f.Close()
		os.Remove(w.tmpPath)
		return fmt.Errorf("%w: write file_crc: %v", rerr.ErrIO, err)
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("%w: close: %v", rerr.ErrIO, err)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		return fmt.Errorf("%w: rename: %v", rerr.ErrIO, err)
	}
	return nil
}

// Abort removes the temp file without writing a footer; used on build error.
func (w *Writer) Abort() {
	w.f.Close()
	os.Remove(w.tmpPath)
}

// Reader wraps an open file with a running CRC-64 hash over every byte read,
// so validating the footer needs no second pass.
type Reader struct {
	f    *os.File
	hash hash.Hash64
}

// Open opens path for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", rerr.ErrIO, path, err)
	}
	return &Reader{f: f, hash: crc64.New(ISOTable)}, nil
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.f.Read(p)
	if n > 0 {
		r.hash.Write(p[:n])
	}
	return n, err
}

// ReadMagicVersion reads and returns the 4-byte magic and version, for the
// caller to validate against the expected format.
func ReadMagicVersion(r *Reader) (Magic, uint16, error) {
	var m Magic
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return m, 0, fmt.Errorf("%w: read magic: %v", rerr.ErrCorrupt, err)
	}
	var v uint16
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return m, 0, fmt.Errorf("%w: read version: %v", rerr.ErrCorrupt, err)
	}
	return m, v, nil
}

// SkipHeaderPad discards bytes up to the next HeaderPad boundary, mirroring
// PadHeader on write.
func SkipHeaderPad(r *Reader, writtenSoFar int) error {
	rem := writtenSoFar % HeaderPad
	if rem == 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, int64(HeaderPad-rem))
	return err
}

// ReadField reads a fixed-size little-endian value into v (a pointer).
func ReadField(r *Reader, v any) error {
	return binary.Read(r, binary.LittleEndian, v)
}

// VerifyFooter reads the two trailing u64 CRCs and checks them against the
// hash accumulated over every prior byte read through r.
func (r *Reader) VerifyFooter() error {
	expected := r.hash.Sum64()
	var bodyCRC, fileCRC uint64
	if err := binary.Read(r.f, binary.LittleEndian, &bodyCRC); err != nil {
		return fmt.Errorf("%w: read body_crc: %v", rerr.ErrCorrupt, err)
	}
	if err := binary.Read(r.f, binary.LittleEndian, &fileCRC); err != nil {
		return fmt.Errorf("%w: read file_crc: %v", rerr.ErrCorrupt, err)
	}
	if bodyCRC != expected {
		return fmt.Errorf("%w: body_crc mismatch: stored=%016x computed=%016x", rerr.ErrCorrupt, bodyCRC, expected)
	}
	if fileCRC != bodyCRC {
		return fmt.Errorf("%w: file_crc != body_crc: %016x != %016x", rerr.ErrCorrupt, fileCRC, bodyCRC)
	}
	return nil
}

func (r *Reader) Close() error { return r.f.Close() }

// SHA256File hashes a file's full contents, for the inputs_sha chaining
// between pipeline stages.
func SHA256File(path string) ([32]byte, error) {
	var out [32]byte
	f, err := os.Open(path)
	if err != nil {
		return out, fmt.Errorf("%w: %v", rerr.ErrIO, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return out, fmt.Errorf("%w: %v", rerr.ErrIO, err)
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Zero-copy slice I/O, generalized from the teacher's graph/binary.go helpers
// to every element width the pipeline's formats use.

func WriteUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func WriteUint64Slice(w io.Writer, s []uint64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func WriteInt32Slice(w io.Writer, s []int32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func WriteFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func ReadUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	return s, nil
}

func ReadUint64Slice(r io.Reader, n int) ([]uint64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	return s, nil
}

func ReadInt32Slice(r io.Reader, n int) ([]int32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]int32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	return s, nil
}

func ReadFloat64Slice(r io.Reader, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]float64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	return s, nil
}
