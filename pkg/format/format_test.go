package format

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nbgroute/nbgroute/pkg/rerr"
	"pgregory.net/rapid"
)

// TestRoundTripRandomBody checks the shared header/body/footer convention
// itself, independent of any one artifact's layout: whatever magic, version,
// and uint32 body a caller writes, Finish+Open+VerifyFooter must reproduce
// exactly. Corruption detection is covered by TestVerifyFooterCatchesCorruption.
func TestRoundTripRandomBody(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var magic Magic
		magicBytes := rapid.SliceOfN(rapid.Uint8(), 4, 4).Draw(t, "magic")
		copy(magic[:], magicBytes)
		version := rapid.Uint16().Draw(t, "version")
		body := rapid.SliceOfN(rapid.Uint32(), 0, 64).Draw(t, "body")

		path := filepath.Join(t.TempDir(), "artifact.bin")
		w, err := Create(path)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := WriteHeader(w, magic, version); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if err := PadHeader(w); err != nil {
			t.Fatalf("PadHeader: %v", err)
		}
		if err := WriteUint32Slice(w, body); err != nil {
			t.Fatalf("WriteUint32Slice: %v", err)
		}
		if err := w.Finish(); err != nil {
			t.Fatalf("Finish: %v", err)
		}

		r, err := Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer r.Close()

		gotMagic, gotVersion, err := ReadMagicVersion(r)
		if err != nil {
			t.Fatalf("ReadMagicVersion: %v", err)
		}
		if gotMagic != magic {
			t.Fatalf("magic = %v, want %v", gotMagic, magic)
		}
		if gotVersion != version {
			t.Fatalf("version = %d, want %d", gotVersion, version)
		}
		if err := SkipHeaderPad(r, len(magic)+2); err != nil {
			t.Fatalf("SkipHeaderPad: %v", err)
		}
		gotBody, err := ReadUint32Slice(r, len(body))
		if err != nil {
			t.Fatalf("ReadUint32Slice: %v", err)
		}
		if len(gotBody) != len(body) {
			t.Fatalf("body length = %d, want %d", len(gotBody), len(body))
		}
		for i := range body {
			if gotBody[i] != body[i] {
				t.Fatalf("body[%d] = %d, want %d", i, gotBody[i], body[i])
			}
		}
		if err := r.VerifyFooter(); err != nil {
			t.Fatalf("VerifyFooter: %v", err)
		}
	})
}

// TestVerifyFooterCatchesCorruption flips one byte of the body and checks
// that the footer CRC check rejects it, mirroring corrupted-artifact loading
// (a single damaged byte anywhere in ch.topo, nbg.csr, etc. must never be
// silently accepted).
func TestVerifyFooterCatchesCorruption(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		body := rapid.SliceOfN(rapid.Uint32(), 1, 64).Draw(t, "body")
		flipIdx := rapid.IntRange(0, len(body)-1).Draw(t, "flipIdx")

		path := filepath.Join(t.TempDir(), "artifact.bin")
		w, err := Create(path)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := WriteHeader(w, Magic{'T', 'E', 'S', 'T'}, 1); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if err := PadHeader(w); err != nil {
			t.Fatalf("PadHeader: %v", err)
		}
		if err := WriteUint32Slice(w, body); err != nil {
			t.Fatalf("WriteUint32Slice: %v", err)
		}
		if err := w.Finish(); err != nil {
			t.Fatalf("Finish: %v", err)
		}

		// Header is magic(4) + version(2), padded to HeaderPad; the body
		// starts at HeaderPad and each element is 4 bytes.
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			t.Fatalf("OpenFile: %v", err)
		}
		offset := int64(HeaderPad + flipIdx*4)
		var b [1]byte
		if _, err := f.ReadAt(b[:], offset); err != nil {
			t.Fatalf("ReadAt: %v", err)
		}
		b[0] ^= 0xFF
		if _, err := f.WriteAt(b[:], offset); err != nil {
			t.Fatalf("WriteAt: %v", err)
		}
		f.Close()

		r, err := Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer r.Close()
		if _, _, err := ReadMagicVersion(r); err != nil {
			t.Fatalf("ReadMagicVersion: %v", err)
		}
		if err := SkipHeaderPad(r, 6); err != nil {
			t.Fatalf("SkipHeaderPad: %v", err)
		}
		if _, err := ReadUint32Slice(r, len(body)); err != nil {
			t.Fatalf("ReadUint32Slice: %v", err)
		}
		if err := r.VerifyFooter(); !errors.Is(err, rerr.ErrCorrupt) {
			t.Fatalf("VerifyFooter on corrupted body = %v, want rerr.ErrCorrupt", err)
		}
	})
}
