package ordering

import (
	"fmt"

	"github.com/nbgroute/nbgroute/pkg/format"
	"github.com/nbgroute/nbgroute/pkg/rerr"
)

var (
	magicNBGOrder = format.Magic{'N', 'O', 'R', 'D'}
	magicEBGOrder = format.Magic{'E', 'O', 'R', 'D'}
)

const formatVersion = 1

// WriteNBGOrder writes order.nbg (§6.1 "NORD"): n, then perm[n], then
// inv_perm[n], all u32.
func WriteNBGOrder(path string, o *NBGOrdering, createdUnix uint64) error {
	return writeOrdering(path, magicNBGOrder, o.Perm, o.InvPerm, createdUnix)
}

// ReadNBGOrder reads order.nbg back.
func ReadNBGOrder(path string) (*NBGOrdering, error) {
	perm, invPerm, err := readOrdering(path, magicNBGOrder)
	if err != nil {
		return nil, err
	}
	return &NBGOrdering{Perm: perm, InvPerm: invPerm}, nil
}

// WriteEBGOrder writes order.ebg (§6.1 "EORD"), same layout as order.nbg
// but over hybrid state ids.
func WriteEBGOrder(path string, o *EBGOrdering, createdUnix uint64) error {
	return writeOrdering(path, magicEBGOrder, o.Perm, o.InvPerm, createdUnix)
}

func ReadEBGOrder(path string) (*EBGOrdering, error) {
	perm, invPerm, err := readOrdering(path, magicEBGOrder)
	if err != nil {
		return nil, err
	}
	return &EBGOrdering{Perm: perm, InvPerm: invPerm}, nil
}

func writeOrdering(path string, magic format.Magic, perm, invPerm []uint32, createdUnix uint64) error {
	w, err := format.Create(path)
	if err != nil {
		return err
	}
	ok := false
	defer func() {
		if !ok {
			w.Abort()
		}
	}()

	if err := format.WriteHeader(w, magic, formatVersion); err != nil {
		return err
	}
	n := uint64(len(perm))
	if err := format.WriteField(w, n); err != nil {
		return err
	}
	if err := format.WriteField(w, createdUnix); err != nil {
		return err
	}
	if err := format.PadHeader(w); err != nil {
		return err
	}

	if err := format.WriteUint32Slice(w, perm); err != nil {
		return err
	}
	if err := format.WriteUint32Slice(w, invPerm); err != nil {
		return err
	}

	if err := w.Finish(); err != nil {
		return err
	}
	ok = true
	return nil
}

func readOrdering(path string, magic format.Magic) (perm, invPerm []uint32, err error) {
	r, err := format.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	gotMagic, version, err := format.ReadMagicVersion(r)
	if err != nil {
		return nil, nil, err
	}
	if gotMagic != magic {
		return nil, nil, fmt.Errorf("%w: bad magic %q, want %q", rerr.ErrCorrupt, gotMagic, magic)
	}
	if version != formatVersion {
		return nil, nil, fmt.Errorf("%w: unsupported ordering format version %d", rerr.ErrCorrupt, version)
	}

	var n, createdUnix uint64
	if err := format.ReadField(r, &n); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	if err := format.ReadField(r, &createdUnix); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	_ = createdUnix
	if err := format.SkipHeaderPad(r, 4+2+8+8); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}

	perm, err = format.ReadUint32Slice(r, int(n))
	if err != nil {
		return nil, nil, err
	}
	invPerm, err = format.ReadUint32Slice(r, int(n))
	if err != nil {
		return nil, nil, err
	}

	if err := r.VerifyFooter(); err != nil {
		return nil, nil, err
	}
	return perm, invPerm, nil
}
