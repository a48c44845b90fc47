package ch

import (
	"fmt"

	"github.com/nbgroute/nbgroute/pkg/format"
	"github.com/nbgroute/nbgroute/pkg/rerr"
)

var (
	magicTopo = format.Magic{'C', 'H', 'T', 'P'}
	magicWts  = format.Magic{'C', 'H', 'W', 'T'}
)

const formatVersion = 1

// WriteTopo writes ch.topo (§6.1 "CHTP"): n, up_offsets[n+1],
// down_offsets[n+1], up_targets, down_targets. Weights and shortcut
// descriptors live in the companion ch.wts file so a caller that only needs
// the overlay's shape (e.g. a pure reachability check) can skip the larger
// weights file.
func WriteTopo(path string, g *Graph, createdUnix uint64) error {
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

	if err := format.WriteHeader(w, magicTopo, formatVersion); err != nil {
		return err
	}
	nUp := uint64(len(g.FwdTargets))
	nDown := uint64(len(g.BwdTargets))
	for _, v := range []any{uint64(g.NumStates), nUp, nDown, createdUnix} {
		if err := format.WriteField(w, v); err != nil {
			return err
		}
	}
	if err := format.PadHeader(w); err != nil {
		return err
	}

	if err := format.WriteUint64Slice(w, g.FwdOffsets); err != nil {
		return err
	}
	if err := format.WriteUint64Slice(w, g.BwdOffsets); err != nil {
		return err
	}
	if err := format.WriteUint32Slice(w, g.FwdTargets); err != nil {
		return err
	}
	if err := format.WriteUint32Slice(w, g.BwdTargets); err != nil {
		return err
	}

	if err := w.Finish(); err != nil {
		return err
	}
	ok = true
	return nil
}

// ReadTopo reads ch.topo back, leaving Rank/weights/middles zero-valued —
// callers that need a full query-ready Graph should use ReadCH instead,
// which merges this with ch.wts.
func ReadTopo(path string) (*Graph, error) {
	r, err := format.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	magic, version, err := format.ReadMagicVersion(r)
	if err != nil {
		return nil, err
	}
	if magic != magicTopo {
		return nil, fmt.Errorf("%w: bad magic %q, want %q", rerr.ErrCorrupt, magic, magicTopo)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported ch.topo version %d", rerr.ErrCorrupt, version)
	}

	var numStates, nUp, nDown, createdUnix uint64
	for _, v := range []*uint64{&numStates, &nUp, &nDown, &createdUnix} {
		if err := format.ReadField(r, v); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
	}
	_ = createdUnix
	if err := format.SkipHeaderPad(r, 4+2+8+8+8+8); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}

	g := &Graph{NumStates: uint32(numStates)}
	if g.FwdOffsets, err = format.ReadUint64Slice(r, int(numStates)+1); err != nil {
		return nil, err
	}
	if g.BwdOffsets, err = format.ReadUint64Slice(r, int(numStates)+1); err != nil {
		return nil, err
	}
	if g.FwdTargets, err = format.ReadUint32Slice(r, int(nUp)); err != nil {
		return nil, err
	}
	if g.BwdTargets, err = format.ReadUint32Slice(r, int(nDown)); err != nil {
		return nil, err
	}

	if err := r.VerifyFooter(); err != nil {
		return nil, err
	}
	return g, nil
}

// WriteWeights writes ch.wts (§6.1 "CHWT"): weights parallel to ch.topo's
// up/down target arrays, plus a per-arc shortcut descriptor packed as
// tag:u1 in the top bit of a u64 and payload:u63 below it — payload is the
// contracted middle state id when tag=1 (shortcut), unused (0) when tag=0
// (original hybrid-graph arc). Also carries Rank, since a reader needs it
// alongside the weights to run a query.
func WriteWeights(path string, g *Graph, createdUnix uint64) error {
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

	if err := format.WriteHeader(w, magicWts, formatVersion); err != nil {
		return err
	}
	nUp := uint64(len(g.FwdWeight))
	nDown := uint64(len(g.BwdWeight))
	for _, v := range []any{uint64(g.NumStates), nUp, nDown, createdUnix} {
		if err := format.WriteField(w, v); err != nil {
			return err
		}
	}
	if err := format.PadHeader(w); err != nil {
		return err
	}

	if err := format.WriteUint32Slice(w, g.Rank); err != nil {
		return err
	}
	if err := format.WriteUint32Slice(w, g.FwdWeight); err != nil {
		return err
	}
	if err := format.WriteUint32Slice(w, g.BwdWeight); err != nil {
		return err
	}
	if err := format.WriteUint64Slice(w, packDescriptors(g.FwdMiddle)); err != nil {
		return err
	}
	if err := format.WriteUint64Slice(w, packDescriptors(g.BwdMiddle)); err != nil {
		return err
	}

	if err := w.Finish(); err != nil {
		return err
	}
	ok = true
	return nil
}

// ReadCH reads ch.topo and ch.wts and merges them into one query-ready
// Graph.
func ReadCH(topoPath, wtsPath string) (*Graph, error) {
	g, err := ReadTopo(topoPath)
	if err != nil {
		return nil, err
	}
	if err := readWeightsInto(wtsPath, g); err != nil {
		return nil, err
	}
	return g, nil
}

func readWeightsInto(path string, g *Graph) error {
	r, err := format.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	magic, version, err := format.ReadMagicVersion(r)
	if err != nil {
		return err
	}
	if magic != magicWts {
		return fmt.Errorf("%w: bad magic %q, want %q", rerr.ErrCorrupt, magic, magicWts)
	}
	if version != formatVersion {
		return fmt.Errorf("%w: unsupported ch.wts version %d", rerr.ErrCorrupt, version)
	}

	var numStates, nUp, nDown, createdUnix uint64
	for _, v := range []*uint64{&numStates, &nUp, &nDown, &createdUnix} {
		if err := format.ReadField(r, v); err != nil {
			return fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
	}
	_ = createdUnix
	if uint32(numStates) != g.NumStates {
		return fmt.Errorf("%w: ch.wts numStates=%d does not match ch.topo numStates=%d", rerr.ErrCorrupt, numStates, g.NumStates)
	}
	if err := format.SkipHeaderPad(r, 4+2+8+8+8+8); err != nil {
		return fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}

	if g.Rank, err = format.ReadUint32Slice(r, int(numStates)); err != nil {
		return err
	}
	if g.FwdWeight, err = format.ReadUint32Slice(r, int(nUp)); err != nil {
		return err
	}
	if g.BwdWeight, err = format.ReadUint32Slice(r, int(nDown)); err != nil {
		return err
	}
	fwdDesc, err := format.ReadUint64Slice(r, int(nUp))
	if err != nil {
		return err
	}
	bwdDesc, err := format.ReadUint64Slice(r, int(nDown))
	if err != nil {
		return err
	}
	g.FwdMiddle = unpackDescriptors(fwdDesc)
	g.BwdMiddle = unpackDescriptors(bwdDesc)

	return r.VerifyFooter()
}

const shortcutTagBit = uint64(1) << 63

func packDescriptors(middle []int64) []uint64 {
	out := make([]uint64, len(middle))
	for i, m := range middle {
		if m == noMiddle {
			out[i] = 0
		} else {
			out[i] = shortcutTagBit | uint64(m)
		}
	}
	return out
}

func unpackDescriptors(packed []uint64) []int64 {
	out := make([]int64, len(packed))
	for i, d := range packed {
		if d&shortcutTagBit == 0 {
			out[i] = noMiddle
		} else {
			out[i] = int64(d &^ shortcutTagBit)
		}
	}
	return out
}
