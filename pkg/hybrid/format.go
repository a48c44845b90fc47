package hybrid

import (
	"fmt"

	"github.com/nbgroute/nbgroute/pkg/format"
	"github.com/nbgroute/nbgroute/pkg/rerr"
)

var magicEBG = format.Magic{'E', 'B', 'G', 'C'}

const formatVersion = 1

// WriteCSR writes ebg.csr (§6.1 "EBGC"): the state CSR plus the per-node
// state-block and per-state metadata the §4.3 contract calls ebg.nodes,
// appended to the same artifact rather than a second magic not named in the
// format table.
func WriteCSR(path string, g *Graph, numNBGNodes uint32, createdUnix uint64) error {
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

	if err := format.WriteHeader(w, magicEBG, formatVersion); err != nil {
		return err
	}
	nArcs := uint64(len(g.Targets))
	for _, v := range []any{uint64(g.NumStates), nArcs, numNBGNodes, createdUnix} {
		if err := format.WriteField(w, v); err != nil {
			return err
		}
	}
	if err := format.PadHeader(w); err != nil {
		return err
	}

	if err := format.WriteUint64Slice(w, g.Offsets); err != nil {
		return err
	}
	if err := format.WriteUint32Slice(w, g.Targets); err != nil {
		return err
	}
	if err := format.WriteUint32Slice(w, g.Weight); err != nil {
		return err
	}
	if err := format.WriteUint32Slice(w, g.NodeFirstState); err != nil {
		return err
	}
	if err := format.WriteUint32Slice(w, g.NodeNumStates); err != nil {
		return err
	}
	if err := format.WriteUint32Slice(w, g.StateHeadNBG); err != nil {
		return err
	}
	incoming := make([]int32, len(g.StateIncomingEdge))
	for i, e := range g.StateIncomingEdge {
		if e == noIncomingEdge {
			incoming[i] = -1
		} else {
			incoming[i] = int32(e)
		}
	}
	if err := format.WriteInt32Slice(w, incoming); err != nil {
		return err
	}

	if err := w.Finish(); err != nil {
		return err
	}
	ok = true
	return nil
}

func ReadCSR(path string) (*Graph, uint32, error) {
	r, err := format.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()

	magic, version, err := format.ReadMagicVersion(r)
	if err != nil {
		return nil, 0, err
	}
	if magic != magicEBG {
		return nil, 0, fmt.Errorf("%w: bad magic %q, want %q", rerr.ErrCorrupt, magic, magicEBG)
	}
	if version != formatVersion {
		return nil, 0, fmt.Errorf("%w: unsupported ebg.csr version %d", rerr.ErrCorrupt, version)
	}

	var numStates, nArcs, createdUnix uint64
	var numNBGNodes uint32
	if err := format.ReadField(r, &numStates); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	if err := format.ReadField(r, &nArcs); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	if err := format.ReadField(r, &numNBGNodes); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	if err := format.ReadField(r, &createdUnix); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	_ = createdUnix
	if err := format.SkipHeaderPad(r, 4+2+8+8+4+8); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}

	g := &Graph{NumStates: uint32(numStates)}
	if g.Offsets, err = format.ReadUint64Slice(r, int(numStates)+1); err != nil {
		return nil, 0, err
	}
	if g.Targets, err = format.ReadUint32Slice(r, int(nArcs)); err != nil {
		return nil, 0, err
	}
	if g.Weight, err = format.ReadUint32Slice(r, int(nArcs)); err != nil {
		return nil, 0, err
	}
	if g.NodeFirstState, err = format.ReadUint32Slice(r, int(numNBGNodes)); err != nil {
		return nil, 0, err
	}
	if g.NodeNumStates, err = format.ReadUint32Slice(r, int(numNBGNodes)); err != nil {
		return nil, 0, err
	}
	if g.StateHeadNBG, err = format.ReadUint32Slice(r, int(numStates)); err != nil {
		return nil, 0, err
	}
	incoming, err := format.ReadInt32Slice(r, int(numStates))
	if err != nil {
		return nil, 0, err
	}
	g.StateIncomingEdge = make([]int64, numStates)
	for i, e := range incoming {
		if e < 0 {
			g.StateIncomingEdge[i] = noIncomingEdge
		} else {
			g.StateIncomingEdge[i] = int64(e)
		}
	}

	if err := r.VerifyFooter(); err != nil {
		return nil, 0, err
	}
	return g, numNBGNodes, nil
}
