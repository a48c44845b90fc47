package turn

import (
	"fmt"

	"github.com/nbgroute/nbgroute/pkg/format"
	"github.com/nbgroute/nbgroute/pkg/rerr"
)

var magicRules = format.Magic{'T', 'R', 'L', '1'}

const formatVersion = 1

// WriteRules writes turn_rules.bin (§6.1 "TRL1"): count, then count rows of
// (from_eidx:u64, via_node:u32, to_eidx:u64, kind:u8, mode_mask:u8), sorted
// by via_node — the sort order Compile already produces.
func WriteRules(path string, rules []Rule, createdUnix uint64) error {
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

	if err := format.WriteHeader(w, magicRules, formatVersion); err != nil {
		return err
	}
	count := uint64(len(rules))
	if err := format.WriteField(w, count); err != nil {
		return err
	}
	if err := format.WriteField(w, createdUnix); err != nil {
		return err
	}
	if err := format.PadHeader(w); err != nil {
		return err
	}

	for _, r := range rules {
		if err := format.WriteField(w, r.FromEdgeIdx); err != nil {
			return err
		}
		if err := format.WriteField(w, r.ViaNode); err != nil {
			return err
		}
		if err := format.WriteField(w, r.ToEdgeIdx); err != nil {
			return err
		}
		if err := format.WriteField(w, uint8(r.Kind)); err != nil {
			return err
		}
		if err := format.WriteField(w, r.ModeMask); err != nil {
			return err
		}
	}

	if err := w.Finish(); err != nil {
		return err
	}
	ok = true
	return nil
}

func ReadRules(path string) ([]Rule, error) {
	r, err := format.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	magic, version, err := format.ReadMagicVersion(r)
	if err != nil {
		return nil, err
	}
	if magic != magicRules {
		return nil, fmt.Errorf("%w: bad magic %q, want %q", rerr.ErrCorrupt, magic, magicRules)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported turn_rules version %d", rerr.ErrCorrupt, version)
	}

	var count, createdUnix uint64
	if err := format.ReadField(r, &count); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	if err := format.ReadField(r, &createdUnix); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}
	_ = createdUnix
	if err := format.SkipHeaderPad(r, 4+2+8+8); err != nil {
		return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
	}

	rules := make([]Rule, count)
	for i := range rules {
		if err := format.ReadField(r, &rules[i].FromEdgeIdx); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
		if err := format.ReadField(r, &rules[i].ViaNode); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
		if err := format.ReadField(r, &rules[i].ToEdgeIdx); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
		var kind uint8
		if err := format.ReadField(r, &kind); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
		rules[i].Kind = Kind(kind)
		if err := format.ReadField(r, &rules[i].ModeMask); err != nil {
			return nil, fmt.Errorf("%w: %v", rerr.ErrCorrupt, err)
		}
	}

	if err := r.VerifyFooter(); err != nil {
		return nil, err
	}
	return rules, nil
}
