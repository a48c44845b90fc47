package ordering_test

import (
	"path/filepath"
	"testing"

	"github.com/nbgroute/nbgroute/pkg/ordering"
)

func TestNBGOrderRoundTrip(t *testing.T) {
	o := &ordering.NBGOrdering{
		Perm:    []uint32{2, 0, 1, 3},
		InvPerm: []uint32{1, 2, 0, 3},
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "order.nbg")
	if err := ordering.WriteNBGOrder(path, o, 1_700_000_000); err != nil {
		t.Fatalf("WriteNBGOrder: %v", err)
	}
	got, err := ordering.ReadNBGOrder(path)
	if err != nil {
		t.Fatalf("ReadNBGOrder: %v", err)
	}
	for i := range o.Perm {
		if got.Perm[i] != o.Perm[i] || got.InvPerm[i] != o.InvPerm[i] {
			t.Errorf("entry %d: got (%d,%d), want (%d,%d)", i, got.Perm[i], got.InvPerm[i], o.Perm[i], o.InvPerm[i])
		}
	}
}

func TestEBGOrderRoundTrip(t *testing.T) {
	o := &ordering.EBGOrdering{
		Perm:    []uint32{1, 0, 2},
		InvPerm: []uint32{1, 0, 2},
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "order.ebg")
	if err := ordering.WriteEBGOrder(path, o, 1_700_000_000); err != nil {
		t.Fatalf("WriteEBGOrder: %v", err)
	}
	got, err := ordering.ReadEBGOrder(path)
	if err != nil {
		t.Fatalf("ReadEBGOrder: %v", err)
	}
	for i := range o.Perm {
		if got.Perm[i] != o.Perm[i] || got.InvPerm[i] != o.InvPerm[i] {
			t.Errorf("entry %d: got (%d,%d), want (%d,%d)", i, got.Perm[i], got.InvPerm[i], o.Perm[i], o.InvPerm[i])
		}
	}
}

func TestNBGOrderWrongMagicRejected(t *testing.T) {
	o := &ordering.EBGOrdering{Perm: []uint32{0}, InvPerm: []uint32{0}}
	dir := t.TempDir()
	path := filepath.Join(dir, "order.ebg")
	if err := ordering.WriteEBGOrder(path, o, 0); err != nil {
		t.Fatalf("WriteEBGOrder: %v", err)
	}
	if _, err := ordering.ReadNBGOrder(path); err == nil {
		t.Fatal("expected error reading an order.ebg file as order.nbg")
	}
}
