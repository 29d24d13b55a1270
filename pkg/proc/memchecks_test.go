package proc

import (
	"reflect"
	"testing"
)

func TestMemCheckOverlap(t *testing.T) {
	mcs := NewMemChecks()
	mcs.Add(MemCheck{StartAddress: 0x1000, EndAddress: 0x1003, IsBreakOnWrite: true, BreakOnHit: true})

	for _, tc := range []struct {
		addr, size uint32
		hit        bool
	}{
		{0x1001, 1, true},
		{0x1000, 1, true},
		{0x1003, 1, true},
		{0x1004, 1, false},
		{0x0FFF, 1, false},
		{0x0FFC, 4, false},
		{0x0FFE, 4, true},
		{0x0FFF, 0, false},
		{0x1002, 0, true},
	} {
		mc, ok := mcs.GetMemCheck(tc.addr, tc.size)
		if ok != tc.hit {
			t.Errorf("GetMemCheck(%#x, %d): expected hit=%v; got %v", tc.addr, tc.size, tc.hit, ok)
			continue
		}
		if ok && mc.StartAddress != 0x1000 {
			t.Errorf("GetMemCheck(%#x, %d): wrong record %v", tc.addr, tc.size, mc)
		}
	}
}

func TestMemCheckOverlapAtTopOfAddressSpace(t *testing.T) {
	mcs := NewMemChecks()
	mcs.Add(MemCheck{StartAddress: 0xFFFFFFFC, EndAddress: 0xFFFFFFFF})
	if _, ok := mcs.GetMemCheck(0xFFFFFFFE, 4); !ok {
		t.Fatal("expected hit for a range running past the end of the address space")
	}
}

func TestMemCheckFirstMatchAndRemove(t *testing.T) {
	mcs := NewMemChecks()
	first := MemCheck{StartAddress: 0x2000, EndAddress: 0x20FF, LogOnHit: true}
	second := MemCheck{StartAddress: 0x2080, EndAddress: 0x2080, BreakOnHit: true}
	mcs.Add(first)
	mcs.Add(second)

	if mc, _ := mcs.GetMemCheck(0x2080, 1); mc != first {
		t.Fatalf("expected first inserted record; got %v", mc)
	}

	mcs.Remove(0x2080)
	if got := mcs.MemChecks(); !reflect.DeepEqual(got, []MemCheck{second}) {
		t.Fatalf("expected only the second record to remain; got %v", got)
	}

	mcs.Remove(0x3000)
	if len(mcs.MemChecks()) != 1 {
		t.Fatal("removing an address outside every range changed the collection")
	}
	mcs.Clear()
	if len(mcs.MemChecks()) != 0 {
		t.Fatal("expected empty collection after Clear")
	}
}

func TestMemCheckToggle(t *testing.T) {
	mcs := NewMemChecks()
	if !mcs.Toggle(0x80001000, true, false, true) {
		t.Fatal("expected toggle to add a memcheck")
	}
	expected := MemCheck{
		StartAddress:  0x80001000,
		EndAddress:    0x80001000,
		IsBreakOnRead: true,
		LogOnHit:      true,
		BreakOnHit:    true,
	}
	if got := mcs.MemChecks(); !reflect.DeepEqual(got, []MemCheck{expected}) {
		t.Fatalf("expected %v; got %v", expected, got)
	}

	// toggling off ignores the flags
	if mcs.Toggle(0x80001000, false, true, false) {
		t.Fatal("expected toggle to remove the memcheck")
	}
	if len(mcs.MemChecks()) != 0 {
		t.Fatalf("expected empty collection; got %v", mcs.MemChecks())
	}
}

func TestMemCheckToggleInvolution(t *testing.T) {
	flags := [][3]bool{{true, true, true}, {false, false, false}, {true, false, true}, {false, true, false}}
	for _, addr := range []uint32{0x10, 0x80000000, 0xFFFFFFFF} {
		for _, f1 := range flags {
			for _, f2 := range flags {
				mcs := NewMemChecks()
				mcs.Add(MemCheck{StartAddress: 0x4000, EndAddress: 0x4010})
				before := mcs.MemChecks()
				mcs.Toggle(addr, f1[0], f1[1], f1[2])
				mcs.Toggle(addr, f2[0], f2[1], f2[2])
				if after := mcs.MemChecks(); !reflect.DeepEqual(before, after) {
					t.Fatalf("%#x %v %v: expected %v; got %v", addr, f1, f2, before, after)
				}
			}
		}
	}
}

func TestMemCheckString(t *testing.T) {
	mc := MemCheck{StartAddress: 0x80001000, EndAddress: 0x80001000, IsBreakOnWrite: true, BreakOnHit: true}
	if got := mc.String(); got != "0x80001000 [write,break]" {
		t.Fatalf("unexpected string %q", got)
	}
	mc.EndAddress = 0x80001003
	if got := mc.String(); got != "0x80001000-0x80001003 [write,break]" {
		t.Fatalf("unexpected string %q", got)
	}
}
