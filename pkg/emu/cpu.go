package emu

import (
	"github.com/gekkodbg/gekkodbg/pkg/gekko"
)

// cpu executes the integer subset of the instruction set needed to move
// data around and call functions: addi, addis, ori, branches, blr, mflr,
// mtlr and word and byte loads and stores. Every other instruction is
// executed as a no-op.
type cpu struct {
	gpr [32]uint32
	lr  uint32
}

const sprLR = 8

type memHit struct {
	addr  uint32
	write bool
}

func simm(inst gekko.Inst) uint32 {
	return uint32(int32(int16(uint16(inst))))
}

func (c *cpu) ea(inst gekko.Inst) uint32 {
	ra := uint32(inst) >> 16 & 31
	if ra == 0 {
		return simm(inst)
	}
	return c.gpr[ra] + simm(inst)
}

func (c *cpu) exec(m *Machine, inst gekko.Inst, pc uint32) (uint32, *memHit, error) {
	rd := uint32(inst) >> 21 & 31
	ra := uint32(inst) >> 16 & 31
	next := pc + 4
	switch inst.OPCD() {
	case gekko.HLEOpcode:
		// The trampoline stands for a whole function.
		next = c.lr
	case 14: // addi
		c.gpr[rd] = c.ea(inst)
	case 15: // addis
		v := uint32(uint16(inst)) << 16
		if ra != 0 {
			v += c.gpr[ra]
		}
		c.gpr[rd] = v
	case 24: // ori
		c.gpr[ra] = c.gpr[rd] | uint32(uint16(inst))
	case 18: // b, ba, bl, bla
		li := uint32(int32(uint32(inst)&0x03FFFFFC<<6) >> 6)
		if uint32(inst)&2 != 0 {
			next = li
		} else {
			next = pc + li
		}
		if uint32(inst)&1 != 0 {
			c.lr = pc + 4
		}
	case 19:
		if uint32(inst)>>1&0x3FF == 16 && rd&0x14 == 0x14 { // blr
			next = c.lr
		}
	case 31:
		spr := (uint32(inst)>>16&31 | uint32(inst)>>6&0x3E0)
		switch uint32(inst) >> 1 & 0x3FF {
		case 339: // mfspr
			if spr == sprLR {
				c.gpr[rd] = c.lr
			}
		case 467: // mtspr
			if spr == sprLR {
				c.lr = c.gpr[rd]
			}
		}
	case 32: // lwz
		addr := c.ea(inst)
		v, err := m.Mem.ReadU32(addr)
		if err != nil {
			return pc, nil, err
		}
		c.gpr[rd] = v
		return next, m.memCheck(pc, addr, 4, false), nil
	case 34: // lbz
		addr := c.ea(inst)
		v, err := m.Mem.ReadU8(addr)
		if err != nil {
			return pc, nil, err
		}
		c.gpr[rd] = uint32(v)
		return next, m.memCheck(pc, addr, 1, false), nil
	case 36: // stw
		addr := c.ea(inst)
		if err := m.Mem.WriteU32(addr, c.gpr[rd]); err != nil {
			return pc, nil, err
		}
		return next, m.memCheck(pc, addr, 4, true), nil
	case 38: // stb
		addr := c.ea(inst)
		if err := m.Mem.WriteU8(addr, byte(c.gpr[rd])); err != nil {
			return pc, nil, err
		}
		return next, m.memCheck(pc, addr, 1, true), nil
	}
	return next, nil, nil
}

// memCheck reports a hit if a memcheck covering the access asks to break.
func (m *Machine) memCheck(pc, addr, size uint32, write bool) *memHit {
	if m.mcs == nil {
		return nil
	}
	mc, ok := m.mcs.GetMemCheck(addr, size)
	if !ok {
		return nil
	}
	if write && !mc.IsBreakOnWrite || !write && !mc.IsBreakOnRead {
		return nil
	}
	if mc.LogOnHit {
		kind := "read"
		if write {
			kind = "write"
		}
		m.log.Infof("memcheck %s: %s%d %#08x at pc %#08x", mc, kind, size*8, addr, pc)
	}
	if !mc.BreakOnHit {
		return nil
	}
	return &memHit{addr: addr, write: write}
}
