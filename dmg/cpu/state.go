package cpu

// State is the serializable state of the CPU, captured between instructions.
type State struct {
	Registers Registers
	IME       bool
	EIPending bool
	Halted    bool
	Stopped   bool
	HaltBug   bool
	Cycles    uint64
}

func (c *CPU) Snapshot() State {
	return State{
		Registers: c.Registers(),
		IME:       c.ime,
		EIPending: c.eiPending,
		Halted:    c.halted,
		Stopped:   c.stopped,
		HaltBug:   c.haltBug,
		Cycles:    c.cycles,
	}
}

// Restore replaces the CPU state and clears any fault.
func (c *CPU) Restore(s State) {
	r := s.Registers
	c.a, c.b, c.c, c.d, c.e, c.h, c.l = r.A, r.B, r.C, r.D, r.E, r.H, r.L
	c.f = r.F & 0xF0
	c.sp, c.pc = r.SP, r.PC
	c.ime = s.IME
	c.eiPending = s.EIPending
	c.halted = s.Halted
	c.stopped = s.Stopped
	c.haltBug = s.HaltBug
	c.cycles = s.Cycles
	c.fault = nil
}
