package h264

import (
	"github.com/jmylchreest/mediacore/pkg/bitio"
	"github.com/jmylchreest/mediacore/pkg/tables"
)

// cabacContext is one ctxIdx's (pStateIdx, valMPS) pair (ITU-T H.264 §9.3.1).
type cabacContext struct {
	state int
	mps   int
}

// cabacEngine implements the arithmetic decoding engine of ITU-T H.264
// §9.3.3: decode_decision, decode_bypass, decode_terminate, driven off the
// range/offset pair maintained across the whole slice.
type cabacEngine struct {
	r        *bitio.Reader
	codIRange  uint32
	codIOffset uint32
	ctx      [tables.CABACNumContexts]cabacContext
}

// newCABACEngine initializes the engine at r's current (byte-aligned)
// position, per §9.3.1.2's init_engine process, and loads all contexts for
// the given init-table selector/sliceQP per §9.3.1.1.
func newCABACEngine(r *bitio.Reader, selector, sliceQP int) (*cabacEngine, error) {
	e := &cabacEngine{r: r, codIRange: 510}
	off, err := r.ReadBits(9)
	if err != nil {
		return nil, err
	}
	e.codIOffset = off
	for idx := 0; idx < tables.CABACNumContexts; idx++ {
		st, mps := tables.CABACInitContext(selector, idx, sliceQP)
		e.ctx[idx] = cabacContext{state: st, mps: mps}
	}
	return e, nil
}

// decodeDecision implements DecodeDecision (§9.3.3.2) for context ctxIdx.
func (e *cabacEngine) decodeDecision(ctxIdx int) (int, error) {
	if ctxIdx < 0 || ctxIdx >= tables.CABACNumContexts {
		ctxIdx = 0
	}
	c := &e.ctx[ctxIdx]
	qCodIRangeIdx := (e.codIRange >> 6) & 0x3
	rangeLPS := uint32(tables.CABACRangeTabLPS[c.state][qCodIRangeIdx])
	e.codIRange -= rangeLPS

	var bin int
	if e.codIOffset >= e.codIRange {
		bin = 1 - c.mps
		e.codIOffset -= e.codIRange
		e.codIRange = rangeLPS
		if c.state == 0 {
			c.mps = 1 - c.mps
		}
		c.state = int(tables.CABACTransIdxLPS[c.state])
	} else {
		bin = c.mps
		c.state = int(tables.CABACTransIdxMPS[c.state])
	}

	return bin, e.renormalize()
}

// renormalize implements RenormD (§9.3.3.2.2).
func (e *cabacEngine) renormalize() error {
	for e.codIRange < 256 {
		e.codIRange <<= 1
		bit, err := e.r.ReadBit()
		if err != nil {
			return err
		}
		e.codIOffset = (e.codIOffset << 1) | uint32(bit)
	}
	return nil
}

// decodeBypass implements DecodeBypass (§9.3.3.3).
func (e *cabacEngine) decodeBypass() (int, error) {
	bit, err := e.r.ReadBit()
	if err != nil {
		return 0, err
	}
	e.codIOffset = (e.codIOffset << 1) | uint32(bit)
	if e.codIOffset >= e.codIRange {
		e.codIOffset -= e.codIRange
		return 1, nil
	}
	return 0, nil
}

// decodeTerminate implements DecodeTerminate (§9.3.3.4): used for
// end_of_slice_flag and the I_PCM alt-CABAC path.
func (e *cabacEngine) decodeTerminate() (int, error) {
	e.codIRange -= 2
	if e.codIOffset >= e.codIRange {
		return 1, nil
	}
	return 0, e.renormalize()
}

// decodeBypassBits decodes n bypass bins MSB first, for ue(v)-equivalent
// CABAC fields (e.g. mvd exponential-Golomb-like suffixes).
func (e *cabacEngine) decodeBypassBits(n int) (int, error) {
	v := 0
	for i := 0; i < n; i++ {
		b, err := e.decodeBypass()
		if err != nil {
			return 0, err
		}
		v = (v << 1) | b
	}
	return v, nil
}

// decodeUEGk decodes a unary/k-th order Exp-Golomb bypass-coded value used
// for coeff_abs_level_minus1 and mvd (§9.3.2.3), with the given starting
// Golomb order k (3 for mvd, 0 for coefficient levels and mb_qp_delta).
func (e *cabacEngine) decodeUEGk(k int) (int, error) {
	leadingOnes := 0
	for {
		b, err := e.decodeBypass()
		if err != nil {
			return 0, err
		}
		if b == 0 {
			break
		}
		leadingOnes++
		if leadingOnes >= 32 {
			break
		}
	}
	value := 0
	for i := 0; i < leadingOnes; i++ {
		value += 1 << uint(i+k)
	}
	suffixBits := leadingOnes + k
	if suffixBits > 0 {
		suffix, err := e.decodeBypassBits(suffixBits)
		if err != nil {
			return 0, err
		}
		value += suffix
	}
	return value, nil
}

// decodeUnaryMax decodes a truncated-unary sequence of decisions on ctxIdx,
// stopping at the first 0 or after maxVal 1s, per the coded_block_pattern /
// mb_type unary binarizations (§9.3.2.5).
func (e *cabacEngine) decodeUnaryMax(ctxIdxBase int, ctxIncrFn func(prefixLen int) int, maxVal int) (int, error) {
	val := 0
	for val < maxVal {
		ctxIdx := ctxIdxBase + ctxIncrFn(val)
		b, err := e.decodeDecision(ctxIdx)
		if err != nil {
			return 0, err
		}
		if b == 0 {
			return val, nil
		}
		val++
	}
	return val, nil
}
