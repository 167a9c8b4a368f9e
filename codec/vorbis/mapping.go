package vorbis

import "github.com/jmylchreest/mediacore/pkg/mediaerr"

// couplingStep is one magnitude/angle channel pair (spec §8.7 "mapping type 0
// ... channel coupling via magnitude/angle pairs").
type couplingStep struct {
	magnitude int
	angle     int
}

// mappingConfig is one parsed [[mapping]] entry: per spec.md §4.7 "submap to
// floor/residue assignment".
type mappingConfig struct {
	submaps      int
	coupling     []couplingStep
	mux          []int // per channel, which submap it uses; nil if submaps==1
	floorFor     []int // per submap
	residueFor   []int // per submap
}

func parseMapping(r *bitReader, channels int) (*mappingConfig, error) {
	kind, err := r.readBits(16)
	if err != nil {
		return nil, err
	}
	if kind != 0 {
		return nil, mediaerr.Unsupported("vorbis: mapping type %d unsupported", kind)
	}
	mc := &mappingConfig{submaps: 1}
	submapsFlag, err := r.readBit()
	if err != nil {
		return nil, err
	}
	if submapsFlag == 1 {
		v, err := r.readBits(4)
		if err != nil {
			return nil, err
		}
		mc.submaps = int(v) + 1
	}
	squarePolar, err := r.readBit()
	if err != nil {
		return nil, err
	}
	if squarePolar == 1 {
		steps, err := r.readBits(8)
		if err != nil {
			return nil, err
		}
		bits := ilog(uint32(channels - 1))
		mc.coupling = make([]couplingStep, int(steps)+1)
		for i := range mc.coupling {
			mag, err := r.readBits(bits)
			if err != nil {
				return nil, err
			}
			ang, err := r.readBits(bits)
			if err != nil {
				return nil, err
			}
			mc.coupling[i] = couplingStep{magnitude: int(mag), angle: int(ang)}
		}
	}
	if _, err := r.readBits(2); err != nil { // reserved
		return nil, err
	}
	if mc.submaps > 1 {
		mc.mux = make([]int, channels)
		for i := range mc.mux {
			v, err := r.readBits(4)
			if err != nil {
				return nil, err
			}
			mc.mux[i] = int(v)
		}
	}
	mc.floorFor = make([]int, mc.submaps)
	mc.residueFor = make([]int, mc.submaps)
	for i := 0; i < mc.submaps; i++ {
		if _, err := r.readBits(8); err != nil { // unused time-domain placeholder
			return nil, err
		}
		f, err := r.readBits(8)
		if err != nil {
			return nil, err
		}
		res, err := r.readBits(8)
		if err != nil {
			return nil, err
		}
		mc.floorFor[i] = int(f)
		mc.residueFor[i] = int(res)
	}
	return mc, nil
}

// submapOf returns which submap index channel ch belongs to.
func (mc *mappingConfig) submapOf(ch int) int {
	if mc.mux == nil {
		return 0
	}
	return mc.mux[ch]
}

// modeConfig is one parsed mode entry (spec §6.2 mode list): "modes
// (blockflag, windowtype/transformtype, mapping number)".
type modeConfig struct {
	blockFlag bool
	mapping   int
}

func parseMode(r *bitReader) (*modeConfig, error) {
	blockFlag, err := r.readBit()
	if err != nil {
		return nil, err
	}
	windowType, err := r.readBits(16)
	if err != nil {
		return nil, err
	}
	if windowType != 0 {
		return nil, mediaerr.Unsupported("vorbis: mode window type %d unsupported", windowType)
	}
	transformType, err := r.readBits(16)
	if err != nil {
		return nil, err
	}
	if transformType != 0 {
		return nil, mediaerr.Unsupported("vorbis: mode transform type %d unsupported", transformType)
	}
	mapping, err := r.readBits(8)
	if err != nil {
		return nil, err
	}
	return &modeConfig{blockFlag: blockFlag == 1, mapping: int(mapping)}, nil
}
