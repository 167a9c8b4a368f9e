package vorbis

import (
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/transform"
)

var errModeRange = mediaerr.InvalidDataf("vorbis: mode number out of range")

// decodeAudioPacket runs one audio packet (packet type 0, spec.md §4.7
// "audio packets (type 0, single bit)") through mode selection, per-channel
// floor/residue decode, coupling decouple, IMDCT, windowing and
// overlap-add, returning one PCM block per channel (blockSize/2 samples,
// not yet interleaved) and that sample count. The blocks are nil only when
// the packet's type bit is not audio; every audio packet, the first
// included, yields output.
func (d *Decoder) decodeAudioPacket(payload []byte) ([][]float64, int, error) {
	r := newBitReader(payload)
	packetType, err := r.readBit()
	if err != nil {
		return nil, 0, err
	}
	if packetType != packetTypeAudio {
		return nil, 0, nil
	}
	modeBits := ilog(uint32(len(d.modes) - 1))
	modeNum, err := r.readBits(modeBits)
	if err != nil {
		return nil, 0, err
	}
	if int(modeNum) >= len(d.modes) {
		return nil, 0, errModeRange
	}
	mode := d.modes[modeNum]
	blockSize := d.blockSize0
	if mode.blockFlag {
		blockSize = d.blockSize1
	}
	if mode.blockFlag {
		// Long blocks carry previous/next window-shape flags used by the
		// true variable-slope Vorbis window; this decoder applies a fixed
		// sine window regardless (see DESIGN.md), so the flags are read
		// only to keep the bitstream position correct and discarded.
		if _, err := r.readBit(); err != nil {
			return nil, 0, err
		}
		if _, err := r.readBit(); err != nil {
			return nil, 0, err
		}
	}
	n := blockSize / 2
	mapping := d.mappings[mode.mapping]

	floors := make([][]float64, d.channels)
	for ch := 0; ch < d.channels; ch++ {
		sub := mapping.submapOf(ch)
		floorCfg := d.floors[mapping.floorFor[sub]]
		if floorCfg.kind != floorType1 {
			// Floor type 0 (legacy LSP synthesis) decodes to a flat curve
			// here; see DESIGN.md for why the full bark-map/LSP resynthesis
			// is out of scope for this decoder. The amplitude value itself
			// (not a separate flag bit) signals an unused floor, per the
			// type 0 decode procedure.
			amp, err := r.readBits(floorCfg.f0AmplitudeBits)
			if err != nil {
				return nil, 0, err
			}
			if amp == 0 {
				floors[ch] = nil
				continue
			}
			for _, book := range floorCfg.f0Books {
				if _, err := d.codebooks[book].decode(r); err != nil {
					return nil, 0, err
				}
			}
			flat := make([]float64, n)
			for i := range flat {
				flat[i] = 1
			}
			floors[ch] = flat
			continue
		}
		curve, err := decodeFloor1(r, floorCfg, d.codebooks, n)
		if err != nil {
			return nil, 0, err
		}
		floors[ch] = curve
	}

	residueVectors := make([][]float64, d.channels)
	for ch := range residueVectors {
		if floors[ch] != nil {
			residueVectors[ch] = make([]float64, n)
		}
	}
	// Submaps with >1 residue are decoded independently per submap, each
	// touching only the channels mapped into it.
	for sub := 0; sub < mapping.submaps; sub++ {
		subVectors := make([][]float64, d.channels)
		any := false
		for ch := 0; ch < d.channels; ch++ {
			if mapping.submapOf(ch) == sub && residueVectors[ch] != nil {
				subVectors[ch] = residueVectors[ch]
				any = true
			}
		}
		if !any {
			continue
		}
		rc := d.residues[mapping.residueFor[sub]]
		if err := decodeResidue(r, rc, d.codebooks, subVectors); err != nil {
			return nil, 0, err
		}
	}

	for _, step := range mapping.coupling {
		decoupleChannels(residueVectors[step.magnitude], residueVectors[step.angle])
	}

	out := make([][]float64, d.channels)
	for ch := 0; ch < d.channels; ch++ {
		spec := make([]float64, n)
		if floors[ch] != nil && residueVectors[ch] != nil {
			for i := 0; i < n; i++ {
				spec[i] = floors[ch][i] * residueVectors[ch][i]
			}
		}
		timeDomain := make([]float64, blockSize)
		transform.IMDCT(spec, timeDomain)
		win := d.window(blockSize)
		for i := range timeDomain {
			timeDomain[i] *= win[i]
		}
		cs := d.chans[ch]
		overlap := cs.overlapShort
		if mode.blockFlag {
			overlap = cs.overlapLong
		}
		block := make([]float64, n)
		overlap.Apply(timeDomain, block)
		out[ch] = block
	}
	return out, n, nil
}

// decoupleChannels reverses magnitude/angle channel coupling (spec §6.2.2,
// spec.md §4.7 "channel coupling"): the sign of the decoded angle value
// alone determines the reconstruction, regardless of the magnitude's sign.
func decoupleChannels(mag, ang []float64) {
	if mag == nil || ang == nil {
		return
	}
	for i := range mag {
		m, a := mag[i], ang[i]
		if a > 0 {
			ang[i] = m - a
		} else {
			mag[i] = m + a
			ang[i] = m
		}
	}
}

