package mpeg4

import (
	"github.com/jmylchreest/mediacore/pkg/bitio"
)

// vopCodingType enumerates spec.md §4.10.3's "I,P,B,S(GMC)".
type vopCodingType int

const (
	vopI vopCodingType = iota
	vopP
	vopB
	vopS
)

// VOPHeader is the per-picture state spec.md §4.10 names: "coding type,
// fcode fwd/bwd, rounding control, intra_dc_vlc_thr, alternate_vertical_scan".
type VOPHeader struct {
	CodingType            vopCodingType
	ModuloTimeBase         int
	TimeIncrement          int
	Coded                  bool
	RoundingControl        int
	IntraDCVlcThr          int
	AlternateVerticalScan  bool
	FcodeForward           int
	FcodeBackward          int
	WarpingPoints          [][2]int
}

// ParseVOPHeader parses video_object_plane() far enough for spec.md
// §4.10.3's named fields, leaving r positioned at the macroblock layer
// when Coded is true.
func ParseVOPHeader(r *bitio.Reader, vol *VOL) (*VOPHeader, error) {
	vop := &VOPHeader{}

	ct, err := r.ReadBits(2)
	if err != nil {
		return nil, err
	}
	vop.CodingType = vopCodingType(ct)

	for {
		b, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		if b == 0 {
			break
		}
		vop.ModuloTimeBase++
	}

	if _, err := r.ReadBit(); err != nil { // marker_bit
		return nil, err
	}
	ti, err := r.ReadBits(vol.TimeIncrementBits)
	if err != nil {
		return nil, err
	}
	vop.TimeIncrement = int(ti)
	if _, err := r.ReadBit(); err != nil { // marker_bit
		return nil, err
	}

	coded, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	vop.Coded = coded == 1
	if !vop.Coded {
		return vop, nil
	}

	if vop.CodingType == vopP || vop.CodingType == vopS {
		rc, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		vop.RoundingControl = int(rc)
	}

	thr, err := r.ReadBits(3)
	if err != nil {
		return nil, err
	}
	vop.IntraDCVlcThr = int(thr)

	if vol.Interlaced {
		if _, err := r.ReadBit(); err != nil { // top_field_first
			return nil, err
		}
		avs, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		vop.AlternateVerticalScan = avs == 1
	}

	if vop.CodingType == vopP || vop.CodingType == vopS {
		fc, err := r.ReadBits(3)
		if err != nil {
			return nil, err
		}
		vop.FcodeForward = int(fc)
	}
	if vop.CodingType == vopB {
		fcf, err := r.ReadBits(3)
		if err != nil {
			return nil, err
		}
		vop.FcodeForward = int(fcf)
		fcb, err := r.ReadBits(3)
		if err != nil {
			return nil, err
		}
		vop.FcodeBackward = int(fcb)
	}

	if vop.CodingType == vopS {
		// Warping points are read (so the bit cursor lands correctly for
		// the macroblock layer that follows) but never applied: global
		// motion compensation is not reconstructed by this decoder.
		for i := 0; i < 3; i++ {
			wx, err := readSignedBits(r, 16)
			if err != nil {
				return nil, err
			}
			if _, err := r.ReadBit(); err != nil { // marker_bit
				return nil, err
			}
			wy, err := readSignedBits(r, 16)
			if err != nil {
				return nil, err
			}
			if _, err := r.ReadBit(); err != nil { // marker_bit
				return nil, err
			}
			vop.WarpingPoints = append(vop.WarpingPoints, [2]int{wx, wy})
		}
	}

	return vop, nil
}

// readSignedBits reads n bits as a 2's-complement signed integer:
// MPEG-4's warping-point fields are plain fixed-width integers, not
// Exp-Golomb, so bitio.Reader's unsigned ReadBits needs a thin wrapper.
func readSignedBits(r *bitio.Reader, n int) (int, error) {
	v, err := r.ReadBits(n)
	if err != nil {
		return 0, err
	}
	if v&(1<<uint(n-1)) != 0 {
		return int(v) - (1 << uint(n)), nil
	}
	return int(v), nil
}
