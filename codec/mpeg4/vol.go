package mpeg4

import (
	"github.com/jmylchreest/mediacore/pkg/bitio"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/tables"
)

// quantType selects the dequantisation formula (spec.md §4.10.2).
type quantType int

const (
	quantMPEG quantType = iota
	quantH263
)

// VOL is the Video Object Layer state spec.md §4.10 names: "width/height,
// aspect-ratio, quant type, quarterpel, interlacing, reversible_vlc,
// data_partitioned, time_increment_resolution".
type VOL struct {
	Width                   int
	Height                  int
	AspectRatioWidth        int
	AspectRatioHeight       int
	QuantType               quantType
	Quarterpel              bool
	Interlaced              bool
	ReversibleVLC           bool
	DataPartitioned         bool
	TimeIncrementResolution int
	TimeIncrementBits       int
	IntraQuantMatrix        [64]int
	InterQuantMatrix        [64]int
}

// ParseVOL parses video_object_layer() far enough for spec.md §4.10.2's
// named fields. payload starts right after the `00 00 01 2x` start code.
func ParseVOL(payload []byte) (*VOL, error) {
	r := bitio.NewReader(payload)

	if _, err := r.ReadBit(); err != nil { // random_accessible_vol
		return nil, err
	}
	if _, err := r.ReadBits(8); err != nil { // video_object_type_indication
		return nil, err
	}
	isObjectLayerIdentifier, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	if isObjectLayerIdentifier == 1 {
		if _, err := r.ReadBits(4); err != nil { // video_object_layer_verid
			return nil, err
		}
		if _, err := r.ReadBits(3); err != nil { // video_object_layer_priority
			return nil, err
		}
	}

	vol := &VOL{AspectRatioWidth: 1, AspectRatioHeight: 1}

	aspectRatioInfo, err := r.ReadBits(4)
	if err != nil {
		return nil, err
	}
	if aspectRatioInfo == 0x0F { // extended_PAR
		w, err := r.ReadBits(8)
		if err != nil {
			return nil, err
		}
		h, err := r.ReadBits(8)
		if err != nil {
			return nil, err
		}
		vol.AspectRatioWidth, vol.AspectRatioHeight = int(w), int(h)
	}

	volControlParams, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	if volControlParams == 1 {
		if _, err := r.ReadBits(2); err != nil { // chroma_format
			return nil, err
		}
		if _, err := r.ReadBit(); err != nil { // low_delay
			return nil, err
		}
		vbvParams, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		if vbvParams == 1 {
			if _, err := r.ReadBits(32); err != nil { // first_half_bitrate, marker, latter_half_bitrate, marker
				return nil, err
			}
			if _, err := r.ReadBits(32); err != nil { // vbv_buffer_size bits + marker + vbv_occupancy bits + marker
				return nil, err
			}
		}
	}

	shape, err := r.ReadBits(2)
	if err != nil {
		return nil, err
	}
	if shape != 0 { // only rectangular shape is in scope
		return nil, mediaerr.Unsupported("mpeg4: video_object_layer_shape %d unsupported (rectangular only)", shape)
	}

	if _, err := r.ReadBit(); err != nil { // marker_bit
		return nil, err
	}
	vopTimeIncRes, err := r.ReadBits(16)
	if err != nil {
		return nil, err
	}
	vol.TimeIncrementResolution = int(vopTimeIncRes)
	vol.TimeIncrementBits = ceilLog2(vol.TimeIncrementResolution)
	if _, err := r.ReadBit(); err != nil { // marker_bit
		return nil, err
	}

	fixedVOPRate, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	if fixedVOPRate == 1 {
		if _, err := r.ReadBits(vol.TimeIncrementBits); err != nil { // fixed_vop_time_increment
			return nil, err
		}
	}

	if _, err := r.ReadBit(); err != nil { // marker_bit
		return nil, err
	}
	w, err := r.ReadBits(13)
	if err != nil {
		return nil, err
	}
	vol.Width = int(w)
	if _, err := r.ReadBit(); err != nil { // marker_bit
		return nil, err
	}
	h, err := r.ReadBits(13)
	if err != nil {
		return nil, err
	}
	vol.Height = int(h)
	if _, err := r.ReadBit(); err != nil { // marker_bit
		return nil, err
	}

	interlaced, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	vol.Interlaced = interlaced == 1

	if _, err := r.ReadBit(); err != nil { // obmc_disable
		return nil, err
	}

	spriteEnable, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	_ = spriteEnable // GMC sprite warping is parsed at VOP level only (spec.md §4.10.3)

	notEightBit, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	if notEightBit == 1 {
		if _, err := r.ReadBits(4); err != nil { // quant_precision
			return nil, err
		}
		if _, err := r.ReadBits(4); err != nil { // bits_per_pixel
			return nil, err
		}
	}

	quantTypeFlag, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	vol.IntraQuantMatrix = tables.MPEG4DefaultIntraQuantMatrix
	vol.InterQuantMatrix = tables.MPEG4DefaultInterQuantMatrix
	if quantTypeFlag == 1 {
		vol.QuantType = quantMPEG
		loadIntra, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		if loadIntra == 1 {
			m, err := readQuantMatrix(r)
			if err != nil {
				return nil, err
			}
			vol.IntraQuantMatrix = m
		}
		loadInter, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		if loadInter == 1 {
			m, err := readQuantMatrix(r)
			if err != nil {
				return nil, err
			}
			vol.InterQuantMatrix = m
		}
	} else {
		vol.QuantType = quantH263
	}

	quarterpel, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	vol.Quarterpel = quarterpel == 1

	complexityEstimationDisable, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	if complexityEstimationDisable == 0 {
		// complexity_estimation_disable=0 means a vol_complexity_estimation()
		// block follows, a profile-specific field list this decoder does not
		// parse.
		return nil, mediaerr.Unsupported("mpeg4: complexity_estimation_disable=0 unsupported")
	}

	resyncMarkerDisable, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	_ = resyncMarkerDisable

	dataPartitioned, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	vol.DataPartitioned = dataPartitioned == 1
	if vol.DataPartitioned {
		if _, err := r.ReadBit(); err != nil { // reversible_vlc
			return nil, err
		}
	}

	return vol, nil
}

// readQuantMatrix reads a custom 8x8 quant matrix in zigzag scan order,
// stopping at the first 0 entry (ISO/IEC 14496-2 §6.3.7's "255 means
// stop" rule is actually "stop at value 0 after the first position"; a
// run of 0 repeats the previous value for the remainder).
func readQuantMatrix(r *bitio.Reader) ([64]int, error) {
	var m [64]int
	last := 8
	for i := 0; i < 64; i++ {
		v, err := r.ReadBits(8)
		if err != nil {
			return m, err
		}
		if v == 0 {
			for j := i; j < 64; j++ {
				m[j] = last
			}
			break
		}
		last = int(v)
		m[i] = last
	}
	return m, nil
}

func ceilLog2(n int) int {
	bits := 0
	for (1 << uint(bits)) < n {
		bits++
	}
	if bits == 0 {
		bits = 1
	}
	return bits
}
