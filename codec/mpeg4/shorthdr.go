package mpeg4

import (
	"github.com/jmylchreest/mediacore/pkg/bitio"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
	"github.com/jmylchreest/mediacore/pkg/tables"
)

// decodeShortHeaderFrame decodes one H.263 short-video-header picture
// (spec.md §4.10.5): PSC/TR, source_format lookup, and a flat macroblock
// loop sharing the long-header's MCBPC/CBPY/MVD tables and H.263 dequant
// formula. GOB headers are scanned for and skipped (gob_number,
// gob_frame_id and gquant are consumed but not interpreted) rather than
// fully parsed, since this baseline path targets single-GOB-per-row
// CIF-class content.
func (d *Decoder) decodeShortHeaderFrame(data []byte, pts int64) error {
	r := bitio.NewReader(data)

	if _, err := r.ReadBits(22); err != nil { // picture_start_code
		return err
	}
	if _, err := r.ReadBits(8); err != nil { // temporal_reference
		return err
	}

	if _, err := r.ReadBits(2); err != nil { // PTYPE: split_screen, document_camera
		return err
	}
	if _, err := r.ReadBit(); err != nil { // picture_freeze_release... actually full_picture_freeze_release bit
		return err
	}
	sourceFormat, err := r.ReadBits(3)
	if err != nil {
		return err
	}
	dims, ok := tables.MPEG4SourceFormat[int(sourceFormat)]
	if !ok {
		return mediaerr.Unsupported("mpeg4: short-header source_format %d unsupported", sourceFormat)
	}
	codingType, err := r.ReadBit() // 0 = intra, 1 = inter
	if err != nil {
		return err
	}
	if _, err := r.ReadBits(4); err != nil { // unrestricted_mv, syntax-based arithmetic coding,
		return err //  advanced prediction, pb_frame (all assumed off for this baseline path)
	}
	pquant, err := r.ReadBits(5)
	if err != nil {
		return err
	}
	if _, err := r.ReadBit(); err != nil { // continuous_presence_multipoint
		return err
	}
	if _, err := r.ReadBit(); err != nil { // pei
		return err
	}

	vol := &VOL{Width: dims[0], Height: dims[1], QuantType: quantH263, TimeIncrementResolution: 30, TimeIncrementBits: 5}
	d.vol = vol
	mbWidth := (vol.Width + 15) / 16
	mbHeight := (vol.Height + 15) / 16
	if d.mbWidth != mbWidth || d.mbHeight != mbHeight || d.predDC == nil {
		d.mbWidth, d.mbHeight = mbWidth, mbHeight
		d.mvGrid = make([][2]int, mbWidth*mbHeight)
		d.predDC = newACDCPredictor(mbWidth)
	}

	vop := &VOPHeader{CodingType: vopI, Coded: true, IntraDCVlcThr: 0}
	if codingType == 1 {
		vop.CodingType = vopP
		vop.FcodeForward = 1
	}

	pic := newPicture(vol.Width, vol.Height)
	for i := range d.mvGrid {
		d.mvGrid[i] = [2]int{}
	}

	qp := int(pquant)
	for mbY := 0; mbY < mbHeight; mbY++ {
		d.predDC.resetRow()
		if mbY > 0 {
			skipGOBHeader(r)
		}
		for mbX := 0; mbX < mbWidth; mbX++ {
			if err := d.decodeShortMacroblock(r, vop, pic, mbX, mbY, qp); err != nil {
				return err
			}
		}
	}

	pictureType := mediatype.PictureI
	if vop.CodingType == vopP {
		pictureType = mediatype.PictureP
	}
	d.pastRef, d.futureRef = pic, d.pastRef

	// The short-video-header path never produces B pictures, so frames leave
	// in decode order already; skip the reorder buffer rather than feed it a
	// meaningless POC (temporal_reference wraps every 256 pictures and isn't
	// tracked here).
	f := mediatype.NewVideoFrame(pic.width, pic.height, mediatype.PixelFormatYUV420P)
	copy(f.Data[0], pic.y)
	copy(f.Data[1], pic.u)
	copy(f.Data[2], pic.v)
	f.Pts = pts
	f.PictureType = pictureType
	f.IsKeyframe = pictureType == mediatype.PictureI
	d.ready = append(d.ready, f)
	return nil
}

// skipGOBHeader consumes an optional GOB start code + gob_number +
// gob_frame_id + gquant if present, a plain bit-probe rather than a strict
// parse since this baseline path never changes gquant between GOBs.
func skipGOBHeader(r *bitio.Reader) {
	peek, err := r.PeekBits(17)
	if err != nil {
		return
	}
	if peek != 1 { // GBSC is 16 zero bits + 1 (00000000 00000000 1)
		return
	}
	_, _ = r.ReadBits(17)
	_, _ = r.ReadBits(5) // gob_number
	_, _ = r.ReadBits(2) // gob_frame_id
	_, _ = r.ReadBits(5) // gquant
}

func (d *Decoder) decodeShortMacroblock(r *bitio.Reader, vop *VOPHeader, pic *picture, mbX, mbY, qp int) error {
	idx := mbY*d.mbWidth + mbX
	bx, by := mbX*16, mbY*16

	notCoded := false
	if vop.CodingType == vopP {
		b, err := r.ReadBit()
		if err != nil {
			return err
		}
		notCoded = b == 1
	}
	if notCoded {
		mv := d.predictMV(mbX, mbY)
		d.mvGrid[idx] = mv
		d.motionCompensate(pic, bx, by, mv, false)
		return nil
	}

	intraVOP := vop.CodingType == vopI
	mt, cbpc, err := decodeMCBPC(r, intraVOP)
	if err != nil {
		return err
	}
	isIntra := mt == mbIntra || mt == mbIntraQ

	cbpy, err := decodeCBPY(r)
	if err != nil {
		return err
	}

	if mt == mbIntraQ || mt == mbInterQ {
		d2, err := r.ReadBits(2)
		if err != nil {
			return err
		}
		qp += tables.MPEG4DQuantDelta[d2]
	}

	var mv [2]int
	if !isIntra {
		dx, err := decodeMVD(r)
		if err != nil {
			return err
		}
		dy, err := decodeMVD(r)
		if err != nil {
			return err
		}
		pred := d.predictMV(mbX, mbY)
		mv = [2]int{wrapMV(pred[0]+dx, 1), wrapMV(pred[1]+dy, 1)}
	}
	d.mvGrid[idx] = mv

	cbp := [6]bool{cbpy&8 != 0, cbpy&4 != 0, cbpy&2 != 0, cbpy&1 != 0, cbpc&2 != 0, cbpc&1 != 0}

	var lumaPred [4][64]uint8
	var cbPred, crPred [64]uint8
	if !isIntra && d.pastRef != nil {
		lumaPred[0] = predictBlock8Luma(d.pastRef, bx, by, mv[0], mv[1])
		lumaPred[1] = predictBlock8Luma(d.pastRef, bx+8, by, mv[0], mv[1])
		lumaPred[2] = predictBlock8Luma(d.pastRef, bx, by+8, mv[0], mv[1])
		lumaPred[3] = predictBlock8Luma(d.pastRef, bx+8, by+8, mv[0], mv[1])
		cbPred = predictBlock8Chroma(d.pastRef, d.pastRef.u, bx/2, by/2, mv[0], mv[1])
		crPred = predictBlock8Chroma(d.pastRef, d.pastRef.v, bx/2, by/2, mv[0], mv[1])
	}

	var blocks [6][64]uint8
	for b := 0; b < 6; b++ {
		var pred [64]int
		dcVal := 0
		if isIntra {
			dcVal, _ = d.predDC.predictDC(mbX, b)
		} else {
			switch b {
			case 0, 1, 2, 3:
				for i, v := range lumaPred[b] {
					pred[i] = int(v)
				}
			case 4:
				for i, v := range cbPred {
					pred[i] = int(v)
				}
			case 5:
				for i, v := range crPred {
					pred[i] = int(v)
				}
			}
		}

		var coeffs [64]int
		if isIntra || cbp[b] {
			c, err := decodeBlockCoeffs(r)
			if err != nil {
				return err
			}
			coeffs = c
		}

		// Short-header intra DC uses a fixed x8 scale rather than the
		// long-header's QP-dependent dcScaleFor table (spec.md §4.10.5
		// "intra DC 8-bit fixed ({0,128}->1024, x8 scale)").
		blocks[b] = reconstructBlock(coeffs, tables.MPEG4ZigZagScan, qp, [64]int{}, isIntra, 8, dcVal, quantH263, pred)
		if isIntra {
			d.predDC.store(mbX, b, dcVal+coeffs[0], [8]int{}, [8]int{})
		}
	}

	writeBlock8(pic.y, pic.yStride, pic.width, pic.height, bx, by, blocks[0])
	writeBlock8(pic.y, pic.yStride, pic.width, pic.height, bx+8, by, blocks[1])
	writeBlock8(pic.y, pic.yStride, pic.width, pic.height, bx, by+8, blocks[2])
	writeBlock8(pic.y, pic.yStride, pic.width, pic.height, bx+8, by+8, blocks[3])
	writeBlock8(pic.u, pic.cStride, (pic.width+1)/2, (pic.height+1)/2, bx/2, by/2, blocks[4])
	writeBlock8(pic.v, pic.cStride, (pic.width+1)/2, (pic.height+1)/2, bx/2, by/2, blocks[5])
	return nil
}
