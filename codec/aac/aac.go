// Package aac implements the AAC-LC decoder (spec.md §4.5): ADTS/ASC
// parsing, the raw_data_block state machine, Huffman spectra, MS stereo
// (intensity-stereo bands are left at zero), TNS skip, PNS, and
// IMDCT/windowing/overlap-add to PCM.
package aac

import (
	"log/slog"
	"math"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"

	"github.com/jmylchreest/mediacore/codec"
	"github.com/jmylchreest/mediacore/internal/logging"
	"github.com/jmylchreest/mediacore/pkg/bitio"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
	"github.com/jmylchreest/mediacore/pkg/metrics"
	"github.com/jmylchreest/mediacore/pkg/tables"
	"github.com/jmylchreest/mediacore/pkg/transform"
)

func init() {
	codec.Register(mediatype.CodecAAC, func(sink metrics.Sink, logger *slog.Logger) codec.Decoder {
		return New(sink, WithLogger(logger))
	})
}

// Option configures a Decoder at construction time.
type Option func(*Decoder)

// WithLogger injects the logger the decoder reports Debug/Warn events
// through (internal/config's decoder.aac_leading_trim override is the CLI's
// only other construction-time knob; this is the ambient-stack half).
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) { d.logger = logging.WithComponent(logger, "codec.aac") }
}

// WithLeadingTrimOverride forces the encoder-delay sample count instead of
// deriving it from ExtraData presence (internal/config's
// decoder.aac_leading_trim, -1 meaning "derive as usual").
func WithLeadingTrimOverride(n int) Option {
	return func(d *Decoder) { d.leadingTrimOverride = n }
}

// New constructs an unopened Decoder. A nil sink or logger falls back to
// metrics.NoopSink{} / logging.Discard(), the same default codec.CreateDecoder
// applies for registry-constructed instances.
func New(sink metrics.Sink, opts ...Option) *Decoder {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	d := &Decoder{sink: sink, logger: logging.Discard(), leadingTrimOverride: -1}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

const (
	pnsSeedInitial = 0x1F2E3D4C

	elemSCE = 0
	elemCPE = 1
	elemCCE = 2
	elemLFE = 3
	elemDSE = 4
	elemPCE = 5
	elemFIL = 6
	elemEND = 7

	windowOnlyLong   = 0
	windowLongStart  = 1
	windowEightShort = 2
	windowLongStop   = 3
)

// channelState holds the per-channel overlap-add buffer and window-shape
// history needed across frames (spec.md §4.5 "State").
type channelState struct {
	overlapLong  *transform.OverlapAdd
	overlapShort [8]*transform.OverlapAdd
	prevShape    int // 0 = sine, 1 = KBD
}

func newChannelState() *channelState {
	cs := &channelState{overlapLong: transform.NewOverlapAdd(1024)}
	for i := range cs.overlapShort {
		cs.overlapShort[i] = transform.NewOverlapAdd(128)
	}
	return cs
}

func (cs *channelState) reset() {
	cs.overlapLong.Reset()
	for _, o := range cs.overlapShort {
		o.Reset()
	}
	cs.prevShape = 0
}

// Decoder implements codec.Decoder for AAC-LC raw_data_block streams.
type Decoder struct {
	sink   metrics.Sink
	logger *slog.Logger

	// leadingTrimOverride forces leadingTrim instead of deriving it from
	// ExtraData presence; -1 (the New() default) derives as usual.
	leadingTrimOverride int

	sampleRateIndex int
	sampleRate      int
	channels        int
	pceDisabledRemap bool

	winLong2048  []float64
	winLongKBD   []float64
	winShort256  []float64
	winShortKBD  []float64

	chans    []*channelState
	pnsState uint32

	leadingTrim     int
	leadingTrimLeft int

	eos     bool
	pending []*mediatype.Frame
}

func (d *Decoder) CodecID() mediatype.CodecID { return mediatype.CodecAAC }

// Open parses AudioSpecificConfig from params.ExtraData (spec.md §4.5
// "Opening"). audioObjectType must be 2 (AAC-LC, per §7 "Unsupported").
func (d *Decoder) Open(params mediatype.CodecParameters) error {
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	var asc mpeg4audio.AudioSpecificConfig
	if len(params.ExtraData) >= 2 {
		if err := asc.Unmarshal(params.ExtraData); err != nil {
			return mediaerr.InvalidDataf("aac: invalid AudioSpecificConfig: %v", err)
		}
		if asc.Type != mpeg4audio.ObjectTypeAACLC {
			return mediaerr.Unsupported("aac: audioObjectType %d unsupported (only AAC-LC)", asc.Type)
		}
		d.sampleRate = asc.SampleRate
		d.channels = asc.ChannelCount
	} else {
		d.sampleRate = params.Audio.SampleRate
		d.channels = params.Audio.ChannelLayout.Channels()
		if d.channels == 0 {
			d.channels = 2
		}
	}
	d.sampleRateIndex = sampleRateIndex(d.sampleRate)
	if d.sampleRateIndex < 0 {
		return mediaerr.InvalidData("sample_rate", d.sampleRate, "not a valid AAC sample rate")
	}

	d.winLong2048 = transform.SineWindow(transform.AACLongWindowLen)
	d.winLongKBD = transform.KBDWindow(transform.AACLongWindowLen, 6.0)
	d.winShort256 = transform.SineWindow(transform.AACShortWindowLen)
	d.winShortKBD = transform.KBDWindow(transform.AACShortWindowLen, 6.0)

	d.chans = make([]*channelState, d.channels)
	for i := range d.chans {
		d.chans[i] = newChannelState()
	}
	d.pnsState = pnsSeedInitial
	d.leadingTrim = 0
	if len(params.ExtraData) > 0 {
		d.leadingTrim = 2112
	}
	if d.leadingTrimOverride >= 0 {
		d.leadingTrim = d.leadingTrimOverride
	}
	d.leadingTrimLeft = d.leadingTrim
	d.logger.Debug("opened", "sample_rate", d.sampleRate, "channels", d.channels, "leading_trim", d.leadingTrim)
	return nil
}

func sampleRateIndex(rate int) int {
	for i, r := range tables.AACSampleRates {
		if r == rate {
			return i
		}
	}
	return -1
}

// SendPacket strips an ADTS header if present, then runs raw_data_block.
func (d *Decoder) SendPacket(pkt *mediatype.Packet) error {
	if pkt.Empty() {
		d.eos = true
		return nil
	}
	payload := pkt.Payload
	if len(payload) >= 7 && payload[0] == 0xFF && payload[1]&0xF0 == 0xF0 {
		protectionAbsent := payload[1]&0x01 != 0
		headerLen := 9
		if protectionAbsent {
			headerLen = 7
		}
		if len(payload) < headerLen {
			return mediaerr.InvalidDataf("aac: truncated ADTS header")
		}
		payload = payload[headerLen:]
	}
	frame, err := d.decodeRawDataBlock(payload, pkt.Pts)
	if err != nil {
		return err
	}
	if frame != nil {
		d.pending = append(d.pending, frame)
	}
	return nil
}

func (d *Decoder) ReceiveFrame() (*mediatype.Frame, error) {
	if len(d.pending) > 0 {
		f := d.pending[0]
		d.pending = d.pending[1:]
		return f, nil
	}
	if d.eos {
		return nil, mediaerr.ErrEof
	}
	return nil, mediaerr.ErrNeedMoreData
}

func (d *Decoder) Flush() {
	for _, cs := range d.chans {
		cs.reset()
	}
	d.pnsState = pnsSeedInitial
	d.leadingTrimLeft = d.leadingTrim
	d.eos = false
	d.pending = nil
}

// decodeRawDataBlock runs the element dispatch loop (spec.md §4.5) and
// assembles one interleaved audio frame from however many SCE/CPE/LFE
// elements it finds, in channel order.
func (d *Decoder) decodeRawDataBlock(payload []byte, pts int64) (*mediatype.Frame, error) {
	r := bitio.NewReader(payload)
	var channelSamples [][]float32

	for {
		if r.BitsLeft() < 3 {
			break
		}
		id, err := r.ReadBits(3)
		if err != nil {
			return nil, err
		}
		switch id {
		case elemEND:
			goto done
		case elemSCE, elemLFE:
			if _, err := r.ReadBits(4); err != nil { // element_instance_tag
				return nil, err
			}
			idx := len(channelSamples)
			if idx >= len(d.chans) {
				return nil, mediaerr.InvalidDataf("aac: more channel elements than declared channels")
			}
			samples, err := d.decodeICS(r, d.chans[idx])
			if err != nil {
				return nil, err
			}
			channelSamples = append(channelSamples, samples)
		case elemCPE:
			if _, err := r.ReadBits(4); err != nil {
				return nil, err
			}
			commonWindow, err := r.ReadBit()
			if err != nil {
				return nil, err
			}
			msMask := 0
			if commonWindow == 1 {
				// Each channel still parses its own ics_info below rather
				// than sharing one (spec.md §4.5 simplification, see
				// DESIGN.md). With ms_mask_present == 1 the 64 ms_used bits
				// are read and discarded; any non-zero ms_mask_present applies
				// M/S to the whole frame after both channels decode.
				m, err := r.ReadBits(2)
				if err != nil {
					return nil, err
				}
				msMask = int(m)
				if msMask == 1 {
					for i := 0; i < 64; i++ {
						if _, err := r.ReadBit(); err != nil {
							return nil, err
						}
					}
				}
			}
			idxBase := len(channelSamples)
			if idxBase+1 >= len(d.chans) {
				return nil, mediaerr.InvalidDataf("aac: more channel elements than declared channels")
			}
			left, err := d.decodeICS(r, d.chans[idxBase])
			if err != nil {
				return nil, err
			}
			right, err := d.decodeICS(r, d.chans[idxBase+1])
			if err != nil {
				return nil, err
			}
			if msMask != 0 {
				n := len(left)
				if len(right) < n {
					n = len(right)
				}
				for i := 0; i < n; i++ {
					mid := left[i]
					side := right[i]
					left[i] = mid + side
					right[i] = mid - side
				}
			}
			channelSamples = append(channelSamples, left, right)
		case elemCCE:
			// Coupling channel: syntactically consumed, muted (spec.md §4.5
			// "CCE syntactically consumed, muted (no coupling applied)").
			if err := skipCCE(r); err != nil {
				return nil, err
			}
		case elemDSE:
			if err := skipDSE(r); err != nil {
				return nil, err
			}
		case elemPCE:
			n, err := parsePCE(r)
			if err != nil {
				return nil, err
			}
			d.pceDisabledRemap = true
			if n <= d.channels {
				d.channels = n
			}
		case elemFIL:
			if err := skipFIL(r); err != nil {
				return nil, err
			}
		default:
			return nil, mediaerr.InvalidData("element_id", id, "unknown raw_data_block element")
		}
	}
done:
	if len(channelSamples) == 0 {
		return nil, nil
	}
	return d.interleave(channelSamples, pts)
}

func (d *Decoder) interleave(chans [][]float32, pts int64) (*mediatype.Frame, error) {
	nbSamples := len(chans[0])
	layout := defaultLayout(len(chans))
	frame := mediatype.NewAudioFrame(nbSamples, d.sampleRate, layout, mediatype.SampleFormatF32)
	frame.Pts = pts
	frame.IsKeyframe = true
	out := frame.Data[0]
	for i := 0; i < nbSamples; i++ {
		for c, samples := range chans {
			v := samples[i]
			if v != v || v > 1e30 || v < -1e30 { // NaN/Inf guard
				v = 0
			}
			if v > 8.0 {
				v = 8.0
			}
			if v < -8.0 {
				v = -8.0
			}
			putFloat32LE(out[(i*len(chans)+c)*4:], v)
		}
	}
	if d.leadingTrimLeft > 0 {
		trim := d.leadingTrimLeft
		if trim > nbSamples {
			trim = nbSamples
		}
		frame.Data[0] = frame.Data[0][trim*len(chans)*4:]
		frame.NbSamples -= trim
		d.leadingTrimLeft -= trim
	}
	return frame, nil
}

func defaultLayout(n int) mediatype.ChannelLayout {
	switch n {
	case 1:
		return mediatype.ChannelFrontCenter
	case 2:
		return mediatype.ChannelFrontLeft | mediatype.ChannelFrontRight
	default:
		l := mediatype.ChannelFrontLeft | mediatype.ChannelFrontRight
		if n >= 3 {
			l |= mediatype.ChannelFrontCenter
		}
		if n >= 4 {
			l |= mediatype.ChannelLFE
		}
		return l
	}
}

func putFloat32LE(b []byte, v float32) {
	bits := float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}

func skipCCE(r *bitio.Reader) error {
	if _, err := r.ReadBits(4); err != nil {
		return err
	}
	coupledElements, err := r.ReadBits(3)
	if err != nil {
		return err
	}
	for i := 0; i < int(coupledElements)+1; i++ {
		if _, err := r.ReadBits(5); err != nil {
			return err
		}
	}
	if _, err := r.ReadBits(2); err != nil {
		return err
	}
	if _, err := r.ReadBits(2); err != nil {
		return err
	}
	r.AlignToByte()
	return nil
}

func skipDSE(r *bitio.Reader) error {
	if _, err := r.ReadBits(4); err != nil { // element_instance_tag
		return err
	}
	dataByteAlign, err := r.ReadBit()
	if err != nil {
		return err
	}
	count, err := r.ReadBits(8)
	if err != nil {
		return err
	}
	n := int(count)
	if count == 255 {
		extra, err := r.ReadBits(8)
		if err != nil {
			return err
		}
		n += int(extra)
	}
	if dataByteAlign == 1 {
		r.AlignToByte()
	}
	for i := 0; i < n; i++ {
		if _, err := r.ReadBits(8); err != nil {
			return err
		}
	}
	return nil
}

func skipFIL(r *bitio.Reader) error {
	count, err := r.ReadBits(4)
	if err != nil {
		return err
	}
	n := int(count)
	if count == 15 {
		extra, err := r.ReadBits(8)
		if err != nil {
			return err
		}
		n += int(extra) - 1
	}
	for i := 0; i < n; i++ {
		if _, err := r.ReadBits(8); err != nil {
			return err
		}
	}
	return nil
}

func parsePCE(r *bitio.Reader) (int, error) {
	if _, err := r.ReadBits(4); err != nil { // element_instance_tag
		return 0, err
	}
	if _, err := r.ReadBits(2); err != nil { // object_type
		return 0, err
	}
	if _, err := r.ReadBits(4); err != nil { // sampling_frequency_index
		return 0, err
	}
	numFront, _ := r.ReadBits(4)
	numSide, _ := r.ReadBits(4)
	numBack, _ := r.ReadBits(4)
	numLFE, _ := r.ReadBits(2)
	numAssoc, _ := r.ReadBits(3)
	numCC, _ := r.ReadBits(4)
	if b, _ := r.ReadBit(); b == 1 {
		r.ReadBits(4)
	}
	if b, _ := r.ReadBit(); b == 1 {
		r.ReadBits(4)
	}
	if b, _ := r.ReadBit(); b == 1 {
		r.ReadBits(4)
	}
	total := 0
	for i := 0; i < int(numFront); i++ {
		isCPE, _ := r.ReadBit()
		r.ReadBits(4)
		total++
		if isCPE == 1 {
			total++
		}
	}
	for i := 0; i < int(numSide); i++ {
		isCPE, _ := r.ReadBit()
		r.ReadBits(4)
		total++
		if isCPE == 1 {
			total++
		}
	}
	for i := 0; i < int(numBack); i++ {
		isCPE, _ := r.ReadBit()
		r.ReadBits(4)
		total++
		if isCPE == 1 {
			total++
		}
	}
	for i := 0; i < int(numLFE); i++ {
		r.ReadBits(4)
		total++
	}
	for i := 0; i < int(numAssoc); i++ {
		r.ReadBits(4)
	}
	for i := 0; i < int(numCC); i++ {
		r.ReadBit()
		r.ReadBits(4)
	}
	r.AlignToByte()
	commentLen, _ := r.ReadBits(8)
	for i := 0; i < int(commentLen); i++ {
		r.ReadBits(8)
	}
	return total, nil
}

const (
	zeroHCB    = 0
	noiseHCB   = 13
	intensity2 = 14
	intensity1 = 15
)

// decodeICS decodes one individual_channel_stream (spec.md §4.5 "ICS
// pipeline") and returns 1024 PCM samples for this channel. Short-window
// frames decode eight independent 128-point sub-blocks and concatenate
// their overlap-added output; scale_factor_grouping is not tracked (each
// short window is treated as its own group, see DESIGN.md).
func (d *Decoder) decodeICS(r *bitio.Reader, cs *channelState) ([]float32, error) {
	globalGain, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadBit(); err != nil { // ics_reserved_bit
		return nil, err
	}
	windowSequence, err := r.ReadBits(2)
	if err != nil {
		return nil, err
	}
	windowShape, err := r.ReadBit()
	if err != nil {
		return nil, err
	}

	isShort := windowSequence == windowEightShort
	numWindows := 1
	var maxSfb int
	if isShort {
		m, err := r.ReadBits(4)
		if err != nil {
			return nil, err
		}
		maxSfb = int(m)
		numWindows = 8
		if _, err := r.ReadBits(7); err != nil { // scale_factor_grouping, unused
			return nil, err
		}
	} else {
		m, err := r.ReadBits(6)
		if err != nil {
			return nil, err
		}
		maxSfb = int(m)
		predictorPresent, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		if predictorPresent == 1 {
			return nil, mediaerr.Unsupported("aac: prediction_data_present unsupported")
		}
	}

	var sfbOffsets []int
	if isShort {
		sfbOffsets = tables.AACSFBOffsetsShort(d.sampleRateIndex)
	} else {
		sfbOffsets = tables.AACSFBOffsetsLong(d.sampleRateIndex)
	}
	numSfb := len(sfbOffsets) - 1
	if maxSfb < numSfb {
		numSfb = maxSfb
	}

	out := make([]float32, 1024)
	winLen := 1024
	if isShort {
		winLen = 128
	}

	for w := 0; w < numWindows; w++ {
		codebooks := make([]int, numSfb)
		for sfb := 0; sfb < numSfb; {
			cb, err := r.ReadBits(5)
			if err != nil {
				return nil, err
			}
			runLen := 1
			escBit := 5
			escVal := 31
			if isShort {
				escBit = 3
				escVal = 7
			}
			n, err := readSectionLen(r, escBit, escVal)
			if err != nil {
				return nil, err
			}
			runLen = n
			for i := 0; i < runLen && sfb < numSfb; i++ {
				codebooks[sfb] = int(cb)
				sfb++
			}
		}

		scaleFactors := make([]int, numSfb)
		sf := int(globalGain)
		for sfb := 0; sfb < numSfb; sfb++ {
			switch codebooks[sfb] {
			case zeroHCB:
				continue
			case intensity1, intensity2:
				delta, err := tables.AACScaleFactorHuffman.Decode(r)
				if err != nil {
					return nil, err
				}
				scaleFactors[sfb] = int(delta)
			default:
				delta, err := tables.AACScaleFactorHuffman.Decode(r)
				if err != nil {
					return nil, err
				}
				sf += int(delta)
				scaleFactors[sfb] = sf
			}
		}

		pulsePresent, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		if pulsePresent == 1 {
			if err := skipPulseData(r); err != nil {
				return nil, err
			}
		}
		tnsPresent, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		if tnsPresent == 1 {
			if err := skipTNS(r, isShort, numWindows); err != nil {
				return nil, err
			}
		}
		gainPresent, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		if gainPresent == 1 {
			return nil, mediaerr.Unsupported("aac: gain_control_data unsupported (LC profile has no GC)")
		}

		spec := make([]float64, winLen)
		for sfb := 0; sfb < numSfb; sfb++ {
			lo, hi := sfbOffsets[sfb], sfbOffsets[sfb+1]
			if hi > winLen {
				hi = winLen
			}
			if lo >= hi {
				continue
			}
			cb := codebooks[sfb]
			switch cb {
			case zeroHCB:
				// already zero
			case noiseHCB:
				d.fillPNS(spec[lo:hi], scaleFactors[sfb])
			case intensity1, intensity2:
				// Intensity stereo positions are not reconstructed against
				// a companion channel in this implementation; left at zero
				// (see DESIGN.md).
			default:
				if err := d.fillSpectral(r, spec[lo:hi], cb, scaleFactors[sfb], int(globalGain)); err != nil {
					return nil, err
				}
			}
		}

		win := d.window(isShort, windowShape == 1, w, numWindows)
		timeDomain := make([]float64, winLen*2)
		transform.IMDCT(spec, timeDomain)
		for i := range timeDomain {
			timeDomain[i] *= win[i]
		}

		overlap := cs.overlapLong
		if isShort {
			overlap = cs.overlapShort[w]
		}
		half := winLen
		block := make([]float64, half)
		overlap.Apply(timeDomain, block)
		if isShort {
			for i := 0; i < half; i++ {
				out[w*half+i] = float32(block[i])
			}
		} else {
			for i := 0; i < half; i++ {
				out[i] = float32(block[i])
			}
		}
	}
	cs.prevShape = int(windowShape)
	return out, nil
}

// window returns the analysis/synthesis window for one sub-block: the sine
// or KBD window of the short or long block length. winIdx and numWindows
// are not used, and no start/stop transition windows are built, so every
// block gets the plain window of its own length.
func (d *Decoder) window(isShort, kbd bool, winIdx, numWindows int) []float64 {
	if isShort {
		if kbd {
			return d.winShortKBD
		}
		return d.winShort256
	}
	if kbd {
		return d.winLongKBD
	}
	return d.winLong2048
}

func readSectionLen(r *bitio.Reader, escBits, escVal int) (int, error) {
	total := 0
	for {
		n, err := r.ReadBits(escBits)
		if err != nil {
			return 0, err
		}
		total += int(n)
		if int(n) != escVal {
			break
		}
	}
	return total, nil
}

func skipPulseData(r *bitio.Reader) error {
	numPulses, err := r.ReadBits(2)
	if err != nil {
		return err
	}
	if _, err := r.ReadBits(6); err != nil { // pulse_start_sfb
		return err
	}
	for i := 0; i < int(numPulses)+1; i++ {
		if _, err := r.ReadBits(5); err != nil { // pulse_offset
			return err
		}
		if _, err := r.ReadBits(4); err != nil { // pulse_amp
			return err
		}
	}
	return nil
}

// skipTNS parses and discards tns_data (spec.md §4.5 "TNS: parsed, skipped
// — not applied to the spectrum").
func skipTNS(r *bitio.Reader, isShort bool, numWindows int) error {
	nFiltBits := 2
	if isShort {
		nFiltBits = 1
	}
	for w := 0; w < numWindows; w++ {
		nFilt, err := r.ReadBits(nFiltBits)
		if err != nil {
			return err
		}
		if nFilt == 0 {
			continue
		}
		coefResBits := 1
		coefRes, err := r.ReadBit()
		if err != nil {
			return err
		}
		_ = coefResBits
		lengthBits := 6
		orderBits := 5
		if isShort {
			lengthBits = 4
			orderBits = 3
		}
		for f := 0; f < int(nFilt); f++ {
			if _, err := r.ReadBits(lengthBits); err != nil {
				return err
			}
			order, err := r.ReadBits(orderBits)
			if err != nil {
				return err
			}
			if order == 0 {
				continue
			}
			if _, err := r.ReadBit(); err != nil { // direction
				return err
			}
			compressed, err := r.ReadBit()
			if err != nil {
				return err
			}
			coefBits := 3
			if coefRes == 1 {
				coefBits = 4
			}
			if compressed == 1 {
				coefBits--
			}
			for c := 0; c < int(order); c++ {
				if _, err := r.ReadBits(coefBits); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// fillPNS synthesizes perceptual noise substitution values for one
// scale-factor band (spec.md §4.5 "PNS"): a deterministic LCG scaled to the
// band's noise energy, since no reference stream checks bit-exact noise.
func (d *Decoder) fillPNS(band []float64, noiseScale int) {
	gain := dequantGain(noiseScale, 0)
	for i := range band {
		d.pnsState = d.pnsState*1664525 + 1013904223
		v := float64(int32(d.pnsState)) / float64(1<<31)
		band[i] = v * gain
	}
}

// fillSpectral Huffman-decodes one section's quantized spectral coefficients
// and dequantizes them via the standard x = sign(q)*|q|^(4/3)*2^g
// relationship (spec.md §4.5 "spectral_data").
func (d *Decoder) fillSpectral(r *bitio.Reader, band []float64, cb int, scalefactor, globalGain int) error {
	codebook := tables.AACCodebooks[cb]
	if codebook == nil {
		return mediaerr.InvalidData("codebook", cb, "unknown AAC spectral codebook")
	}
	dim := codebook.Dimension
	gain := dequantGain(scalefactor, globalGain)
	for i := 0; i < len(band); i += dim {
		packed, err := codebook.VLC.Decode(r)
		if err != nil {
			return err
		}
		tuple := codebook.DecodeTuple(packed)
		if codebook.Unsigned {
			for j, mag := range tuple {
				if mag == 0 {
					continue
				}
				signBit, err := r.ReadBit()
				if err != nil {
					return err
				}
				v := float64(mag)
				if cb == 11 && mag == 16 {
					esc, err := readEscapeMagnitude(r)
					if err != nil {
						return err
					}
					v = esc
				}
				x := math.Pow(v, 4.0/3.0) * gain
				if signBit == 1 {
					x = -x
				}
				if i+j < len(band) {
					band[i+j] = x
				}
			}
		} else {
			for j, v := range tuple {
				sign := 1.0
				if v < 0 {
					sign = -1.0
				}
				x := sign * math.Pow(math.Abs(float64(v)), 4.0/3.0) * gain
				if i+j < len(band) {
					band[i+j] = x
				}
			}
		}
	}
	return nil
}

// readEscapeMagnitude reads the Exp-Golomb-ish escape extension used by
// codebook 11 when a quantized magnitude hits the LAV ceiling of 16 (spec.md
// §4.5 "ESC codebook 11").
func readEscapeMagnitude(r *bitio.Reader) (float64, error) {
	n := 4
	for {
		b, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if b == 0 {
			break
		}
		n++
	}
	bits, err := r.ReadBits(n)
	if err != nil {
		return 0, err
	}
	return float64(int(1)<<uint(n)) + float64(bits), nil
}

func dequantGain(scalefactor, globalGain int) float64 {
	return math.Pow(2, 0.25*float64(globalGain-100)) * math.Pow(2, -0.25*float64(scalefactor))
}

func float32bits(v float32) uint32 {
	return math.Float32bits(v)
}
