// Package mp3 implements an MPEG-1 Audio Layer III decoder (spec.md §4.6):
// frame sync, header/side-info parsing, bit-reservoir management, Huffman
// spectral decode, requantisation, stereo processing, alias reduction,
// hybrid IMDCT synthesis, and the 32-band polyphase synthesis filterbank.
package mp3

import (
	"log/slog"
	"math"

	"github.com/jmylchreest/mediacore/codec"
	"github.com/jmylchreest/mediacore/internal/logging"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
	"github.com/jmylchreest/mediacore/pkg/metrics"
	"github.com/jmylchreest/mediacore/pkg/tables"
	"github.com/jmylchreest/mediacore/pkg/transform"
)

func init() {
	codec.Register(mediatype.CodecMP3, func(sink metrics.Sink, logger *slog.Logger) codec.Decoder {
		return New(sink, WithLogger(logger))
	})
}

type Option func(*Decoder)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) { d.logger = logging.WithComponent(logger, "codec.mp3") }
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

const (
	modeStereo = 0
	modeJoint  = 1
	modeDual   = 2
	modeMono   = 3

	granulesPerFrame = 2
	samplesPerFrame  = 1152
	subbands         = 32
	linesPerSubband  = 18
)

// frameHeader holds the fields spec.md §4.6 "decode header" names.
type frameHeader struct {
	version         int // 0 = MPEG2.5, 2 = MPEG2, 3 = MPEG1 (raw ID bits)
	bitrateIndex    int
	sampleRateIndex int
	padding         bool
	mode            int
	modeExtension   int
	channels        int
}

func (h *frameHeader) sampleRate() int { return mp3SampleRate(h.sampleRateIndex) }

func (h *frameHeader) bitrateKbps() int { return mp3BitRate(h.bitrateIndex) }

func (h *frameHeader) frameLength() int {
	pad := 0
	if h.padding {
		pad = 1
	}
	return (144*1000*h.bitrateKbps())/h.sampleRate() + pad
}

func (h *frameHeader) sideInfoLen() int {
	if h.channels == 1 {
		return 17
	}
	return 32
}

// chanState holds one channel's cross-frame hybrid-synthesis state: the
// overlap-add tail per subband (spec.md §4.6 "overlap-add against a
// 576-sample-per-channel buffer", split here per-subband since each
// subband's IMDCT runs independently) and the 1024-sample polyphase
// history used by the synthesis filterbank.
type chanState struct {
	overlap       [subbands]*transform.OverlapAdd
	synthHist     []float64 // 1024-sample FIFO, oldest at the end
	prevBlockType int
}

func newChanState() *chanState {
	cs := &chanState{synthHist: make([]float64, 1024)}
	for i := range cs.overlap {
		cs.overlap[i] = transform.NewOverlapAdd(transform.MP3LongWindowLen / 2)
	}
	return cs
}

func (cs *chanState) reset() {
	for _, o := range cs.overlap {
		o.Reset()
	}
	for i := range cs.synthHist {
		cs.synthHist[i] = 0
	}
	cs.prevBlockType = 0
}

// Decoder implements codec.Decoder for MPEG-1 Audio Layer III streams.
type Decoder struct {
	sink   metrics.Sink
	logger *slog.Logger

	buf []byte // undecoded bytes accumulated across SendPacket calls

	channels   int
	sampleRate int

	reservoir []byte // bit-reservoir: main_data bytes not yet consumed

	chans []*chanState

	eof     bool
	pending []*mediatype.Frame
}

func (d *Decoder) CodecID() mediatype.CodecID { return mediatype.CodecMP3 }

// Open seeds channel/sample-rate hints from container metadata when present;
// MP3 frame headers are self-describing so these are refined per-frame.
func (d *Decoder) Open(params mediatype.CodecParameters) error {
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	d.channels = params.Audio.ChannelLayout.Channels()
	d.sampleRate = params.Audio.SampleRate
	return nil
}

func (d *Decoder) SendPacket(pkt *mediatype.Packet) error {
	if pkt.Empty() {
		d.eof = true
		return nil
	}
	d.buf = append(d.buf, pkt.Payload...)
	return d.drainFrames(pkt.Pts)
}

// drainFrames scans d.buf for as many complete frames as are available,
// decoding each and leaving any trailing partial frame buffered.
func (d *Decoder) drainFrames(pts int64) error {
	for {
		sync := findSync(d.buf)
		if sync < 0 {
			d.buf = nil
			return nil
		}
		if sync > 0 {
			d.sink.IncMalformedNALDrop("mp3")
			d.logger.Warn("resyncing past garbage bytes", "count", sync)
			d.buf = d.buf[sync:]
		}
		if len(d.buf) < 4 {
			return nil
		}
		hdr, err := parseHeader(d.buf)
		if err != nil {
			d.buf = d.buf[1:] // resync one byte forward
			d.sink.IncMalformedNALDrop("mp3")
			d.logger.Warn("malformed frame header, resyncing", "error", err)
			continue
		}
		flen := hdr.frameLength()
		if flen <= 0 || len(d.buf) < flen {
			return nil // wait for more data
		}
		if flen+1 < len(d.buf) && !isSyncAt(d.buf, flen) {
			// Next frame doesn't start where this one's length says it
			// should: treat this as a false sync and advance one byte.
			d.buf = d.buf[1:]
			d.sink.IncMalformedNALDrop("mp3")
			d.logger.Warn("false sync detected, resyncing")
			continue
		}
		frame := d.buf[:flen]
		d.buf = d.buf[flen:]

		d.ensureState(hdr)
		pcm, err := d.decodeFrame(hdr, frame)
		if err != nil {
			d.sink.IncMalformedNALDrop("mp3")
			d.logger.Warn("frame decode failed, dropped", "error", err)
			continue
		}
		if pcm != nil {
			out := d.interleave(pcm, pts)
			d.pending = append(d.pending, out)
		}
	}
}

func (d *Decoder) ensureState(hdr *frameHeader) {
	if d.channels == hdr.channels && d.chans != nil {
		return
	}
	d.channels = hdr.channels
	d.sampleRate = hdr.sampleRate()
	d.chans = make([]*chanState, d.channels)
	for i := range d.chans {
		d.chans[i] = newChanState()
	}
	d.reservoir = nil
}

func (d *Decoder) interleave(pcm [][]float32, pts int64) *mediatype.Frame {
	layout := mediatype.ChannelLayoutMono
	if len(pcm) == 2 {
		layout = mediatype.ChannelLayoutStereo
	}
	frame := mediatype.NewAudioFrame(len(pcm[0]), d.sampleRate, layout, mediatype.SampleFormatF32)
	frame.Pts = pts
	frame.IsKeyframe = true
	out := frame.Data[0]
	for i := 0; i < len(pcm[0]); i++ {
		for c, samples := range pcm {
			putFloat32LE(out[(i*len(pcm)+c)*4:], samples[i])
		}
	}
	return frame
}

func (d *Decoder) ReceiveFrame() (*mediatype.Frame, error) {
	if len(d.pending) > 0 {
		f := d.pending[0]
		d.pending = d.pending[1:]
		return f, nil
	}
	if d.eof {
		return nil, mediaerr.ErrEof
	}
	return nil, mediaerr.ErrNeedMoreData
}

func (d *Decoder) Flush() {
	for _, cs := range d.chans {
		if cs != nil {
			cs.reset()
		}
	}
	d.reservoir = nil
	d.eof = false
	d.pending = nil
	d.buf = nil
}

func findSync(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == 0xFF && buf[i+1]&0xE0 == 0xE0 {
			return i
		}
	}
	return -1
}

func isSyncAt(buf []byte, off int) bool {
	return off+1 < len(buf) && buf[off] == 0xFF && buf[off+1]&0xE0 == 0xE0
}

// parseHeader reads the 4-byte MPEG audio frame header (spec.md §4.6
// "decode header"). Only Layer III is supported.
func parseHeader(buf []byte) (*frameHeader, error) {
	if len(buf) < 4 {
		return nil, mediaerr.InvalidDataf("mp3: short header")
	}
	b1, b2, b3 := buf[1], buf[2], buf[3]
	version := int(b1>>3) & 0x03
	layer := int(b1>>1) & 0x03
	if layer != 1 { // layer field: 01 = Layer III
		return nil, mediaerr.Unsupported("mp3: layer %d unsupported (Layer III only)", layer)
	}
	hdr := &frameHeader{
		version:         version,
		bitrateIndex:    int(b2>>4) & 0x0F,
		sampleRateIndex: int(b2>>2) & 0x03,
		padding:         (b2>>1)&0x01 == 1,
		mode:            int(b3>>6) & 0x03,
		modeExtension:   int(b3>>4) & 0x03,
	}
	if hdr.sampleRateIndex == 3 {
		return nil, mediaerr.InvalidData("sampling_rate_index", 3, "reserved")
	}
	if hdr.bitrateIndex == 0 || hdr.bitrateIndex == 15 {
		return nil, mediaerr.Unsupported("mp3: free-format/reserved bitrate_index unsupported")
	}
	if hdr.version != 3 {
		// MPEG-2/2.5 Layer III halves granulesPerFrame's sample count and
		// the frame-length formula's constant; out of scope for this
		// decoder (spec.md §4.6 names "MPEG-1 Layer III" only).
		return nil, mediaerr.Unsupported("mp3: MPEG version %d unsupported (MPEG-1 only)", hdr.version)
	}
	if hdr.mode == modeMono {
		hdr.channels = 1
	} else {
		hdr.channels = 2
	}
	return hdr, nil
}

func mp3SampleRate(idx int) int {
	if idx < 0 || idx >= len(tables.MP3SampleRates) {
		return tables.MP3SampleRates[0]
	}
	return tables.MP3SampleRates[idx]
}

func mp3BitRate(idx int) int {
	if idx < 0 || idx >= len(tables.MP3BitRates) {
		return 0
	}
	return tables.MP3BitRates[idx]
}

func putFloat32LE(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}
