// Package vorbis implements the Vorbis I decoder (spec.md §4.7): three
// setup packets (identification, comment, setup) followed by single-bit-type
// audio packets, codebook/floor/residue/mapping/mode decode, channel
// coupling, and IMDCT/windowing/overlap-add to PCM. It consumes
// already-demuxed packets, the same precedent codec/aac and codec/mp3 set
// for their own container framing (Ogg repacketisation is a demuxer-layer
// concern, out of scope here).
package vorbis

import (
	"log/slog"
	"math"

	"github.com/jmylchreest/mediacore/codec"
	"github.com/jmylchreest/mediacore/internal/logging"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
	"github.com/jmylchreest/mediacore/pkg/metrics"
	"github.com/jmylchreest/mediacore/pkg/transform"
)

func init() {
	codec.Register(mediatype.CodecVorbis, func(sink metrics.Sink, logger *slog.Logger) codec.Decoder {
		return New(sink, WithLogger(logger))
	})
}

type Option func(*Decoder)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) { d.logger = logging.WithComponent(logger, "codec.vorbis") }
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

// restartThreshold is the minimum count of audio packets decoded against
// the current identification header before a new identification header
// mid-stream is honoured as a real format change rather than dropped as a
// stray duplicate (spec.md §4.7 "restart threshold >= 1000 identical-param
// audio packets").
const restartThreshold = 1000

type headerState int

const (
	stateAwaitingIdent headerState = iota
	stateAwaitingComment
	stateAwaitingSetup
	stateReady
)

// channelState holds one channel's overlap-add tail for each of Vorbis's
// two block sizes (spec.md §3.7, §4.7).
type channelState struct {
	overlapShort *transform.OverlapAdd
	overlapLong  *transform.OverlapAdd
}

func newChannelState(blockSize0, blockSize1 int) *channelState {
	return &channelState{
		overlapShort: transform.NewOverlapAdd(blockSize0 / 2),
		overlapLong:  transform.NewOverlapAdd(blockSize1 / 2),
	}
}

func (cs *channelState) reset() {
	cs.overlapShort.Reset()
	cs.overlapLong.Reset()
}

// Decoder implements codec.Decoder for Vorbis I streams.
type Decoder struct {
	sink   metrics.Sink
	logger *slog.Logger

	ident      *identHeader
	channels   int
	sampleRate int
	blockSize0 int
	blockSize1 int

	codebooks []*codebook
	floors    []*floorConfig
	residues  []*residueConfig
	mappings  []*mappingConfig
	modes     []*modeConfig

	chans []*channelState

	winShort []float64
	winLong  []float64

	state                headerState
	audioPacketsSinceInit int

	eos     bool
	pending []*mediatype.Frame
}

func (d *Decoder) CodecID() mediatype.CodecID { return mediatype.CodecVorbis }

// Open parses the three setup packets out of params.ExtraData (spec.md §6
// framing; spec.md §4.7 "three setup packets"). If ExtraData is empty, the
// decoder waits for the three header packets to arrive via SendPacket
// instead, the same "headers may arrive in-band" allowance the spec grants
// container formats without out-of-band codec config.
func (d *Decoder) Open(params mediatype.CodecParameters) error {
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	d.state = stateAwaitingIdent
	if len(params.ExtraData) == 0 {
		return nil
	}
	headers, err := splitExtraData(params.ExtraData)
	if err != nil {
		return err
	}
	for _, h := range headers {
		if err := d.handleHeaderPacket(h); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) handleHeaderPacket(payload []byte) error {
	if len(payload) < 1 {
		return mediaerr.InvalidDataf("vorbis: empty header packet")
	}
	switch payload[0] {
	case packetTypeIdentification:
		return d.applyIdentHeader(payload)
	case packetTypeComment:
		if !hasVorbisSync(payload, 0) {
			return mediaerr.InvalidDataf("vorbis: invalid comment header")
		}
		d.state = stateAwaitingSetup
		return nil
	case packetTypeSetup:
		if err := d.parseSetupHeader(payload); err != nil {
			return err
		}
		d.state = stateReady
		return nil
	default:
		return mediaerr.InvalidData("packet_type", payload[0], "vorbis: unexpected header packet type")
	}
}

func (d *Decoder) applyIdentHeader(payload []byte) error {
	ih, err := parseIdentHeader(payload)
	if err != nil {
		return err
	}
	d.ident = ih
	d.channels = ih.channels
	d.sampleRate = ih.sampleRate
	d.blockSize0 = ih.blockSize0
	d.blockSize1 = ih.blockSize1
	d.winShort = transform.SineWindow(d.blockSize0)
	d.winLong = transform.SineWindow(d.blockSize1)
	d.chans = make([]*channelState, d.channels)
	for i := range d.chans {
		d.chans[i] = newChannelState(d.blockSize0, d.blockSize1)
	}
	d.audioPacketsSinceInit = 0
	d.state = stateAwaitingComment
	d.logger.Debug("identification header applied", "channels", d.channels, "sample_rate", d.sampleRate)
	return nil
}

// parseSetupHeader reads codebooks, the vestigial time-domain placeholder,
// floors, residues, mappings and modes (spec §6.3), in that fixed order.
func (d *Decoder) parseSetupHeader(payload []byte) error {
	if len(payload) < 7 || payload[0] != packetTypeSetup || !hasVorbisSync(payload, 0) {
		return mediaerr.InvalidDataf("vorbis: invalid setup header")
	}
	r := newBitReader(payload[7:])

	cbCount, err := r.readBits(8)
	if err != nil {
		return err
	}
	d.codebooks = make([]*codebook, int(cbCount)+1)
	for i := range d.codebooks {
		cb, err := parseCodebook(r)
		if err != nil {
			return err
		}
		d.codebooks[i] = cb
	}

	timeCount, err := r.readBits(6)
	if err != nil {
		return err
	}
	for i := 0; i < int(timeCount)+1; i++ {
		v, err := r.readBits(16)
		if err != nil {
			return err
		}
		if v != 0 {
			return mediaerr.Unsupported("vorbis: nonzero vestigial time-domain transform")
		}
	}

	floorCount, err := r.readBits(6)
	if err != nil {
		return err
	}
	d.floors = make([]*floorConfig, int(floorCount)+1)
	for i := range d.floors {
		f, err := parseFloor(r)
		if err != nil {
			return err
		}
		d.floors[i] = f
	}

	residueCount, err := r.readBits(6)
	if err != nil {
		return err
	}
	d.residues = make([]*residueConfig, int(residueCount)+1)
	for i := range d.residues {
		kind, err := r.readBits(16)
		if err != nil {
			return err
		}
		rc, err := parseResidue(r, int(kind))
		if err != nil {
			return err
		}
		d.residues[i] = rc
	}

	mappingCount, err := r.readBits(6)
	if err != nil {
		return err
	}
	d.mappings = make([]*mappingConfig, int(mappingCount)+1)
	for i := range d.mappings {
		mc, err := parseMapping(r, d.channels)
		if err != nil {
			return err
		}
		d.mappings[i] = mc
	}

	modeCount, err := r.readBits(6)
	if err != nil {
		return err
	}
	d.modes = make([]*modeConfig, int(modeCount)+1)
	for i := range d.modes {
		mc, err := parseMode(r)
		if err != nil {
			return err
		}
		d.modes[i] = mc
	}

	framing, err := r.readBit()
	if err != nil {
		return err
	}
	if framing != 1 {
		return mediaerr.InvalidDataf("vorbis: setup header framing bit not set")
	}
	return nil
}

// SendPacket runs header-chain restart detection (spec.md §4.7 "compare its
// parameters to the current; if changed, flush + rebuild; if unchanged,
// treat as stray and drop") for any mid-stream identification header, then
// decodes audio packets once the header chain is ready.
func (d *Decoder) SendPacket(pkt *mediatype.Packet) error {
	if pkt.Empty() {
		d.eos = true
		return nil
	}
	payload := pkt.Payload
	if d.state != stateReady {
		return d.handleHeaderPacket(payload)
	}
	if len(payload) >= 7 && payload[0] == packetTypeIdentification && hasVorbisSync(payload, 0) {
		newIdent, err := parseIdentHeader(payload)
		if err != nil {
			return err
		}
		if d.ident != nil && d.ident.sameParams(newIdent) {
			return nil // stray duplicate of the current header, drop
		}
		if d.audioPacketsSinceInit < restartThreshold {
			d.logger.Warn("dropping mid-stream identification header, insufficient confirmation", "packets_since_init", d.audioPacketsSinceInit)
			return nil // not enough confirmation yet, drop as spurious
		}
		d.logger.Warn("mid-stream identification header change, restarting decoder")
		d.Flush()
		return d.applyIdentHeader(payload)
	}

	d.audioPacketsSinceInit++
	chans, n, err := d.decodeAudioPacket(payload)
	if err != nil {
		return err
	}
	if chans == nil {
		return nil
	}
	frame := d.interleave(chans, n, pkt.Pts)
	d.pending = append(d.pending, frame)
	return nil
}

func (d *Decoder) interleave(chans [][]float64, nbSamples int, pts int64) *mediatype.Frame {
	layout := defaultLayout(d.channels)
	frame := mediatype.NewAudioFrame(nbSamples, d.sampleRate, layout, mediatype.SampleFormatF32)
	frame.Pts = pts
	frame.IsKeyframe = true
	out := frame.Data[0]
	for i := 0; i < nbSamples; i++ {
		for c, samples := range chans {
			v := samples[i]
			if v != v || v > 1e30 || v < -1e30 {
				v = 0
			}
			if v > 8 {
				v = 8
			}
			if v < -8 {
				v = -8
			}
			putFloat32LE(out[(i*len(chans)+c)*4:], float32(v))
		}
	}
	return frame
}

func defaultLayout(n int) mediatype.ChannelLayout {
	switch n {
	case 1:
		return mediatype.ChannelLayoutMono
	case 2:
		return mediatype.ChannelLayoutStereo
	default:
		l := mediatype.ChannelLayoutStereo
		if n >= 3 {
			l |= mediatype.ChannelFrontCenter
		}
		if n >= 6 {
			l |= mediatype.ChannelLFE | mediatype.ChannelBackLeft | mediatype.ChannelBackRight
		}
		return l
	}
}

func putFloat32LE(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
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

// Flush resets per-channel overlap state and pending output. The parsed
// codebook/floor/residue/mapping/mode configuration from the setup header
// survives a flush, matching codec/aac's Flush semantics: only decode
// state resets, not stream configuration.
func (d *Decoder) Flush() {
	for _, cs := range d.chans {
		cs.reset()
	}
	d.eos = false
	d.pending = nil
}

// window returns the sine window for the given block size (spec.md §3.7).
// Vorbis's true window has a variable slope that depends on the
// neighbouring block's size at long/short transitions; this decoder applies
// a fixed sine window regardless of neighbour, a documented simplification
// (see DESIGN.md).
func (d *Decoder) window(blockSize int) []float64 {
	if blockSize == d.blockSize0 {
		return d.winShort
	}
	return d.winLong
}
