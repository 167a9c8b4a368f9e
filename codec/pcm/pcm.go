// Package pcm implements the stateless PCM/μ-law/A-law decoder family
// (spec.md §4.11): one input packet maps to one audio frame via pure format
// conversion, no decoder state carried across packets.
package pcm

import (
	"encoding/binary"
	"log/slog"
	"math"

	"github.com/jmylchreest/mediacore/codec"
	"github.com/jmylchreest/mediacore/internal/logging"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
	"github.com/jmylchreest/mediacore/pkg/metrics"
)

func init() {
	for _, id := range []mediatype.CodecID{
		mediatype.CodecPCMS16LE, mediatype.CodecPCMS16BE,
		mediatype.CodecPCMS24LE, mediatype.CodecPCMS24BE,
		mediatype.CodecPCMS32LE, mediatype.CodecPCMS32BE,
		mediatype.CodecPCMU8,
		mediatype.CodecPCMF32LE, mediatype.CodecPCMF32BE,
		mediatype.CodecPCMF64LE, mediatype.CodecPCMF64BE,
		mediatype.CodecPCMMulaw, mediatype.CodecPCMAlaw,
	} {
		id := id
		codec.Register(id, func(sink metrics.Sink, logger *slog.Logger) codec.Decoder {
			return New(id, sink, WithLogger(logger))
		})
	}
}

type Option func(*Decoder)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) { d.logger = logging.WithComponent(logger, "codec.pcm") }
}

func New(id mediatype.CodecID, sink metrics.Sink, opts ...Option) *Decoder {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	d := &Decoder{id: id, sink: sink, logger: logging.Discard()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decoder converts one packet's worth of bytes into one interleaved audio
// frame. It holds at most one undelivered frame plus the end-of-stream flag;
// Flush clears both.
type Decoder struct {
	id     mediatype.CodecID
	sink   metrics.Sink
	logger *slog.Logger
	params mediatype.CodecParameters
	opened bool
	eof    bool
	frame  *mediatype.Frame
}

func (d *Decoder) CodecID() mediatype.CodecID { return d.id }

func (d *Decoder) Open(params mediatype.CodecParameters) error {
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	if params.Audio.SampleFormat == mediatype.SampleFormatUnknown {
		params.Audio.SampleFormat = outputFormat(d.id)
	}
	d.params = params
	d.opened = true
	d.logger.Debug("opened", "codec", d.id, "sample_rate", params.Audio.SampleRate)
	return nil
}

func (d *Decoder) SendPacket(pkt *mediatype.Packet) error {
	if !d.opened {
		return mediaerr.InvalidDataf("pcm decoder used before open")
	}
	if pkt.Empty() {
		d.eof = true
		return nil
	}
	frame, err := d.decode(pkt)
	if err != nil {
		return err
	}
	d.frame = frame
	return nil
}

func (d *Decoder) ReceiveFrame() (*mediatype.Frame, error) {
	if d.frame != nil {
		f := d.frame
		d.frame = nil
		return f, nil
	}
	if d.eof {
		return nil, mediaerr.ErrEof
	}
	return nil, mediaerr.ErrNeedMoreData
}

func (d *Decoder) Flush() {
	d.frame = nil
	d.eof = false
}

func (d *Decoder) decode(pkt *mediatype.Packet) (*mediatype.Frame, error) {
	layout := d.params.Audio.ChannelLayout
	if layout == 0 {
		layout = mediatype.ChannelFrontLeft | mediatype.ChannelFrontRight
	}
	channels := layout.Channels()
	if channels <= 0 {
		channels = 1
	}
	outFmt := outputFormat(d.id)
	inBytes := inputBytesPerSample(d.id)
	if inBytes == 0 {
		return nil, mediaerr.Unsupported("pcm codec %s has no defined sample width", d.id)
	}
	nbSamples := len(pkt.Payload) / inBytes / channels
	frame := mediatype.NewAudioFrame(nbSamples, d.params.Audio.SampleRate, layout, outFmt)
	frame.Pts = pkt.Pts
	frame.TimeBase = mediatype.TimeBaseSampleRate(d.params.Audio.SampleRate)
	frame.IsKeyframe = true

	out := frame.Data[0]
	in := pkt.Payload
	total := nbSamples * channels
	for i := 0; i < total; i++ {
		src := in[i*inBytes : i*inBytes+inBytes]
		switch d.id {
		case mediatype.CodecPCMS16LE:
			binary.LittleEndian.PutUint16(out[i*2:], binary.LittleEndian.Uint16(src))
		case mediatype.CodecPCMS16BE:
			binary.LittleEndian.PutUint16(out[i*2:], binary.BigEndian.Uint16(src))
		case mediatype.CodecPCMU8:
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(src[0])-128)<<8)
		case mediatype.CodecPCMS24LE:
			v := int32(src[0]) | int32(src[1])<<8 | int32(src[2])<<16
			if v&0x800000 != 0 {
				v |= -1 << 24
			}
			writeS24LE(out[i*3:i*3+3], v)
		case mediatype.CodecPCMS24BE:
			v := int32(src[2]) | int32(src[1])<<8 | int32(src[0])<<16
			if v&0x800000 != 0 {
				v |= -1 << 24
			}
			writeS24LE(out[i*3:i*3+3], v)
		case mediatype.CodecPCMS32LE:
			binary.LittleEndian.PutUint32(out[i*4:], binary.LittleEndian.Uint32(src))
		case mediatype.CodecPCMS32BE:
			binary.LittleEndian.PutUint32(out[i*4:], binary.BigEndian.Uint32(src))
		case mediatype.CodecPCMF32LE:
			binary.LittleEndian.PutUint32(out[i*4:], binary.LittleEndian.Uint32(src))
		case mediatype.CodecPCMF32BE:
			binary.LittleEndian.PutUint32(out[i*4:], binary.BigEndian.Uint32(src))
		case mediatype.CodecPCMF64LE:
			bits := binary.LittleEndian.Uint64(src)
			f := math.Float64frombits(bits)
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(f)))
		case mediatype.CodecPCMF64BE:
			bits := binary.BigEndian.Uint64(src)
			f := math.Float64frombits(bits)
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(f)))
		case mediatype.CodecPCMMulaw:
			binary.LittleEndian.PutUint16(out[i*2:], uint16(mulawToS16(src[0])))
		case mediatype.CodecPCMAlaw:
			binary.LittleEndian.PutUint16(out[i*2:], uint16(alawToS16(src[0])))
		default:
			return nil, mediaerr.Unsupported("pcm codec %s not implemented", d.id)
		}
	}
	return frame, nil
}

func writeS24LE(dst []byte, v int32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
}

// outputFormat is the codec's natural sample width (S16 stays S16, F32
// stays F32) except μ-law/A-law, which spec.md §4.11 says "expand to S16",
// U8, which also widens to S16, and F64, which narrows to F32.
func outputFormat(id mediatype.CodecID) mediatype.SampleFormat {
	switch id {
	case mediatype.CodecPCMS16LE, mediatype.CodecPCMS16BE, mediatype.CodecPCMMulaw, mediatype.CodecPCMAlaw:
		return mediatype.SampleFormatS16
	case mediatype.CodecPCMS24LE, mediatype.CodecPCMS24BE:
		return mediatype.SampleFormatS24
	case mediatype.CodecPCMS32LE, mediatype.CodecPCMS32BE:
		return mediatype.SampleFormatS32
	case mediatype.CodecPCMF32LE, mediatype.CodecPCMF32BE, mediatype.CodecPCMF64LE, mediatype.CodecPCMF64BE:
		return mediatype.SampleFormatF32
	case mediatype.CodecPCMU8:
		return mediatype.SampleFormatS16
	default:
		return mediatype.SampleFormatS16
	}
}

func inputBytesPerSample(id mediatype.CodecID) int {
	switch id {
	case mediatype.CodecPCMU8, mediatype.CodecPCMMulaw, mediatype.CodecPCMAlaw:
		return 1
	case mediatype.CodecPCMS16LE, mediatype.CodecPCMS16BE:
		return 2
	case mediatype.CodecPCMS24LE, mediatype.CodecPCMS24BE:
		return 3
	case mediatype.CodecPCMS32LE, mediatype.CodecPCMS32BE, mediatype.CodecPCMF32LE, mediatype.CodecPCMF32BE:
		return 4
	case mediatype.CodecPCMF64LE, mediatype.CodecPCMF64BE:
		return 8
	default:
		return 0
	}
}

// mulawToS16 implements the ITU-T G.711 μ-law to linear PCM expansion.
func mulawToS16(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F
	magnitude := ((int32(mantissa) << 3) + 0x84) << exponent
	magnitude -= 0x84
	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// alawToS16 implements the ITU-T G.711 A-law to linear PCM expansion.
func alawToS16(a byte) int16 {
	a ^= 0x55
	sign := a & 0x80
	exponent := (a >> 4) & 0x07
	mantissa := a & 0x0F
	var magnitude int32
	if exponent == 0 {
		magnitude = (int32(mantissa) << 4) + 8
	} else {
		magnitude = ((int32(mantissa) << 4) + 0x108) << (exponent - 1)
	}
	if sign == 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}
