// Package mediatype defines the data model shared by every demuxer and
// decoder: Packet, Frame, Stream, CodecParameters, and the byte-stream
// collaborator interface (spec.md §3, §6).
package mediatype

// MediaType classifies a Stream.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaVideo
	MediaAudio
	MediaSubtitle
	MediaData
)

func (m MediaType) String() string {
	switch m {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	case MediaSubtitle:
		return "subtitle"
	case MediaData:
		return "data"
	default:
		return "unknown"
	}
}

// CodecID enumerates every codec the registries in codec/ know how to build
// a decoder for, plus the containers' full recognized set (unsupported ones
// map to CodecUnknown and are skipped rather than rejected, per spec.md
// §4.3/§4.4).
type CodecID int

const (
	CodecUnknown CodecID = iota

	// Video
	CodecH264
	CodecH265
	CodecMPEG4Part2
	CodecH263
	CodecMJPEG
	CodecVP8
	CodecVP9

	// Audio
	CodecAAC
	CodecMP3
	CodecVorbis
	CodecOpus
	CodecAC3
	CodecEAC3
	CodecDTS
	CodecPCMS16LE
	CodecPCMS16BE
	CodecPCMS24LE
	CodecPCMS24BE
	CodecPCMS32LE
	CodecPCMS32BE
	CodecPCMU8
	CodecPCMF32LE
	CodecPCMF32BE
	CodecPCMF64LE
	CodecPCMF64BE
	CodecPCMMulaw
	CodecPCMAlaw
)

func (c CodecID) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecH265:
		return "h265"
	case CodecMPEG4Part2:
		return "mpeg4part2"
	case CodecH263:
		return "h263"
	case CodecMJPEG:
		return "mjpeg"
	case CodecVP8:
		return "vp8"
	case CodecVP9:
		return "vp9"
	case CodecAAC:
		return "aac"
	case CodecMP3:
		return "mp3"
	case CodecVorbis:
		return "vorbis"
	case CodecOpus:
		return "opus"
	case CodecAC3:
		return "ac3"
	case CodecEAC3:
		return "eac3"
	case CodecDTS:
		return "dts"
	case CodecPCMS16LE:
		return "pcm_s16le"
	case CodecPCMS16BE:
		return "pcm_s16be"
	case CodecPCMS24LE:
		return "pcm_s24le"
	case CodecPCMS24BE:
		return "pcm_s24be"
	case CodecPCMS32LE:
		return "pcm_s32le"
	case CodecPCMS32BE:
		return "pcm_s32be"
	case CodecPCMU8:
		return "pcm_u8"
	case CodecPCMF32LE:
		return "pcm_f32le"
	case CodecPCMF32BE:
		return "pcm_f32be"
	case CodecPCMF64LE:
		return "pcm_f64le"
	case CodecPCMF64BE:
		return "pcm_f64be"
	case CodecPCMMulaw:
		return "pcm_mulaw"
	case CodecPCMAlaw:
		return "pcm_alaw"
	default:
		return "unknown"
	}
}

// FormatID enumerates the containers the demuxer registry knows about.
type FormatID int

const (
	FormatUnknown FormatID = iota
	FormatMatroska
	FormatWebM
	FormatMPEGTS
	FormatAVI
)

func (f FormatID) String() string {
	switch f {
	case FormatMatroska:
		return "matroska"
	case FormatWebM:
		return "webm"
	case FormatMPEGTS:
		return "mpegts"
	case FormatAVI:
		return "avi"
	default:
		return "unknown"
	}
}

// PixelFormat enumerates supported planar pixel layouts.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatYUV420P
)

// SampleFormat enumerates supported PCM sample encodings.
type SampleFormat int

const (
	SampleFormatUnknown SampleFormat = iota
	SampleFormatU8
	SampleFormatS16
	SampleFormatS24
	SampleFormatS32
	SampleFormatF32
)

// PictureType classifies a decoded video frame.
type PictureType int

const (
	PictureUnknown PictureType = iota
	PictureI
	PictureP
	PictureB
)

// ChannelLayout is a bitmask of present channels, modelled after the common
// "front-left | front-right | ..." convention.
type ChannelLayout uint32

const (
	ChannelFrontLeft ChannelLayout = 1 << iota
	ChannelFrontRight
	ChannelFrontCenter
	ChannelLFE
	ChannelBackLeft
	ChannelBackRight
	ChannelFrontLeftOfCenter
	ChannelFrontRightOfCenter
)

const (
	ChannelLayoutMono    = ChannelFrontCenter
	ChannelLayoutStereo  = ChannelFrontLeft | ChannelFrontRight
	ChannelLayout5Point1 = ChannelFrontLeft | ChannelFrontRight | ChannelFrontCenter | ChannelLFE | ChannelBackLeft | ChannelBackRight
)

// Channels returns the number of channels set in the layout.
func (c ChannelLayout) Channels() int {
	n := 0
	for v := uint32(c); v != 0; v &= v - 1 {
		n++
	}
	return n
}
