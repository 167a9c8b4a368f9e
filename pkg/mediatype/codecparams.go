package mediatype

// CodecParameters captures what a decoder needs to initialise (spec.md
// §3.4): codec id, extra_data, bit_rate, and either VideoCodecParams or
// AudioCodecParams depending on MediaType.
type CodecParameters struct {
	CodecID   CodecID
	ExtraData []byte
	BitRate   int64
	MediaType MediaType

	Video VideoCodecParams
	Audio AudioCodecParams
}

// VideoCodecParams is the video-specific half of CodecParameters.
type VideoCodecParams struct {
	Width        int
	Height       int
	PixelFormat  PixelFormat
	FrameRateNum int
	FrameRateDen int
	SarNum       int
	SarDen       int
}

// AudioCodecParams is the audio-specific half of CodecParameters.
type AudioCodecParams struct {
	SampleRate    int
	ChannelLayout ChannelLayout
	SampleFormat  SampleFormat
	FrameSize     int
}

// FromStream builds CodecParameters from a demuxed Stream, the usual path
// from a demuxer's Stream list into a decoder's open().
func FromStream(s *Stream) CodecParameters {
	return CodecParameters{
		CodecID:   s.CodecID,
		ExtraData: s.ExtraData,
		BitRate:   s.Video.BitRate,
		MediaType: s.MediaType,
		Video: VideoCodecParams{
			Width:        s.Video.Width,
			Height:       s.Video.Height,
			PixelFormat:  s.Video.PixelFormat,
			FrameRateNum: s.Video.FrameRateNum,
			FrameRateDen: s.Video.FrameRateDen,
			SarNum:       s.Video.SarNum,
			SarDen:       s.Video.SarDen,
		},
		Audio: AudioCodecParams{
			SampleRate:    s.Audio.SampleRate,
			ChannelLayout: s.Audio.ChannelLayout,
			SampleFormat:  s.Audio.SampleFormat,
			FrameSize:     s.Audio.FrameSize,
		},
	}
}
