package mediatype

// Stream describes one elementary stream within a container (spec.md §3.3).
type Stream struct {
	Index     int
	MediaType MediaType
	CodecID   CodecID
	TimeBase  Rational

	Duration  int64 // optional hint, in TimeBase ticks; 0 if unknown
	StartTime int64
	NbFrames  int64

	// ExtraData is the codec-initialisation blob: AudioSpecificConfig, avcC,
	// hvcC, VOL header, Vorbis 3-header concat, BITMAPINFOHEADER,
	// WAVEFORMATEX, ... (spec.md §3.3).
	ExtraData []byte

	Video VideoStreamParams
	Audio AudioStreamParams
}

// VideoStreamParams carries media-type-specific video hints.
type VideoStreamParams struct {
	Width       int
	Height      int
	PixelFormat PixelFormat
	FrameRateNum int
	FrameRateDen int
	SarNum      int
	SarDen      int
	BitRate     int64
}

// AudioStreamParams carries media-type-specific audio hints.
type AudioStreamParams struct {
	SampleRate    int
	ChannelLayout ChannelLayout
	SampleFormat  SampleFormat
	FrameSize     int
	BitRate       int64
}
