// Package mkv implements the Matroska/WebM demuxer (spec.md §4.2): an EBML
// parser walking Segment → {Info, Tracks, Cluster} and a SimpleBlock/
// BlockGroup packet pump.
package mkv

import (
	"log/slog"

	"github.com/jmylchreest/mediacore/demux"
	"github.com/jmylchreest/mediacore/internal/logging"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
)

// EBML element IDs used by the parser (ITU spec / Matroska RFC 8794).
const (
	idEBMLHeader    = 0x1A45DFA3
	idDocType       = 0x4282
	idSegment       = 0x18538067
	idInfo          = 0x1549A966
	idTimecodeScale = 0x2AD7B1
	idDuration      = 0x4489
	idTracks        = 0x1654AE6B
	idTrackEntry    = 0xAE
	idTrackNumber   = 0xD7
	idTrackType     = 0x83
	idCodecID       = 0x86
	idCodecPrivate  = 0x63A2
	idDefaultDur    = 0x23E383
	idCluster       = 0x1F43B675
	idTimestamp     = 0xE7
	idSimpleBlock   = 0xA3
	idBlockGroup    = 0xA0
	idBlock         = 0xA1
	idSeekHead      = 0x114D9B74
	idCues          = 0x1C53BB6B
	idTags          = 0x1254C367
)

func init() {
	demux.Register(prober{})
}

type prober struct{}

func (prober) FormatID() mediatype.FormatID { return mediatype.FormatMatroska }

func (prober) NewDemuxer(logger *slog.Logger) demux.Demuxer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Demuxer{logger: logging.WithComponent(logger, "demux.mkv")}
}

func (prober) Probe(buf []byte, ext string) int {
	if len(buf) >= 4 && buf[0] == 0x1A && buf[1] == 0x45 && buf[2] == 0xDF && buf[3] == 0xA3 {
		return demux.ScoreMax
	}
	return 0
}

// codecIDTable maps Matroska CodecID strings to internal codec ids
// (spec.md §4.2 "CodecID (string → internal codec id via fixed table)").
var codecIDTable = map[string]mediatype.CodecID{
	"V_MPEG4/ISO/AVC":   mediatype.CodecH264,
	"V_MPEGH/ISO/HEVC":  mediatype.CodecH265,
	"V_MPEG4/ISO/ASP":   mediatype.CodecMPEG4Part2,
	"V_VP8":             mediatype.CodecVP8,
	"V_VP9":             mediatype.CodecVP9,
	"A_AAC":             mediatype.CodecAAC,
	"A_MPEG/L3":         mediatype.CodecMP3,
	"A_VORBIS":          mediatype.CodecVorbis,
	"A_OPUS":            mediatype.CodecOpus,
	"A_PCM/INT/LIT":     mediatype.CodecPCMS16LE,
	"A_PCM/INT/BIG":     mediatype.CodecPCMS16BE,
	"A_PCM/FLOAT/IEEE":  mediatype.CodecPCMF32LE,
}

// track is the demuxer's internal per-track bookkeeping, built during
// Tracks parsing (spec.md §4.2 step 4).
type track struct {
	number      uint64
	streamIndex int
}

// Demuxer implements demux.Demuxer for Matroska/WebM.
type Demuxer struct {
	logger        *slog.Logger
	isWebM        bool
	streams       []mediatype.Stream
	trackByNumber map[uint64]*track
	timescaleNs   uint64
	durationTicks float64
	clusterTS     uint64

	pending []*mediatype.Packet
}

func (d *Demuxer) Open(io mediatype.IoContext) error {
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	d.trackByNumber = map[uint64]*track{}
	d.timescaleNs = 1_000_000 // default per Matroska spec

	id, size, err := readElementHeader(io)
	if err != nil {
		return err
	}
	if id != idEBMLHeader {
		return mediaerr.InvalidData("ebml_id", id, "expected EBML header")
	}
	headerBytes, err := io.ReadBytes(int(size))
	if err != nil {
		return err
	}
	docType := parseDocType(headerBytes)
	if docType != "matroska" && docType != "webm" {
		return mediaerr.InvalidData("doctype", docType, "not a matroska/webm stream")
	}
	d.isWebM = docType == "webm"

	id, segSize, err := readElementHeader(io)
	if err != nil {
		return err
	}
	if id != idSegment {
		return mediaerr.InvalidData("segment_id", id, "expected Segment element")
	}
	segmentStart := io.Position()
	segmentEnd := int64(-1)
	if segSize != unknownSize {
		segmentEnd = segmentStart + int64(segSize)
	}

	for segmentEnd < 0 || io.Position() < segmentEnd {
		childID, childSize, err := readElementHeader(io)
		if err != nil {
			if mediaerr.IsKind(err, mediaerr.KindEof) {
				break
			}
			return err
		}
		d.logger.Debug("ebml element", "id", childID, "size", childSize)
		switch childID {
		case idInfo:
			body, err := io.ReadBytes(int(childSize))
			if err != nil {
				return err
			}
			d.parseInfo(body)
		case idTracks:
			body, err := io.ReadBytes(int(childSize))
			if err != nil {
				return err
			}
			d.parseTracks(body)
		case idCluster:
			// Cluster header already consumed; ReadPacket resumes at its
			// first child (spec.md §4.2 step 5 "rewind to first Cluster").
			return nil
		case idSeekHead, idCues, idTags:
			if err := io.Skip(int64(childSize)); err != nil {
				return err
			}
		default:
			if err := io.Skip(int64(childSize)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Demuxer) Streams() []mediatype.Stream { return d.streams }

func (d *Demuxer) Duration() (float64, bool) {
	if d.durationTicks == 0 || d.timescaleNs == 0 {
		return 0, false
	}
	return d.durationTicks * float64(d.timescaleNs) / 1e9, true
}

func (d *Demuxer) Metadata() map[string]string { return nil }

func (d *Demuxer) parseInfo(body []byte) {
	r := newSliceReader(body)
	for !r.empty() {
		id, size, ok := r.readElementHeader()
		if !ok {
			return
		}
		val := r.readBytes(int(size))
		switch id {
		case idTimecodeScale:
			d.timescaleNs = decodeUint(val)
		case idDuration:
			d.durationTicks = decodeFloat(val)
		}
	}
}

func (d *Demuxer) parseTracks(body []byte) {
	r := newSliceReader(body)
	for !r.empty() {
		id, size, ok := r.readElementHeader()
		if !ok {
			return
		}
		val := r.readBytes(int(size))
		if id == idTrackEntry {
			d.parseTrackEntry(val)
		}
	}
}

func (d *Demuxer) parseTrackEntry(body []byte) {
	r := newSliceReader(body)
	var number uint64
	var trackType uint64
	var codecID string
	var codecPrivate []byte
	for !r.empty() {
		id, size, ok := r.readElementHeader()
		if !ok {
			break
		}
		val := r.readBytes(int(size))
		switch id {
		case idTrackNumber:
			number = decodeUint(val)
		case idTrackType:
			trackType = decodeUint(val)
		case idCodecID:
			codecID = string(val)
		case idCodecPrivate:
			codecPrivate = val
		}
	}
	mt := mediatype.MediaData
	switch trackType {
	case 1:
		mt = mediatype.MediaVideo
	case 2:
		mt = mediatype.MediaAudio
	case 17:
		mt = mediatype.MediaSubtitle
	}
	codec := codecIDTable[codecID]
	idx := len(d.streams)
	d.streams = append(d.streams, mediatype.Stream{
		Index:     idx,
		MediaType: mt,
		CodecID:   codec,
		TimeBase:  mediatype.TimeBaseMs,
		ExtraData: codecPrivate,
	})
	d.trackByNumber[number] = &track{number: number, streamIndex: idx}
}

// ReadPacket walks Cluster children, yielding one Packet per SimpleBlock or
// BlockGroup/Block (spec.md §4.2 "Packet pump").
func (d *Demuxer) ReadPacket(io mediatype.IoContext) (*mediatype.Packet, error) {
	if len(d.pending) > 0 {
		pkt := d.pending[0]
		d.pending = d.pending[1:]
		return pkt, nil
	}
	for {
		id, size, err := readElementHeader(io)
		if err != nil {
			return nil, err
		}
		switch id {
		case idCluster:
			continue
		case idTimestamp:
			body, err := io.ReadBytes(int(size))
			if err != nil {
				return nil, err
			}
			d.clusterTS = decodeUint(body)
		case idSimpleBlock:
			body, err := io.ReadBytes(int(size))
			if err != nil {
				return nil, err
			}
			pkt := d.parseBlock(body, true)
			if pkt != nil {
				return pkt, nil
			}
		case idBlockGroup:
			body, err := io.ReadBytes(int(size))
			if err != nil {
				return nil, err
			}
			pkt := d.parseBlockGroup(body)
			if pkt != nil {
				return pkt, nil
			}
		default:
			if err := io.Skip(int64(size)); err != nil {
				return nil, err
			}
		}
	}
}

func (d *Demuxer) parseBlockGroup(body []byte) *mediatype.Packet {
	r := newSliceReader(body)
	for !r.empty() {
		id, size, ok := r.readElementHeader()
		if !ok {
			return nil
		}
		val := r.readBytes(int(size))
		if id == idBlock {
			return d.parseBlock(val, false)
		}
	}
	return nil
}

// parseBlock decodes the common SimpleBlock/Block layout: track-number
// VINT, 16-bit signed relative timestamp, flags byte, payload (spec.md
// §4.2).
func (d *Demuxer) parseBlock(body []byte, isSimple bool) *mediatype.Packet {
	r := newSliceReader(body)
	trackNum, ok := r.readVint()
	if !ok {
		return nil
	}
	if r.remaining() < 3 {
		return nil
	}
	relRaw := r.readBytes(2)
	rel := int16(uint16(relRaw[0])<<8 | uint16(relRaw[1]))
	flags := r.readBytes(1)[0]
	payload := r.readBytes(r.remaining())

	tr, ok := d.trackByNumber[trackNum]
	streamIndex := 0
	if ok {
		streamIndex = tr.streamIndex
	}
	absTicks := int64(d.clusterTS) + int64(rel)
	ptsMs := absTicks * int64(d.timescaleNs) / 1_000_000
	isKeyframe := isSimple && flags&0x80 != 0

	return &mediatype.Packet{
		Payload:     payload,
		StreamIndex: streamIndex,
		Pts:         ptsMs,
		Dts:         ptsMs,
		Duration:    mediatype.NoTimestamp,
		TimeBase:    mediatype.TimeBaseMs,
		IsKeyframe:  isKeyframe,
	}
}

func (d *Demuxer) Seek(io mediatype.IoContext, streamIndex int, timestamp int64, flags demux.SeekFlags) error {
	return mediaerr.Unsupported("matroska seek without Cues is not implemented")
}

func parseDocType(header []byte) string {
	r := newSliceReader(header)
	for !r.empty() {
		id, size, ok := r.readElementHeader()
		if !ok {
			return ""
		}
		val := r.readBytes(int(size))
		if id == idDocType {
			return string(val)
		}
	}
	return ""
}
