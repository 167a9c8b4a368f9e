// Package avi implements the AVI demuxer (spec.md §4.4): RIFF walk,
// hdrl/strl/movi, idx1 index, fccHandler/biCompression codec resolution.
package avi

import (
	"encoding/binary"
	"log/slog"

	"github.com/jmylchreest/mediacore/demux"
	"github.com/jmylchreest/mediacore/internal/logging"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
)

func init() {
	demux.Register(prober{})
}

type prober struct{}

func (prober) FormatID() mediatype.FormatID { return mediatype.FormatAVI }

func (prober) NewDemuxer(logger *slog.Logger) demux.Demuxer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Demuxer{logger: logging.WithComponent(logger, "demux.avi")}
}

func (prober) Probe(buf []byte, ext string) int {
	if len(buf) >= 12 && string(buf[0:4]) == "RIFF" && string(buf[8:12]) == "AVI " {
		return demux.ScoreMax
	}
	return 0
}

// fourCCToVideoCodec maps fccHandler FourCCs to internal codec ids
// (spec.md §4.4 "Video codec resolution").
var fourCCToVideoCodec = map[string]mediatype.CodecID{
	"H264": mediatype.CodecH264,
	"AVC1": mediatype.CodecH264,
	"HEVC": mediatype.CodecH265,
	"H265": mediatype.CodecH265,
	"XVID": mediatype.CodecMPEG4Part2,
	"DX50": mediatype.CodecMPEG4Part2,
	"DIVX": mediatype.CodecMPEG4Part2,
	"MJPG": mediatype.CodecMJPEG,
	"VP80": mediatype.CodecVP8,
	"VP90": mediatype.CodecVP9,
}

// waveFormatToAudioCodec maps WAVEFORMATEX wFormatTag to a codec id; PCM
// sub-codec (0x0001) is resolved from bits-per-sample separately.
func waveFormatToAudioCodec(tag uint16, bitsPerSample uint16) mediatype.CodecID {
	switch tag {
	case 0x0001:
		switch bitsPerSample {
		case 8:
			return mediatype.CodecPCMU8
		case 16:
			return mediatype.CodecPCMS16LE
		case 24:
			return mediatype.CodecPCMS24LE
		case 32:
			return mediatype.CodecPCMS32LE
		}
		return mediatype.CodecPCMS16LE
	case 0x0003:
		return mediatype.CodecPCMF32LE
	case 0x0050, 0x0055:
		return mediatype.CodecMP3
	case 0x0160:
		return mediatype.CodecAAC
	default:
		return mediatype.CodecUnknown
	}
}

type indexEntry struct {
	chunkID string
	flags   uint32
	offset  uint32
	size    uint32
}

// Demuxer implements demux.Demuxer for AVI.
type Demuxer struct {
	logger      *slog.Logger
	streams     []mediatype.Stream
	streamByTag map[string]int // "00", "01", ... -> stream index
	moviStart   int64
	moviEnd     int64
	index       []indexEntry
	indexPos    int
	frameCount  map[int]int64
}

func (d *Demuxer) Open(io mediatype.IoContext) error {
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	d.streamByTag = map[string]int{}
	d.frameCount = map[int]int64{}

	tag, err := io.ReadTag()
	if err != nil {
		return err
	}
	if string(tag[:]) != "RIFF" {
		return mediaerr.InvalidData("riff_tag", string(tag[:]), "expected RIFF")
	}
	if _, err := io.ReadU32LE(); err != nil { // riff size, unused
		return err
	}
	form, err := io.ReadTag()
	if err != nil {
		return err
	}
	if string(form[:]) != "AVI " {
		return mediaerr.InvalidData("form_type", string(form[:]), "expected AVI ")
	}

	var curStreamIndex = -1
	for {
		chunkID, size, isList, listType, err := readChunkHeader(io)
		if err != nil {
			if mediaerr.IsKind(err, mediaerr.KindEof) {
				break
			}
			return err
		}
		switch {
		case isList && listType == "hdrl":
			if err := d.parseHdrl(io, size-4, &curStreamIndex); err != nil {
				return err
			}
		case isList && listType == "movi":
			d.moviStart = io.Position()
			d.moviEnd = d.moviStart + int64(size-4)
			if err := io.Skip(int64(size - 4)); err != nil {
				return err
			}
		case chunkID == "idx1":
			if err := d.parseIdx1(io, size); err != nil {
				return err
			}
		default:
			if err := io.Skip(int64(size)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Demuxer) parseHdrl(io mediatype.IoContext, size uint32, curStreamIndex *int) error {
	end := io.Position() + int64(size)
	for io.Position() < end {
		chunkID, csize, isList, listType, err := readChunkHeader(io)
		if err != nil {
			return err
		}
		switch {
		case chunkID == "avih":
			if err := io.Skip(int64(csize)); err != nil {
				return err
			}
		case isList && listType == "strl":
			if err := d.parseStrl(io, csize-4); err != nil {
				return err
			}
		default:
			if err := io.Skip(int64(csize)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Demuxer) parseStrl(io mediatype.IoContext, size uint32) error {
	end := io.Position() + int64(size)
	var fccType, fccHandler string
	var strf []byte
	for io.Position() < end {
		chunkID, csize, _, _, err := readChunkHeader(io)
		if err != nil {
			return err
		}
		body, err := io.ReadBytes(int(csize))
		if err != nil {
			return err
		}
		if csize%2 == 1 {
			_ = io.Skip(1)
		}
		switch chunkID {
		case "strh":
			if len(body) >= 8 {
				fccType = string(body[0:4])
				fccHandler = string(body[4:8])
			}
		case "strf":
			strf = body
		}
	}
	idx := len(d.streams)
	tag := streamTag(idx)
	switch fccType {
	case "vids":
		codecID := mediatype.CodecUnknown
		if c, ok := fourCCToVideoCodec[fccHandler]; ok {
			codecID = c
		} else if len(strf) >= 20 {
			biCompression := string(strf[16:20])
			if c, ok := fourCCToVideoCodec[biCompression]; ok {
				codecID = c
			}
		}
		w, h := 0, 0
		if len(strf) >= 12 {
			w = int(int32(binary.LittleEndian.Uint32(strf[4:8])))
			h = int(int32(binary.LittleEndian.Uint32(strf[8:12])))
			if h < 0 {
				h = -h
			}
		}
		d.streams = append(d.streams, mediatype.Stream{
			Index:     idx,
			MediaType: mediatype.MediaVideo,
			CodecID:   codecID,
			TimeBase:  mediatype.Rational{Num: 1, Den: 1},
			ExtraData: strf,
			Video:     mediatype.VideoStreamParams{Width: w, Height: h},
		})
	case "auds":
		var formatTag, bitsPerSample uint16
		var sampleRate uint32
		if len(strf) >= 16 {
			formatTag = binary.LittleEndian.Uint16(strf[0:2])
			sampleRate = binary.LittleEndian.Uint32(strf[4:8])
		}
		if len(strf) >= 16 {
			bitsPerSample = binary.LittleEndian.Uint16(strf[14:16])
		}
		codecID := waveFormatToAudioCodec(formatTag, bitsPerSample)
		d.streams = append(d.streams, mediatype.Stream{
			Index:     idx,
			MediaType: mediatype.MediaAudio,
			CodecID:   codecID,
			TimeBase:  mediatype.Rational{Num: 1, Den: 1},
			ExtraData: strf,
			Audio:     mediatype.AudioStreamParams{SampleRate: int(sampleRate)},
		})
	default:
		d.streams = append(d.streams, mediatype.Stream{Index: idx, MediaType: mediatype.MediaData})
	}
	d.streamByTag[tag] = idx
	return nil
}

func (d *Demuxer) parseIdx1(io mediatype.IoContext, size uint32) error {
	n := int(size) / 16
	for i := 0; i < n; i++ {
		tagBytes, err := io.ReadTag()
		if err != nil {
			return err
		}
		flags, err := io.ReadU32LE()
		if err != nil {
			return err
		}
		offset, err := io.ReadU32LE()
		if err != nil {
			return err
		}
		esize, err := io.ReadU32LE()
		if err != nil {
			return err
		}
		d.index = append(d.index, indexEntry{chunkID: string(tagBytes[:]), flags: flags, offset: offset, size: esize})
	}
	return nil
}

func streamTag(idx int) string {
	digits := "0123456789"
	return string([]byte{digits[idx/10], digits[idx%10]})
}

func (d *Demuxer) Streams() []mediatype.Stream { return d.streams }
func (d *Demuxer) Duration() (float64, bool)   { return 0, false }
func (d *Demuxer) Metadata() map[string]string { return nil }

// ReadPacket iterates idx1 entries sequentially when present (spec.md §4.4
// "when idx1 exists, iterate entries sequentially"); otherwise it is not
// implemented (linear movi scan without an index requires random seeking
// this simplified IoContext adapter does not expose per-chunk).
func (d *Demuxer) ReadPacket(io mediatype.IoContext) (*mediatype.Packet, error) {
	for {
		if d.indexPos >= len(d.index) {
			return nil, mediaerr.ErrEof
		}
		entry := d.index[d.indexPos]
		d.indexPos++
		streamTagStr, kind := splitChunkID(entry.chunkID)
		streamIdx, ok := d.streamByTag[streamTagStr]
		if !ok {
			continue
		}
		if _, err := io.Seek(mediatype.SeekStart, d.moviStart+int64(entry.offset)+8); err != nil {
			return nil, err
		}
		payload, err := io.ReadBytes(int(entry.size))
		if err != nil {
			return nil, err
		}
		pts := d.frameCount[streamIdx]
		d.frameCount[streamIdx]++
		isKeyframe := entry.flags&0x10 != 0 || kind == "wb"
		return &mediatype.Packet{
			Payload:     payload,
			StreamIndex: streamIdx,
			Pts:         pts,
			Dts:         pts,
			Duration:    1,
			TimeBase:    mediatype.Rational{Num: 1, Den: 1},
			IsKeyframe:  isKeyframe,
		}, nil
	}
}

// splitChunkID splits "NNxx" into the 2-digit stream tag and the 2-letter
// kind (dc/db/wb), per spec.md §4.4.
func splitChunkID(id string) (tag string, kind string) {
	if len(id) != 4 {
		return "", ""
	}
	return id[0:2], id[2:4]
}

func (d *Demuxer) Seek(io mediatype.IoContext, streamIndex int, timestamp int64, flags demux.SeekFlags) error {
	// spec.md §4.4 "Seek with idx1: walk entries counting frames of the
	// target stream until position == requested timestamp."
	count := int64(0)
	for i, entry := range d.index {
		tag, _ := splitChunkID(entry.chunkID)
		idx, ok := d.streamByTag[tag]
		if !ok || idx != streamIndex {
			continue
		}
		if count == timestamp {
			d.indexPos = i
			return nil
		}
		count++
	}
	return mediaerr.InvalidData("timestamp", timestamp, "seek target not found in idx1")
}

func readChunkHeader(io mediatype.IoContext) (id string, size uint32, isList bool, listType string, err error) {
	tag, rerr := io.ReadTag()
	if rerr != nil {
		return "", 0, false, "", rerr
	}
	sz, rerr := io.ReadU32LE()
	if rerr != nil {
		return "", 0, false, "", rerr
	}
	if string(tag[:]) == "LIST" {
		sub, rerr := io.ReadTag()
		if rerr != nil {
			return "", 0, false, "", rerr
		}
		return "LIST", sz, true, string(sub[:]), nil
	}
	return string(tag[:]), sz, false, "", nil
}
