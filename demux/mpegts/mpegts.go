// Package mpegts implements the MPEG-TS demuxer (spec.md §4.3): 188-byte
// packet sync, PAT/PMT parsing, and PES reassembly into Packets.
package mpegts

import (
	"log/slog"

	"github.com/jmylchreest/mediacore/demux"
	"github.com/jmylchreest/mediacore/internal/logging"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
)

const (
	packetSize         = 188
	syncByte           = 0x47
	defaultProbeMaxPkt = 2000
)

func init() {
	demux.Register(prober{})
}

type prober struct{}

func (prober) FormatID() mediatype.FormatID { return mediatype.FormatMPEGTS }

func (prober) NewDemuxer(logger *slog.Logger) demux.Demuxer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Demuxer{logger: logging.WithComponent(logger, "demux.mpegts"), probeMaxPkt: defaultProbeMaxPkt}
}

// SetProbeMaxPackets overrides the PAT/PMT probe pass length (internal/config's
// demuxer.probe_max_packets) in place of defaultProbeMaxPkt. Call before Open.
func (d *Demuxer) SetProbeMaxPackets(max int) {
	if max > 0 {
		d.probeMaxPkt = max
	}
}

func (prober) Probe(buf []byte, ext string) int {
	if len(buf) < packetSize*2 {
		if len(buf) > 0 && buf[0] == syncByte {
			return 40
		}
		return 0
	}
	// Spec.md §4.3: sync byte followed by a second sync byte exactly 188
	// bytes later.
	matches := 0
	total := 0
	for off := 0; off+packetSize*2 <= len(buf) && total < 8; off += packetSize {
		total++
		if buf[off] == syncByte && buf[off+packetSize] == syncByte {
			matches++
		}
	}
	if total == 0 {
		return 0
	}
	score := demux.ScoreMax * matches / total
	if ext == "ts" || ext == "m2ts" || ext == "mts" {
		if score < 60 {
			score = 60
		}
	}
	return score
}

// codecIDForStreamType maps stream_type (PMT) to an internal codec id
// (spec.md §4.3). Unknown types map to CodecUnknown and are skipped.
func codecIDForStreamType(t byte) mediatype.CodecID {
	switch t {
	case 0x1B:
		return mediatype.CodecH264
	case 0x24:
		return mediatype.CodecH265
	case 0x0F:
		return mediatype.CodecAAC
	case 0x81:
		return mediatype.CodecAC3
	case 0x06:
		return mediatype.CodecAC3 // PES-private commonly carries AC-3 in DVB streams
	case 0x03, 0x04:
		return mediatype.CodecMP3
	default:
		return mediatype.CodecUnknown
	}
}

// pesBuffer accumulates one elementary stream's PES payload between PUSI
// boundaries (spec.md §4.3 "PES reassembly").
type pesBuffer struct {
	data         []byte
	pts          int64
	dts          int64
	randomAccess bool
	streamIndex  int
	started      bool
}

// Demuxer implements demux.Demuxer for MPEG-TS.
type Demuxer struct {
	logger      *slog.Logger
	probeMaxPkt int
	streams     []mediatype.Stream
	pidToStream map[int]int
	pmtPID      int
	pesBuffers  map[int]*pesBuffer
	pending     []*mediatype.Packet
	continuity  map[int]int
	sawPAT      bool
	sawPMT      bool
}

func (d *Demuxer) Open(io mediatype.IoContext) error {
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	if d.probeMaxPkt == 0 {
		d.probeMaxPkt = defaultProbeMaxPkt
	}
	d.pidToStream = map[int]int{}
	d.pesBuffers = map[int]*pesBuffer{}
	d.continuity = map[int]int{}
	d.pmtPID = -1

	// Probe pass: surface PAT/PMT within the first probeMaxPkt packets, then
	// rewind if seekable (spec.md §4.3 "Opening performs a probe pass").
	startPos := io.Position()
	for n := 0; n < d.probeMaxPkt; n++ {
		pkt, err := d.readRawPacket(io)
		if err != nil {
			if mediaerr.IsKind(err, mediaerr.KindEof) {
				break
			}
			return err
		}
		d.handlePSI(pkt)
		if d.sawPAT && d.sawPMT {
			break
		}
	}
	if io.IsSeekable() {
		if _, err := io.Seek(mediatype.SeekStart, startPos); err != nil {
			return err
		}
	}
	return nil
}

func (d *Demuxer) Streams() []mediatype.Stream { return d.streams }

func (d *Demuxer) Duration() (float64, bool) { return 0, false }

func (d *Demuxer) Metadata() map[string]string { return nil }

// tsPacket is one synchronised 188-byte unit, header-parsed.
type tsPacket struct {
	pid        int
	pusi       bool
	afc        int
	continuity int
	randomAccess bool
	payload    []byte
}

// readRawPacket resyncs to the next 0x47 byte and parses one TS packet
// (spec.md §4.3 "Synchronisation").
func (d *Demuxer) readRawPacket(io mediatype.IoContext) (*tsPacket, error) {
	buf, err := d.syncAndRead(io)
	if err != nil {
		return nil, err
	}
	b0 := buf[1]
	b1 := buf[2]
	b2 := buf[3]
	pid := (int(b0&0x1F) << 8) | int(b1)
	pusi := b0&0x40 != 0
	afc := int(b2>>4) & 0x3
	cc := int(b2) & 0xF

	payload := buf[4:]
	randomAccess := false
	if afc == 2 || afc == 3 {
		if len(payload) == 0 {
			return nil, mediaerr.InvalidData("adaptation_field_length", len(payload), "truncated adaptation field")
		}
		afLen := int(payload[0])
		if afLen > 0 && len(payload) > 1 {
			flags := payload[1]
			randomAccess = flags&0x40 != 0
		}
		if 1+afLen > len(payload) {
			afLen = len(payload) - 1
		}
		payload = payload[1+afLen:]
	}
	if afc == 2 {
		payload = nil
	}
	return &tsPacket{pid: pid, pusi: pusi, afc: afc, continuity: cc, randomAccess: randomAccess, payload: payload}, nil
}

func (d *Demuxer) syncAndRead(io mediatype.IoContext) ([]byte, error) {
	b, err := io.ReadU8()
	if err != nil {
		return nil, err
	}
	for b != syncByte {
		b, err = io.ReadU8()
		if err != nil {
			return nil, err
		}
	}
	rest, err := io.ReadBytes(packetSize - 1)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, packetSize)
	buf[0] = syncByte
	copy(buf[1:], rest)
	return buf, nil
}

func (d *Demuxer) handlePSI(pkt *tsPacket) {
	switch {
	case pkt.pid == 0x0000:
		d.parsePAT(pkt)
	case pkt.pid == d.pmtPID && d.pmtPID >= 0:
		d.parsePMT(pkt)
	}
}

func (d *Demuxer) parsePAT(pkt *tsPacket) {
	if len(pkt.payload) < 1 {
		return
	}
	p := pkt.payload
	pointer := int(p[0])
	p = p[1+pointer:]
	if len(p) < 8 {
		return
	}
	sectionLength := int(p[1]&0x0F)<<8 | int(p[2])
	body := p[8:]
	if sectionLength > len(p)-3 {
		sectionLength = len(p) - 3
	}
	programsEnd := sectionLength - 9 // minus the 5 header bytes after section_length and the 4-byte CRC
	if programsEnd > len(body) {
		programsEnd = len(body)
	}
	for i := 0; i+4 <= programsEnd; i += 4 {
		programNumber := int(body[i])<<8 | int(body[i+1])
		pid := int(body[i+2]&0x1F)<<8 | int(body[i+3])
		if programNumber != 0 {
			d.pmtPID = pid
			d.sawPAT = true
			return
		}
	}
}

func (d *Demuxer) parsePMT(pkt *tsPacket) {
	if len(pkt.payload) < 1 {
		return
	}
	p := pkt.payload
	pointer := int(p[0])
	p = p[1+pointer:]
	if len(p) < 12 {
		return
	}
	programInfoLength := int(p[10]&0x0F)<<8 | int(p[11])
	body := p[12+programInfoLength:]
	for len(body) >= 5 {
		streamType := body[0]
		esPID := int(body[1]&0x1F)<<8 | int(body[2])
		esInfoLength := int(body[3]&0x0F)<<8 | int(body[4])
		if 5+esInfoLength > len(body) {
			break
		}
		codecID := codecIDForStreamType(streamType)
		if codecID != mediatype.CodecUnknown {
			if _, exists := d.pidToStream[esPID]; !exists {
				idx := len(d.streams)
				mt := mediatype.MediaVideo
				if codecID == mediatype.CodecAAC || codecID == mediatype.CodecMP3 || codecID == mediatype.CodecAC3 {
					mt = mediatype.MediaAudio
				}
				d.streams = append(d.streams, mediatype.Stream{
					Index:     idx,
					MediaType: mt,
					CodecID:   codecID,
					TimeBase:  mediatype.TimeBase90kHz,
				})
				d.pidToStream[esPID] = idx
			}
		}
		body = body[5+esInfoLength:]
	}
	d.sawPMT = true
}

// ReadPacket drains any completed PES buffer (from the probe pass or a
// previous call) before pulling more TS packets (spec.md §4.3 "PES
// reassembly").
func (d *Demuxer) ReadPacket(io mediatype.IoContext) (*mediatype.Packet, error) {
	if len(d.pending) > 0 {
		pkt := d.pending[0]
		d.pending = d.pending[1:]
		return pkt, nil
	}
	for {
		raw, err := d.readRawPacket(io)
		if err != nil {
			if mediaerr.IsKind(err, mediaerr.KindEof) {
				// Flush any buffers still open on EOF.
				for pid, buf := range d.pesBuffers {
					if buf.started && len(buf.data) > 0 {
						pkt := d.flushPES(buf)
						delete(d.pesBuffers, pid)
						if pkt != nil {
							return pkt, nil
						}
					}
				}
				return nil, mediaerr.ErrEof
			}
			return nil, err
		}
		d.handlePSI(raw)
		streamIdx, ok := d.pidToStream[raw.pid]
		if !ok {
			continue
		}
		buf := d.pesBuffers[raw.pid]
		if raw.pusi {
			var flushed *mediatype.Packet
			if buf != nil && buf.started && len(buf.data) > 0 {
				flushed = d.flushPES(buf)
			}
			buf = &pesBuffer{streamIndex: streamIdx, started: true, randomAccess: raw.randomAccess}
			d.pesBuffers[raw.pid] = buf
			parsePESHeader(buf, raw.payload)
			if flushed != nil {
				return flushed, nil
			}
			continue
		}
		if buf == nil || !buf.started {
			continue
		}
		buf.data = append(buf.data, raw.payload...)
	}
}

// parsePESHeader parses the PES start code prefix and, when present, the
// 33-bit PTS/DTS encoding (spec.md §4.3).
func parsePESHeader(buf *pesBuffer, payload []byte) {
	buf.pts = mediatype.NoTimestamp
	buf.dts = mediatype.NoTimestamp
	if len(payload) < 6 || payload[0] != 0x00 || payload[1] != 0x00 || payload[2] != 0x01 {
		buf.data = append(buf.data, payload...)
		return
	}
	if len(payload) < 9 {
		buf.data = append(buf.data, payload[6:]...)
		return
	}
	flags := payload[7]
	headerLen := int(payload[8])
	rest := payload[9:]
	if len(rest) < headerLen {
		return
	}
	tsFieldBytes := rest[:headerLen]
	body := rest[headerLen:]
	offset := 0
	if flags&0x80 != 0 && len(tsFieldBytes) >= 5 {
		buf.pts = decodeTimestamp(tsFieldBytes[0:5])
		offset += 5
	}
	if flags&0xC0 == 0xC0 && len(tsFieldBytes) >= offset+5 {
		buf.dts = decodeTimestamp(tsFieldBytes[offset : offset+5])
	} else {
		buf.dts = buf.pts
	}
	buf.data = append(buf.data, body...)
}

// decodeTimestamp decodes the 5-byte 33-bit PTS/DTS fixed encoding.
func decodeTimestamp(b []byte) int64 {
	v := int64(b[0]&0x0E) << 29
	v |= int64(b[1]) << 22
	v |= int64(b[2]&0xFE) << 14
	v |= int64(b[3]) << 7
	v |= int64(b[4]&0xFE) >> 1
	return v
}

func (d *Demuxer) flushPES(buf *pesBuffer) *mediatype.Packet {
	if len(buf.data) == 0 {
		return nil
	}
	d.logger.Debug("pes flush", "stream_index", buf.streamIndex, "size", len(buf.data), "pts", buf.pts)
	return &mediatype.Packet{
		Payload:     buf.data,
		StreamIndex: buf.streamIndex,
		Pts:         buf.pts,
		Dts:         buf.dts,
		Duration:    mediatype.NoTimestamp,
		TimeBase:    mediatype.TimeBase90kHz,
		IsKeyframe:  buf.randomAccess,
	}
}

func (d *Demuxer) Seek(io mediatype.IoContext, streamIndex int, timestamp int64, flags demux.SeekFlags) error {
	return mediaerr.Unsupported("mpegts seek requires an index not built during linear demux")
}
