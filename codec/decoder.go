// Package codec defines the decoder capability set and the codec_id →
// factory registry (spec.md §4 "Registries & glue", §6 "Codec factory").
package codec

import (
	"log/slog"

	"github.com/jmylchreest/mediacore/internal/logging"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
	"github.com/jmylchreest/mediacore/pkg/metrics"
)

// Decoder is the capability set every codec implements (spec.md §6
// "Decoder instance contract"): open, send_packet, receive_frame, flush.
type Decoder interface {
	// Open initialises the decoder from stream-level parameters. Open may
	// be called at most once per instance.
	Open(params mediatype.CodecParameters) error

	// SendPacket feeds one packet into the decoder's internal state
	// machine. An empty packet arms end-of-stream: subsequent
	// ReceiveFrame calls drain any buffered frames, then return Eof.
	SendPacket(pkt *mediatype.Packet) error

	// ReceiveFrame pulls one decoded frame, or returns mediaerr.ErrNeedMoreData
	// if no frame is ready yet, or mediaerr.ErrEof after flush drains the
	// last buffered frame.
	ReceiveFrame() (*mediatype.Frame, error)

	// Flush drops all buffered state (reorder/overlap buffers, reference
	// pictures) but keeps the decoder's configuration, ready for a fresh
	// stream of packets without a new Open call.
	Flush()

	// CodecID reports which codec this instance decodes.
	CodecID() mediatype.CodecID
}

// Factory constructs a fresh, unopened Decoder instance. Factories may
// optionally accept a metrics.Sink for non-fatal counters (spec.md §4.8.8);
// a nil sink is replaced by metrics.NoopSink{}. The logger is the
// WithLogger-style collaborator each decoder logs NAL/element-level Debug
// and concealment-path Warn events through; a nil logger is replaced by
// logging.Discard().
type Factory func(sink metrics.Sink, logger *slog.Logger) Decoder

var registry = map[mediatype.CodecID]Factory{}

// Register installs a decoder factory for codec id. Called from each
// codec subpackage's init().
func Register(id mediatype.CodecID, f Factory) {
	registry[id] = f
}

// CreateDecoder looks up and instantiates a decoder for codec id (spec.md
// §6 "Codec factory"). sink may be nil, in which case metrics are discarded.
// logger may be nil, in which case logging is discarded.
func CreateDecoder(id mediatype.CodecID, sink metrics.Sink, logger *slog.Logger) (Decoder, error) {
	f, ok := registry[id]
	if !ok {
		return nil, mediaerr.Unsupported("no decoder registered for codec id %s", id)
	}
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return f(sink, logger), nil
}

// Supported reports whether a decoder factory is registered for id.
func Supported(id mediatype.CodecID) bool {
	_, ok := registry[id]
	return ok
}
