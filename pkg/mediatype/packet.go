package mediatype

// Packet is an immutable demuxed container unit (spec.md §3.1). It is
// created once by a demuxer and never mutated after; Payload may be a slice
// into a larger refcounted buffer so a demuxer can split container chunks
// without copying (spec.md §5 "Memory").
type Packet struct {
	Payload      []byte
	StreamIndex  int
	Pts          int64
	Dts          int64
	Duration     int64
	TimeBase     Rational
	IsKeyframe   bool
	Pos          int64
}

// Empty reports whether this is a zero-length "flush" packet: send_packet
// with an empty payload arms EOS per spec.md §4.5/§6.
func (p *Packet) Empty() bool { return p == nil || len(p.Payload) == 0 }

// HasPts reports whether Pts carries a real timestamp.
func (p *Packet) HasPts() bool { return p.Pts != NoTimestamp }

// HasDts reports whether Dts carries a real timestamp.
func (p *Packet) HasDts() bool { return p.Dts != NoTimestamp }
