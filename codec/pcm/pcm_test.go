package pcm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
)

func TestDecoderS16LEPassthrough(t *testing.T) {
	d := &Decoder{id: mediatype.CodecPCMS16LE}
	err := d.Open(mediatype.CodecParameters{
		MediaType: mediatype.MediaAudio,
		Audio: mediatype.AudioCodecParams{
			SampleRate:    48000,
			ChannelLayout: mediatype.ChannelFrontLeft | mediatype.ChannelFrontRight,
		},
	})
	require.NoError(t, err)

	payload := make([]byte, 8) // 2 samples x 2 channels x 2 bytes
	binary.LittleEndian.PutUint16(payload[0:], 1000)
	binary.LittleEndian.PutUint16(payload[2:], 2000)
	binary.LittleEndian.PutUint16(payload[4:], 3000)
	binary.LittleEndian.PutUint16(payload[6:], 4000)

	require.NoError(t, d.SendPacket(&mediatype.Packet{Payload: payload, Pts: 0}))
	frame, err := d.ReceiveFrame()
	require.NoError(t, err)
	require.Equal(t, 2, frame.NbSamples)
	require.Equal(t, uint16(1000), binary.LittleEndian.Uint16(frame.Data[0][0:]))
	require.Equal(t, uint16(4000), binary.LittleEndian.Uint16(frame.Data[0][6:]))

	_, err = d.ReceiveFrame()
	require.ErrorIs(t, err, mediaerr.ErrNeedMoreData)
}

func TestDecoderFlushArmsEOF(t *testing.T) {
	d := &Decoder{id: mediatype.CodecPCMU8}
	require.NoError(t, d.Open(mediatype.CodecParameters{
		Audio: mediatype.AudioCodecParams{SampleRate: 8000, ChannelLayout: mediatype.ChannelFrontCenter},
	}))
	require.NoError(t, d.SendPacket(&mediatype.Packet{Payload: nil}))
	_, err := d.ReceiveFrame()
	require.ErrorIs(t, err, mediaerr.ErrEof)
}

func TestMulawRoundTripSign(t *testing.T) {
	// 0xFF and 0x7F both decode to 0 (per the standard's inversion
	// convention); 0x80 and 0x00 are the largest positive and negative codes,
	// on opposite sides of zero.
	pos := mulawToS16(0x80)
	neg := mulawToS16(0x00)
	require.NotEqual(t, pos > 0, neg > 0)
}

func TestAlawBasic(t *testing.T) {
	v1 := alawToS16(0xD5)
	v2 := alawToS16(0x55)
	require.NotEqual(t, v1, v2)
}
