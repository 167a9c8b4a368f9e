package h264

import (
	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// splitAnnexB splits an Annex-B access unit into individual NAL units using
// the teacher's confirmed mediacommon call shape (`var au h264.AnnexB;
// au.Unmarshal(data)`, see DESIGN.md).
func splitAnnexB(data []byte) ([][]byte, error) {
	var au mch264.AnnexB
	if err := au.Unmarshal(data); err != nil {
		return nil, err
	}
	return au, nil
}

// unescapeEBSP removes emulation-prevention-three bytes (0x03 following
// 0x00 0x00 when the next byte is <= 0x03), converting EBSP to RBSP. Hand
// written: no teacher call site grounds a mediacommon export for this (see
// DESIGN.md), and the algorithm is simple enough that a lookalike stdlib
// loop is the right call rather than guessing an unverified API.
func unescapeEBSP(ebsp []byte) []byte {
	out := make([]byte, 0, len(ebsp))
	zeroRun := 0
	for i := 0; i < len(ebsp); i++ {
		b := ebsp[i]
		if zeroRun >= 2 && b == 0x03 && i+1 < len(ebsp) && ebsp[i+1] <= 0x03 {
			zeroRun = 0
			continue
		}
		out = append(out, b)
		if b == 0x00 {
			zeroRun++
		} else {
			zeroRun = 0
		}
	}
	return out
}

// nalType/nalRefIdc extract the header fields of a (still-escaped) NAL unit
// whose first byte is the nal_unit_header.
func nalType(nal []byte) int {
	if len(nal) == 0 {
		return -1
	}
	return int(nal[0] & 0x1F)
}

func nalRefIdc(nal []byte) int {
	if len(nal) == 0 {
		return 0
	}
	return int(nal[0]>>5) & 0x3
}

const (
	nalTypeNonIDR  = 1
	nalTypeIDR     = 5
	nalTypeSEI     = 6
	nalTypeSPS     = 7
	nalTypePPS     = 8
	nalTypeAUD     = 9
	nalTypeEndSeq  = 10
	nalTypeEndStrm = 11
)
