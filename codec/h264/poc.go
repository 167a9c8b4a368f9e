package h264

// pocState tracks the previous-picture state needed by all three POC
// computation types (spec.md §4.8.3).
type pocState struct {
	prevRefPocMsb        int
	prevRefPocLsb        int
	prevFrameNumOffsetT1 int
	prevFrameNum         int
	frameNumOffsetT2     int
}

func (p *pocState) reset() { *p = pocState{} }

// computePOCType0 implements spec.md §4.8.3 Type 0.
func (p *pocState) computePOCType0(sps *SPS, pocLsb, deltaPicOrderCntBottom int, isIDR, isRef bool) int {
	maxPocLsb := 1 << uint(sps.Log2MaxPocLsb)
	if isIDR {
		p.prevRefPocMsb = 0
		p.prevRefPocLsb = 0
	}
	pocMsb := p.prevRefPocMsb
	switch {
	case pocLsb < p.prevRefPocLsb && (p.prevRefPocLsb-pocLsb) >= maxPocLsb/2:
		pocMsb = p.prevRefPocMsb + maxPocLsb
	case pocLsb > p.prevRefPocLsb && (pocLsb-p.prevRefPocLsb) > maxPocLsb/2:
		pocMsb = p.prevRefPocMsb - maxPocLsb
	}
	topPoc := pocMsb + pocLsb
	poc := topPoc + deltaPicOrderCntBottom
	if isRef {
		p.prevRefPocMsb = pocMsb
		p.prevRefPocLsb = pocLsb
	}
	return poc
}

// computePOCType1 implements spec.md §4.8.3 Type 1.
func (p *pocState) computePOCType1(sps *SPS, frameNum int, deltaPocs []int, isIDR, isRef bool) int {
	maxFrameNum := 1 << uint(sps.Log2MaxFrameNum)
	var frameNumOffset int
	switch {
	case isIDR:
		frameNumOffset = 0
	case p.prevFrameNum > frameNum:
		frameNumOffset = p.prevFrameNumOffsetT1 + maxFrameNum
	default:
		frameNumOffset = p.prevFrameNumOffsetT1
	}

	absFrameNum := 0
	numRefFramesInCycle := len(sps.OffsetForRefFrame)
	if numRefFramesInCycle != 0 {
		absFrameNum = frameNumOffset + frameNum
	}
	if !isRef && absFrameNum > 0 {
		absFrameNum--
	}

	expectedDeltaPerCycle := 0
	for _, o := range sps.OffsetForRefFrame {
		expectedDeltaPerCycle += o
	}

	var expectedPOC int
	if absFrameNum > 0 && numRefFramesInCycle > 0 {
		pocCycleCnt := (absFrameNum - 1) / numRefFramesInCycle
		frameNumInCycle := (absFrameNum - 1) % numRefFramesInCycle
		expectedPOC = pocCycleCnt * expectedDeltaPerCycle
		for i := 0; i <= frameNumInCycle; i++ {
			expectedPOC += sps.OffsetForRefFrame[i]
		}
	}
	if !isRef {
		expectedPOC += sps.OffsetForNonRefPic
	}

	delta0 := 0
	if len(deltaPocs) > 0 {
		delta0 = deltaPocs[0]
	}
	delta1 := 0
	if len(deltaPocs) > 1 {
		delta1 = deltaPocs[1]
	}
	top := expectedPOC + delta0
	bottom := top + sps.OffsetForTopToBottom + delta1

	p.prevFrameNumOffsetT1 = frameNumOffset
	p.prevFrameNum = frameNum
	if top < bottom {
		return top
	}
	return bottom
}

// computePOCType2 implements spec.md §4.8.3 Type 2.
func (p *pocState) computePOCType2(sps *SPS, frameNum int, isIDR bool, nalRefIdc int) int {
	maxFrameNum := 1 << uint(sps.Log2MaxFrameNum)
	var frameNumOffset int
	switch {
	case isIDR:
		frameNumOffset = 0
	case p.prevFrameNum > frameNum:
		frameNumOffset = p.prevFrameNumOffsetT1 + maxFrameNum
	default:
		frameNumOffset = p.prevFrameNumOffsetT1
	}
	p.prevFrameNumOffsetT1 = frameNumOffset
	p.prevFrameNum = frameNum
	tempPOC := 2 * (frameNumOffset + frameNum)
	if nalRefIdc == 0 {
		tempPOC--
	}
	return tempPOC
}
