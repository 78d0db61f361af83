package relfreq

import (
	"bufio"

	"github.com/bwmills/relfreq/internal/pkg/relfs"
	humanize "github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// inputSplit is a contiguous byte range of one input file, assigned to a
// single mapper. Both offsets are inclusive: StartOffset 10 and EndOffset
// 14 describe a 5 byte chunk. Splits are byte-aligned, not line-aligned;
// runMapperSplit resolves lines that straddle a boundary.
type inputSplit struct {
	Filename    string
	StartOffset int64
	EndOffset   int64
}

// Size returns the number of bytes the split spans.
func (i inputSplit) Size() int64 {
	return i.EndOffset - i.StartOffset + 1
}

func min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// splitInputFile slices a file into splits of at most maxSplitSize bytes.
// The final split carries whatever remains.
func splitInputFile(file relfs.FileInfo, maxSplitSize int64) []inputSplit {
	splits := make([]inputSplit, 0)

	for startOffset := int64(0); startOffset < file.Size; startOffset += maxSplitSize {
		splits = append(splits, inputSplit{
			Filename:    file.Name,
			StartOffset: startOffset,
			EndOffset:   min(startOffset+maxSplitSize-1, file.Size-1),
		})
	}

	return splits
}

type inputBin struct {
	splits []inputSplit
	size   int64
}

// packInputSplits groups splits into bins whose combined size stays at or
// under maxBinSize, one bin per mapper invocation. Packing is next-fit: a
// split that does not fit in the current bin starts a new one.
func packInputSplits(splits []inputSplit, maxBinSize int64) [][]inputSplit {
	if len(splits) == 0 {
		return [][]inputSplit{}
	}

	bins := []*inputBin{{splits: make([]inputSplit, 0)}}

	for _, split := range splits {
		currBin := bins[len(bins)-1]

		if currBin.size+split.Size() <= maxBinSize {
			currBin.splits = append(currBin.splits, split)
			currBin.size += split.Size()
		} else {
			bins = append(bins, &inputBin{
				splits: []inputSplit{split},
				size:   split.Size(),
			})
		}
	}

	binnedSplits := make([][]inputSplit, len(bins))
	totalSize := int64(0)
	for i, bin := range bins {
		totalSize += bin.size
		binnedSplits[i] = bin.splits
	}
	log.Debugf("Average input bin size: %s", humanize.Bytes(uint64(totalSize/int64(len(bins)))))
	return binnedSplits
}

// countingSplitFunc wraps a bufio.SplitFunc, incrementing *bytesRead by
// the number of bytes the inner SplitFunc advances on each scan. The
// mapper uses the count to notice when it has read past its split.
func countingSplitFunc(split bufio.SplitFunc, bytesRead *int64) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		adv, tok, err := split(data, atEOF)
		(*bytesRead) += int64(adv)
		return adv, tok, err
	}
}
