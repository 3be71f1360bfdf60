package replay

import "fmt"

// SeqRange is an inclusive range of instruction sequence numbers.
type SeqRange struct {
	From uint64
	To   uint64
}

// SplitRange cuts [from, to] into consecutive batches of at most batchSize.
func SplitRange(from, to, batchSize uint64) ([]SeqRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to seq %d is before from seq %d", to, from)
	}

	var ranges []SeqRange
	for start := from; ; start += batchSize {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, SeqRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
	}
}
