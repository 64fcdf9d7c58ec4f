package replay

import "fmt"

// SplitBatches splits ops into consecutive batches of at most batchSize.
// A checkpoint is written after each batch.
func SplitBatches(ops []Op, batchSize int) ([][]Op, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}

	batches := make([][]Op, 0, (len(ops)+batchSize-1)/batchSize)
	for start := 0; start < len(ops); start += batchSize {
		end := start + batchSize
		if end > len(ops) {
			end = len(ops)
		}
		batches = append(batches, ops[start:end])
	}
	return batches, nil
}
