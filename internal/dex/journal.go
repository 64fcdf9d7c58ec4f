package dex

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"clmmCore/internal/model"
	"clmmCore/internal/storage"
)

// DecodeStats counts the outcome of a journal pass.
type DecodeStats struct {
	Total   int
	Decoded int
	Skipped int
	Failed  int
}

// DecodeJournal decodes every record of the journal at path in order.
// Records with an unknown topic0 are skipped; decode failures go to onError
// and do not stop the pass. An error from onEvent does.
func DecodeJournal(path string, decoder Decoder, dctx DecodeContext, onEvent func(*model.TypedEvent) error, onError func(model.DecodeError)) (DecodeStats, error) {
	var stats DecodeStats
	ctx := dctx.Context
	if ctx == nil {
		ctx = context.Background()
		dctx.Context = ctx
	}
	logger := dctx.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	err := storage.ReadLogs(ctx, path, func(record model.LogRecord) error {
		stats.Total++
		if len(record.Topics) == 0 {
			stats.Failed++
			reportDecodeError(onError, record, fmt.Errorf("missing topic0"))
			return nil
		}
		if !decoder.CanDecode(record.Topic0()) {
			stats.Skipped++
			return nil
		}

		event, err := decoder.Decode(record, dctx)
		if err != nil {
			stats.Failed++
			logger.Debug("decode journal record", zap.Uint64("sequence", record.Sequence), zap.Error(err))
			reportDecodeError(onError, record, err)
			return nil
		}
		stats.Decoded++
		return onEvent(event)
	})
	return stats, err
}

// DecodeErrorFromRecord describes a failed record for the error output.
func DecodeErrorFromRecord(record model.LogRecord, err error) model.DecodeError {
	return model.DecodeError{
		Sequence: record.Sequence,
		OpHash:   record.OpHash,
		LogIndex: record.LogIndex,
		Address:  record.Address,
		Topic0:   record.Topic0(),
		Error:    err.Error(),
	}
}

func reportDecodeError(onError func(model.DecodeError), record model.LogRecord, err error) {
	if onError == nil {
		return
	}
	onError(DecodeErrorFromRecord(record, err))
}
