package user

import (
	"context"

	"github.com/cfdpgo/entity/internal/logger"
	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
)

// LoggingIndications implements Indications by writing one structured
// log line per indication via internal/logger. It is the default used
// by cmd/cfdpd when no richer user-facing consumer is configured, and
// by tests that want to assert on indication sequences by capturing
// log output.
type LoggingIndications struct{}

// NewLoggingIndications returns a LoggingIndications.
func NewLoggingIndications() *LoggingIndications {
	return &LoggingIndications{}
}

func (LoggingIndications) TransactionIndication(ctx context.Context, tx ids.TransactionID) {
	logger.InfoCtx(ctx, "transaction started", logger.KeyTransactionID, tx.String())
}

func (LoggingIndications) EOFSentIndication(ctx context.Context, tx ids.TransactionID) {
	logger.InfoCtx(ctx, "eof sent", logger.KeyTransactionID, tx.String())
}

func (LoggingIndications) TransactionFinishedIndication(ctx context.Context, tx ids.TransactionID, condition pdu.ConditionCode, delivery pdu.DeliveryCode, fileStatus pdu.FileStatus) {
	logger.InfoCtx(ctx, "transaction finished",
		logger.KeyTransactionID, tx.String(),
		logger.KeyConditionCode, int(condition),
		"delivery_code", int(delivery),
		"file_status", int(fileStatus),
	)
}

func (LoggingIndications) MetadataRecvIndication(ctx context.Context, tx ids.TransactionID, sourceFilename, destFilename string, fileSize uint64) {
	logger.InfoCtx(ctx, "metadata received",
		logger.KeyTransactionID, tx.String(),
		"source_filename", sourceFilename,
		"dest_filename", destFilename,
		"file_size", fileSize,
	)
}

func (LoggingIndications) FileSegmentRecvIndication(ctx context.Context, tx ids.TransactionID, offset uint64, length int) {
	logger.DebugCtx(ctx, "file segment received",
		logger.KeyTransactionID, tx.String(),
		"offset", offset,
		"length", length,
	)
}

func (LoggingIndications) SuspendedIndication(ctx context.Context, tx ids.TransactionID, condition pdu.ConditionCode) {
	logger.WarnCtx(ctx, "transaction suspended",
		logger.KeyTransactionID, tx.String(),
		logger.KeyConditionCode, int(condition),
	)
}

func (LoggingIndications) ResumedIndication(ctx context.Context, tx ids.TransactionID) {
	logger.InfoCtx(ctx, "transaction resumed", logger.KeyTransactionID, tx.String())
}

func (LoggingIndications) ReportIndication(ctx context.Context, tx ids.TransactionID, statusText string) {
	logger.InfoCtx(ctx, "transaction report",
		logger.KeyTransactionID, tx.String(),
		"status_text", statusText,
	)
}

func (LoggingIndications) FaultIndication(ctx context.Context, tx ids.TransactionID, condition pdu.ConditionCode, progress uint64) {
	logger.WarnCtx(ctx, "transaction fault",
		logger.KeyTransactionID, tx.String(),
		logger.KeyConditionCode, int(condition),
		"progress", progress,
	)
}

func (LoggingIndications) AbandonedIndication(ctx context.Context, tx ids.TransactionID, condition pdu.ConditionCode) {
	logger.ErrorCtx(ctx, "transaction abandoned",
		logger.KeyTransactionID, tx.String(),
		logger.KeyConditionCode, int(condition),
	)
}

func (LoggingIndications) NewTransactionDetectedIndication(ctx context.Context, tx ids.TransactionID) {
	logger.InfoCtx(ctx, "new transaction detected", logger.KeyTransactionID, tx.String())
}

var _ Indications = LoggingIndications{}
