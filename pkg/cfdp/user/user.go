// Package user defines the User Indication Interface: the set of
// callbacks a CFDP entity fires as a transaction progresses, so a
// host application can observe transfers without polling handler
// state. A LoggingIndications default implementation is provided for
// entities that have no richer user layer wired in.
package user

import (
	"context"

	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
)

// Indications receives the indications CCSDS 727.0-B-5 defines for
// file delivery transactions. Every method is non-blocking from the
// handler's point of view: implementations must not perform
// unbounded work on the calling goroutine.
type Indications interface {
	// TransactionIndication fires once a transaction is assigned a
	// TransactionID, before any PDU is sent or received.
	TransactionIndication(ctx context.Context, tx ids.TransactionID)

	// EOFSentIndication fires on the source after its EOF PDU is
	// queued for transmission.
	EOFSentIndication(ctx context.Context, tx ids.TransactionID)

	// TransactionFinishedIndication fires when a transaction reaches
	// a terminal state, successfully or not.
	TransactionFinishedIndication(ctx context.Context, tx ids.TransactionID, condition pdu.ConditionCode, delivery pdu.DeliveryCode, fileStatus pdu.FileStatus)

	// MetadataRecvIndication fires on the destination when a
	// Metadata PDU is received.
	MetadataRecvIndication(ctx context.Context, tx ids.TransactionID, sourceFilename, destFilename string, fileSize uint64)

	// FileSegmentRecvIndication fires on the destination for each
	// File Data PDU received.
	FileSegmentRecvIndication(ctx context.Context, tx ids.TransactionID, offset uint64, length int)

	// SuspendedIndication fires when a fault handler disposition of
	// Suspend is applied. CFDP suspend/resume sub-states are not
	// implemented; see DESIGN.md.
	SuspendedIndication(ctx context.Context, tx ids.TransactionID, condition pdu.ConditionCode)

	// ResumedIndication fires if a suspended transaction is resumed.
	ResumedIndication(ctx context.Context, tx ids.TransactionID)

	// ReportIndication fires in response to an explicit status
	// report request.
	ReportIndication(ctx context.Context, tx ids.TransactionID, statusText string)

	// FaultIndication fires when a fault condition is detected,
	// before its handler disposition is applied.
	FaultIndication(ctx context.Context, tx ids.TransactionID, condition pdu.ConditionCode, progress uint64)

	// AbandonedIndication fires when a transaction is abandoned
	// (DispositionAbandon applied, or resource exhaustion).
	AbandonedIndication(ctx context.Context, tx ids.TransactionID, condition pdu.ConditionCode)

	// NewTransactionDetectedIndication fires on the destination when
	// a PDU for an unrecognized transaction arrives and a new
	// transaction is admitted for it.
	NewTransactionDetectedIndication(ctx context.Context, tx ids.TransactionID)
}
