package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for CFDP transaction and PDU processing, following
// OpenTelemetry semantic conventions where applicable and a "cfdp."
// prefix otherwise.
const (
	AttrEntityID         = "cfdp.entity_id"
	AttrRemoteEntityID   = "cfdp.remote_entity_id"
	AttrTransactionSeq   = "cfdp.transaction.sequence_number"
	AttrTransactionID    = "cfdp.transaction.id"
	AttrDirection        = "cfdp.direction"
	AttrPduType          = "cfdp.pdu.type"
	AttrTransmissionMode = "cfdp.transmission_mode"
	AttrConditionCode    = "cfdp.condition_code"
	AttrDeliveryCode     = "cfdp.delivery_code"
	AttrFileStatus       = "cfdp.file_status"
	AttrChecksumType     = "cfdp.checksum_type"
	AttrOffset           = "cfdp.offset"
	AttrSegmentLen       = "cfdp.segment_length"
	AttrFileSize         = "cfdp.file_size"
	AttrSourceFilename   = "cfdp.source_filename"
	AttrDestFilename     = "cfdp.dest_filename"

	// Filestore attributes (Virtual Filestore backend operations).
	AttrFilestorePath    = "filestore.path"
	AttrFilestoreBackend = "filestore.backend"
	AttrBucket           = "storage.bucket"
	AttrStorageKey       = "storage.key"
)

// Span names for CFDP operations.
const (
	SpanSourceStateMachine = "source.state_machine"
	SpanDestStateMachine   = "dest.state_machine"
	SpanFilestoreCreate    = "filestore.create"
	SpanFilestoreWrite     = "filestore.write"
	SpanFilestoreOpen      = "filestore.open"
	SpanFilestoreDelete    = "filestore.delete"
	SpanChecksumCompute    = "checksum.compute"
)

// EntityID returns an attribute for a local or remote CFDP entity ID.
func EntityID(id string) attribute.KeyValue {
	return attribute.String(AttrEntityID, id)
}

// RemoteEntityID returns an attribute for the remote entity ID of a
// transaction.
func RemoteEntityID(id string) attribute.KeyValue {
	return attribute.String(AttrRemoteEntityID, id)
}

// TransactionID returns an attribute for a transaction's string form
// (source entity + sequence number).
func TransactionID(id string) attribute.KeyValue {
	return attribute.String(AttrTransactionID, id)
}

// PduType returns an attribute naming a PDU's type (Metadata, EOF, ACK, ...).
func PduType(t string) attribute.KeyValue {
	return attribute.String(AttrPduType, t)
}

// TransmissionMode returns an attribute for "ACKNOWLEDGED" or
// "UNACKNOWLEDGED".
func TransmissionMode(mode string) attribute.KeyValue {
	return attribute.String(AttrTransmissionMode, mode)
}

// ConditionCode returns an attribute for a CFDP condition code.
func ConditionCode(code string) attribute.KeyValue {
	return attribute.String(AttrConditionCode, code)
}

// DeliveryCode returns an attribute for a CFDP delivery code.
func DeliveryCode(code string) attribute.KeyValue {
	return attribute.String(AttrDeliveryCode, code)
}

// ChecksumType returns an attribute naming the checksum algorithm in use.
func ChecksumType(kind string) attribute.KeyValue {
	return attribute.String(AttrChecksumType, kind)
}

// Offset returns an attribute for a file or segment byte offset.
func Offset(offset uint64) attribute.KeyValue {
	return attribute.Int64(AttrOffset, int64(offset))
}

// FileSize returns an attribute for a transaction's file size.
func FileSize(size uint64) attribute.KeyValue {
	return attribute.Int64(AttrFileSize, int64(size))
}

// FilestorePath returns an attribute for a path passed to the virtual
// filestore.
func FilestorePath(path string) attribute.KeyValue {
	return attribute.String(AttrFilestorePath, path)
}

// FilestoreBackend returns an attribute naming which Filestore
// implementation (local, s3, badger, ...) served a call.
func FilestoreBackend(name string) attribute.KeyValue {
	return attribute.String(AttrFilestoreBackend, name)
}

// Bucket returns an attribute for an S3 bucket name.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for an S3 object key.
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrStorageKey, key)
}

// StartTransactionSpan starts a span for one StateMachine call against
// a transaction, tagging it with the transaction ID and PDU type being
// processed.
func StartTransactionSpan(ctx context.Context, spanName, transactionID, pduType string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		TransactionID(transactionID),
		PduType(pduType),
	}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartFilestoreSpan starts a span for a Virtual Filestore backend call.
func StartFilestoreSpan(ctx context.Context, spanName, backend, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		FilestoreBackend(backend),
		FilestorePath(path),
	}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}
