// Package pdu defines the decoded, in-memory representation of CFDP
// protocol data units. It carries no wire codec: serializing to and
// from the CCSDS 727.0-B-5 byte layout is host/transport concern and
// lives outside this module. Handlers in pkg/cfdp/source and
// pkg/cfdp/dest consume and produce these types directly.
package pdu

import "github.com/cfdpgo/entity/pkg/cfdp/ids"

// Direction distinguishes PDUs flowing from the file sender
// (toward the receiver) from those flowing the other way.
type Direction int

const (
	DirectionToReceiver Direction = iota
	DirectionToSender
)

// Type enumerates the PDU types a CFDP entity exchanges.
type Type int

const (
	TypeMetadata Type = iota
	TypeFileData
	TypeEOF
	TypeACK
	TypeFinished
	TypeNAK
	TypePrompt
	TypeKeepAlive
)

func (t Type) String() string {
	switch t {
	case TypeMetadata:
		return "Metadata"
	case TypeFileData:
		return "FileData"
	case TypeEOF:
		return "EOF"
	case TypeACK:
		return "ACK"
	case TypeFinished:
		return "Finished"
	case TypeNAK:
		return "NAK"
	case TypePrompt:
		return "Prompt"
	case TypeKeepAlive:
		return "KeepAlive"
	default:
		return "Unknown"
	}
}

// ConditionCode is the CFDP condition code carried on EOF, Finished and
// fault-related indications.
type ConditionCode int

const (
	ConditionNoError ConditionCode = iota
	ConditionPositiveACKLimitReached
	ConditionKeepAliveLimitReached
	ConditionInvalidTransmissionMode
	ConditionFilestoreRejection
	ConditionFileChecksumFailure
	ConditionFileSizeError
	ConditionNakLimitReached
	ConditionInactivityDetected
	ConditionInvalidFileStructure
	ConditionCheckLimitReached
	ConditionUnsupportedChecksumType
	ConditionSuspendRequestReceived
	ConditionCancelRequestReceived
	ConditionUnknown ConditionCode = 15
)

var conditionCodeNames = map[ConditionCode]string{
	ConditionNoError:                  "no_error",
	ConditionPositiveACKLimitReached:  "positive_ack_limit_reached",
	ConditionKeepAliveLimitReached:    "keep_alive_limit_reached",
	ConditionInvalidTransmissionMode:  "invalid_transmission_mode",
	ConditionFilestoreRejection:       "filestore_rejection",
	ConditionFileChecksumFailure:      "file_checksum_failure",
	ConditionFileSizeError:            "file_size_error",
	ConditionNakLimitReached:          "nak_limit_reached",
	ConditionInactivityDetected:       "inactivity_detected",
	ConditionInvalidFileStructure:     "invalid_file_structure",
	ConditionCheckLimitReached:        "check_limit_reached",
	ConditionUnsupportedChecksumType:  "unsupported_checksum_type",
	ConditionSuspendRequestReceived:   "suspend_request_received",
	ConditionCancelRequestReceived:    "cancel_request_received",
	ConditionUnknown:                  "unknown",
}

func (c ConditionCode) String() string {
	if name, ok := conditionCodeNames[c]; ok {
		return name
	}
	return "unknown"
}

// DeliveryCode reports whether the destination believes it has the
// complete file (COMPLETE) or not (INCOMPLETE).
type DeliveryCode int

const (
	DeliveryComplete DeliveryCode = iota
	DeliveryIncomplete
)

// FileStatus reports what the destination filestore did with the
// delivered data.
type FileStatus int

const (
	FileStatusUnreported FileStatus = iota
	FileStatusSuccessful
	FileStatusRejected
	FileStatusRetained
	FileStatusDiscarded
)

// ChecksumType selects the checksum algorithm used for whole-file
// integrity verification, negotiated in the Metadata PDU.
type ChecksumType int

const (
	ChecksumModular ChecksumType = iota
	ChecksumCRC32
	ChecksumCRC32C
	ChecksumNull ChecksumType = 15
)

// TransmissionMode selects CFDP Class 1 (Unacknowledged) or
// Class 2 (Acknowledged) procedures for a transaction.
type TransmissionMode int

const (
	ModeAcknowledged TransmissionMode = iota
	ModeUnacknowledged
)

func (m TransmissionMode) String() string {
	if m == ModeUnacknowledged {
		return "unacknowledged"
	}
	return "acknowledged"
}

// TLVType enumerates the option TLVs a Metadata PDU may carry.
type TLVType int

const (
	TLVFilestoreRequest TLVType = iota
	TLVFilestoreResponse
	TLVMessageToUser
	TLVFaultHandlerOverride
	TLVFlowLabel
	TLVEntityID
)

// TLV is a decoded type-length-value option.
type TLV struct {
	Type  TLVType
	Value []byte
}

// Header carries the fields common to every PDU of a transaction.
type Header struct {
	Transaction ids.TransactionID
	Destination ids.EntityID
	Mode        TransmissionMode
	LargeFile   bool
}

// Metadata is the first PDU of a transaction, carrying file attributes
// and transfer options.
type Metadata struct {
	Header
	ClosureRequested bool
	Checksum         ChecksumType
	FileSize         uint64
	SourceFilename   string
	DestFilename     string
	Options          []TLV
}

// FileData carries one segment of file content.
type FileData struct {
	Header
	Offset uint64
	Data   []byte
}

// EOF signals the source has sent (or given up sending) all file data.
type EOF struct {
	Header
	Condition    ConditionCode
	FileChecksum uint32
	FileSize     uint64
	FaultEntity  *ids.EntityID // set only when Condition != ConditionNoError
}

// ACK acknowledges receipt of an EOF or Finished PDU (Class 2 only).
type ACK struct {
	Header
	AcknowledgedType Type
	AcknowledgedCode ConditionCode
	TransactionState TransactionStatus
}

// TransactionStatus is carried in ACK PDUs to report the acker's
// belief about transaction progress.
type TransactionStatus int

const (
	TransactionStatusUndefined TransactionStatus = iota
	TransactionStatusActive
	TransactionStatusTerminated
	TransactionStatusUnrecognized
)

// SegmentRequest is one (start, end) gap reported in a NAK PDU, using
// half-open [Start, End) byte offset ranges.
type SegmentRequest struct {
	Start uint64
	End   uint64
}

// NAK requests retransmission of missing metadata and/or file data
// segments.
type NAK struct {
	Header
	ScopeStart uint64
	ScopeEnd   uint64
	Segments   []SegmentRequest
}

// Finished reports the destination's final disposition of the
// transaction.
type Finished struct {
	Header
	Condition          ConditionCode
	DeliveryCode       DeliveryCode
	FileStatus         FileStatus
	FilestoreResponses []TLV
}

// Prompt asks the destination to send an immediate NAK or keep-alive.
type Prompt struct {
	Header
	RequestsKeepAlive bool
}

// KeepAlive reports the destination's received file progress during
// long transfers.
type KeepAlive struct {
	Header
	ProgressOffset uint64
}
