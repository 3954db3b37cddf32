package handlers

import (
	"net/http"
	"strconv"

	"github.com/cfdpgo/entity/pkg/cfdp/host"
	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
	"github.com/cfdpgo/entity/pkg/cfdp/source"
	"github.com/go-chi/chi/v5"
)

// TransactionHandler serves read and cancel endpoints over in-flight
// transactions tracked by a host.Manager.
type TransactionHandler struct {
	manager *host.Manager
}

// NewTransactionHandler constructs a handler reporting on manager's
// transactions.
func NewTransactionHandler(manager *host.Manager) *TransactionHandler {
	return &TransactionHandler{manager: manager}
}

type statusWire struct {
	SourceEntity  uint64 `json:"source_entity"`
	SequenceNum   uint64 `json:"sequence_num"`
	Role          string `json:"role"`
	State         string `json:"state"`
	Progress      uint64 `json:"progress"`
	FileSize      uint64 `json:"file_size,omitempty"`
	FileSizeKnown bool   `json:"file_size_known"`

	TransmissionMode string `json:"transmission_mode,omitempty"`
	PositiveAckCount int    `json:"positive_ack_counter"`
	NumPacketsReady  int    `json:"num_packets_ready"`

	// Destination-only counters; always zero/false for a source role.
	NakActivityCount  int  `json:"nak_activity_counter,omitempty"`
	CurrentCheckCount int  `json:"current_check_counter,omitempty"`
	ClosureRequested  bool `json:"closure_requested,omitempty"`
}

func statusToWire(s host.StatusSnapshot) statusWire {
	wire := statusWire{
		SourceEntity:     s.TransactionID.SourceEntity.Value,
		SequenceNum:      s.TransactionID.SequenceNum,
		Role:             s.Role,
		State:            s.State,
		Progress:         s.Progress,
		FileSize:         s.FileSize,
		FileSizeKnown:    s.FileSizeKnown,
		TransmissionMode: s.TransmissionMode.String(),
		PositiveAckCount: s.PositiveAckCount,
		NumPacketsReady:  s.NumPacketsReady,
	}
	if s.Role == "destination" {
		wire.NakActivityCount = s.NakActivityCount
		wire.CurrentCheckCount = s.CurrentCheckCount
		wire.ClosureRequested = s.ClosureRequested
	}
	return wire
}

// parseTransactionID reads the {sourceEntity} and {seq} path params.
// ids.TransactionID has no string parser of its own, so transactions
// are addressed over HTTP as two path segments rather than a single
// combined token.
func parseTransactionID(r *http.Request) (ids.TransactionID, error) {
	sourceVal, err := strconv.ParseUint(chi.URLParam(r, "sourceEntity"), 10, 64)
	if err != nil {
		return ids.TransactionID{}, err
	}
	seq, err := strconv.ParseUint(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		return ids.TransactionID{}, err
	}
	entity, err := ids.NewEntityID(ids.Width8, sourceVal)
	if err != nil {
		return ids.TransactionID{}, err
	}
	return ids.TransactionID{SourceEntity: entity, SequenceNum: seq}, nil
}

// putRequestWire is the JSON request body for submitting a Put.request.
type putRequestWire struct {
	DestinationEntity uint64 `json:"destination_entity"`
	SourceFilename    string `json:"source_filename"`
	DestFilename      string `json:"dest_filename"`
}

// List handles GET /v1/transactions.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshots := h.manager.ListStatuses()
	wire := make([]statusWire, 0, len(snapshots))
	for _, s := range snapshots {
		wire = append(wire, statusToWire(s))
	}
	WriteJSONOK(w, wire)
}

// Submit handles POST /v1/transactions, starting a new outgoing
// Put.request transaction.
func (h *TransactionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var body putRequestWire
	if !DecodeJSONBody(w, r, &body) {
		return
	}
	if body.SourceFilename == "" {
		BadRequest(w, "source_filename is required")
		return
	}
	destination, err := ids.NewEntityID(ids.Width8, body.DestinationEntity)
	if err != nil {
		BadRequest(w, "invalid destination_entity: "+err.Error())
		return
	}
	destFilename := body.DestFilename
	if destFilename == "" {
		destFilename = body.SourceFilename
	}
	tid, err := h.manager.Submit(r.Context(), source.PutRequest{
		DestinationID:  destination,
		SourceFilename: body.SourceFilename,
		DestFilename:   destFilename,
	})
	if err != nil {
		InternalServerError(w, "failed to submit transaction: "+err.Error())
		return
	}
	WriteJSONOK(w, statusWire{
		SourceEntity: tid.SourceEntity.Value,
		SequenceNum:  tid.SequenceNum,
		Role:         "source",
		State:        "active",
	})
}

// Get handles GET /v1/transactions/{sourceEntity}/{seq}.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tid, err := parseTransactionID(r)
	if err != nil {
		BadRequest(w, "sourceEntity and seq must be non-negative integers")
		return
	}
	snapshot, ok := h.manager.Status(tid)
	if !ok {
		NotFound(w, "no active transaction with that ID")
		return
	}
	WriteJSONOK(w, statusToWire(snapshot))
}

// Cancel handles POST /v1/transactions/{sourceEntity}/{seq}/cancel.
func (h *TransactionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tid, err := parseTransactionID(r)
	if err != nil {
		BadRequest(w, "sourceEntity and seq must be non-negative integers")
		return
	}
	if _, ok := h.manager.Status(tid); !ok {
		NotFound(w, "no active transaction with that ID")
		return
	}
	if err := h.manager.Cancel(r.Context(), tid, pdu.ConditionCancelRequestReceived); err != nil {
		InternalServerError(w, "failed to cancel transaction: "+err.Error())
		return
	}
	WriteNoContent(w)
}
