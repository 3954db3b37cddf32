package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig/store"
)

// wireValidator enforces entryWire's struct tags on every PUT body
// before it is translated into a remoteconfig.Entry, so a caller gets
// a single RFC 7807 response naming every violated field rather than
// the first one the translation step happens to trip over.
var wireValidator = validator.New(validator.WithRequiredStructEnabled())

// RemoteConfigHandler serves CRUD endpoints over the Remote Entity
// Configuration Table, backed by a durable store and mirrored into
// the live in-memory Table consulted by the host.Manager.
type RemoteConfigHandler struct {
	db    *store.GORMStore
	table *remoteconfig.Table
}

// NewRemoteConfigHandler constructs a handler writing through db and
// updating table so changes take effect without a restart.
func NewRemoteConfigHandler(db *store.GORMStore, table *remoteconfig.Table) *RemoteConfigHandler {
	return &RemoteConfigHandler{db: db, table: table}
}

// entryWire is the JSON wire representation of a remoteconfig.Entry;
// durations are expressed in milliseconds rather than time.Duration's
// nanosecond-integer encoding, for a readable request/response body.
type entryWire struct {
	RemoteEntity            uint64 `json:"remote_entity"`
	DefaultTransmissionMode string `json:"default_transmission_mode" validate:"omitempty,oneof=acknowledged unacknowledged"`
	DefaultClosureRequested bool   `json:"default_closure_requested"`
	DefaultChecksumType     int    `json:"default_checksum_type" validate:"gte=0,lte=15"`
	ACKTimeoutMS            int64  `json:"ack_timeout_ms" validate:"gt=0"`
	ACKLimit                int    `json:"ack_limit" validate:"gte=1"`
	NAKTimeoutMS            int64  `json:"nak_timeout_ms" validate:"gt=0"`
	NAKLimit                int    `json:"nak_limit" validate:"gte=1"`
	KeepAliveIntervalMS     int64  `json:"keep_alive_interval_ms" validate:"gt=0"`
	CheckLimit              int    `json:"check_limit" validate:"gte=1"`
	InactivityTimeoutMS     int64  `json:"inactivity_timeout_ms" validate:"gt=0"`
	DeferredNAKEnabled      bool   `json:"deferred_nak_enabled"`
	ImmediateNAKEnabled     bool   `json:"immediate_nak_enabled"`
	MaxFileSegmentLen       int    `json:"max_file_segment_len" validate:"gte=0"`
	MaxPacketLen            int    `json:"max_packet_len" validate:"gte=0"`
}

func entryToWire(e remoteconfig.Entry) entryWire {
	mode := "acknowledged"
	if e.DefaultTransmissionMode == pdu.ModeUnacknowledged {
		mode = "unacknowledged"
	}
	return entryWire{
		RemoteEntity:            e.RemoteEntity.Value,
		DefaultTransmissionMode: mode,
		DefaultClosureRequested: e.DefaultClosureRequested,
		DefaultChecksumType:     int(e.DefaultChecksumType),
		ACKTimeoutMS:            e.ACKTimeout.Milliseconds(),
		ACKLimit:                e.ACKLimit,
		NAKTimeoutMS:            e.NAKTimeout.Milliseconds(),
		NAKLimit:                e.NAKLimit,
		KeepAliveIntervalMS:     e.KeepAliveInterval.Milliseconds(),
		CheckLimit:              e.CheckLimit,
		InactivityTimeoutMS:     e.InactivityTimeout.Milliseconds(),
		DeferredNAKEnabled:      e.DeferredNAKEnabled,
		ImmediateNAKEnabled:     e.ImmediateNAKEnabled,
		MaxFileSegmentLen:       e.MaxFileSegmentLen,
		MaxPacketLen:            e.MaxPacketLen,
	}
}

func wireToEntry(w entryWire) (remoteconfig.Entry, error) {
	entity, err := ids.NewEntityID(ids.Width8, w.RemoteEntity)
	if err != nil {
		return remoteconfig.Entry{}, err
	}
	e := remoteconfig.DefaultEntry(entity)
	if w.DefaultTransmissionMode == "unacknowledged" {
		e.DefaultTransmissionMode = pdu.ModeUnacknowledged
	} else {
		e.DefaultTransmissionMode = pdu.ModeAcknowledged
	}
	e.DefaultClosureRequested = w.DefaultClosureRequested
	e.DefaultChecksumType = pdu.ChecksumType(w.DefaultChecksumType)
	e.ACKTimeout = time.Duration(w.ACKTimeoutMS) * time.Millisecond
	e.ACKLimit = w.ACKLimit
	e.NAKTimeout = time.Duration(w.NAKTimeoutMS) * time.Millisecond
	e.NAKLimit = w.NAKLimit
	e.KeepAliveInterval = time.Duration(w.KeepAliveIntervalMS) * time.Millisecond
	e.CheckLimit = w.CheckLimit
	e.InactivityTimeout = time.Duration(w.InactivityTimeoutMS) * time.Millisecond
	e.DeferredNAKEnabled = w.DeferredNAKEnabled
	e.ImmediateNAKEnabled = w.ImmediateNAKEnabled
	if w.MaxFileSegmentLen > 0 {
		e.MaxFileSegmentLen = w.MaxFileSegmentLen
	}
	if w.MaxPacketLen > 0 {
		e.MaxPacketLen = w.MaxPacketLen
	}
	return e, nil
}

func parseEntityID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "entityID"), 10, 64)
}

// List handles GET /v1/remote-configs.
func (h *RemoteConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.db.List(r.Context())
	if err != nil {
		InternalServerError(w, "failed to list remote configurations")
		return
	}
	wire := make([]entryWire, 0, len(entries))
	for _, e := range entries {
		wire = append(wire, entryToWire(e))
	}
	WriteJSONOK(w, wire)
}

// Get handles GET /v1/remote-configs/{entityID}.
func (h *RemoteConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	entityID, err := parseEntityID(r)
	if err != nil {
		BadRequest(w, "entityID must be a non-negative integer")
		return
	}
	entry, err := h.db.Get(r.Context(), entityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(w, "no configuration for that remote entity")
			return
		}
		InternalServerError(w, "failed to read remote configuration")
		return
	}
	WriteJSONOK(w, entryToWire(entry))
}

// Put handles PUT /v1/remote-configs/{entityID}.
func (h *RemoteConfigHandler) Put(w http.ResponseWriter, r *http.Request) {
	entityID, err := parseEntityID(r)
	if err != nil {
		BadRequest(w, "entityID must be a non-negative integer")
		return
	}
	var wire entryWire
	if !DecodeJSONBody(w, r, &wire) {
		return
	}
	wire.RemoteEntity = entityID
	if err := wireValidator.Struct(wire); err != nil {
		BadRequest(w, "invalid remote configuration: "+err.Error())
		return
	}
	entry, err := wireToEntry(wire)
	if err != nil {
		BadRequest(w, "invalid remote configuration: "+err.Error())
		return
	}
	if err := h.db.Put(r.Context(), entry); err != nil {
		InternalServerError(w, "failed to store remote configuration")
		return
	}
	h.table.Put(entry)
	WriteJSONOK(w, entryToWire(entry))
}

// Delete handles DELETE /v1/remote-configs/{entityID}.
func (h *RemoteConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	entityID, err := parseEntityID(r)
	if err != nil {
		BadRequest(w, "entityID must be a non-negative integer")
		return
	}
	if err := h.db.Delete(r.Context(), entityID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(w, "no configuration for that remote entity")
			return
		}
		InternalServerError(w, "failed to delete remote configuration")
		return
	}
	entity, _ := ids.NewEntityID(ids.Width8, entityID)
	h.table.Remove(entity)
	WriteNoContent(w)
}
