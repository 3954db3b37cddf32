package store

import (
	"context"
	"time"

	"github.com/cfdpgo/entity/pkg/cfdp/faults"
	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig"
)

func toModel(e remoteconfig.Entry) *Model {
	return &Model{
		EntityID:                e.RemoteEntity.Value,
		DefaultTransmissionMode: int(e.DefaultTransmissionMode),
		DefaultClosureRequested: e.DefaultClosureRequested,
		DefaultChecksumType:     int(e.DefaultChecksumType),
		ACKTimeoutMS:            int(e.ACKTimeout / time.Millisecond),
		ACKLimit:                e.ACKLimit,
		NAKTimeoutMS:            int(e.NAKTimeout / time.Millisecond),
		NAKLimit:                e.NAKLimit,
		KeepAliveIntervalMS:     int(e.KeepAliveInterval / time.Millisecond),
		CheckLimit:              e.CheckLimit,
		InactivityTimeoutMS:     int(e.InactivityTimeout / time.Millisecond),
		DeferredNAKEnabled:      e.DeferredNAKEnabled,
		ImmediateNAKEnabled:     e.ImmediateNAKEnabled,
		MaxFileSegmentLen:       e.MaxFileSegmentLen,
		MaxPacketLen:            e.MaxPacketLen,
	}
}

func fromModel(m *Model) remoteconfig.Entry {
	entity, _ := ids.NewEntityID(ids.Width8, m.EntityID)
	return remoteconfig.Entry{
		RemoteEntity:            entity,
		DefaultTransmissionMode: pdu.TransmissionMode(m.DefaultTransmissionMode),
		DefaultClosureRequested: m.DefaultClosureRequested,
		DefaultChecksumType:     pdu.ChecksumType(m.DefaultChecksumType),
		ACKTimeout:              time.Duration(m.ACKTimeoutMS) * time.Millisecond,
		ACKLimit:                m.ACKLimit,
		NAKTimeout:              time.Duration(m.NAKTimeoutMS) * time.Millisecond,
		NAKLimit:                m.NAKLimit,
		KeepAliveInterval:       time.Duration(m.KeepAliveIntervalMS) * time.Millisecond,
		CheckLimit:              m.CheckLimit,
		InactivityTimeout:       time.Duration(m.InactivityTimeoutMS) * time.Millisecond,
		DeferredNAKEnabled:      m.DeferredNAKEnabled,
		ImmediateNAKEnabled:     m.ImmediateNAKEnabled,
		MaxFileSegmentLen:       m.MaxFileSegmentLen,
		MaxPacketLen:            m.MaxPacketLen,
		FaultHandlers:           faults.NewHandlerMap(),
	}
}

// Get returns the stored Entry for entityID.
func (s *GORMStore) Get(ctx context.Context, entityID uint64) (remoteconfig.Entry, error) {
	m, err := getByField[Model](s.db, ctx, "entity_id", entityID, ErrNotFound)
	if err != nil {
		return remoteconfig.Entry{}, err
	}
	return fromModel(m), nil
}

// List returns every stored Entry.
func (s *GORMStore) List(ctx context.Context) ([]remoteconfig.Entry, error) {
	models, err := listAll[Model](s.db, ctx)
	if err != nil {
		return nil, err
	}
	out := make([]remoteconfig.Entry, 0, len(models))
	for _, m := range models {
		out = append(out, fromModel(m))
	}
	return out, nil
}

// Put inserts or replaces the stored Entry for entry.RemoteEntity.
func (s *GORMStore) Put(ctx context.Context, entry remoteconfig.Entry) error {
	model := toModel(entry)
	return s.db.WithContext(ctx).Save(model).Error
}

// Delete removes the stored Entry for entityID.
func (s *GORMStore) Delete(ctx context.Context, entityID uint64) error {
	return deleteByField[Model](s.db, ctx, "entity_id", entityID, ErrNotFound)
}

// LoadInto hydrates an in-memory remoteconfig.Table with every
// persisted entry. Core handler code never imports this package or
// GORM directly; only startup wiring (cmd/cfdpd) calls LoadInto once
// and then works exclusively through the Table.
func (s *GORMStore) LoadInto(ctx context.Context, table *remoteconfig.Table) error {
	entries, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		table.Put(e)
	}
	return nil
}
