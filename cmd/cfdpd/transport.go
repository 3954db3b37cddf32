package main

import (
	"context"
	"fmt"

	"github.com/cfdpgo/entity/internal/logger"
	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
)

// loggingTransport satisfies host.Transport by logging every outbound
// PDU instead of putting it on a wire. CFDP's PDU wire encoding is
// explicitly out of this module's scope (see DESIGN.md); a real
// network-facing transport (UDP/TCP/CCSDS space link) is a seam a
// deployment plugs in by implementing host.Transport and passing it
// to host.ManagerConfig.Transport in place of this one.
type loggingTransport struct{}

func (loggingTransport) Send(ctx context.Context, destination ids.EntityID, p pdu.PDU) error {
	logger.Debug("would transmit PDU (no wire transport configured)",
		"destination", destination.String(),
		"pdu_type", fmt.Sprintf("%T", p),
	)
	return nil
}
