// Package classify routes a decoded inbound PDU to the handler
// responsible for it: the Source Handler for PDUs travelling back
// toward the file sender, the Destination Handler for PDUs travelling
// toward the file receiver, per CCSDS 727.0-B-5 §4.6. It is a small
// pure-function package with no state of its own; the host transport
// calls it once per received PDU to decide which handler's
// StateMachine to drive.
package classify

import (
	"errors"
	"fmt"

	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
)

// ErrImpossibleDirection is returned when a PDU type is paired with a
// Direction it can never legitimately carry (e.g. a Finished PDU,
// which only ever flows from destination to source, tagged as
// travelling toward the receiver).
var ErrImpossibleDirection = errors.New("classify: pdu type cannot travel in the given direction")

// Destination names which handler a PDU belongs to.
type Destination int

const (
	DestinationSourceHandler Destination = iota
	DestinationDestHandler
)

func (d Destination) String() string {
	if d == DestinationDestHandler {
		return "DEST_HANDLER"
	}
	return "SOURCE_HANDLER"
}

// sourceOnlyTypes are PDUs a destination handler produces and a
// source handler consumes; they can only travel toward the sender.
var sourceOnlyTypes = map[pdu.Type]bool{
	pdu.TypeNAK:       true,
	pdu.TypeFinished:  true,
	pdu.TypeKeepAlive: true,
}

// destOnlyTypes are PDUs a source handler produces and a destination
// handler consumes; they can only travel toward the receiver.
var destOnlyTypes = map[pdu.Type]bool{
	pdu.TypeMetadata: true,
	pdu.TypeFileData: true,
	pdu.TypeEOF:      true,
	pdu.TypePrompt:   true,
}

// Classify reports which handler p belongs to, given the direction
// the transport observed it travelling in. ACK is the one PDU type
// genuinely ambiguous by type alone (a source acknowledges Finished, a
// destination acknowledges EOF); direction alone decides it, so ACK
// is absent from both direction-restricted sets above and simply
// follows direction like everything else.
func Classify(p pdu.PDU, direction pdu.Direction) (Destination, error) {
	if direction == pdu.DirectionToReceiver && sourceOnlyTypes[p.Type()] {
		return 0, fmt.Errorf("%w: %s toward receiver", ErrImpossibleDirection, p.Type())
	}
	if direction == pdu.DirectionToSender && destOnlyTypes[p.Type()] {
		return 0, fmt.Errorf("%w: %s toward sender", ErrImpossibleDirection, p.Type())
	}

	if direction == pdu.DirectionToReceiver {
		return DestinationDestHandler, nil
	}
	return DestinationSourceHandler, nil
}
