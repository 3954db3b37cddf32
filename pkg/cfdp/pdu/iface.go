package pdu

import "github.com/cfdpgo/entity/pkg/cfdp/ids"

// PDU is implemented by every decoded PDU type, letting handlers queue
// mixed PDU types for transmission without a type switch at every
// call site.
type PDU interface {
	Type() Type
	TransactionID() ids.TransactionID
}

// TransactionID returns the transaction this PDU belongs to.
func (h Header) TransactionID() ids.TransactionID { return h.Transaction }

func (Metadata) Type() Type  { return TypeMetadata }
func (FileData) Type() Type  { return TypeFileData }
func (EOF) Type() Type       { return TypeEOF }
func (ACK) Type() Type       { return TypeACK }
func (Finished) Type() Type  { return TypeFinished }
func (NAK) Type() Type       { return TypeNAK }
func (Prompt) Type() Type    { return TypePrompt }
func (KeepAlive) Type() Type { return TypeKeepAlive }

var (
	_ PDU = Metadata{}
	_ PDU = FileData{}
	_ PDU = EOF{}
	_ PDU = ACK{}
	_ PDU = Finished{}
	_ PDU = NAK{}
	_ PDU = Prompt{}
	_ PDU = KeepAlive{}
)
