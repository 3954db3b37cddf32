package source

import "github.com/cfdpgo/entity/pkg/cfdp/ids"

// Messages-to-user are opaque application data on the wire; this
// entity reserves a one-byte kind tag on messages it generates or
// recognizes itself (originating-transaction-id propagation and proxy
// put responses), without attempting a full proxy operations message
// set. Encoding/decoding the rest of a messages-to-user TLV is host
// transport territory.
const (
	msgKindProxyPutResponse         byte = 0x01
	msgKindOriginatingTransactionID byte = 0x02
)

func isProxyPutResponse(msg []byte) bool {
	return len(msg) > 0 && msg[0] == msgKindProxyPutResponse
}

func hasProxyPutResponse(msgs [][]byte) bool {
	for _, m := range msgs {
		if isProxyPutResponse(m) {
			return true
		}
	}
	return false
}

// encodeOriginatingTransactionID builds the message-to-user this
// entity emits so a proxy chain can trace a transaction back to its
// true originator.
func encodeOriginatingTransactionID(tx ids.TransactionID) []byte {
	out := make([]byte, 0, 1+len(tx.SourceEntity.Bytes())+8)
	out = append(out, msgKindOriginatingTransactionID)
	out = append(out, tx.SourceEntity.Bytes()...)
	for i := 7; i >= 0; i-- {
		out = append(out, byte(tx.SequenceNum>>(8*i)))
	}
	return out
}
