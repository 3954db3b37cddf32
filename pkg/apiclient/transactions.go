package apiclient

// TransactionStatus is the wire representation of a transaction's status,
// mirroring handlers.statusWire.
type TransactionStatus struct {
	SourceEntity  uint64 `json:"source_entity"`
	SequenceNum   uint64 `json:"sequence_num"`
	Role          string `json:"role"`
	State         string `json:"state"`
	Progress      uint64 `json:"progress"`
	FileSize      uint64 `json:"file_size,omitempty"`
	FileSizeKnown bool   `json:"file_size_known"`
}

// PutRequest is the request body for submitting a Put.request.
type PutRequest struct {
	DestinationEntity uint64 `json:"destination_entity"`
	SourceFilename    string `json:"source_filename"`
	DestFilename      string `json:"dest_filename,omitempty"`
}

// ListTransactions returns a status snapshot for every transaction
// currently tracked by the daemon.
func (c *Client) ListTransactions() ([]TransactionStatus, error) {
	return listResources[TransactionStatus](c, "/v1/transactions")
}

// SubmitTransaction submits a Put.request, starting a new outgoing transfer.
func (c *Client) SubmitTransaction(req PutRequest) (*TransactionStatus, error) {
	var result TransactionStatus
	if err := c.post("/v1/transactions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTransaction returns the status of a single in-flight transaction.
func (c *Client) GetTransaction(sourceEntity, seq uint64) (*TransactionStatus, error) {
	return getResource[TransactionStatus](c, resourcePath("/v1/transactions/%d/%d", sourceEntity, seq))
}

// CancelTransaction requests cancellation of an in-flight transaction.
func (c *Client) CancelTransaction(sourceEntity, seq uint64) error {
	return c.post(resourcePath("/v1/transactions/%d/%d/cancel", sourceEntity, seq), nil, nil)
}
