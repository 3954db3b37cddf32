package apiclient

import "fmt"

// RemoteConfigEntry is the wire representation of a Remote Entity
// Configuration Table entry, mirroring handlers.entryWire. Durations
// are expressed in milliseconds rather than Go's time.Duration.
type RemoteConfigEntry struct {
	RemoteEntity            uint64 `json:"remote_entity"`
	DefaultTransmissionMode string `json:"default_transmission_mode"`
	DefaultClosureRequested bool   `json:"default_closure_requested"`
	DefaultChecksumType     int    `json:"default_checksum_type"`
	ACKTimeoutMS            int64  `json:"ack_timeout_ms"`
	ACKLimit                int    `json:"ack_limit"`
	NAKTimeoutMS            int64  `json:"nak_timeout_ms"`
	NAKLimit                int    `json:"nak_limit"`
	KeepAliveIntervalMS     int64  `json:"keep_alive_interval_ms"`
	CheckLimit              int    `json:"check_limit"`
	InactivityTimeoutMS     int64  `json:"inactivity_timeout_ms"`
	DeferredNAKEnabled      bool   `json:"deferred_nak_enabled"`
	ImmediateNAKEnabled     bool   `json:"immediate_nak_enabled"`
	MaxFileSegmentLen       int    `json:"max_file_segment_len"`
	MaxPacketLen            int    `json:"max_packet_len"`
}

// ListRemoteConfigs returns every entry in the Remote Entity Configuration Table.
func (c *Client) ListRemoteConfigs() ([]RemoteConfigEntry, error) {
	return listResources[RemoteConfigEntry](c, "/v1/remote-configs")
}

// GetRemoteConfig returns the configuration for a single remote entity.
func (c *Client) GetRemoteConfig(entityID uint64) (*RemoteConfigEntry, error) {
	return getResource[RemoteConfigEntry](c, resourcePath("/v1/remote-configs/%d", entityID))
}

// PutRemoteConfig creates or replaces the configuration for a remote entity.
func (c *Client) PutRemoteConfig(entry RemoteConfigEntry) (*RemoteConfigEntry, error) {
	return updateResource[RemoteConfigEntry](c, resourcePath("/v1/remote-configs/%d", entry.RemoteEntity), entry)
}

// DeleteRemoteConfig removes a remote entity's configuration.
func (c *Client) DeleteRemoteConfig(entityID uint64) error {
	return deleteResource(c, resourcePath("/v1/remote-configs/%d", entityID))
}

// RemoteConfigSchema returns the JSON schema for a RemoteConfigEntry, as
// served by the schema handler at GET /v1/schema/remote-config.
func (c *Client) RemoteConfigSchema() (map[string]any, error) {
	var schema map[string]any
	if err := c.get("/v1/schema/remote-config", &schema); err != nil {
		return nil, fmt.Errorf("fetch remote-config schema: %w", err)
	}
	return schema, nil
}
