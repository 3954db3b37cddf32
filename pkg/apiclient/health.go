package apiclient

// Health is the wire representation of the daemon's liveness response.
type Health struct {
	Service   string `json:"service"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_sec"`
}

// Healthz calls GET /healthz, which requires no authentication.
func (c *Client) Healthz() (*Health, error) {
	return getResource[Health](c, "/healthz")
}
