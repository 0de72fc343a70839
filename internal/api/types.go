package api

// ExecuteRequest triggers one command activation.
type ExecuteRequest struct {
	// Command is the full command string to dispatch.
	Command string `json:"command"`
	// Target is the id of the node the command acts on.
	Target string `json:"target"`
	// Source optionally names the activating node so its chains fire.
	Source string `json:"source,omitempty"`
	// Wait blocks the request until the activation (and its chain)
	// finishes, returning the final status.
	Wait bool `json:"wait,omitempty"`
	// TimeoutMs bounds a waiting request. Defaults to 30s.
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

// ExecuteResponse reports the queued or finished activation.
type ExecuteResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RegistryResponse lists registered command prefixes.
type RegistryResponse struct {
	Prefixes []string `json:"prefixes"`
	Count    int      `json:"count"`
}

// StatePair is one recorded (command, target) lifecycle.
type StatePair struct {
	Command   string `json:"command"`
	Target    string `json:"target"`
	Lifecycle string `json:"lifecycle"`
}

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Commands      int    `json:"commands"`
}

// ResetResponse reports what a reset dropped.
type ResetResponse struct {
	Dropped int `json:"dropped"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}
