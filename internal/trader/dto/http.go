package dto

// ErrorResponse is the generic error payload for the ops API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse aggregates service and broker health for the ops API.
type HealthResponse struct {
	Status string            `json:"status"`
	Broker BrokerHealth      `json:"broker"`
	Checks map[string]string `json:"checks,omitempty"`
}

// BrokerHealth mirrors the broker health-check result.
type BrokerHealth struct {
	Status     string `json:"status"`
	ReasonCode string `json:"reason_code,omitempty"`
}
