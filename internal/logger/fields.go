package logger

const (
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Set on the gin context by auth.Middleware.
	FieldUsername = "username"

	FieldConnID = "conn_id"
	FieldRoom   = "room"
	FieldEvent  = "event"
)
