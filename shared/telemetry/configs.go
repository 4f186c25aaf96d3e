package telemetry

// Predefined service configurations
var (
	// OrchestratorConfig is the telemetry configuration for the saga orchestrator
	OrchestratorConfig = Config{
		ServiceName:    "orchestrator-service",
		ServiceVersion: "1.0.0",
	}

	// ParticipantConfig is the base telemetry configuration for participant services;
	// the role is appended at startup (payment-service, inventory-service, delivery-service)
	ParticipantConfig = Config{
		ServiceName:    "participant-service",
		ServiceVersion: "1.0.0",
	}
)

// NewConfigForService creates a telemetry config for a custom service
func NewConfigForService(serviceName, version, otlpEndpoint string) Config {
	return Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		OTLPEndpoint:   otlpEndpoint,
	}
}

// WithOTLPEndpoint sets the OTLP endpoint for a config
func (c Config) WithOTLPEndpoint(endpoint string) Config {
	c.OTLPEndpoint = endpoint
	return c
}

// WithServiceName sets the service name for a config
func (c Config) WithServiceName(name string) Config {
	c.ServiceName = name
	return c
}
