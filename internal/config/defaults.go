package config

// DefaultAddr is the default listen address for the observer server.
const DefaultAddr = "127.0.0.1:7188"

// DefaultLogLevel is the default logging verbosity.
const DefaultLogLevel = "info"

// DefaultBatteryPollSecs is the default battery polling cadence.
const DefaultBatteryPollSecs = 30

// DefaultAuditMaxRows bounds the session audit log by default.
const DefaultAuditMaxRows = 1000
