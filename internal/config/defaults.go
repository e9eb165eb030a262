package config

// Default configuration constants for the relay broker
const (
	DefaultAPIPort       = 3000
	DefaultScanDataDir   = "scan-data"
	DefaultPublicDir     = "public"
	StaleAfterMs         = 600000 // 10 minutes without device ingress
	TimingCleanupDelayMs = 60000  // 1 minute after command completion
	DefaultBatchSize     = 10
	MaxBatchSize         = 20
	MinBatchSize         = 1
	MaxRequestBodyBytes  = 10 << 20 // 10 MiB
	SessionFileVersion   = "1.0.0"
)
