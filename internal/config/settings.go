package config

import "time"

// LLMSettings configures the external model provider used by the offline
// metadata/instruction pipeline. The provider itself is a contract only
// (see internal/modelclient) — no concrete vendor SDK is wired in here.
type LLMSettings struct {
	Provider   string
	APIKey     string // intentionally blank by default; never hardcode a key
	BaseURL    string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// OrchestratorSettings configures the offline pipeline (C8).
type OrchestratorSettings struct {
	MaxConcurrentJobs   int
	StageTimeout        time.Duration
	MinConfidenceProc   float64 // at or below this: warn instead of proceed
	MinConfidenceManual float64 // below this: flag for manual review
}

// RealtimeSettings configures the realtime pipeline (C9/C10).
type RealtimeSettings struct {
	HeartbeatInterval       time.Duration
	HeartbeatTimeout        time.Duration
	SessionTimeout          time.Duration
	CleanupInterval         time.Duration
	MaxReconnectAttempts    int
	InitialReconnectDelay   time.Duration
	MaxReconnectDelay       time.Duration
	ReconnectBackoffFactor  float64
	FrameBufferCapacity     int
}

// Settings is the fully-populated application configuration, loaded once
// at process startup.
type Settings struct {
	LLM          LLMSettings
	Orchestrator OrchestratorSettings
	Realtime     RealtimeSettings
}

// LoadSettings reads Settings from the process environment, applying the
// same defaults the original service shipped with.
func LoadSettings() Settings {
	return Settings{
		LLM: LLMSettings{
			Provider:   GetEnv("LLM_PROVIDER", "contract"),
			APIKey:     GetEnv("LLM_API_KEY", ""),
			BaseURL:    GetEnv("LLM_BASE_URL", ""),
			Model:      GetEnv("LLM_MODEL", ""),
			MaxRetries: GetEnvInt("LLM_MAX_RETRIES", 3),
			Timeout:    time.Duration(GetEnvInt("LLM_TIMEOUT_S", 60)) * time.Second,
		},
		Orchestrator: OrchestratorSettings{
			MaxConcurrentJobs:   GetEnvInt("ORCH_MAX_CONCURRENT_JOBS", 10),
			StageTimeout:        time.Duration(GetEnvInt("ORCH_STAGE_TIMEOUT_S", 120)) * time.Second,
			MinConfidenceProc:   GetEnvFloat("ORCH_MIN_CONFIDENCE_PROCEED", 0.75),
			MinConfidenceManual: GetEnvFloat("ORCH_MIN_CONFIDENCE_MANUAL", 0.55),
		},
		Realtime: RealtimeSettings{
			HeartbeatInterval:      time.Duration(GetEnvFloat("RT_HEARTBEAT_INTERVAL_S", 5.0) * float64(time.Second)),
			HeartbeatTimeout:       time.Duration(GetEnvFloat("RT_HEARTBEAT_TIMEOUT_S", 15.0) * float64(time.Second)),
			SessionTimeout:         time.Duration(GetEnvFloat("RT_SESSION_TIMEOUT_S", 300.0) * float64(time.Second)),
			CleanupInterval:        time.Duration(GetEnvFloat("RT_CLEANUP_INTERVAL_S", 60.0) * float64(time.Second)),
			MaxReconnectAttempts:   GetEnvInt("RT_MAX_RECONNECT_ATTEMPTS", 5),
			InitialReconnectDelay:  time.Duration(GetEnvFloat("RT_INITIAL_RECONNECT_DELAY_S", 1.0) * float64(time.Second)),
			MaxReconnectDelay:      time.Duration(GetEnvFloat("RT_MAX_RECONNECT_DELAY_S", 30.0) * float64(time.Second)),
			ReconnectBackoffFactor: GetEnvFloat("RT_RECONNECT_BACKOFF_FACTOR", 2.0),
			FrameBufferCapacity:    GetEnvInt("RT_FRAME_BUFFER_CAPACITY", 64),
		},
	}
}
