package config

const (
	defaultServerListen = ":8080"

	defaultModel             = "gpt-4o-mini"
	defaultMaxRounds         = 10
	defaultHistoryTTLMinutes = 1440

	defaultCompletionBaseURL = "https://api.openai.com/v1"

	defaultStorageDriver = "memory"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "flightdesk.messages"

	defaultNumWorkers uint = 4
	defaultQueueSize  uint = 64
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen: defaultServerListen,
		},
		Assistant: AssistantConfig{
			Model:             defaultModel,
			MaxRounds:         defaultMaxRounds,
			HistoryTTLMinutes: defaultHistoryTTLMinutes,
		},
		Completion: CompletionConfig{
			BaseURL: defaultCompletionBaseURL,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Worker: WorkerConfig{
			NumWorkers: defaultNumWorkers,
			QueueSize:  defaultQueueSize,
		},
	}
}
