package constants

import "time"

var CacheTTL = struct {
	ChatAnswer time.Duration
}{
	ChatAnswer: 6 * time.Hour, // identical questions against a static catalog
}

var RedisConfig = struct {
	ReadyTimeout time.Duration
	KeyPrefix    string
}{
	ReadyTimeout: 5 * time.Second,
	KeyPrefix:    "netfolio:",
}

var AIInputLimits = struct {
	MaxQueryLength int
}{
	MaxQueryLength: 500,
}

var AIDefaults = struct {
	GeminiModel    string
	OpenAIModel    string
	ThinkingBudget int
	RequestTimeout time.Duration
}{
	GeminiModel:    "gemini-3-pro-preview",
	OpenAIModel:    "gpt-4.1-mini",
	ThinkingBudget: 32768,
	RequestTimeout: 90 * time.Second, // thinking models answer slowly
}

// ChatMessages are shown to visitors verbatim.
var ChatMessages = struct {
	EmptyReply string
	Offline    string
}{
	EmptyReply: "I'm having trouble retrieving that information right now.",
	Offline:    "I'm currently offline (API Key missing or invalid). Please try again later.",
}

var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	RateLimitTimeout    time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}{
	FailureThreshold:    3,                // open after 3 consecutive failures
	ResetTimeout:        30 * time.Second, // default wait before retrying
	RateLimitTimeout:    15 * time.Minute, // 429 from the vendor
	HealthCheckInterval: 10 * time.Minute,
	HealthCheckTimeout:  10 * time.Second,
}

var ServerConfig = struct {
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxChatBodyBytes  int64
}{
	ReadHeaderTimeout: 10 * time.Second,
	WriteTimeout:      2 * time.Minute, // covers a slow chat completion
	IdleTimeout:       60 * time.Second,
	ShutdownTimeout:   10 * time.Second,
	MaxChatBodyBytes:  4 << 10,
}

var WebSocketConfig = struct {
	PingInterval  time.Duration
	PongWait      time.Duration
	WriteWait     time.Duration
	MaxFrameBytes int64
}{
	PingInterval:  30 * time.Second,
	PongWait:      60 * time.Second,
	WriteWait:     10 * time.Second,
	MaxFrameBytes: 4 << 10,
}

// UIConfig mirrors the browsing UI's fixed numbers.
var UIConfig = struct {
	LoadingDelay       time.Duration
	RowSkeletonCount   int
	GridSkeletonCount  int
	StarScale          int
	MaxStars           int
	MaturityRating     string
	MaturityNote       string
	ResumeFilename     string
	ContactActionLabel string
	DetailActionLabel  string
}{
	LoadingDelay:       1500 * time.Millisecond,
	RowSkeletonCount:   6,
	GridSkeletonCount:  7,
	StarScale:          20,
	MaxStars:           5,
	MaturityRating:     "U/A 13+",
	MaturityNote:       "Suitable for Recruiters",
	ResumeFilename:     "Netfolio_Resume.pdf",
	ContactActionLabel: "Connect",
	DetailActionLabel:  "View Details",
}

var ReadinessConfig = struct {
	Concurrency  int
	CheckTimeout time.Duration
}{
	Concurrency:  4,
	CheckTimeout: 3 * time.Second,
}

var LinkCheckConfig = struct {
	Concurrency int
	Timeout     time.Duration
}{
	Concurrency: 8,
	Timeout:     15 * time.Second,
}
