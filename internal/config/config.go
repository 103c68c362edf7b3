package config

import "time"

// Config is the root configuration for the bridge host process.
type Config struct {
	IO         IOConfig         `json:"io"`
	Worker     WorkerConfig     `json:"worker"`
	Broadcast  BroadcastConfig  `json:"broadcast"`
	Aggregator AggregatorConfig `json:"aggregator"`
	Gateway    GatewayConfig    `json:"gateway"`
	Reaper     ReaperConfig     `json:"reaper"`
	Metrics    MetricsConfig    `json:"metrics"`
	Events     EventsConfig     `json:"events"`
}

// IOConfig holds the buffer size used on both socket halves.
type IOConfig struct {
	BufferSize int `json:"buffer_size"`
}

// WorkerConfig holds worker pooling and spawn policy. Reuse is a pointer so
// an omitted "reuse" key can default to true while an explicit false is
// still honored.
type WorkerConfig struct {
	Reuse          *bool    `json:"reuse,omitempty"`
	ConnectTimeout Duration `json:"connect_timeout,omitempty"`
	IncludePaths   []string `json:"include_paths,omitempty"` // may contain globs, see doublestar expansion
}

// BroadcastConfig holds broadcast-file persistence settings.
type BroadcastConfig struct {
	Dir     string `json:"dir,omitempty"` // default: $POLYBRIDGE_PATH/broadcasts
	Encrypt bool   `json:"encrypt"`       // age-encrypt persisted broadcast files
}

// AggregatorConfig holds the driver-side accumulator sink's remote endpoint.
type AggregatorConfig struct {
	Host        string   `json:"host,omitempty"`
	Port        int      `json:"port,omitempty"`
	DialTimeout Duration `json:"dial_timeout,omitempty"`
}

// GatewayConfig holds the admin HTTP/WS server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ReaperConfig holds the idle-worker reaper's cron schedule and TTL.
type ReaperConfig struct {
	CronExpr string   `json:"cron_expr,omitempty"` // default: every minute
	IdleTTL  Duration `json:"idle_ttl,omitempty"`  // default: 10m
}

// MetricsConfig holds the local metrics/audit store path.
type MetricsConfig struct {
	DBPath string `json:"db_path,omitempty"` // default: $POLYBRIDGE_PATH/metrics.db
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int    `json:"buffer_size"`
	LogLevel   string `json:"log_level"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// IOBufferSize implements taskctx.ConfigStore.
func (c *Config) IOBufferSize() int { return c.IO.BufferSize }

// WorkerReuse implements taskctx.ConfigStore.
func (c *Config) WorkerReuse() bool {
	if c.Worker.Reuse == nil {
		return true
	}
	return *c.Worker.Reuse
}
