package domain

import "time"

// Config holds the complete Ringscope configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Tier determines which backing services are used
	Tier Tier `json:"tier" yaml:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"eventBus"`

	// Visualization settings
	View ViewConfig `json:"view" yaml:"view"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"readTimeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level     string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format    string `json:"format" yaml:"format"` // json, text
	AddSource bool   `json:"addSource" yaml:"addSource"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
}

// ViewConfig tunes the rendered graph.
type ViewConfig struct {
	MinZoom       float64       `json:"minZoom" yaml:"minZoom"`
	MaxZoom       float64       `json:"maxZoom" yaml:"maxZoom"`
	TooltipOffset float64       `json:"tooltipOffset" yaml:"tooltipOffset"`
	Layout        LayoutConfig  `json:"layout" yaml:"layout"`
	ProjectionTTL time.Duration `json:"projectionTtl" yaml:"projectionTtl"`

	// NodeRules replace the stock node styling when non-empty.
	NodeRules []NodeStyleRule `json:"nodeRules,omitempty" yaml:"nodeRules,omitempty"`
}

// NodeStyleRule styles the nodes matched by a CEL predicate. Rules cascade
// in order and later rules override the fields they set.
// The predicate sees id, score, patterns, ring_id and in_ring.
type NodeStyleRule struct {
	Name        string  `json:"name" yaml:"name"`
	When        string  `json:"when" yaml:"when"` // empty matches every node
	Color       string  `json:"color,omitempty" yaml:"color,omitempty"`
	Size        float64 `json:"size,omitempty" yaml:"size,omitempty"`
	BorderWidth float64 `json:"borderWidth,omitempty" yaml:"borderWidth,omitempty"`
	BorderColor string  `json:"borderColor,omitempty" yaml:"borderColor,omitempty"`

	// ScaleMin and ScaleMax size the node by score over the score domain.
	ScaleMin float64 `json:"scaleMin,omitempty" yaml:"scaleMin,omitempty"`
	ScaleMax float64 `json:"scaleMax,omitempty" yaml:"scaleMax,omitempty"`
}

// LayoutConfig holds force-directed layout tuning passed to the engine.
type LayoutConfig struct {
	Name            string  `json:"name" yaml:"name"`
	IdealEdgeLength float64 `json:"idealEdgeLength" yaml:"idealEdgeLength"`
	NodeRepulsion   float64 `json:"nodeRepulsion" yaml:"nodeRepulsion"`
	Gravity         float64 `json:"gravity" yaml:"gravity"`
	Animate         bool    `json:"animate" yaml:"animate"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite, in-process channels and a local LRU.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL, NATS and Redis.
	TierPro Tier = "pro"
)

// DefaultViewConfig returns the stock visualization tuning.
func DefaultViewConfig() ViewConfig {
	return ViewConfig{
		MinZoom:       0.2,
		MaxZoom:       3,
		TooltipOffset: 15,
		Layout: LayoutConfig{
			Name:            "cose",
			IdealEdgeLength: 140,
			NodeRepulsion:   900000,
			Gravity:         0.25,
			Animate:         true,
		},
		ProjectionTTL: 10 * time.Minute,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./ringscope.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 1000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 256,
		},
		View: DefaultViewConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "ringscope",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "ringscope",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   500,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
