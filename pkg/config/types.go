package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent weft configuration stored as config.toml
// in the .weft/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	API         APIConfig         `toml:"api"`
	GraphStore  GraphStoreConfig  `toml:"graph_store"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Resolution  ResolutionConfig  `toml:"resolution"`
	Ingest      IngestConfig      `toml:"ingest"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// GraphStoreConfig holds relationship store settings.
type GraphStoreConfig struct {
	// Provider selects the adapter: "memory" or "neo4j".
	Provider string `toml:"provider,omitempty"`
	URI      string `toml:"uri,omitempty"`
	Username string `toml:"username,omitempty"`
	Password string `toml:"password,omitempty"`
}

// VectorStoreConfig holds embedding store settings.
type VectorStoreConfig struct {
	// Provider selects the adapter: "memory", "sqlite" or "qdrant".
	Provider string `toml:"provider,omitempty"`

	// Target is the qdrant host:port when Provider is "qdrant".
	Target string `toml:"target,omitempty"`

	// SQLitePath is the database file when Provider is "sqlite".
	SQLitePath string `toml:"sqlite_path,omitempty"`

	// Collection is the qdrant collection name.
	Collection string `toml:"collection,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// EventStreamConfig holds persisted-activity event publication settings.
type EventStreamConfig struct {
	// Provider selects the publisher: "nop" or "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// RetrievalConfig holds cross-session retrieval defaults.
type RetrievalConfig struct {
	LookbackDays int     `toml:"lookback_days,omitempty"`
	MaxDepth     int     `toml:"max_depth,omitempty"`
	MinFrequency int64   `toml:"min_frequency,omitempty"`
	TopK         int     `toml:"top_k,omitempty"`
	PathBudgetMs int     `toml:"path_budget_ms,omitempty"`
	GraphWeight  float64 `toml:"graph_weight,omitempty"`
	VectorWeight float64 `toml:"vector_weight,omitempty"`
}

// ResolutionConfig holds entity/concept resolution settings.
type ResolutionConfig struct {
	ConfidenceThreshold float64 `toml:"confidence_threshold,omitempty"`
}

// IngestConfig holds async extraction pool settings.
type IngestConfig struct {
	Workers   uint `toml:"workers,omitempty"`
	QueueSize uint `toml:"queue_size,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"graph_store.provider": {
		get: func(c *Config) string { return c.GraphStore.Provider },
		set: func(c *Config, v string) error { c.GraphStore.Provider = v; return nil },
	},
	"graph_store.uri": {
		get: func(c *Config) string { return c.GraphStore.URI },
		set: func(c *Config, v string) error { c.GraphStore.URI = v; return nil },
	},
	"graph_store.username": {
		get: func(c *Config) string { return c.GraphStore.Username },
		set: func(c *Config, v string) error { c.GraphStore.Username = v; return nil },
	},
	"graph_store.password": {
		get: func(c *Config) string { return c.GraphStore.Password },
		set: func(c *Config, v string) error { c.GraphStore.Password = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"vector_store.sqlite_path": {
		get: func(c *Config) string { return c.VectorStore.SQLitePath },
		set: func(c *Config, v string) error { c.VectorStore.SQLitePath = v; return nil },
	},
	"vector_store.collection": {
		get: func(c *Config) string { return c.VectorStore.Collection },
		set: func(c *Config, v string) error { c.VectorStore.Collection = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error { c.EventStream.Provider = v; return nil },
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.EventStream.Brokers = splitNonEmpty(v)
			return nil
		},
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"retrieval.lookback_days": {
		get: func(c *Config) string { return strconv.Itoa(c.Retrieval.LookbackDays) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.lookback_days: %w", err)
			}
			c.Retrieval.LookbackDays = n
			return nil
		},
	},
	"retrieval.max_depth": {
		get: func(c *Config) string { return strconv.Itoa(c.Retrieval.MaxDepth) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.max_depth: %w", err)
			}
			c.Retrieval.MaxDepth = n
			return nil
		},
	},
	"retrieval.min_frequency": {
		get: func(c *Config) string { return strconv.FormatInt(c.Retrieval.MinFrequency, 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.min_frequency: %w", err)
			}
			c.Retrieval.MinFrequency = n
			return nil
		},
	},
	"retrieval.top_k": {
		get: func(c *Config) string { return strconv.Itoa(c.Retrieval.TopK) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.top_k: %w", err)
			}
			c.Retrieval.TopK = n
			return nil
		},
	},
	"retrieval.path_budget_ms": {
		get: func(c *Config) string { return strconv.Itoa(c.Retrieval.PathBudgetMs) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.path_budget_ms: %w", err)
			}
			c.Retrieval.PathBudgetMs = n
			return nil
		},
	},
	"resolution.confidence_threshold": {
		get: func(c *Config) string {
			return strconv.FormatFloat(c.Resolution.ConfidenceThreshold, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for resolution.confidence_threshold: %w", err)
			}
			c.Resolution.ConfidenceThreshold = f
			return nil
		},
	},
	"ingest.workers": {
		get: func(c *Config) string { return strconv.FormatUint(uint64(c.Ingest.Workers), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for ingest.workers: %w", err)
			}
			c.Ingest.Workers = uint(n)
			return nil
		},
	},
	"ingest.queue_size": {
		get: func(c *Config) string { return strconv.FormatUint(uint64(c.Ingest.QueueSize), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for ingest.queue_size: %w", err)
			}
			c.Ingest.QueueSize = uint(n)
			return nil
		},
	},
}

func splitNonEmpty(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
