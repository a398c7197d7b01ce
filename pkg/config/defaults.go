package config

const (
	defaultAPIListen = ":8090"

	defaultGraphProvider = "memory"
	defaultNeo4jURI      = "neo4j://localhost:7687"
	defaultNeo4jUsername = "neo4j"

	defaultVectorProvider   = "memory"
	defaultQdrantTarget     = "localhost:6334"
	defaultQdrantCollection = "weft"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultEventStreamProvider = "nop"

	defaultLookbackDays = 30
	defaultMaxDepth     = 3
	defaultMinFrequency = 1
	defaultTopK         = 10
	defaultPathBudgetMs = 800

	defaultConfidenceThreshold = 0.5

	defaultIngestWorkers   = 3
	defaultIngestQueueSize = 256
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		GraphStore: GraphStoreConfig{
			Provider: defaultGraphProvider,
			URI:      defaultNeo4jURI,
			Username: defaultNeo4jUsername,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Target:     defaultQdrantTarget,
			Collection: defaultQdrantCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
		},
		Retrieval: RetrievalConfig{
			LookbackDays: defaultLookbackDays,
			MaxDepth:     defaultMaxDepth,
			MinFrequency: defaultMinFrequency,
			TopK:         defaultTopK,
			PathBudgetMs: defaultPathBudgetMs,
		},
		Resolution: ResolutionConfig{
			ConfidenceThreshold: defaultConfidenceThreshold,
		},
		Ingest: IngestConfig{
			Workers:   defaultIngestWorkers,
			QueueSize: defaultIngestQueueSize,
		},
	}
}
