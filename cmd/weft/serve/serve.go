// Package servecmder provides the weft serve cobra command: it wires the
// configured store adapters, the resolution and retrieval engines, and the
// HTTP server into one process.
package servecmder

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/loomery/weft/api"
	"github.com/loomery/weft/pkg/config"
	"github.com/loomery/weft/pkg/embeddings"
	"github.com/loomery/weft/pkg/embeddings/ollama"
	"github.com/loomery/weft/pkg/eventstream"
	eskafka "github.com/loomery/weft/pkg/eventstream/kafka"
	esnop "github.com/loomery/weft/pkg/eventstream/nop"
	"github.com/loomery/weft/pkg/graph"
	graphmemory "github.com/loomery/weft/pkg/graph/memory"
	graphneo4j "github.com/loomery/weft/pkg/graph/neo4j"
	"github.com/loomery/weft/pkg/ingest"
	"github.com/loomery/weft/pkg/ingest/worker"
	"github.com/loomery/weft/pkg/logger"
	"github.com/loomery/weft/pkg/patterns"
	"github.com/loomery/weft/pkg/resolve"
	"github.com/loomery/weft/pkg/retrieval"
	"github.com/loomery/weft/pkg/sequence"
	"github.com/loomery/weft/pkg/vector"
	"github.com/loomery/weft/pkg/vector/inmemory"
	vecqdrant "github.com/loomery/weft/pkg/vector/qdrant"
	"github.com/loomery/weft/pkg/vector/sqlitevec"
)

// serveFlags is the flag registry for the serve command.
var serveFlags = config.FlagSet{
	config.FlagListen: {
		Name: "listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "Address for the HTTP server to listen on",
	},
	config.FlagGraphProvider: {
		Name: "graph-provider", ViperKey: "graph_store.provider",
		Description: "Graph store provider (memory, neo4j)",
	},
	config.FlagGraphURI: {
		Name: "graph-uri", ViperKey: "graph_store.uri",
		Description: "Neo4j connection URI",
	},
	config.FlagGraphUsername: {
		Name: "graph-username", ViperKey: "graph_store.username",
		Description: "Neo4j username",
	},
	config.FlagGraphPassword: {
		Name: "graph-password", ViperKey: "graph_store.password",
		Description: "Neo4j password",
	},
	config.FlagVectorProvider: {
		Name: "vector-provider", ViperKey: "vector_store.provider",
		Description: "Vector store provider (memory, sqlite, qdrant)",
	},
	config.FlagVectorTarget: {
		Name: "vector-target", ViperKey: "vector_store.target",
		Description: "Qdrant host:port",
	},
	config.FlagSQLite: {
		Name: "sqlite", Shorthand: "s", ViperKey: "vector_store.sqlite_path",
		Description: "Path to the sqlite-vec database file",
	},
	config.FlagEmbeddingProv: {
		Name: "embedding-provider", ViperKey: "embedding.provider",
		Description: "Embedding provider (ollama)",
	},
	config.FlagEmbeddingTgt: {
		Name: "embedding-target", ViperKey: "embedding.target",
		Description: "Embedding API URL",
	},
	config.FlagEmbeddingModel: {
		Name: "embedding-model", ViperKey: "embedding.model",
		Description: "Embedding model name",
	},
	config.FlagStreamProvider: {
		Name: "eventstream-provider", ViperKey: "eventstream.provider",
		Description: "Event stream provider (nop, kafka)",
	},
	config.FlagStreamBrokers: {
		Name: "eventstream-brokers", ViperKey: "eventstream.brokers",
		Description: "Comma-separated Kafka broker list",
	},
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagGraphProvider,
	config.FlagGraphURI,
	config.FlagGraphUsername,
	config.FlagGraphPassword,
	config.FlagVectorProvider,
	config.FlagVectorTarget,
	config.FlagSQLite,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagStreamProvider,
	config.FlagStreamBrokers,
}

type serveCommander struct {
	listen         string
	graphProvider  string
	graphURI       string
	graphUsername  string
	graphPassword  string
	vectorProvider string
	vectorTarget   string
	sqlitePath     string
	embeddingProv  string
	embeddingTgt   string
	embeddingModel string
	streamProvider string
	streamBrokers  string

	debug  bool
	viper  *viper.Viper
	logger *zap.Logger
}

const serveLongDesc string = `Run the weft HTTP server.

Serves the ingestion interface (graph upserts, extraction submission) and
the retrieval interface (cross-session context, search, workflow patterns)
on a single listener.`

const serveShortDesc string = "Run the weft server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagGraphProvider, &cmder.graphProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagGraphURI, &cmder.graphURI)
	config.AddStringFlag(cmd, serveFlags, config.FlagGraphUsername, &cmder.graphUsername)
	config.AddStringFlag(cmd, serveFlags, config.FlagGraphPassword, &cmder.graphPassword)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorProvider, &cmder.vectorProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorTarget, &cmder.vectorTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddStringFlag(cmd, serveFlags, config.FlagStreamProvider, &cmder.streamProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagStreamBrokers, &cmder.streamBrokers)

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	v := c.viper
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	graphDriver, err := c.newGraphDriver(ctx, v)
	if err != nil {
		return err
	}
	defer graphDriver.Close()

	vectorDriver, err := c.newVectorDriver(ctx, v)
	if err != nil {
		return err
	}
	defer vectorDriver.Close()

	embedder, err := c.newEmbedder(v)
	if err != nil {
		return err
	}
	defer embedder.Close()

	publisher, err := c.newPublisher(v)
	if err != nil {
		return err
	}
	defer publisher.Close()

	resolver := resolve.NewEngine(graphDriver, vectorDriver, embedder,
		v.GetFloat64("resolution.confidence_threshold"), c.logger)

	pool, err := worker.NewPool(&worker.Config{
		Resolver:   resolver,
		Publisher:  publisher,
		NumWorkers: v.GetUint("ingest.workers"),
		QueueSize:  v.GetUint("ingest.queue_size"),
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}

	sequencer := sequence.NewSequencer(graphDriver, c.logger)
	ingestor := ingest.NewService(graphDriver, vectorDriver, embedder, sequencer, pool, c.logger)

	miner := patterns.NewMiner(graphDriver, c.logger)
	retriever := retrieval.NewOrchestrator(graphDriver, vectorDriver, embedder, miner, c.logger)

	server := api.NewServer(api.Config{
		ListenAddr: v.GetString("api.listen"),
		RetrievalDefaults: retrieval.Options{
			LookbackDays: v.GetInt("retrieval.lookback_days"),
			MaxDepth:     v.GetInt("retrieval.max_depth"),
			MinFrequency: v.GetInt64("retrieval.min_frequency"),
			TopK:         v.GetInt("retrieval.top_k"),
			PathBudget:   time.Duration(v.GetInt("retrieval.path_budget_ms")) * time.Millisecond,
		},
	}, ingestor, retriever, miner, c.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		pool.Close()
		return err
	case <-ctx.Done():
	}

	c.logger.Info("shutting down")
	if err := server.Shutdown(); err != nil {
		c.logger.Error("server shutdown failed", zap.Error(err))
	}
	// Drain in-flight extraction batches after the listener stops.
	pool.Close()
	return nil
}

func (c *serveCommander) newGraphDriver(ctx context.Context, v *viper.Viper) (graph.Driver, error) {
	switch provider := v.GetString("graph_store.provider"); provider {
	case "neo4j":
		driver, err := graphneo4j.NewDriver(ctx, graphneo4j.Config{
			URI:      v.GetString("graph_store.uri"),
			Username: v.GetString("graph_store.username"),
			Password: v.GetString("graph_store.password"),
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating neo4j driver: %w", err)
		}
		return driver, nil

	case "memory", "":
		c.logger.Info("using in-memory graph store")
		return graphmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown graph store provider: %q", provider)
	}
}

func (c *serveCommander) newVectorDriver(ctx context.Context, v *viper.Viper) (vector.Driver, error) {
	dims := v.GetUint("embedding.dimensions")

	switch provider := v.GetString("vector_store.provider"); provider {
	case "sqlite":
		driver, err := sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     v.GetString("vector_store.sqlite_path"),
			Dimensions: dims,
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite-vec driver: %w", err)
		}
		return driver, nil

	case "qdrant":
		host, port, err := splitHostPort(v.GetString("vector_store.target"))
		if err != nil {
			return nil, err
		}
		driver, err := vecqdrant.NewDriver(ctx, vecqdrant.Config{
			Host:       host,
			Port:       port,
			Collection: v.GetString("vector_store.collection"),
			Dimensions: uint64(dims),
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating qdrant driver: %w", err)
		}
		return driver, nil

	case "memory", "":
		c.logger.Info("using in-memory vector store")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown vector store provider: %q", provider)
	}
}

func (c *serveCommander) newEmbedder(v *viper.Viper) (embeddings.Embedder, error) {
	switch provider := v.GetString("embedding.provider"); provider {
	case "ollama", "":
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: v.GetString("embedding.target"),
			Model:   v.GetString("embedding.model"),
		})

	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", provider)
	}
}

func (c *serveCommander) newPublisher(v *viper.Viper) (eventstream.Publisher, error) {
	switch provider := v.GetString("eventstream.provider"); provider {
	case "kafka":
		return eskafka.NewPublisher(eskafka.Config{
			Brokers: v.GetStringSlice("eventstream.brokers"),
			Topic:   v.GetString("eventstream.topic"),
		}, c.logger)

	case "nop", "":
		return esnop.NewPublisher(), nil

	default:
		return nil, fmt.Errorf("unknown eventstream provider: %q", provider)
	}
}

// splitHostPort parses a "host:port" qdrant target. A bare host falls back
// to the default gRPC port.
func splitHostPort(target string) (string, int, error) {
	if !strings.Contains(target, ":") {
		return target, 6334, nil
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, fmt.Errorf("invalid vector store target %q: %w", target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid vector store target %q: bad port", target)
	}
	return host, port, nil
}
