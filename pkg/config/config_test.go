package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomery/weft/pkg/config"
)

var _ = Describe("Config", func() {
	var dir string

	newConfiger := func() *config.Configer {
		cfger, err := config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())
		return cfger
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	Describe("NewDefaultConfig", func() {
		It("fills every section with working defaults", func() {
			cfg := config.NewDefaultConfig()
			Expect(cfg.API.Listen).To(Equal(":8090"))
			Expect(cfg.GraphStore.Provider).To(Equal("memory"))
			Expect(cfg.VectorStore.Provider).To(Equal("memory"))
			Expect(cfg.Embedding.Provider).To(Equal("ollama"))
			Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
			Expect(cfg.EventStream.Provider).To(Equal("nop"))
			Expect(cfg.Retrieval.LookbackDays).To(Equal(30))
			Expect(cfg.Retrieval.MaxDepth).To(Equal(3))
			Expect(cfg.Retrieval.TopK).To(Equal(10))
			Expect(cfg.Retrieval.PathBudgetMs).To(Equal(800))
			Expect(cfg.Resolution.ConfidenceThreshold).To(Equal(0.5))
			Expect(cfg.Ingest.Workers).To(Equal(uint(3)))
		})
	})

	Describe("LoadConfig", func() {
		It("returns defaults when no file exists", func() {
			cfg, err := newConfiger().LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.API.Listen).To(Equal(":8090"))
		})

		It("merges file values over defaults", func() {
			raw := []byte("[api]\nlisten = \":9999\"\n\n[retrieval]\nlookback_days = 7\n")
			Expect(os.WriteFile(filepath.Join(dir, "config.toml"), raw, 0o600)).To(Succeed())

			cfg, err := newConfiger().LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.API.Listen).To(Equal(":9999"))
			Expect(cfg.Retrieval.LookbackDays).To(Equal(7))
			// Unset sections fall back to defaults.
			Expect(cfg.GraphStore.Provider).To(Equal("memory"))
			Expect(cfg.Retrieval.MaxDepth).To(Equal(3))
		})
	})

	Describe("ParseConfigTOML", func() {
		It("rejects an unsupported version", func() {
			_, err := config.ParseConfigTOML([]byte("version = 99\n"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version"))
		})

		It("rejects malformed TOML", func() {
			_, err := config.ParseConfigTOML([]byte("[api\nlisten = 1"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SaveConfig and reload", func() {
		It("round-trips every section", func() {
			cfger := newConfiger()
			cfg := config.NewDefaultConfig()
			cfg.GraphStore.Provider = "neo4j"
			cfg.GraphStore.URI = "neo4j://graph:7687"
			cfg.EventStream.Provider = "kafka"
			cfg.EventStream.Brokers = []string{"k1:9092", "k2:9092"}
			cfg.EventStream.Topic = "weft.activity.persisted"

			Expect(cfger.SaveConfig(cfg)).To(Succeed())

			loaded, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.GraphStore.Provider).To(Equal("neo4j"))
			Expect(loaded.GraphStore.URI).To(Equal("neo4j://graph:7687"))
			Expect(loaded.EventStream.Brokers).To(Equal([]string{"k1:9092", "k2:9092"}))
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		It("round-trips string keys", func() {
			cfger := newConfiger()
			Expect(cfger.SetConfigValue("vector_store.provider", "qdrant")).To(Succeed())

			got, err := cfger.GetConfigValue("vector_store.provider")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("qdrant"))
		})

		It("round-trips numeric keys", func() {
			cfger := newConfiger()
			Expect(cfger.SetConfigValue("retrieval.top_k", "25")).To(Succeed())

			got, err := cfger.GetConfigValue("retrieval.top_k")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("25"))
		})

		It("parses broker lists from comma-separated values", func() {
			cfger := newConfiger()
			Expect(cfger.SetConfigValue("eventstream.brokers", "k1:9092, k2:9092 ,")).To(Succeed())

			got, err := cfger.GetConfigValue("eventstream.brokers")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("k1:9092,k2:9092"))
		})

		It("rejects unknown keys", func() {
			cfger := newConfiger()
			Expect(cfger.SetConfigValue("nope.nothing", "x")).To(HaveOccurred())
			_, err := cfger.GetConfigValue("nope.nothing")
			Expect(err).To(HaveOccurred())
		})

		It("rejects non-numeric values for numeric keys", func() {
			cfger := newConfiger()
			Expect(cfger.SetConfigValue("retrieval.max_depth", "deep")).To(HaveOccurred())
		})
	})

	Describe("ValidConfigKeys", func() {
		It("lists every supported key exactly once", func() {
			keys := config.ValidConfigKeys()
			seen := make(map[string]bool, len(keys))
			for _, k := range keys {
				Expect(seen[k]).To(BeFalse(), "duplicate key %q", k)
				seen[k] = true
				Expect(config.IsValidConfigKey(k)).To(BeTrue())
			}
			Expect(keys).To(ContainElements("api.listen", "graph_store.uri", "ingest.queue_size"))
		})
	})
})
