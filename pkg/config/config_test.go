package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/novelassist/vectord/pkg/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Configer", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "vectord-config-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(tempDir)).To(Succeed())
	})

	It("returns defaults when no config file exists", func() {
		cfger, err := config.NewConfiger(tempDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Worker.Host).To(Equal(config.DefaultHost))
		Expect(cfg.Worker.Port).To(Equal(config.DefaultPort))
		Expect(cfg.Worker.AutoPort).To(BeTrue())
		Expect(cfg.Health.MaxAttempts).To(Equal(config.DefaultHealthMaxAttempts))
		Expect(cfg.Store.DefaultCollection).To(Equal(config.DefaultCollection))
	})

	It("round-trips a saved config", func() {
		cfger, err := config.NewConfiger(tempDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.NewDefaultConfig()
		cfg.Worker.Port = 8765
		cfg.Worker.ScriptPath = "/opt/novelassist/chroma_server.py"
		Expect(cfger.SaveConfig(cfg)).To(Succeed())

		loaded, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Worker.Port).To(Equal(uint(8765)))
		Expect(loaded.Worker.ScriptPath).To(Equal("/opt/novelassist/chroma_server.py"))
	})

	It("merges defaults into a sparse config file", func() {
		path := filepath.Join(tempDir, "config.toml")
		sparse := "version = 0\n\n[worker]\nport = 9100\n"
		Expect(os.WriteFile(path, []byte(sparse), 0o600)).To(Succeed())

		cfger, err := config.NewConfiger(tempDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Worker.Port).To(Equal(uint(9100)))
		Expect(cfg.Worker.Host).To(Equal(config.DefaultHost))
		Expect(cfg.Health.IntervalMs).To(Equal(config.DefaultHealthIntervalMs))
		Expect(cfg.API.Listen).To(Equal(config.DefaultAPIListen))
	})

	Describe("key registry", func() {
		It("gets and sets values by dotted key", func() {
			cfger, err := config.NewConfiger(tempDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfger.SetConfigValue("worker.port", "9200")).To(Succeed())

			got, err := cfger.GetConfigValue("worker.port")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("9200"))
		})

		It("rejects unknown keys", func() {
			cfger, err := config.NewConfiger(tempDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfger.SetConfigValue("nope.nothing", "x")).To(HaveOccurred())
			Expect(config.IsValidConfigKey("nope.nothing")).To(BeFalse())
			Expect(config.IsValidConfigKey("worker.host")).To(BeTrue())
		})

		It("rejects non-numeric values for numeric keys", func() {
			cfger, err := config.NewConfiger(tempDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfger.SetConfigValue("health.max_attempts", "lots")).To(HaveOccurred())
		})
	})

	Describe("InitViper", func() {
		It("applies defaults through the viper layer", func() {
			v, err := config.InitViper(tempDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetString("worker.host")).To(Equal(config.DefaultHost))
			Expect(v.GetUint("worker.port")).To(Equal(config.DefaultPort))
			Expect(v.GetString("api.listen")).To(Equal(config.DefaultAPIListen))
		})

		It("prefers file values over defaults", func() {
			path := filepath.Join(tempDir, "config.toml")
			Expect(os.WriteFile(path, []byte("[api]\nlisten = \":9999\"\n"), 0o600)).To(Succeed())

			v, err := config.InitViper(tempDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetString("api.listen")).To(Equal(":9999"))
		})
	})
})
