package configcmder

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/novelassist/vectord/pkg/config"
)

func TestConfigCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Command Suite")
}

var _ = Describe("config set and get", func() {
	var configDir string

	BeforeEach(func() {
		var err error
		configDir, err = os.MkdirTemp("", "vectord-config-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(configDir)).To(Succeed())
	})

	It("round-trips a value through the config file", func() {
		Expect(runSet("worker.port", "8010", configDir)).To(Succeed())

		cfger, err := config.NewConfiger(configDir)
		Expect(err).NotTo(HaveOccurred())
		value, err := cfger.GetConfigValue("worker.port")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("8010"))

		_, err = os.Stat(filepath.Join(configDir, "config.toml"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects unknown keys", func() {
		Expect(runSet("worker.nope", "x", configDir)).NotTo(Succeed())
		Expect(runGet("worker.nope", configDir)).NotTo(Succeed())
	})

	It("rejects non-numeric values for numeric keys", func() {
		Expect(runSet("worker.port", "not-a-port", configDir)).NotTo(Succeed())
	})

	It("lists without a config file present", func() {
		Expect(runList(configDir)).To(Succeed())
	})
})
