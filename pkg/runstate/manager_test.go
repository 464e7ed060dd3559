package runstate_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/novelassist/vectord/pkg/runstate"
)

func TestRunstate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Runstate Suite")
}

var _ = Describe("Manager", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "vectord-runstate-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if tempDir != "" {
			Expect(os.RemoveAll(tempDir)).To(Succeed())
		}
	})

	It("saves and loads state", func() {
		manager, err := runstate.NewManager(tempDir)
		Expect(err).NotTo(HaveOccurred())

		state := &runstate.State{
			ServePID:  100,
			WorkerPID: 123,
			Host:      "127.0.0.1",
			Port:      8000,
			DBPath:    "/tmp/vector_db",
			APIURL:    "http://localhost:8600",
		}

		Expect(manager.SaveState(state)).To(Succeed())
		loaded, err := manager.LoadState()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).NotTo(BeNil())
		Expect(loaded.ServePID).To(Equal(100))
		Expect(loaded.WorkerPID).To(Equal(123))
		Expect(loaded.Endpoint()).To(Equal("http://127.0.0.1:8000"))
		Expect(loaded.APIURL).To(Equal("http://localhost:8600"))
		Expect(loaded.LogPath).To(Equal(filepath.Join(tempDir, "worker.log")))
	})

	It("returns nil for missing state", func() {
		manager, err := runstate.NewManager(tempDir)
		Expect(err).NotTo(HaveOccurred())

		loaded, err := manager.LoadState()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(BeNil())
	})

	It("clears state", func() {
		manager, err := runstate.NewManager(tempDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(manager.SaveState(&runstate.State{WorkerPID: 1})).To(Succeed())
		Expect(manager.ClearState()).To(Succeed())
		Expect(manager.ClearState()).To(Succeed(), "clearing twice is a no-op")

		loaded, err := manager.LoadState()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(BeNil())
	})

	It("locks and releases", func() {
		manager, err := runstate.NewManager(tempDir)
		Expect(err).NotTo(HaveOccurred())

		lock, err := manager.Lock()
		Expect(err).NotTo(HaveOccurred())
		Expect(lock).NotTo(BeNil())
		Expect(lock.Release()).To(Succeed())
	})
})
