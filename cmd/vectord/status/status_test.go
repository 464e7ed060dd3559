package statuscmder

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/novelassist/vectord/pkg/runstate"
)

func TestStatus(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Status Suite")
}

var _ = Describe("renderStatus", func() {
	state := &runstate.State{
		ServePID:  100,
		WorkerPID: 200,
		Host:      "127.0.0.1",
		Port:      8000,
		DBPath:    "/data/vector_db",
		APIURL:    "http://localhost:8600",
		LogPath:   "/home/u/.novelassist/worker.log",
		StartedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	It("marks a healthy worker", func() {
		out := renderStatus(state, true, true)
		Expect(out).To(ContainSubstring("200 (healthy)"))
		Expect(out).To(ContainSubstring("http://127.0.0.1:8000"))
		Expect(out).To(ContainSubstring("http://localhost:8600"))
	})

	It("marks a dead worker", func() {
		out := renderStatus(state, false, false)
		Expect(out).To(ContainSubstring("200 (not running)"))
	})

	It("marks an alive but unhealthy worker", func() {
		out := renderStatus(state, true, false)
		Expect(out).To(ContainSubstring("not answering health checks"))
	})
})
