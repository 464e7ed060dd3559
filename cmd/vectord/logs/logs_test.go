package logscmder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
)

func TestLogs(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Logs Suite")
}

var _ = Describe("followLog", func() {
	var (
		dir     string
		logPath string
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "vectord-logs-*")
		Expect(err).NotTo(HaveOccurred())
		logPath = filepath.Join(dir, "worker.log")
		Expect(os.WriteFile(logPath, []byte("old line\n"), 0o600)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("streams appended lines, skipping existing content", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		buf := gbytes.NewBuffer()
		done := make(chan error, 1)
		go func() {
			done <- followLog(ctx, logPath, buf)
		}()

		// Give the watcher time to attach before appending.
		time.Sleep(200 * time.Millisecond)

		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o600)
		Expect(err).NotTo(HaveOccurred())
		_, err = f.WriteString("fresh line\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Close()).To(Succeed())

		Eventually(buf).Should(gbytes.Say("fresh line"))
		Expect(string(buf.Contents())).NotTo(ContainSubstring("old line"))

		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})

	It("fails on a missing file", func() {
		err := followLog(context.Background(), filepath.Join(dir, "absent.log"), gbytes.NewBuffer())
		Expect(err).To(HaveOccurred())
	})
})
