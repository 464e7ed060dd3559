package supervisor

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSupervisor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Supervisor Suite")
}

var _ = Describe("port announcement", func() {
	DescribeTable("recognized lines",
		func(line string, want string) {
			m := portPattern.FindStringSubmatch(line)
			Expect(m).NotTo(BeNil())
			Expect(m[1]).To(Equal(want))
		},
		Entry("uvicorn startup",
			"INFO:     Uvicorn running on http://127.0.0.1:8000 (Press CTRL+C to quit)", "8000"),
		Entry("auto-selected port",
			"INFO:     Uvicorn running on http://127.0.0.1:8017 (Press CTRL+C to quit)", "8017"),
		Entry("generic listening line",
			"server listening on http://localhost:9123", "9123"),
		Entry("https scheme",
			"running on https://127.0.0.1:8443", "8443"),
	)

	DescribeTable("ignored lines",
		func(line string) {
			Expect(portPattern.FindStringSubmatch(line)).To(BeNil())
		},
		Entry("request log", `INFO:     127.0.0.1:53412 - "GET /health HTTP/1.1" 200 OK`),
		Entry("startup banner", "INFO:     Application startup complete."),
		Entry("bare url without verb", "see http://127.0.0.1:8000/docs"),
	)
})

var _ = Describe("classifyLine", func() {
	It("escalates tracebacks and errors", func() {
		Expect(classifyLine("Traceback (most recent call last):")).To(Equal(slog.LevelError))
		Expect(classifyLine("2026-01-01 [ERROR] embedding failed")).To(Equal(slog.LevelError))
		Expect(classifyLine("CRITICAL: out of memory")).To(Equal(slog.LevelError))
	})

	It("downgrades warnings", func() {
		Expect(classifyLine("2026-01-01 [WARNING] slow query")).To(Equal(slog.LevelWarn))
	})

	It("treats everything else as noise", func() {
		Expect(classifyLine("INFO:     Application startup complete.")).To(Equal(slog.LevelDebug))
		Expect(classifyLine("")).To(Equal(slog.LevelDebug))
	})
})

var _ = Describe("ShouldKillPID", func() {
	It("never kills pid 0 or low system pids", func() {
		Expect(ShouldKillPID(0, 999)).To(BeFalse())
		Expect(ShouldKillPID(1, 999)).To(BeFalse())
		Expect(ShouldKillPID(4, 999)).To(BeFalse())
	})

	It("never kills the current process", func() {
		Expect(ShouldKillPID(999, 999)).To(BeFalse())
	})

	It("allows ordinary pids", func() {
		Expect(ShouldKillPID(4242, 999)).To(BeTrue())
	})
})

var _ = Describe("ResolveInterpreter", func() {
	It("prefers the bundled runtime when present", func() {
		tempDir, err := os.MkdirTemp("", "vectord-runtime-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(tempDir)

		candidate := bundledInterpreterPath(tempDir)
		Expect(os.MkdirAll(filepath.Dir(candidate), 0o755)).To(Succeed())
		Expect(os.WriteFile(candidate, []byte("#!/bin/sh\n"), 0o755)).To(Succeed())

		got, err := ResolveInterpreter(tempDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(candidate))
	})

	It("falls back to PATH when the bundled runtime is missing", func() {
		tempDir, err := os.MkdirTemp("", "vectord-runtime-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(tempDir)

		// No interpreter inside tempDir; outcome depends on PATH, but the
		// bundled candidate must never be returned.
		got, err := ResolveInterpreter(tempDir)
		if err == nil {
			Expect(got).NotTo(HavePrefix(tempDir))
		}
	})
})

var _ = Describe("WorkerCommand", func() {
	It("builds the worker argv contract", func() {
		cmd := WorkerCommand("/usr/bin/python3", "/opt/na/chroma_server.py", "127.0.0.1", 8000, "/data/vector_db", true)
		Expect(cmd.Path).To(Equal("/usr/bin/python3"))
		Expect(cmd.Args).To(Equal([]string{
			"/opt/na/chroma_server.py",
			"--host", "127.0.0.1",
			"--port", "8000",
			"--db-path", "/data/vector_db",
			"--auto-port",
		}))
		Expect(cmd.Env).To(ContainElement("VECTOR_DB_PATH=/data/vector_db"))
	})

	It("omits --auto-port when a fixed port is required", func() {
		cmd := WorkerCommand("python3", "server.py", "127.0.0.1", 8000, "/data", false)
		Expect(cmd.Args).NotTo(ContainElement("--auto-port"))
	})
})

var _ = Describe("isAlreadyExited", func() {
	It("recognizes missing-process failures", func() {
		Expect(isAlreadyExited(os.ErrProcessDone)).To(BeTrue())
	})

	It("recognizes taskkill not-found output", func() {
		err := errTest(`taskkill pid 1234: exit status 128: ERROR: The process "1234" not found.`)
		Expect(isAlreadyExited(err)).To(BeTrue())
	})

	It("does not swallow real failures", func() {
		Expect(isAlreadyExited(errTest("access is denied"))).To(BeFalse())
		Expect(isAlreadyExited(nil)).To(BeFalse())
	})
})

type errTest string

func (e errTest) Error() string { return string(e) }
