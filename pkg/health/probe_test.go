package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/novelassist/vectord/pkg/health"
	"github.com/novelassist/vectord/pkg/logger"
)

func TestHealth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Health Suite")
}

// endpointFor converts an httptest server URL into a probe Endpoint.
func endpointFor(server *httptest.Server) health.Endpoint {
	u, err := url.Parse(server.URL)
	Expect(err).NotTo(HaveOccurred())
	port, err := strconv.Atoi(u.Port())
	Expect(err).NotTo(HaveOccurred())
	return health.Endpoint{Host: u.Hostname(), Port: port}
}

var _ = Describe("Probe", func() {
	var probe *health.Probe

	BeforeEach(func() {
		probe = health.NewProbe(logger.Nop())
	})

	It("succeeds on an explicit ok status", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/health"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}))
		defer server.Close()

		err := probe.WaitUntilReady(context.Background(), endpointFor(server), 3, 10*time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
	})

	It("retries until the worker becomes healthy", func() {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if attempts.Add(1) < 3 {
				http.Error(w, "starting up", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}))
		defer server.Close()

		err := probe.WaitUntilReady(context.Background(), endpointFor(server), 5, 10*time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		Expect(attempts.Load()).To(Equal(int32(3)))
	})

	It("rejects after exactly maxAttempts probes, naming the count", func() {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			attempts.Add(1)
			http.Error(w, "nope", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		err := probe.WaitUntilReady(context.Background(), endpointFor(server), 3, 10*time.Millisecond)
		Expect(err).To(MatchError(health.ErrNotReady))
		Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		Expect(attempts.Load()).To(Equal(int32(3)))
	})

	It("does not count a 200 without an ok status as ready", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
		}))
		defer server.Close()

		err := probe.WaitUntilReady(context.Background(), endpointFor(server), 2, 10*time.Millisecond)
		Expect(err).To(MatchError(health.ErrNotReady))
	})

	It("treats connection errors like not-ready responses", func() {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		endpoint := endpointFor(server)
		server.Close() // nothing listens anymore

		err := probe.WaitUntilReady(context.Background(), endpoint, 2, 10*time.Millisecond)
		Expect(err).To(MatchError(health.ErrNotReady))
	})

	It("honors context cancellation between attempts", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := probe.WaitUntilReady(ctx, endpointFor(server), 100, 50*time.Millisecond)
		Expect(err).To(MatchError(context.Canceled))
	})
})
