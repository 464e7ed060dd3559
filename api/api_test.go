package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/novelassist/vectord/pkg/logger"
	"github.com/novelassist/vectord/pkg/vector"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Suite")
}

// fakeService records calls and returns scripted results.
type fakeService struct {
	collections []string
	matches     []vector.Match
	err         error

	embedded    []vector.Document
	batches     []vector.Batch
	deletedIDs  [][]string
	deletedWith []map[string]any
	dropped     []string
	stopped     int
}

func (f *fakeService) ListCollections(context.Context) ([]string, error) {
	return f.collections, f.err
}

func (f *fakeService) CreateEmbedding(_ context.Context, _ string, doc vector.Document) error {
	if f.err != nil {
		return f.err
	}
	f.embedded = append(f.embedded, doc)
	return nil
}

func (f *fakeService) CreateEmbeddingBatch(_ context.Context, _ string, batch vector.Batch) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeService) QuerySimilar(_ context.Context, _ string, _ vector.Query) ([]vector.Match, error) {
	return f.matches, f.err
}

func (f *fakeService) DeleteByIDs(_ context.Context, _ string, ids []string) error {
	if f.err != nil {
		return f.err
	}
	f.deletedIDs = append(f.deletedIDs, ids)
	return nil
}

func (f *fakeService) DeleteByFilter(_ context.Context, _ string, filter map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.deletedWith = append(f.deletedWith, filter)
	return nil
}

func (f *fakeService) DeleteCollection(_ context.Context, name string) error {
	if f.err != nil {
		return f.err
	}
	f.dropped = append(f.dropped, name)
	return nil
}

func (f *fakeService) Stop(context.Context) error {
	f.stopped++
	return f.err
}

func (f *fakeService) State() vector.State { return vector.StateReady }

func postJSON(server *Server, path string, payload any) *http.Response {
	data, err := json.Marshal(payload)
	Expect(err).NotTo(HaveOccurred())
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func decodeBody(resp *http.Response) map[string]any {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	var out map[string]any
	Expect(json.Unmarshal(data, &out)).To(Succeed())
	return out
}

var _ = Describe("Server", func() {
	var (
		service *fakeService
		server  *Server
	)

	BeforeEach(func() {
		service = &fakeService{}
		server = NewServer(Config{ListenAddr: ":0"}, service, logger.Nop())
	})

	It("answers ping with the worker state", func() {
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		body := decodeBody(resp)
		Expect(body).To(HaveKeyWithValue("status", "ok"))
		Expect(body).To(HaveKeyWithValue("worker", "ready"))
	})

	It("lists collections", func() {
		service.collections = []string{"default", "notes"}

		req, _ := http.NewRequest(http.MethodGet, "/collections", nil)
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(decodeBody(resp)["collections"]).To(Equal([]any{"default", "notes"}))
	})

	It("stores an embedding", func() {
		resp := postJSON(server, "/embeddings", EmbeddingRequest{
			Collection: "notes",
			ID:         "doc-1",
			Text:       "the lighthouse keeper's ledger",
			Metadata:   map[string]any{"chapter": "2"},
		})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		Expect(service.embedded).To(HaveLen(1))
		Expect(service.embedded[0].ID).To(Equal("doc-1"))
	})

	It("stores a batch", func() {
		resp := postJSON(server, "/embeddings/batch", BatchEmbeddingRequest{
			IDs:   []string{"a", "b"},
			Texts: []string{"first", "second"},
		})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		Expect(service.batches).To(HaveLen(1))
	})

	It("returns query matches with a count", func() {
		service.matches = []vector.Match{
			{ID: "a", Text: "alpha", Distance: 0.1},
			{ID: "b", Text: "beta", Distance: 0.4},
		}

		resp := postJSON(server, "/query", QueryRequest{Text: "alpha"})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		body := decodeBody(resp)
		Expect(body).To(HaveKeyWithValue("count", float64(2)))
		results := body["results"].([]any)
		Expect(results[0].(map[string]any)).To(HaveKeyWithValue("id", "a"))
	})

	Describe("delete", func() {
		It("routes ids to DeleteByIDs", func() {
			resp := postJSON(server, "/delete", DeleteRequest{IDs: []string{"a"}})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(service.deletedIDs).To(Equal([][]string{{"a"}}))
		})

		It("routes filters to DeleteByFilter", func() {
			resp := postJSON(server, "/delete", DeleteRequest{Filter: map[string]any{"chapter": "3"}})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(service.deletedWith).To(Equal([]map[string]any{{"chapter": "3"}}))
		})

		It("rejects a request with both ids and a filter", func() {
			resp := postJSON(server, "/delete", DeleteRequest{
				IDs:    []string{"a"},
				Filter: map[string]any{"chapter": "3"},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a request with neither", func() {
			resp := postJSON(server, "/delete", DeleteRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	It("drops a collection", func() {
		req, _ := http.NewRequest(http.MethodDelete, "/collections/scratch", nil)
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(service.dropped).To(Equal([]string{"scratch"}))
	})

	It("stops the worker and signals shutdown", func() {
		req, _ := http.NewRequest(http.MethodPost, "/shutdown", nil)
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(service.stopped).To(Equal(1))
		Expect(server.ShutdownRequested()).To(BeClosed())
	})

	Describe("error normalization", func() {
		It("maps validation errors to 400", func() {
			service.err = fmt.Errorf("%w: batch is empty", vector.ErrValidation)
			resp := postJSON(server, "/embeddings/batch", BatchEmbeddingRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("maps backend rejections to 502 with upstream detail", func() {
			service.err = &vector.BackendError{StatusCode: 500, Body: "chroma unavailable"}
			resp := postJSON(server, "/query", QueryRequest{Text: "x"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))

			body := decodeBody(resp)
			Expect(body).To(HaveKeyWithValue("upstream_status", float64(500)))
			Expect(body).To(HaveKeyWithValue("upstream_body", "chroma unavailable"))
		})

		It("maps unreachable workers to 502", func() {
			service.err = fmt.Errorf("%w: connection refused", vector.ErrTransport)
			resp := postJSON(server, "/query", QueryRequest{Text: "x"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		})

		It("maps unknown failures to 500", func() {
			service.err = fmt.Errorf("disk full")
			resp := postJSON(server, "/query", QueryRequest{Text: "x"})
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})
	})
})
