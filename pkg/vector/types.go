package vector

// Document is a single text entry to store in a collection. Embedding is
// optional: when omitted the worker computes one from Text.
type Document struct {
	ID        string
	Text      string
	Metadata  map[string]any
	Embedding []float32
}

// Batch holds parallel slices for a bulk insert. IDs and Texts are required
// and must align; Metadatas and Embeddings are optional but must align when
// present.
type Batch struct {
	IDs        []string
	Texts      []string
	Metadatas  []map[string]any
	Embeddings [][]float32
}

// Query describes a similarity search. Either Text or a precomputed
// Embedding must be set. Limit defaults to DefaultQueryLimit; Filter is
// passed to the worker verbatim and omitted from the request when empty.
type Query struct {
	Text      string
	Limit     int
	Filter    map[string]any
	Embedding []float32
}

// Match is one similarity search hit, in the worker's ranking order.
type Match struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Distance float64        `json:"distance"`
}

// Wire types for the worker's REST protocol.

type embedRequest struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding,omitempty"`
}

type embedBatchRequest struct {
	IDs        []string         `json:"ids"`
	Texts      []string         `json:"texts"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings,omitempty"`
}

type queryRequest struct {
	QueryText string         `json:"query_text"`
	NResults  int            `json:"n_results"`
	Where     map[string]any `json:"where,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
}

type queryResponse struct {
	Status  string  `json:"status"`
	Results []Match `json:"results"`
	Count   int     `json:"count"`
}

type deleteRequest struct {
	IDs   []string       `json:"ids,omitempty"`
	Where map[string]any `json:"where,omitempty"`
}

type collectionsResponse struct {
	Collections []string `json:"collections"`
}
