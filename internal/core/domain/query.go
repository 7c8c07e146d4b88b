package domain

const DefaultTopK = 5

type QueryFilters struct {
	Company string
	Year    int
	Quarter string
	TopK    int
}

// QueryRequest is the wire shape shared by the streaming and non-streaming
// query endpoints. Unset filters are sent as null.
type QueryRequest struct {
	Question string  `json:"question"`
	TopK     int     `json:"top_k"`
	Company  *string `json:"company"`
	Year     *int    `json:"year"`
	Quarter  *string `json:"quarter"`
}

func NewQueryRequest(question string, filters QueryFilters) QueryRequest {
	req := QueryRequest{
		Question: question,
		TopK:     filters.TopK,
	}
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	if filters.Company != "" {
		company := filters.Company
		req.Company = &company
	}
	if filters.Year != 0 {
		year := filters.Year
		req.Year = &year
	}
	if filters.Quarter != "" {
		quarter := filters.Quarter
		req.Quarter = &quarter
	}
	return req
}

type QueryResult struct {
	Answer  string     `json:"answer"`
	Sources []Evidence `json:"sources"`
}

type ProbeResult struct {
	Name        string   `json:"name"`
	OK          bool     `json:"ok"`
	Status      string   `json:"status"`
	Message     string   `json:"message,omitempty"`
	Collections []string `json:"collections,omitempty"`
}

type HealthReport struct {
	API         ProbeResult `json:"api"`
	VectorStore ProbeResult `json:"vector_store"`
	KeyValue    ProbeResult `json:"key_value"`
}

func (h HealthReport) Healthy() bool {
	return h.API.OK && h.VectorStore.OK && h.KeyValue.OK
}
