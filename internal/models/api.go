package models

// IngestRequest is the body of POST /ingest.
type IngestRequest struct {
	DocID        string `json:"doc_id"`
	PDFBase64    string `json:"pdf_base64"`
	Overwrite    bool   `json:"overwrite,omitempty"`
	ChunkSize    int    `json:"chunk_size,omitempty"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty"`
}

// IngestResponse is the success body of POST /ingest.
type IngestResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	DocID            string `json:"doc_id"`
	TotalChunks      int    `json:"total_chunks"`
	TotalPages       int    `json:"total_pages"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question string  `json:"question"`
	TopK     int     `json:"top_k,omitempty"`
	DocID    string  `json:"doc_id,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
}

// QueryResponse is the success body of POST /query.
type QueryResponse struct {
	Success      bool   `json:"success"`
	Answer       Answer `json:"answer"`
	QueryTimeMs  int64  `json:"query_time_ms"`
	TotalResults int    `json:"total_results"`
}
