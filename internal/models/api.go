package models

// AddDocumentRequest is the body of POST /documents.
type AddDocumentRequest struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// AddDocumentResponse confirms an ingested document.
type AddDocumentResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ChatRequest is the body of POST /chat. MaxResults of 0 means the
// configured default.
type ChatRequest struct {
	Question   string `json:"question"`
	MaxResults int    `json:"max_results"`
}

// HealthResponse reports service liveness and store size.
type HealthResponse struct {
	Status    string `json:"status"`
	Documents int    `json:"documents"`
}
