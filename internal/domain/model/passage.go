package model

// Passage is a retrieved text fragment plus its source metadata. It lives
// for a single request.
type Passage struct {
	ID       string
	Text     string
	Metadata map[string]string
	Score    float32
}

// Chunk is a piece of an ingested document, ready to be embedded.
type Chunk struct {
	Text     string
	Index    int
	Metadata map[string]string
}

// Document is raw uploaded content after text extraction.
type Document struct {
	Name    string
	Content string
	Source  string
}
