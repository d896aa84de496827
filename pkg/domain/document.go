package domain

// DocumentVersion is written into every saved notebook
const DocumentVersion = "1.0"

// Document is the persisted notebook format
type Document struct {
	Version string         `json:"version"`
	Cells   []DocumentCell `json:"cells"`
}

// DocumentCell is one persisted cell record
type DocumentCell struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}
