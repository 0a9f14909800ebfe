package model

// VariableConfidence is the extraction quality signal for one variable.
type VariableConfidence struct {
	Key        string  `json:"key"`
	Confidence float64 `json:"confidence"`
}

// ExtractionStats summarizes an extraction run.
type ExtractionStats struct {
	TotalChunks    int `json:"total_chunks"`
	VariablesFound int `json:"variables_found"`
	TagsFound      int `json:"tags_found"`
	TemplateLength int `json:"template_length"`
}

// ExtractionResult is a candidate template. It is never persisted by extraction.
type ExtractionResult struct {
	Template   Template             `json:"template"`
	Confidence []VariableConfidence `json:"confidence"`
	Stats      ExtractionStats      `json:"extraction_stats"`
}

// TemplateMatch is one ranked candidate for a free-text request.
type TemplateMatch struct {
	TemplateID string  `json:"template_id"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
}
