package did

// Content types reported in resolution metadata.
const (
	ContentTypeJSONLD = "application/did+ld+json"
	ContentTypeJSON   = "application/did+json"
)

// ResolveResult is the output of one resolution: a document (possibly nil)
// plus document and resolution metadata.
type ResolveResult struct {
	Document           *Document `json:"didDocument"`
	DocumentMetadata   Metadata  `json:"didDocumentMetadata"`
	ResolutionMetadata Metadata  `json:"didResolutionMetadata"`
}

// NewResult creates an empty result.
func NewResult() *ResolveResult {
	return &ResolveResult{
		DocumentMetadata:   NewMetadata(),
		ResolutionMetadata: NewMetadata(),
	}
}

// NewDocumentResult creates a result for doc with the given document metadata.
func NewDocumentResult(doc *Document, documentMetadata Metadata) *ResolveResult {
	r := NewResult()
	r.Document = doc
	r.DocumentMetadata.Merge(documentMetadata)
	if doc != nil {
		r.ResolutionMetadata.Set("contentType", ContentTypeJSONLD)
	}
	return r
}

// Copy returns a snapshot of the result. The document is shared since
// documents are not modified once produced.
func (r *ResolveResult) Copy() *ResolveResult {
	return &ResolveResult{
		Document:           r.Document,
		DocumentMetadata:   r.DocumentMetadata.Copy(),
		ResolutionMetadata: r.ResolutionMetadata.Copy(),
	}
}

// Reset empties the result in place.
func (r *ResolveResult) Reset() {
	r.Document = nil
	r.DocumentMetadata = NewMetadata()
	r.ResolutionMetadata = NewMetadata()
}
