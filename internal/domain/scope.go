package domain

// Scope is the target of a question: one document or the whole corpus.
// The zero value means the whole corpus.
type Scope struct {
	doc DocumentID
}

// AnyDocument searches across every known document.
var AnyDocument = Scope{}

// ScopeOf restricts a question to a single document. An empty id yields AnyDocument.
func ScopeOf(id DocumentID) Scope { return Scope{doc: id} }

// IsAny reports whether the scope covers the whole corpus.
func (s Scope) IsAny() bool { return s.doc == "" }

// Document returns the scoped document id, empty for AnyDocument.
func (s Scope) Document() DocumentID { return s.doc }

func (s Scope) String() string {
	if s.IsAny() {
		return "any"
	}
	return string(s.doc)
}
