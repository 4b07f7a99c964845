package domain

// Changeset splits one source snapshot into documents to upsert and documents to remove.
// A document ID appears in at most one of the two sequences.
type Changeset struct {
	// Upsert holds candidate current documents.
	Upsert []SourceDocument

	// Remove holds documents known to be gone from the source.
	Remove []SourceDocument
}

// NewChangeset classifies documents by status. Duplicate IDs keep the most
// recently modified entry; an ID seen with a terminal status is only removed.
func NewChangeset(docs []SourceDocument) Changeset {
	latest := make(map[string]SourceDocument, len(docs))
	order := make([]string, 0, len(docs))
	removed := make(map[string]bool)

	for _, doc := range docs {
		if doc.Status.IsTerminal() {
			removed[doc.ID] = true
		}
		prev, seen := latest[doc.ID]
		if !seen {
			order = append(order, doc.ID)
			latest[doc.ID] = doc
			continue
		}
		if doc.LastModified.After(prev.LastModified) {
			latest[doc.ID] = doc
		}
	}

	var cs Changeset
	for _, id := range order {
		doc := latest[id]
		if removed[id] {
			if !doc.Status.IsTerminal() {
				doc.Status = StatusDeleted
			}
			cs.Remove = append(cs.Remove, doc)
			continue
		}
		cs.Upsert = append(cs.Upsert, doc)
	}
	return cs
}

// Spaces returns the distinct space keys of both sequences in first-seen order.
func (c Changeset) Spaces() []string {
	seen := make(map[string]bool)
	var spaces []string
	for _, seq := range [][]SourceDocument{c.Upsert, c.Remove} {
		for _, doc := range seq {
			if doc.SpaceKey == "" || seen[doc.SpaceKey] {
				continue
			}
			seen[doc.SpaceKey] = true
			spaces = append(spaces, doc.SpaceKey)
		}
	}
	return spaces
}
