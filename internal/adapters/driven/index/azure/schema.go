package azure

import "github.com/custodia-labs/wikisync/internal/core/domain"

const (
	vectorProfile   = "default-vector-profile"
	vectorAlgorithm = "hnsw-config-1"
	semanticConfig  = "my-semantic-config"
)

// selectFields lists the retrievable non-vector fields.
const selectFields = "id,document_id,space,item_type,attachment_page_id,attachment_page_url," +
	"title,chunk,last_modified_date,last_indexed_date,url"

type field struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Key           bool   `json:"key,omitempty"`
	Searchable    bool   `json:"searchable"`
	Retrievable   bool   `json:"retrievable"`
	Filterable    bool   `json:"filterable"`
	Dimensions    int    `json:"dimensions,omitempty"`
	VectorProfile string `json:"vectorSearchProfile,omitempty"`
}

type indexDefinition struct {
	Name         string         `json:"name"`
	Fields       []field        `json:"fields"`
	VectorSearch map[string]any `json:"vectorSearch"`
	Semantic     map[string]any `json:"semantic"`
}

// newIndexDefinition returns the record schema with vectors of the given size.
func newIndexDefinition(name string, dimensions int) indexDefinition {
	if dimensions <= 0 {
		dimensions = domain.DefaultDimensions
	}
	str := func(name string, searchable, filterable bool) field {
		return field{Name: name, Type: "Edm.String", Searchable: searchable, Retrievable: true, Filterable: filterable}
	}
	vector := func(name string) field {
		return field{
			Name:          name,
			Type:          "Collection(Edm.Single)",
			Searchable:    true,
			Retrievable:   true,
			Dimensions:    dimensions,
			VectorProfile: vectorProfile,
		}
	}
	date := func(name string) field {
		return field{Name: name, Type: "Edm.DateTimeOffset", Retrievable: true, Filterable: true}
	}

	id := str("id", false, true)
	id.Key = true

	return indexDefinition{
		Name: name,
		Fields: []field{
			id,
			str("document_id", false, true),
			str("space", true, true),
			str("attachment_page_url", false, false),
			str("attachment_page_id", true, true),
			str("item_type", false, true),
			str("title", true, false),
			vector("titleVector"),
			str("chunk", true, false),
			vector("chunkVector"),
			date("last_modified_date"),
			date("last_indexed_date"),
			str("url", false, false),
		},
		VectorSearch: map[string]any{
			"algorithms": []map[string]any{
				{"name": vectorAlgorithm, "kind": "hnsw"},
			},
			"profiles": []map[string]any{
				{"name": vectorProfile, "algorithm": vectorAlgorithm},
			},
		},
		Semantic: map[string]any{
			"configurations": []map[string]any{{
				"name": semanticConfig,
				"prioritizedFields": map[string]any{
					"titleField":                map[string]any{"fieldName": "title"},
					"prioritizedContentFields":  []map[string]any{{"fieldName": "chunk"}},
					"prioritizedKeywordsFields": []map[string]any{},
				},
			}},
		},
	}
}
