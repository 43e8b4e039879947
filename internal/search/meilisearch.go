package search

import (
	"log"
	"strings"

	"github.com/meilisearch/meilisearch-go"

	"github.com/RalphPichler23/twi-react-backend/internal/models"
)

// Document is the searchable projection of a property
type Document struct {
	ID                string   `json:"id"`
	UserID            string   `json:"user_id"`
	Title             string   `json:"title"`
	Address           string   `json:"address"`
	City              string   `json:"city"`
	District          string   `json:"district"`
	Description       string   `json:"description"`
	Type              string   `json:"type"`
	Status            string   `json:"status"`
	Price             float64  `json:"price"`
	Area              float64  `json:"area"`
	Rooms             int      `json:"rooms"`
	Bathrooms         int      `json:"bathrooms"`
	ImageURL          string   `json:"image_url,omitempty"`
	Features          []string `json:"features"`
	IsPropertyOfMonth bool     `json:"is_property_of_month"`
	CreatedAt         int64    `json:"created_at"`
}

// NewDocument projects a property for indexing
func NewDocument(p *models.Property) Document {
	doc := Document{
		ID:                p.ID,
		UserID:            p.UserID,
		Title:             p.Title,
		Address:           p.Address,
		City:              p.City,
		District:          p.District,
		Description:       p.Description,
		Type:              string(p.Type),
		Status:            string(p.Status),
		Price:             p.Price,
		Area:              p.Area,
		Rooms:             p.Rooms,
		Bathrooms:         p.Bathrooms,
		Features:          []string(p.Features),
		IsPropertyOfMonth: p.IsPropertyOfMonth,
		CreatedAt:         p.CreatedAt.Unix(),
	}
	if p.ImageURL != nil {
		doc.ImageURL = *p.ImageURL
	}
	if doc.Features == nil {
		doc.Features = []string{}
	}
	return doc
}

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(host, apiKey, index string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})
	if index == "" {
		index = "properties"
	}

	return &SearchClient{
		client: client,
		index:  index,
	}
}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	// Create index if it doesn't exist
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"title",
		"address",
		"city",
		"district",
		"description",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"id",
		"user_id",
		"type",
		"status",
		"district",
		"price",
		"area",
		"rooms",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"price",
		"area",
		"created_at",
	})
	if err != nil {
		return err
	}

	log.Printf("[search] index=%s initialized", s.index)
	return nil
}

// IndexProperty indexes a single property
func (s *SearchClient) IndexProperty(property *models.Property) error {
	_, err := s.client.Index(s.index).AddDocuments([]Document{NewDocument(property)})
	return err
}

// IndexProperties indexes multiple properties
func (s *SearchClient) IndexProperties(properties []models.Property) error {
	if len(properties) == 0 {
		return nil
	}
	docs := make([]Document, len(properties))
	for i := range properties {
		docs[i] = NewDocument(&properties[i])
	}
	_, err := s.client.Index(s.index).AddDocuments(docs)
	return err
}

// DeleteProperty removes a property document
func (s *SearchClient) DeleteProperty(id string) error {
	_, err := s.client.Index(s.index).DeleteDocument(id)
	return err
}

// SearchRequest represents advanced search parameters
type SearchRequest struct {
	Query                string
	Limit                int64
	Offset               int64
	Filter               []string
	Sort                 []string
	FacetsFilter         []string
	AttributesToRetrieve []string
}

// SearchResult represents search results with facets
type SearchResult struct {
	Hits           []Document             `json:"hits"`
	TotalHits      int64                  `json:"total_hits"`
	Facets         map[string]interface{} `json:"facets,omitempty"`
	ProcessingTime int64                  `json:"processing_time_ms"`
}

// AdvancedSearch performs advanced search with facets and filters
func (s *SearchClient) AdvancedSearch(req SearchRequest) (*SearchResult, error) {
	if req.Limit == 0 {
		req.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  req.Limit,
		Offset: req.Offset,
	}

	if len(req.Filter) > 0 {
		searchReq.Filter = strings.Join(req.Filter, " AND ")
	}
	if len(req.Sort) > 0 {
		searchReq.Sort = req.Sort
	}
	if len(req.FacetsFilter) > 0 {
		searchReq.Facets = req.FacetsFilter
	}
	if len(req.AttributesToRetrieve) > 0 {
		searchReq.AttributesToRetrieve = req.AttributesToRetrieve
	}

	searchRes, err := s.client.Index(s.index).Search(req.Query, searchReq)
	if err != nil {
		return nil, err
	}

	var facets map[string]interface{}
	if searchRes.FacetDistribution != nil {
		facets, _ = searchRes.FacetDistribution.(map[string]interface{})
	}

	return &SearchResult{
		Hits:           decodeHits(searchRes.Hits),
		TotalHits:      searchRes.EstimatedTotalHits,
		Facets:         facets,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}

// GetFacets retrieves facet distribution for specified fields
func (s *SearchClient) GetFacets(facets []string) (map[string]interface{}, error) {
	searchRes, err := s.client.Index(s.index).Search("", &meilisearch.SearchRequest{
		Limit:  0,
		Facets: facets,
	})
	if err != nil {
		return nil, err
	}

	if searchRes.FacetDistribution != nil {
		if facetMap, ok := searchRes.FacetDistribution.(map[string]interface{}); ok {
			return facetMap, nil
		}
	}
	return map[string]interface{}{}, nil
}
