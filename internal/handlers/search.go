package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RalphPichler23/twi-react-backend/internal/auth"
	"github.com/RalphPichler23/twi-react-backend/internal/search"
)

// Searcher is the part of the search client the handlers use
type Searcher interface {
	FilterSearch(params search.FilterParams) (*search.SearchResult, error)
	GetFacets(facets []string) (map[string]interface{}, error)
}

// SearchHandler serves full-text property search
type SearchHandler struct {
	searcher Searcher
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Register mounts the search routes on rg
func (h *SearchHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/search", h.Search)
	rg.GET("/search/facets", h.Facets)
}

// Search runs a filtered full-text query
func (h *SearchHandler) Search(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil {
		limit = 20
	}
	offset, err := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)
	if err != nil {
		offset = 0
	}

	params := search.FilterParams{
		Query:    c.Query("q"),
		Types:    splitList(c.Query("type")),
		Statuses: splitList(c.Query("status")),
		District: c.Query("district"),
		MinPrice: queryFloat(c, "min_price"),
		MaxPrice: queryFloat(c, "max_price"),
		MinArea:  queryFloat(c, "min_area"),
		MaxArea:  queryFloat(c, "max_area"),
		SortBy:   c.Query("sort"),
		Limit:    limit,
		Offset:   offset,
	}
	if v, err := strconv.Atoi(c.Query("min_rooms")); err == nil {
		params.MinRooms = &v
	}
	if c.Query("mine") == "true" {
		params.UserID = auth.UserID(c.Request.Context())
	}

	result, err := h.searcher.FilterSearch(params)
	if err != nil {
		log.Printf("[search] query=%q err=%v", params.Query, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Facets returns value counts for the requested attributes
func (h *SearchHandler) Facets(c *gin.Context) {
	facets := splitList(c.DefaultQuery("facets", "type,status,district"))
	dist, err := h.searcher.GetFacets(facets)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"facets": dist})
}

// splitList splits a comma separated query value, dropping blanks
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
