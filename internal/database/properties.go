package database

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
)

// DefaultPageSize matches the grid on the properties overview
const DefaultPageSize = 9

// PropertyFilters holds the overview query parameters
type PropertyFilters struct {
	Search   string
	Type     string
	Status   string
	District string
	MinPrice *float64
	MaxPrice *float64
	MinArea  *float64
	MaxArea  *float64
	MinRooms *int
	UserID   string
	SortBy   string
	Page     int
	PageSize int
}

// Pagination describes the returned page
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// PropertyPage is one page of the overview
type PropertyPage struct {
	Data       []models.Property `json:"data"`
	Count      int64             `json:"count"`
	Pagination Pagination        `json:"pagination"`
}

// sortClauses maps the sort option to ORDER BY; updated_at breaks ties
var sortClauses = map[string]string{
	"price-asc":  "price ASC",
	"price-desc": "price DESC",
	"area-asc":   "area ASC",
	"area-desc":  "area DESC",
	"oldest":     "created_at ASC",
	"newest":     "created_at DESC",
}

func (f *PropertyFilters) apply(q *gorm.DB) *gorm.DB {
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(address) LIKE ? OR LOWER(city) LIKE ? OR LOWER(district) LIKE ?",
			like, like, like, like)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.District != "" {
		q = q.Where("district = ?", f.District)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if f.MinArea != nil {
		q = q.Where("area >= ?", *f.MinArea)
	}
	if f.MaxArea != nil {
		q = q.Where("area <= ?", *f.MaxArea)
	}
	if f.MinRooms != nil {
		q = q.Where("rooms >= ?", *f.MinRooms)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	return q
}

// ListProperties returns one filtered, sorted page of properties
func (gdb *GormDB) ListProperties(ctx context.Context, filters PropertyFilters) (*PropertyPage, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = DefaultPageSize
	}

	var total int64
	if err := filters.apply(gdb.db.WithContext(ctx).Model(&models.Property{})).Count(&total).Error; err != nil {
		return nil, err
	}

	order, ok := sortClauses[filters.SortBy]
	if !ok {
		order = sortClauses["newest"]
	}

	var properties []models.Property
	err := filters.apply(gdb.db.WithContext(ctx)).
		Order(order).
		Order("updated_at DESC").
		Offset((filters.Page - 1) * filters.PageSize).
		Limit(filters.PageSize).
		Find(&properties).Error
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(filters.PageSize) - 1) / int64(filters.PageSize))
	return &PropertyPage{
		Data:  properties,
		Count: total,
		Pagination: Pagination{
			Page:       filters.Page,
			PageSize:   filters.PageSize,
			TotalPages: totalPages,
			HasNext:    filters.Page < totalPages,
			HasPrev:    filters.Page > 1,
		},
	}, nil
}

// GetProperty loads one property
func (gdb *GormDB) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	var p models.Property
	err := gdb.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AllProperties returns every property, newest first
func (gdb *GormDB) AllProperties(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property
	err := gdb.db.WithContext(ctx).Order("created_at DESC").Find(&properties).Error
	return properties, err
}

// RecentProperties returns the newest properties for the dashboard
func (gdb *GormDB) RecentProperties(ctx context.Context, userID string, limit int) ([]models.Property, error) {
	if limit <= 0 {
		limit = 5
	}
	q := gdb.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var properties []models.Property
	err := q.Find(&properties).Error
	return properties, err
}

// DashboardStats summarizes the portfolio
type DashboardStats struct {
	Total        int64   `json:"total"`
	Available    int64   `json:"available"`
	Sold         int64   `json:"sold"`
	Reserved     int64   `json:"reserved"`
	TotalValue   float64 `json:"total_value"`
	AveragePrice float64 `json:"average_price"`
}

// DashboardStats aggregates counts per status plus total and average price.
// An empty userID covers every property.
func (gdb *GormDB) DashboardStats(ctx context.Context, userID string) (*DashboardStats, error) {
	var rows []struct {
		Status string
		Count  int64
		Total  float64
	}
	q := gdb.db.WithContext(ctx).Model(&models.Property{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(price), 0) AS total").
		Group("status")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := &DashboardStats{}
	for _, r := range rows {
		stats.Total += r.Count
		stats.TotalValue += r.Total
		switch models.PropertyStatus(r.Status) {
		case models.PropertyStatusAvailable:
			stats.Available = r.Count
		case models.PropertyStatusSold:
			stats.Sold = r.Count
		case models.PropertyStatusReserved:
			stats.Reserved = r.Count
		}
	}
	if stats.Total > 0 {
		stats.AveragePrice = stats.TotalValue / float64(stats.Total)
	}
	return stats, nil
}

// PropertyOfMonth returns the featured property, or ErrNotFound when none is set
func (gdb *GormDB) PropertyOfMonth(ctx context.Context) (*models.Property, error) {
	var p models.Property
	err := gdb.db.WithContext(ctx).Where("is_property_of_month = ?", true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
