package models

import (
	"fmt"
	"time"
)

// ItemRecord is the scraped representation of one catalog item. Optional
// fields are left empty when no extraction strategy produced a value.
type ItemRecord struct {
	SourceURL string `json:"source_url,omitempty"`
	ASIN      string `json:"asin,omitempty"`

	Title        string `json:"title,omitempty"`
	Brand        string `json:"brand,omitempty"`
	Price        string `json:"price,omitempty"`
	Rating       string `json:"rating,omitempty"`
	ReviewCount  string `json:"review_count,omitempty"`
	Availability string `json:"availability,omitempty"`
	Color        string `json:"color,omitempty"`
	Material     string `json:"material,omitempty"`
	Dimensions   string `json:"dimensions,omitempty"`
	Weight       string `json:"weight,omitempty"`
	ModelNumber  string `json:"model_number,omitempty"`

	Images          []string          `json:"images,omitempty"`
	Features        []string          `json:"features,omitempty"`
	Specifications  map[string]string `json:"specifications,omitempty"`
	Categories      []string          `json:"categories,omitempty"`
	PrimaryCategory string            `json:"primary_category,omitempty"`
	Variations      *Variations       `json:"variations,omitempty"`

	BestsellersRank     string   `json:"bestsellers_rank,omitempty"`
	PrimeEligible       bool     `json:"prime_eligible,omitempty"`
	DetailedDescription []string `json:"detailed_description,omitempty"`
	ShippingInfo        string   `json:"shipping_info,omitempty"`
	Seller              string   `json:"seller,omitempty"`

	ScrapedAt      *time.Time `json:"scraped_at,omitempty"`
	PageNumber     int        `json:"page_number,omitempty"`
	PositionOnPage int        `json:"position_on_page,omitempty"`

	Error string `json:"error,omitempty"`
}

// Variations lists the distinct option labels offered for an item.
type Variations struct {
	Colors []string `json:"colors,omitempty"`
	Sizes  []string `json:"sizes,omitempty"`
}

// IsEmpty reports whether neither colors nor sizes were found.
func (v *Variations) IsEmpty() bool {
	return v == nil || (len(v.Colors) == 0 && len(v.Sizes) == 0)
}

// NewItemRecord creates an empty record for url stamped with scrapedAt.
func NewItemRecord(url string, scrapedAt time.Time) *ItemRecord {
	ts := scrapedAt.UTC()
	return &ItemRecord{
		SourceURL: url,
		ScrapedAt: &ts,
	}
}

// NewErrorRecord returns a record carrying only the error message.
func NewErrorRecord(err error) *ItemRecord {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	return &ItemRecord{Error: err.Error()}
}

// IsError reports whether the record is an error record.
func (r *ItemRecord) IsError() bool {
	return r != nil && r.Error != ""
}

// SetCategories stores the breadcrumb trail and derives the primary category.
func (r *ItemRecord) SetCategories(categories []string) {
	r.Categories = categories
	r.PrimaryCategory = ""
	if len(categories) > 0 {
		r.PrimaryCategory = categories[len(categories)-1]
	}
}
