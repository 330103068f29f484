package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/thredeisacoder/Amazon-Scraper/internal/models"
)

const maxBulletSpecLength = 200

// specPass contributes key/value pairs from one region of the page.
type specPass func(doc *Document, put func(key, value string))

// Passes run in this order; a later pass overwrites an earlier value for the
// same key.
var specPasses = []specPass{
	techSpecPass,
	featureBulletPass,
	overviewPass,
	additionalInfoPass,
}

// AggregateSpecifications merges label/value pairs from every specification
// region of the page.
func AggregateSpecifications(doc *Document) map[string]string {
	specs := make(map[string]string)
	if doc == nil {
		return specs
	}

	put := func(key, value string) {
		key = cleanKey(key)
		value = CleanText(value)
		if key == "" || value == "" {
			return
		}
		specs[key] = value
	}

	for _, pass := range specPasses {
		pass(doc, put)
	}
	return specs
}

func techSpecPass(doc *Document, put func(key, value string)) {
	doc.Find("#productDetails_techSpec_section_1 tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		put(cells.Eq(0).Text(), cells.Eq(1).Text())
	})
}

func featureBulletPass(doc *Document, put func(key, value string)) {
	doc.Find("#feature-bullets ul li, .a-unordered-list.a-nostyle li").Each(func(_ int, item *goquery.Selection) {
		text := CleanText(item.Text())
		if !strings.Contains(text, ":") || len([]rune(text)) >= maxBulletSpecLength {
			return
		}
		key, value, _ := strings.Cut(text, ":")
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(key)), "make sure") {
			return
		}
		put(key, value)
	})
}

func overviewPass(doc *Document, put func(key, value string)) {
	region := doc.Find("#poExpander")
	if region.Length() == 0 {
		region = doc.Find("#productOverview_feature_div")
	}
	if region.Length() == 0 {
		return
	}

	names := region.Find(".po-display-name")
	values := region.Find(".po-break-word")
	n := names.Length()
	if values.Length() < n {
		n = values.Length()
	}
	for i := 0; i < n; i++ {
		put(names.Eq(i).Text(), values.Eq(i).Text())
	}
}

func additionalInfoPass(doc *Document, put func(key, value string)) {
	doc.Find("#productDetails_detailBullets_sections1 tr").Each(func(_ int, row *goquery.Selection) {
		th := row.Find("th").First()
		td := row.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}
		put(th.Text(), td.Text())
	})
}

// Alias lists are ordered; the first alias present in the map wins.
var (
	colorAliases      = []string{"Color", "Colour", "Color Name", "Item Color"}
	materialAliases   = []string{"Material", "Materials", "Item Material", "Frame Material", "Fabric Type"}
	dimensionsAliases = []string{"Size", "Dimensions", "Item Dimensions", "Package Dimensions", "Product Dimensions"}
	weightAliases     = []string{"Weight", "Item Weight", "Package Weight", "Shipping Weight"}
	modelAliases      = []string{"Model Number", "Model", "Item model number", "Part Number"}
)

// PromoteSpecifications copies well-known specification entries onto the
// record's top-level fields. Existing top-level values are left alone.
func PromoteSpecifications(record *models.ItemRecord, specs map[string]string) {
	if record == nil {
		return
	}
	promote(&record.Color, specs, colorAliases)
	promote(&record.Material, specs, materialAliases)
	promote(&record.Dimensions, specs, dimensionsAliases)
	promote(&record.Weight, specs, weightAliases)
	promote(&record.ModelNumber, specs, modelAliases)
}

func promote(dst *string, specs map[string]string, aliases []string) {
	if *dst != "" {
		return
	}
	for _, alias := range aliases {
		if v := specs[alias]; v != "" {
			*dst = v
			return
		}
	}
}
