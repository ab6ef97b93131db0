package catalog

import (
	"strconv"
	"strings"
)

// Product is a catalog entry.
type Product struct {
	ID          string  `json:"product_id" parquet:"product_id"`
	Name        string  `json:"name" parquet:"name"`
	Description string  `json:"description" parquet:"description,optional"`
	Category    string  `json:"category" parquet:"category,optional"`
	Brand       string  `json:"brand" parquet:"brand,optional"`
	Price       float64 `json:"price" parquet:"price,optional"`
	Rating      float64 `json:"rating" parquet:"rating,optional"`
	Stock       int64   `json:"stock_quantity" parquet:"stock_quantity,optional"`
}

// Metadata keys written by the Ingester.
const (
	MetaName     = "name"
	MetaCategory = "category"
	MetaBrand    = "brand"
	MetaPrice    = "price"
	MetaStock    = "stock"
	MetaInStock  = "in_stock"
)

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool { return p.Stock > 0 }

// Metadata returns the record metadata stored for p.
func (p Product) Metadata() map[string]string {
	md := map[string]string{
		MetaName:    p.Name,
		MetaPrice:   strconv.FormatFloat(p.Price, 'f', -1, 64),
		MetaStock:   strconv.FormatInt(p.Stock, 10),
		MetaInStock: strconv.FormatBool(p.InStock()),
	}
	if p.Category != "" {
		md[MetaCategory] = p.Category
	}
	if p.Brand != "" {
		md[MetaBrand] = p.Brand
	}
	return md
}

// Field selects a product attribute for embedding text.
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldCategory    Field = "category"
	FieldBrand       Field = "brand"
)

func (f Field) value(p Product) string {
	switch f {
	case FieldName:
		return p.Name
	case FieldDescription:
		return p.Description
	case FieldCategory:
		return p.Category
	case FieldBrand:
		return p.Brand
	default:
		return ""
	}
}

// TextTemplate describes how a product is rendered into embedding text.
type TextTemplate struct {
	Fields    []Field
	Separator string
}

// DefaultTextTemplate renders "name description category brand".
func DefaultTextTemplate() TextTemplate {
	return TextTemplate{
		Fields:    []Field{FieldName, FieldDescription, FieldCategory, FieldBrand},
		Separator: " ",
	}
}

// Format renders p. Empty fields are left out.
func (t TextTemplate) Format(p Product) string {
	parts := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		if v := strings.TrimSpace(f.value(p)); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, t.Separator)
}

// FormatText renders p with the default template.
func FormatText(p Product) string {
	return DefaultTextTemplate().Format(p)
}
