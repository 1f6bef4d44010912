package store

import "github.com/dealmungchi/dealextractor/internal/deal"

// Reference points at another document
type Reference struct {
	Type string `json:"_type"`
	Ref  string `json:"_ref"`
}

// Slug is the content store's slug object
type Slug struct {
	Type    string `json:"_type"`
	Current string `json:"current"`
}

// ImageCrop is an image crop with all edges at zero
type ImageCrop struct {
	Type   string  `json:"_type"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

// ImageHotspot is the focal area of an image
type ImageHotspot struct {
	Type   string  `json:"_type"`
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Image is an image field referencing an uploaded asset
type Image struct {
	Type    string       `json:"_type"`
	Asset   Reference    `json:"asset"`
	Crop    ImageCrop    `json:"crop"`
	Hotspot ImageHotspot `json:"hotspot"`
}

// DealDocument is the stored form of a deal
type DealDocument struct {
	Type          string    `json:"_type"`
	ID            string    `json:"_id"`
	NameAr        string    `json:"name_ar"`
	NameEn        string    `json:"name_en"`
	DescriptionAr string    `json:"description_ar"`
	DescriptionEn string    `json:"description_en"`
	Price         float64   `json:"price"`
	ValidFrom     deal.Date `json:"validFrom"`
	ValidTo       deal.Date `json:"validTo"`
	Slug          Slug      `json:"slug"`
	Store         Reference `json:"store"`
	Image         *Image    `json:"image,omitempty"`
}

// NewDealDocument shapes an upload into a deals document keyed by slug
func NewDealDocument(u DealUpload) DealDocument {
	doc := DealDocument{
		Type:          "deals",
		ID:            u.Slug,
		NameAr:        u.NameAr,
		NameEn:        u.NameEn,
		DescriptionAr: u.DescriptionAr,
		DescriptionEn: u.DescriptionEn,
		Price:         float64(u.Price),
		ValidFrom:     u.ValidFrom,
		ValidTo:       u.ValidTo,
		Slug:          Slug{Type: "slug", Current: u.Slug},
		Store:         Reference{Type: "reference", Ref: u.Store},
	}
	if u.ImageAssetID != "" {
		doc.Image = &Image{
			Type:    "image",
			Asset:   Reference{Type: "reference", Ref: u.ImageAssetID},
			Crop:    ImageCrop{Type: "sanity.imageCrop"},
			Hotspot: ImageHotspot{Type: "sanity.imageHotspot", Height: 1, Width: 1, X: 0.5, Y: 0.5},
		}
	}
	return doc
}
