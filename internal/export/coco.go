package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ivlev/simcapture/internal/session"
)

type cocoDataset struct {
	Info        cocoInfo         `json:"info"`
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

type cocoInfo struct {
	Description string `json:"description"`
	Version     string `json:"version"`
	DateCreated string `json:"date_created"`
	SessionID   string `json:"session_id,omitempty"`
}

type cocoImage struct {
	ID       int    `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileName string `json:"file_name"`
}

type cocoAnnotation struct {
	ID         int        `json:"id"`
	ImageID    int        `json:"image_id"`
	CategoryID int        `json:"category_id"`
	BBox       [4]float64 `json:"bbox"`
	Area       float64    `json:"area"`
	IsCrowd    int        `json:"iscrowd"`
}

type cocoCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// COCOExporter writes a COCO object-detection JSON document.
type COCOExporter struct{}

func (COCOExporter) Format() Format { return FormatCOCO }

func (COCOExporter) Export(s *session.Session) (*Artifact, error) {
	if s == nil {
		s = &session.Session{}
	}

	ds := cocoDataset{
		Info: cocoInfo{
			Description: "simcapture synthetic dataset",
			Version:     "1.0",
			DateCreated: s.StartTime.UTC().Format(time.RFC3339),
			SessionID:   s.ID,
		},
		Images:      []cocoImage{},
		Annotations: []cocoAnnotation{},
		Categories:  []cocoCategory{},
	}

	names := make(map[int]string)
	annID := 0
	for _, f := range s.Frames {
		ds.Images = append(ds.Images, cocoImage{
			ID:       f.FrameID,
			Width:    s.Resolution.Width,
			Height:   s.Resolution.Height,
			FileName: fmt.Sprintf("%06d.png", f.FrameID),
		})
		for _, b := range f.Objects {
			annID++
			ds.Annotations = append(ds.Annotations, cocoAnnotation{
				ID:         annID,
				ImageID:    f.FrameID,
				CategoryID: b.ClassID,
				BBox:       [4]float64{b.X, b.Y, b.Width, b.Height},
				Area:       b.Width * b.Height,
			})
			if _, ok := names[b.ClassID]; !ok {
				names[b.ClassID] = b.Label
			}
		}
	}

	for id, name := range names {
		ds.Categories = append(ds.Categories, cocoCategory{ID: id, Name: name})
	}
	sort.Slice(ds.Categories, func(i, j int) bool { return ds.Categories[i].ID < ds.Categories[j].ID })

	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode coco: %w", err)
	}
	return &Artifact{
		Filename:    baseName(s) + "_coco.json",
		ContentType: "application/json",
		Data:        data,
	}, nil
}
