package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
)

type predictRequest struct {
	Image string `json:"image"`
}

type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type Detection struct {
	ClassID    int         `json:"class_id"`
	ClassName  string      `json:"class_name,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Confidence float64     `json:"confidence"`
	Polygon    [][]float64 `json:"polygon_xy,omitempty"`
	BBox       *Box        `json:"bbox,omitempty"`
}

// Prediction is one inference run over one image.
type Prediction struct {
	Image      string      `json:"image"`
	Label      string      `json:"pred_image_label"`
	Timestamp  string      `json:"timestamp,omitempty"`
	Detections []Detection `json:"detections"`
}

// UnmarshalJSON accepts both the script's snake_case keys and the camelCase
// variants some providers emit (label, classId, polygon).
func (p *Prediction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Image          string            `json:"image"`
		ImagePath      string            `json:"imagePath"`
		PredImageLabel string            `json:"pred_image_label"`
		Label          string            `json:"label"`
		Timestamp      string            `json:"timestamp"`
		Detections     []json.RawMessage `json:"detections"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Image = firstNonEmpty(raw.Image, raw.ImagePath)
	p.Label = firstNonEmpty(raw.PredImageLabel, raw.Label)
	p.Timestamp = raw.Timestamp
	p.Detections = make([]Detection, 0, len(raw.Detections))
	for i, rd := range raw.Detections {
		d, err := parseDetection(rd)
		if err != nil {
			return fmt.Errorf("detection %d: %w", i, err)
		}
		p.Detections = append(p.Detections, d)
	}
	return nil
}

func parseDetection(data []byte) (Detection, error) {
	var raw struct {
		ClassID     *int        `json:"class_id"`
		ClassIDAlt  *int        `json:"classId"`
		ClassName   string      `json:"class_name"`
		Reason      string      `json:"reason"`
		Confidence  float64     `json:"confidence"`
		PolygonXY   [][]float64 `json:"polygon_xy"`
		Polygon     [][]float64 `json:"polygon"`
		BBox        *Box        `json:"bbox"`
		BoundingBox *struct {
			X      float64 `json:"x"`
			Y      float64 `json:"y"`
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"boundingBox"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Detection{}, err
	}
	d := Detection{
		ClassName:  raw.ClassName,
		Reason:     raw.Reason,
		Confidence: raw.Confidence,
		Polygon:    raw.PolygonXY,
		BBox:       raw.BBox,
	}
	switch {
	case raw.ClassID != nil:
		d.ClassID = *raw.ClassID
	case raw.ClassIDAlt != nil:
		d.ClassID = *raw.ClassIDAlt
	default:
		return Detection{}, fmt.Errorf("missing class_id")
	}
	if len(d.Polygon) == 0 {
		d.Polygon = raw.Polygon
	}
	if d.BBox == nil && raw.BoundingBox != nil {
		d.BBox = &Box{X: raw.BoundingBox.X, Y: raw.BoundingBox.Y, W: raw.BoundingBox.Width, H: raw.BoundingBox.Height}
	}
	return d, nil
}

// BoundingBox returns the explicit box when present, otherwise the axis-aligned
// rectangle around the polygon. ok is false when neither is usable.
func (d Detection) BoundingBox() (Box, bool) {
	if d.BBox != nil {
		return *d.BBox, true
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	n := 0
	for _, pt := range d.Polygon {
		if len(pt) < 2 {
			continue
		}
		minX = math.Min(minX, pt[0])
		minY = math.Min(minY, pt[1])
		maxX = math.Max(maxX, pt[0])
		maxY = math.Max(maxY, pt[1])
		n++
	}
	if n == 0 {
		return Box{}, false
	}
	return Box{
		X: minX,
		Y: minY,
		W: math.Max(0, maxX-minX),
		H: math.Max(0, maxY-minY),
	}, true
}

// RoundedPolygon rounds every coordinate to two decimals and drops malformed points.
func (d Detection) RoundedPolygon() [][]float64 {
	out := make([][]float64, 0, len(d.Polygon))
	for _, pt := range d.Polygon {
		if len(pt) < 2 {
			continue
		}
		out = append(out, []float64{round2(pt[0]), round2(pt[1])})
	}
	return out
}

func ClassIDs(dets []Detection) []int {
	out := make([]int, 0, len(dets))
	for _, d := range dets {
		out = append(out, d.ClassID)
	}
	return out
}

func ParsePrediction(raw []byte) (*Prediction, error) {
	var p Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse prediction: %w", err)
	}
	return &p, nil
}

// ReadPredictions streams a JSON-lines file, calling fn for each non-blank line.
func ReadPredictions(r io.Reader, fn func(line int, p *Prediction) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		p, err := ParsePrediction([]byte(text))
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(line, p); err != nil {
			return err
		}
	}
	return sc.Err()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
