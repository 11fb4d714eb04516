package taxonomy

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type Severity string

const (
	SeverityFaulty    Severity = "faulty"
	SeverityPotential Severity = "potential"
)

const (
	LabelFaulty            = "Faulty"
	LabelPotentiallyFaulty = "Potentially Faulty"
	LabelNormal            = "Normal"
)

type Class struct {
	ID            int      `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Reason        string   `yaml:"reason" json:"reason"`
	Severity      Severity `yaml:"severity" json:"severity"`
	MinConfidence float64  `yaml:"min_confidence" json:"min_confidence"`
}

type Taxonomy struct {
	byID    map[int]Class
	ordered []Class
}

//go:embed classes.yaml
var defaultClasses []byte

var (
	defaultOnce sync.Once
	defaultTax  *Taxonomy
)

// Default returns the embedded five-class thermal fault taxonomy.
func Default() *Taxonomy {
	defaultOnce.Do(func() {
		t, err := Load(defaultClasses)
		if err != nil {
			panic(fmt.Sprintf("embedded taxonomy: %v", err))
		}
		defaultTax = t
	})
	return defaultTax
}

func Load(raw []byte) (*Taxonomy, error) {
	var doc struct {
		Classes []Class `yaml:"classes"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(doc.Classes) == 0 {
		return nil, fmt.Errorf("taxonomy has no classes")
	}
	t := &Taxonomy{byID: make(map[int]Class, len(doc.Classes))}
	for _, c := range doc.Classes {
		if _, dup := t.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate class id %d", c.ID)
		}
		c.Name = strings.TrimSpace(c.Name)
		switch c.Severity {
		case SeverityFaulty, SeverityPotential:
		default:
			return nil, fmt.Errorf("class %d: unknown severity %q", c.ID, c.Severity)
		}
		t.byID[c.ID] = c
		t.ordered = append(t.ordered, c)
	}
	sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i].ID < t.ordered[j].ID })
	return t, nil
}

func (t *Taxonomy) Lookup(id int) (Class, bool) {
	c, ok := t.byID[id]
	return c, ok
}

func (t *Taxonomy) All() []Class {
	out := make([]Class, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// ImageLabel derives the image-level verdict: any faulty class wins over any
// potential class; no known classes means Normal.
func (t *Taxonomy) ImageLabel(classIDs []int) string {
	potential := false
	for _, id := range classIDs {
		c, ok := t.byID[id]
		if !ok {
			continue
		}
		if c.Severity == SeverityFaulty {
			return LabelFaulty
		}
		potential = true
	}
	if potential {
		return LabelPotentiallyFaulty
	}
	return LabelNormal
}
