// Package tips turns weather conditions into a short list of gardening tips
// using a rule table that may be loaded remotely.
package tips

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"gardencast/internal/errorutil"
)

//go:embed default_tips.json
var defaultDocument []byte

// Band is one rule bucket
type Band struct {
	Tips []string `yaml:"tips" json:"tips" validate:"min=1,dive,required"`
}

// TemperatureBands holds the tips per temperature band
type TemperatureBands struct {
	Hot      Band `yaml:"hot" json:"hot"`
	Moderate Band `yaml:"moderate" json:"moderate"`
	Cold     Band `yaml:"cold" json:"cold"`
}

// HumidityBands holds the tips per humidity band
type HumidityBands struct {
	High   Band `yaml:"high" json:"high"`
	Normal Band `yaml:"normal" json:"normal"`
	Low    Band `yaml:"low" json:"low"`
}

// SeasonBands holds the tips per season
type SeasonBands struct {
	Spring Band `yaml:"spring" json:"spring"`
	Summer Band `yaml:"summer" json:"summer"`
	Autumn Band `yaml:"autumn" json:"autumn"`
	Winter Band `yaml:"winter" json:"winter"`
}

// Table is the read-only rule table
type Table struct {
	Temperature TemperatureBands `yaml:"temperature" json:"temperature"`
	Humidity    HumidityBands    `yaml:"humidity" json:"humidity"`
	Seasons     SeasonBands      `yaml:"seasons" json:"seasons"`
}

// Season is a calendar bucket
type Season string

const (
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
	Winter Season = "winter"
)

// SeasonFor maps a month to its season: March-May spring, June-August
// summer, September-November autumn, otherwise winter.
func SeasonFor(month time.Month) Season {
	switch {
	case month >= time.March && month <= time.May:
		return Spring
	case month >= time.June && month <= time.August:
		return Summer
	case month >= time.September && month <= time.November:
		return Autumn
	default:
		return Winter
	}
}

// Season returns the tips for s. Unknown seasons have no tips.
func (t *Table) Season(s Season) []string {
	switch s {
	case Spring:
		return t.Seasons.Spring.Tips
	case Summer:
		return t.Seasons.Summer.Tips
	case Autumn:
		return t.Seasons.Autumn.Tips
	case Winter:
		return t.Seasons.Winter.Tips
	}
	return nil
}

var tableValidator = validator.New()

// ParseTable decodes a JSON or YAML tip document and checks that every band
// carries at least one tip.
func ParseTable(data []byte) (*Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to decode tip table: %w", err)
	}

	if err := tableValidator.Struct(&table); err != nil {
		return nil, errorutil.NewInvalidResponse("tips_table", err)
	}
	return &table, nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// DefaultTable returns the table compiled into the binary
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		table, err := ParseTable(defaultDocument)
		if err != nil {
			panic(fmt.Sprintf("embedded tip table is invalid: %v", err))
		}
		defaultTable = table
	})
	return defaultTable
}

// DefaultDocument returns the embedded tip document as served to clients
func DefaultDocument() []byte {
	return bytes.Clone(defaultDocument)
}
