package kb

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kotileipomo/faq-engine/internal/observability"
)

// Data table base names inside a data directory. Each may be .json, .yaml or .yml.
const (
	HoursTable         = "hours"
	FAQTable           = "faq"
	AllergensTable     = "allergens"
	AliasesTable       = "aliases"
	SettingsTable      = "settings"
	BlackoutsTable     = "blackouts"
	InstorePricesTable = "instore_prices"
)

var errTableMissing = errors.New("table missing")

// LoadData reads the resolver tables from dir. A missing or unparseable table is logged
// and replaced with its empty value so resolvers take their "no data" branch.
func LoadData(dir string, logger *observability.Logger) Data {
	if logger == nil {
		logger = observability.NopLogger()
	}
	log := logger.WithComponent("kb-data")

	var d Data
	load := func(name string, dst interface{}) {
		err := readTable(dir, name, dst)
		switch {
		case errors.Is(err, errTableMissing):
			log.Debug().Str("table", name).Msg("Data table not present")
		case err != nil:
			log.Warn().Err(err).Str("table", name).Msg("Data table unreadable, using empty")
		}
	}

	load(HoursTable, &d.Hours)
	if d.Hours.Hours == nil {
		d.Hours.Hours = map[int][]Span{}
	}
	if dropped := d.Hours.Sanitize(); dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("Dropped invalid opening spans")
	}

	var faq []FaqItem
	load(FAQTable, &faq)
	for i, item := range faq {
		if err := Validate(item); err != nil {
			log.Debug().Int("row", i).Msg("Skipping malformed FAQ item")
			continue
		}
		d.FAQ = append(d.FAQ, item)
	}

	var allergens AllergenMap
	load(AllergensTable, &allergens)
	seen := make(map[string]struct{})
	for _, it := range allergens.Items {
		if Validate(it) != nil {
			continue
		}
		key := strings.ToLower(it.Canonical)
		if _, dup := seen[key]; dup {
			log.Warn().Str("canonical", it.Canonical).Msg("Duplicate allergen key dropped")
			continue
		}
		seen[key] = struct{}{}
		d.Allergens.Items = append(d.Allergens.Items, it)
	}

	var aliases ProductAliases
	load(AliasesTable, &aliases)
	for _, it := range aliases.Items {
		if Validate(it) == nil {
			d.Aliases.Items = append(d.Aliases.Items, it)
		}
	}

	load(SettingsTable, &d.Settings)
	if err := Validate(d.Settings); err != nil {
		log.Warn().Err(err).Msg("Settings invalid, store URL ignored")
		d.Settings.StoreURL = ""
	}

	load(BlackoutsTable, &d.Blackouts)
	load(InstorePricesTable, &d.InstorePrices)

	log.Info().
		Int("faq", len(d.FAQ)).
		Int("allergens", len(d.Allergens.Items)).
		Int("aliases", len(d.Aliases.Items)).
		Int("blackouts", len(d.Blackouts)).
		Int("open_days", len(d.Hours.Days())).
		Msg("Data tables loaded")
	return d
}

func readTable(dir, name string, dst interface{}) error {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if ext == ".json" {
			err = json.Unmarshal(data, dst)
		} else {
			err = yaml.Unmarshal(data, dst)
		}
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	return errTableMissing
}
