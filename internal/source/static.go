package source

import (
	"context"
	"embed"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/david/grant-assistant/internal/apperr"
	"github.com/david/grant-assistant/internal/models"
)

//go:embed config/catalog.yaml
var catalogFS embed.FS

type catalogFile struct {
	Opportunities []RawOpportunity `yaml:"opportunities"`
}

// StaticSource serves a fixed set of opportunities held in memory.
type StaticSource struct {
	byID map[string]models.Opportunity
	all  []models.Opportunity
}

func NewStaticSource(opps []models.Opportunity) (*StaticSource, error) {
	s := &StaticSource{byID: make(map[string]models.Opportunity, len(opps))}
	for _, o := range opps {
		if _, dup := s.byID[o.ID]; dup {
			return nil, fmt.Errorf("duplicate opportunity id %s", o.ID)
		}
		s.byID[o.ID] = o
		s.all = append(s.all, o)
	}
	sort.Slice(s.all, func(i, j int) bool { return s.all[i].ID < s.all[j].ID })
	return s, nil
}

// LoadCatalog reads a YAML catalog from path, or the embedded mock catalog
// when path is empty. Environment placeholders like ${VAR} are expanded.
func LoadCatalog(path string, now time.Time) (*StaticSource, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = catalogFS.ReadFile("config/catalog.yaml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	opps := make([]models.Opportunity, 0, len(file.Opportunities))
	for _, raw := range file.Opportunities {
		opp, err := Normalize(raw, now)
		if err != nil {
			return nil, fmt.Errorf("catalog entry: %w", err)
		}
		opps = append(opps, opp)
	}
	return NewStaticSource(opps)
}

// expandEnv substitutes set variables only, so "$50,000" survives intact.
func expandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return "$" + key
	})
}

// Candidates returns every record; the catalog is small enough to rank whole.
func (s *StaticSource) Candidates(_ context.Context, _ models.SearchQuery) ([]models.Opportunity, error) {
	out := make([]models.Opportunity, len(s.all))
	copy(out, s.all)
	return out, nil
}

func (s *StaticSource) Get(_ context.Context, id string) (models.Opportunity, error) {
	o, ok := s.byID[id]
	if !ok {
		return models.Opportunity{}, apperr.NotFound("opportunity", id)
	}
	return o, nil
}

func (s *StaticSource) All() []models.Opportunity {
	out := make([]models.Opportunity, len(s.all))
	copy(out, s.all)
	return out
}
