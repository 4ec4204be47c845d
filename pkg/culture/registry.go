package culture

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/magus-names/magus/pkg/models"
)

// Registry holds the loaded culture templates. Templates are never mutated
// after load; Replace swaps the whole set.
type Registry struct {
	mu       sync.RWMutex
	cultures map[string]*models.CultureTemplate
	order    []string
}

// NewRegistry creates a Registry from templates keyed by code.
func NewRegistry(templates map[string]*models.CultureTemplate) *Registry {
	r := &Registry{}
	r.Replace(templates)
	return r
}

// Lookup resolves a culture by code, display name or alias, case-insensitively.
// An exact code wins; otherwise cultures are tried in code order.
func (r *Registry) Lookup(code string) (*models.CultureTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.cultures[strings.ToLower(code)]; ok {
		return t, true
	}
	for _, c := range r.order {
		if t := r.cultures[c]; t.Matches(code) {
			return t, true
		}
	}
	return nil, false
}

// Codes returns the sorted culture codes.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// All returns every template ordered by code.
func (r *Registry) All() []*models.CultureTemplate {
	codes := r.Codes()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.CultureTemplate, 0, len(codes))
	for _, c := range codes {
		if t, ok := r.cultures[c]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of loaded cultures.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cultures)
}

// Replace installs a new template set and returns the sorted codes that were
// added, removed or changed.
func (r *Registry) Replace(templates map[string]*models.CultureTemplate) []string {
	next := make(map[string]*models.CultureTemplate, len(templates))
	order := make([]string, 0, len(templates))
	for _, t := range templates {
		code := strings.ToLower(t.Code)
		if _, seen := next[code]; !seen {
			order = append(order, code)
		}
		next[code] = t
	}
	sort.Strings(order)

	r.mu.Lock()
	prev := r.cultures
	r.cultures = next
	r.order = order
	r.mu.Unlock()

	var changed []string
	for code, t := range next {
		old, ok := prev[code]
		if !ok || !reflect.DeepEqual(old, t) {
			changed = append(changed, code)
		}
	}
	for code := range prev {
		if _, ok := next[code]; !ok {
			changed = append(changed, code)
		}
	}
	sort.Strings(changed)
	return changed
}

// Info returns the public summary of a template.
func Info(t *models.CultureTemplate) models.CultureInfo {
	info := models.CultureInfo{
		Code:        t.Code,
		Name:        t.Name,
		Description: t.Description,
		Aliases:     t.Aliases,
		Genders:     t.Genders(),
	}
	for _, g := range []models.Gender{models.GenderMasculine, models.GenderFeminine, models.GenderNeutral, models.GenderNone} {
		info.ExampleNames = append(info.ExampleNames, t.Examples[g]...)
	}
	return info
}
