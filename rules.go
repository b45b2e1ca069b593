package assetcache

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Rules add response headers to successful asset responses. The first
// matching rule wins.
type Rules []Rule

type Rule struct {
	Prefix   string            `yaml:"prefix"`
	Path     string            `yaml:"path"`
	Query    map[string]string `yaml:"query"`
	Default  string            `yaml:"default"`
	Override string            `yaml:"override"`
	Headers  map[string]string `yaml:"headers"`
}

func (r Rules) Apply(req *http.Request, status int, header http.Header) {
	// only apply rules for successes
	if status != http.StatusOK {
		return
	}
	if rule := r.find(req); rule != nil {
		applyRule(*rule, header)
	}
}

func applyRule(rule Rule, header http.Header) {
	if rule.Override != "" {
		log.Trace().Msg("Overriding Cache-Control header")
		header.Set("Cache-Control", rule.Override)
	} else if rule.Default != "" && header.Get("Cache-Control") == "" {
		log.Trace().Msg("Applying default Cache-Control header")
		header.Set("Cache-Control", rule.Default)
	}
	for name, value := range rule.Headers {
		log.Trace().Msgf("Setting header %s", name)
		header.Set(name, value)
	}
}

func (r Rules) find(req *http.Request) *Rule {
	log.Trace().Msgf("Finding rule for request %s", req.URL.Path)
rulesLoop:
	for _, rule := range r {
		if rule.Path != "" && rule.Path != req.URL.Path {
			continue
		}
		if rule.Prefix != "" && !strings.HasPrefix(req.URL.Path, rule.Prefix) {
			continue
		}
		if len(rule.Query) > 0 {
			qry := req.URL.Query()
			for name, value := range rule.Query {
				if value == "" && !qry.Has(name) {
					continue rulesLoop
				} else if value != "" && qry.Get(name) != value {
					continue rulesLoop
				}
			}
		}
		return &rule
	}
	return nil
}
