// Package responsetransformer adjusts fetched responses before the cache
// decides whether to store them, e.g. to give an origin that sends no
// `Cache-Control` a sensible default.
package responsetransformer

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

type Rules []Rule

// Rule matches requests by method, path, path prefix and query parameters.
// The first matching rule of a Rules list is applied.
type Rule struct {
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	Path   string `mapstructure:"path" yaml:"path"`
	// Method defaults to GET and HEAD.
	Method string `mapstructure:"method" yaml:"method"`
	// Default is used as `Cache-Control` if the response has none.
	Default string `mapstructure:"default" yaml:"default"`
	// Override replaces any `Cache-Control` of the response.
	Override string `mapstructure:"override" yaml:"override"`
	// Query parameters that must be present. An empty value matches any value.
	Query   map[string]string `mapstructure:"query" yaml:"query"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
}

// Apply returns res with the first matching rule applied.
// Only successful (200) responses are transformed; res itself is not modified.
func (r Rules) Apply(req httpmessage.RequestParts, res httpmessage.Response) httpmessage.Response {
	// only apply rules for successes
	if res.StatusCode != http.StatusOK {
		return res
	}
	// if rule found, apply to response
	if rule := r.find(req); rule != nil {
		return res.WithHeader(applyRuleToHeader(*rule, res.Header))
	}
	return res
}

func applyRuleToHeader(rule Rule, header http.Header) http.Header {
	header = header.Clone()
	if header == nil {
		header = make(http.Header)
	}
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
	return header
}

func (r Rules) find(req httpmessage.RequestParts) *Rule {
	if req.URL == nil {
		return nil
	}
	log.Trace().Msgf("Finding rule for request %s:%s", req.Method, req.URL.Path)
rulesLoop:
	for _, rule := range r {
		log.Trace().Msgf("Checking rule %+v", rule)
		if rule.Method == "" && req.Method != http.MethodGet && req.Method != http.MethodHead {
			continue
		}
		if rule.Method != "" && !strings.EqualFold(rule.Method, req.Method) {
			continue
		}
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
