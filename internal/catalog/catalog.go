// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog holds the single table of supported request types. The
// worker dispatches on it and every discovery surface (metadata, tool
// listing, initialize announcements, the catalog command) renders from it,
// so what is advertised is always what is handled.
package catalog

import (
	"sort"

	"github.com/pdiddy/seo-relay/pkg/types"
)

// Version identifies the table revision. Bump it when entries change.
const Version = "2024-06-01"

// ServerName and ServerVersion are reported by discovery endpoints.
const (
	ServerName    = "dataforseo"
	ServerVersion = "1.0.0"
)

// Param kinds, named after their JSON-schema types.
const (
	KindString  = "string"
	KindInteger = "integer"
	KindBoolean = "boolean"
	KindArray   = "array"
)

// Param maps one request field onto the upstream body.
type Param struct {
	Name        string
	Kind        string
	Description string
	Required    bool

	// Default replaces the field when it is absent or falsy. Nil means the
	// field is copied as-is, and omitted when absent.
	Default any
}

// Entry describes one request type.
type Entry struct {
	Type        string
	Description string

	// Path is the upstream endpoint the assembled body is POSTed to.
	Path string

	// SummaryPath, when set, makes the entry asynchronous: Path creates a
	// task and SummaryPath+taskID is fetched after a fixed delay.
	SummaryPath string

	Params []Param
}

// Async reports whether the entry posts a task and polls for its summary.
func (e Entry) Async() bool {
	return e.SummaryPath != ""
}

// Build assembles the upstream body for req. Fields named by the entry's
// params are copied; defaults fill absent or falsy values.
func (e Entry) Build(req types.Request) map[string]any {
	body := make(map[string]any, len(e.Params))
	for _, p := range e.Params {
		v, present := req[p.Name]
		if p.Default != nil && !types.Truthy(v) {
			body[p.Name] = p.Default
			continue
		}
		if present {
			body[p.Name] = v
		}
	}
	return body
}

// Tool renders the entry as a discovery descriptor.
func (e Entry) Tool() types.Tool {
	schema := types.Schema{
		Type:       "object",
		Properties: make(map[string]types.Property, len(e.Params)),
	}
	for _, p := range e.Params {
		prop := types.Property{
			Type:        p.Kind,
			Description: p.Description,
			Default:     p.Default,
		}
		if p.Kind == KindArray {
			prop.Items = &types.Property{Type: KindString}
		}
		schema.Properties[p.Name] = prop
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return types.Tool{
		Name:        e.Type,
		Description: e.Description,
		InputSchema: schema,
	}
}

const (
	defaultLocationCode = 2840
	defaultLanguageCode = "en"
)

func locationParam() Param {
	return Param{Name: "location_code", Kind: KindInteger, Description: "Location code (e.g. 2840 for United States)", Default: defaultLocationCode}
}

func languageParam() Param {
	return Param{Name: "language_code", Kind: KindString, Description: "Language code (e.g. en)", Default: defaultLanguageCode}
}

func keywordParam() Param {
	return Param{Name: "keyword", Kind: KindString, Description: "Search query", Required: true}
}

var entries = []Entry{
	{
		Type:        "dataforseo_serp",
		Description: "Search engine results page data for a keyword",
		Path:        "/serp/google/organic/live/advanced",
		Params: []Param{
			keywordParam(),
			locationParam(),
			languageParam(),
			{Name: "device", Kind: KindString, Description: "desktop or mobile", Default: "desktop"},
			{Name: "os", Kind: KindString, Description: "Operating system for the device", Default: "windows"},
		},
	},
	{
		Type:        "dataforseo_keywords_data",
		Description: "Keyword search volume and metrics",
		Path:        "/keywords_data/google/search_volume/live",
		Params: []Param{
			{Name: "keywords", Kind: KindArray, Description: "Keywords to get data for", Required: true},
			locationParam(),
			languageParam(),
		},
	},
	{
		Type:        "dataforseo_backlinks",
		Description: "Backlink summary for a website or page",
		Path:        "/backlinks/summary/live",
		Params: []Param{
			{Name: "target", Kind: KindString, Description: "Target domain or URL", Required: true},
			{Name: "limit", Kind: KindInteger, Description: "Maximum number of results", Default: 100},
		},
	},
	{
		Type:        "dataforseo_onpage",
		Description: "Instant on-page SEO analysis of a URL",
		Path:        "/on_page/instant_pages",
		Params: []Param{
			{Name: "url", Kind: KindString, Description: "URL to analyze", Required: true},
			{Name: "check_spell", Kind: KindBoolean, Description: "Run spell checking", Default: true},
			{Name: "enable_javascript", Kind: KindBoolean, Description: "Render JavaScript before analysis", Default: true},
		},
	},
	{
		Type:        "dataforseo_onpage_task",
		Description: "Crawl-based on-page summary (posts a task, waits, then fetches the summary)",
		Path:        "/on_page/task_post",
		SummaryPath: "/on_page/summary/",
		Params: []Param{
			{Name: "target", Kind: KindString, Description: "Domain to crawl"},
			{Name: "url", Kind: KindString, Description: "URL to analyze"},
			{Name: "max_crawl_pages", Kind: KindInteger, Description: "Crawl budget", Default: 10},
		},
	},
	{
		Type:        "dataforseo_domain_analytics",
		Description: "WHOIS and domain analytics",
		Path:        "/domain_analytics/whois/live",
		Params: []Param{
			{Name: "domain", Kind: KindString, Description: "Domain to look up", Required: true},
		},
	},
	{
		Type:        "dataforseo_app_data",
		Description: "Google Play app information",
		Path:        "/app_data/google/app_info/live",
		Params: []Param{
			{Name: "app_id", Kind: KindString, Description: "Application identifier", Required: true},
		},
	},
	{
		Type:        "dataforseo_merchant",
		Description: "Google Shopping product listings for a keyword",
		Path:        "/merchant/google/products/live",
		Params: []Param{
			keywordParam(),
			locationParam(),
			languageParam(),
		},
	},
	{
		Type:        "dataforseo_business_data",
		Description: "Google My Business information for a keyword",
		Path:        "/business_data/google/my_business_info/live",
		Params: []Param{
			keywordParam(),
			locationParam(),
			languageParam(),
		},
	},
}

var byType = func() map[string]Entry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Type] = e
	}
	return m
}()

// Lookup returns the entry for typ.
func Lookup(typ string) (Entry, bool) {
	e, ok := byType[typ]
	return e, ok
}

// Entries returns every entry in declaration order.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Types returns the supported request types, sorted.
func Types() []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Type)
	}
	sort.Strings(out)
	return out
}

// Tools renders every entry as a discovery descriptor, in declaration order.
func Tools() []types.Tool {
	out := make([]types.Tool, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Tool())
	}
	return out
}

// Announcement is the initialize envelope listing the catalogue. id may be
// empty for the unsolicited startup greeting.
func Announcement(id string) types.Response {
	return types.Response{
		Type:   types.TypeInitialize,
		ID:     id,
		Tools:  Tools(),
		Status: types.StatusSuccess,
	}
}
