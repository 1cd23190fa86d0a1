package schema

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tabula/pkg/errors"
)

// Name keyword tables used by the type inferencer. Matching is done on the
// lower-cased field name.
var (
	URLKeywords     = []string{"url", "link", "web", "media", "video", "image"}
	NumberKeywords  = []string{"count", "number", "amount", "total", "views", "likes", "comments"}
	DateKeywords    = []string{"date", "time", "created", "published", "taken", "at"}
	BooleanPrefixes = []string{"is_", "has_", "can_", "should_"}
	JSONKeywords    = []string{"json", "metadata", "data", "config"}
)

// Value tables shared by the validity predicates and the coercer.
var (
	BooleanLiterals = []string{"true", "false", "yes", "no", "1", "0"}
	TruthyLiterals  = []string{"true", "yes", "1", "on"}
	DateMarkers     = []string{"T", "-", ":", "UTC", "GMT", "+00:00"}
	URLSchemes      = []string{"http://", "https://"}

	// DateLayouts are tried in order; the first successful parse wins.
	DateLayouts = []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05.999999Z",
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z07:00",
	}

	// DefaultURLScheme is prepended to schemeless url cells.
	DefaultURLScheme = "https://"
)

// Ratio thresholds for value sniffing. A sample set matches when at least
// this fraction of its non-empty values satisfy the predicate.
const (
	NumericRatioThreshold = 0.8
	URLRatioThreshold     = 0.8
	BooleanRatioThreshold = 0.8
	DateRatioThreshold    = 0.8
)

// RequiredThreshold is the availability a field must exceed to be required.
const RequiredThreshold = 0.7

// Sampling caps.
const (
	InferenceSampleLimit = 20
	TypeSampleLimit      = 10
	QualitySampleLimit   = 10
	ConflictSampleLimit  = 3
	ReportSampleLimit    = 3
)

// SourceAliases maps a source name to the field variants that can feed a
// canonical column, in priority order.
var SourceAliases = map[string]map[string][]string{
	"instagram": {
		"caption":    {"caption", "text", "edge_media_to_caption.edges.0.node.text"},
		"likes":      {"like_count", "edge_liked_by.count", "likes"},
		"comments":   {"comment_count", "edge_media_to_comment.count", "comments"},
		"author":     {"owner.username", "author"},
		"media_url":  {"display_url", "url", "image_url"},
		"media_type": {"media_type", "__typename"},
		"timestamp":  {"taken_at", "timestamp", "date"},
		"location":   {"location.name", "location"},
		"hashtags":   {"hashtags", "tags"},
		"mentions":   {"usertags.in", "mentions"},
		"views":      {"view_count", "video_view_count"},
		"shares":     {"share_count"},
	},
	"tiktok": {
		"caption":    {"text", "description", "caption"},
		"likes":      {"diggCount", "likes", "like_count"},
		"comments":   {"commentCount", "comments", "comment_count"},
		"author":     {"authorMeta.name", "authorMeta.id", "username"},
		"media_url":  {"webVideoUrl", "videoUrl", "url"},
		"media_type": {"type", "media_type"},
		"timestamp":  {"createTime", "timestamp", "date"},
		"location":   {"location", "place"},
		"hashtags":   {"hashtags", "tags"},
		"mentions":   {"mentions", "user_tags"},
		"views":      {"playCount", "views", "view_count"},
		"shares":     {"shareCount", "shares", "share_count"},
	},
	"youtube": {
		"caption":    {"description", "title", "caption"},
		"likes":      {"likeCount", "likes", "like_count"},
		"comments":   {"commentCount", "comments", "comment_count"},
		"author":     {"channelTitle", "channelId", "author"},
		"media_url":  {"url", "webUrl", "video_url"},
		"media_type": {"type", "media_type"},
		"timestamp":  {"publishedAt", "timestamp", "date"},
		"location":   {"location", "place"},
		"hashtags":   {"hashtags", "tags"},
		"mentions":   {"mentions", "user_tags"},
		"views":      {"viewCount", "views", "view_count"},
		"shares":     {"share_count", "shares"},
	},
}

// FieldDescriptions holds fixed descriptions keyed by lower-cased field name.
var FieldDescriptions = map[string]string{
	"caption":         "Post caption or text content",
	"text":            "Text content of the post",
	"description":     "Description or caption",
	"likes":           "Number of likes",
	"like_count":      "Number of likes",
	"diggcount":       "Number of likes (TikTok)",
	"likecount":       "Number of likes",
	"comments":        "Number of comments",
	"comment_count":   "Number of comments",
	"commentcount":    "Number of comments",
	"shares":          "Number of shares",
	"share_count":     "Number of shares",
	"sharecount":      "Number of shares",
	"views":           "Number of views",
	"view_count":      "Number of views",
	"viewcount":       "Number of views",
	"playcount":       "Number of views (TikTok)",
	"author":          "Author or creator name",
	"username":        "Author username",
	"authormeta.name": "Author name (TikTok)",
	"channeltitle":    "Channel name (YouTube)",
	"media_url":       "URL to media content",
	"display_url":     "Media display URL",
	"webvideourl":     "Video URL (TikTok)",
	"url":             "URL link",
	"timestamp":       "Publication timestamp",
	"taken_at":        "When the post was created",
	"createtime":      "Creation time (TikTok)",
	"publishedat":     "Publication time (YouTube)",
	"location":        "Geographic location",
	"hashtags":        "Hashtags used",
	"mentions":        "User mentions",
	"usertags":        "User tags",
}

// Rules bundles every heuristic table the engine consults. The zero value
// is not usable; start from DefaultRules or LoadRules.
type Rules struct {
	URLKeywords     []string `yaml:"url_keywords"`
	NumberKeywords  []string `yaml:"number_keywords"`
	DateKeywords    []string `yaml:"date_keywords"`
	BooleanPrefixes []string `yaml:"boolean_prefixes"`
	JSONKeywords    []string `yaml:"json_keywords"`

	NumericRatio float64 `yaml:"numeric_ratio"`
	URLRatio     float64 `yaml:"url_ratio"`
	BooleanRatio float64 `yaml:"boolean_ratio"`
	DateRatio    float64 `yaml:"date_ratio"`

	BooleanLiterals []string `yaml:"boolean_literals"`
	TruthyLiterals  []string `yaml:"truthy_literals"`
	DateMarkers     []string `yaml:"date_markers"`
	URLSchemes      []string `yaml:"url_schemes"`
	DateLayouts     []string `yaml:"date_layouts"`
	DefaultScheme   string   `yaml:"default_scheme"`

	RequiredThreshold    float64 `yaml:"required_threshold"`
	InferenceSampleLimit int     `yaml:"inference_sample_limit"`
	TypeSampleLimit      int     `yaml:"type_sample_limit"`
	QualitySampleLimit   int     `yaml:"quality_sample_limit"`
	ConflictSampleLimit  int     `yaml:"conflict_sample_limit"`
	ReportSampleLimit    int     `yaml:"report_sample_limit"`

	SourceAliases     map[string]map[string][]string `yaml:"source_aliases"`
	FieldDescriptions map[string]string              `yaml:"field_descriptions"`
}

// DefaultRules returns a fresh copy of the built-in tables. Callers may
// modify the result freely.
func DefaultRules() *Rules {
	aliases := make(map[string]map[string][]string, len(SourceAliases))
	for source, table := range SourceAliases {
		copied := make(map[string][]string, len(table))
		for column, variants := range table {
			copied[column] = cloneStrings(variants)
		}
		aliases[source] = copied
	}

	descriptions := make(map[string]string, len(FieldDescriptions))
	for k, v := range FieldDescriptions {
		descriptions[k] = v
	}

	return &Rules{
		URLKeywords:          cloneStrings(URLKeywords),
		NumberKeywords:       cloneStrings(NumberKeywords),
		DateKeywords:         cloneStrings(DateKeywords),
		BooleanPrefixes:      cloneStrings(BooleanPrefixes),
		JSONKeywords:         cloneStrings(JSONKeywords),
		NumericRatio:         NumericRatioThreshold,
		URLRatio:             URLRatioThreshold,
		BooleanRatio:         BooleanRatioThreshold,
		DateRatio:            DateRatioThreshold,
		BooleanLiterals:      cloneStrings(BooleanLiterals),
		TruthyLiterals:       cloneStrings(TruthyLiterals),
		DateMarkers:          cloneStrings(DateMarkers),
		URLSchemes:           cloneStrings(URLSchemes),
		DateLayouts:          cloneStrings(DateLayouts),
		DefaultScheme:        DefaultURLScheme,
		RequiredThreshold:    RequiredThreshold,
		InferenceSampleLimit: InferenceSampleLimit,
		TypeSampleLimit:      TypeSampleLimit,
		QualitySampleLimit:   QualitySampleLimit,
		ConflictSampleLimit:  ConflictSampleLimit,
		ReportSampleLimit:    ReportSampleLimit,
		SourceAliases:        aliases,
		FieldDescriptions:    descriptions,
	}
}

// LoadRules reads a YAML file and overlays it on DefaultRules. Lists in the
// file replace the built-in lists; alias and description maps are merged
// entry by entry.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read rules file").
			WithDetail("path", path)
	}

	rules := DefaultRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse rules file").
			WithDetail("path", path)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// Validate checks that thresholds and caps are usable.
func (r *Rules) Validate() error {
	ratios := map[string]float64{
		"numeric_ratio":      r.NumericRatio,
		"url_ratio":          r.URLRatio,
		"boolean_ratio":      r.BooleanRatio,
		"date_ratio":         r.DateRatio,
		"required_threshold": r.RequiredThreshold,
	}
	for name, v := range ratios {
		if v < 0 || v > 1 {
			return errors.Newf(errors.ErrorTypeConfig, "%s must be between 0 and 1, got %v", name, v)
		}
	}

	limits := map[string]int{
		"inference_sample_limit": r.InferenceSampleLimit,
		"type_sample_limit":      r.TypeSampleLimit,
		"quality_sample_limit":   r.QualitySampleLimit,
		"conflict_sample_limit":  r.ConflictSampleLimit,
		"report_sample_limit":    r.ReportSampleLimit,
	}
	for name, v := range limits {
		if v <= 0 {
			return errors.Newf(errors.ErrorTypeConfig, "%s must be positive, got %d", name, v)
		}
	}

	if len(r.DateLayouts) == 0 {
		return errors.New(errors.ErrorTypeConfig, "date_layouts must not be empty")
	}
	return nil
}

// Aliases returns the alias variants for column in source, or nil.
func (r *Rules) Aliases(source, column string) []string {
	return r.SourceAliases[source][column]
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func orDefault(r *Rules) *Rules {
	if r == nil {
		return DefaultRules()
	}
	return r
}
