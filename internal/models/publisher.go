package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// PublisherStatus represents the lifecycle state of a publisher account.
// Publishers are never deleted; they are set inactive.
type PublisherStatus string

const (
	PublisherStatusTrial    PublisherStatus = "trial"
	PublisherStatusActive   PublisherStatus = "active"
	PublisherStatusInactive PublisherStatus = "inactive"
)

// Publisher is the tenant record, owned exclusively by the SQLite store.
// TotalBlogsProcessed and BlogSlotsReserved only ever change through the
// reserve/release slot operations.
type Publisher struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Domain              string          `json:"domain"` // normalized: lowercase, no leading www.
	Email               string          `json:"email"`
	APIKey              string          `json:"-"` // never serialized after onboarding
	Status              PublisherStatus `json:"status"`
	Config              PublisherConfig `json:"config"`
	TotalBlogsProcessed int             `json:"total_blogs_processed"`
	BlogSlotsReserved   int             `json:"blog_slots_reserved"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// PublisherConfig holds per-publisher processing options. Unknown keys
// round-trip through Extra so widget configuration owned by the API layer
// survives read-modify-write cycles.
type PublisherConfig struct {
	MaxTotalBlogs        *int     `json:"max_total_blogs,omitempty"`
	DailyBlogLimit       *int     `json:"daily_blog_limit,omitempty"`
	WhitelistedBlogURLs  []string `json:"whitelisted_blog_urls,omitempty"`
	QuestionsPerBlog     int      `json:"questions_per_blog"`
	LLMModel             string   `json:"llm_model,omitempty"`
	ChatModel            string   `json:"chat_model,omitempty"`
	Temperature          float32  `json:"temperature"`
	MaxTokens            int      `json:"max_tokens,omitempty"`
	ChatTemperature      float32  `json:"chat_temperature,omitempty"`
	ChatMaxTokens        int      `json:"chat_max_tokens,omitempty"`
	GenerateSummary      bool     `json:"generate_summary"`
	GenerateEmbeddings   bool     `json:"generate_embeddings"`
	CustomQuestionPrompt string   `json:"custom_question_prompt,omitempty"`
	CustomSummaryPrompt  string   `json:"custom_summary_prompt,omitempty"`

	// Extra carries unrecognized keys verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

// publisherConfigAlias avoids recursion in the custom JSON methods.
type publisherConfigAlias PublisherConfig

var publisherConfigKnownKeys = map[string]struct{}{
	"max_total_blogs":        {},
	"daily_blog_limit":       {},
	"whitelisted_blog_urls":  {},
	"questions_per_blog":     {},
	"llm_model":              {},
	"chat_model":             {},
	"temperature":            {},
	"max_tokens":             {},
	"chat_temperature":       {},
	"chat_max_tokens":        {},
	"generate_summary":       {},
	"generate_embeddings":    {},
	"custom_question_prompt": {},
	"custom_summary_prompt":  {},
}

// UnmarshalJSON decodes known options into typed fields and keeps the rest
// in Extra.
func (c *PublisherConfig) UnmarshalJSON(data []byte) error {
	var alias publisherConfigAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range publisherConfigKnownKeys {
		delete(raw, key)
	}
	if len(raw) > 0 {
		alias.Extra = raw
	}

	*c = PublisherConfig(alias)
	return nil
}

// MarshalJSON emits typed fields plus any preserved unknown keys. Typed
// fields win on collision.
func (c PublisherConfig) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(publisherConfigAlias(c))
	if err != nil {
		return nil, err
	}

	if len(c.Extra) == 0 {
		return typed, nil
	}

	merged := make(map[string]json.RawMessage, len(c.Extra)+len(publisherConfigKnownKeys))
	for key, value := range c.Extra {
		merged[key] = value
	}
	var typedMap map[string]json.RawMessage
	if err := json.Unmarshal(typed, &typedMap); err != nil {
		return nil, err
	}
	for key, value := range typedMap {
		merged[key] = value
	}

	return json.Marshal(merged)
}

// PublisherConfigPatch is a partial update to PublisherConfig. Nil fields
// leave the stored value untouched, so an explicit false or zero is
// distinguishable from an omitted key.
type PublisherConfigPatch struct {
	MaxTotalBlogs        *int     `json:"max_total_blogs,omitempty"`
	DailyBlogLimit       *int     `json:"daily_blog_limit,omitempty"`
	WhitelistedBlogURLs  []string `json:"whitelisted_blog_urls,omitempty"`
	QuestionsPerBlog     *int     `json:"questions_per_blog,omitempty"`
	LLMModel             *string  `json:"llm_model,omitempty"`
	ChatModel            *string  `json:"chat_model,omitempty"`
	Temperature          *float32 `json:"temperature,omitempty"`
	MaxTokens            *int     `json:"max_tokens,omitempty"`
	ChatTemperature      *float32 `json:"chat_temperature,omitempty"`
	ChatMaxTokens        *int     `json:"chat_max_tokens,omitempty"`
	GenerateSummary      *bool    `json:"generate_summary,omitempty"`
	GenerateEmbeddings   *bool    `json:"generate_embeddings,omitempty"`
	CustomQuestionPrompt *string  `json:"custom_question_prompt,omitempty"`
	CustomSummaryPrompt  *string  `json:"custom_summary_prompt,omitempty"`

	// Extra carries unrecognized keys verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

type publisherConfigPatchAlias PublisherConfigPatch

// UnmarshalJSON keeps unknown keys in Extra, mirroring PublisherConfig.
func (p *PublisherConfigPatch) UnmarshalJSON(data []byte) error {
	var alias publisherConfigPatchAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range publisherConfigKnownKeys {
		delete(raw, key)
	}
	if len(raw) > 0 {
		alias.Extra = raw
	}

	*p = PublisherConfigPatch(alias)
	return nil
}

// Apply overlays the set patch fields onto base and returns the merged
// config. Extension keys merge with patch precedence.
func (p PublisherConfigPatch) Apply(base PublisherConfig) PublisherConfig {
	merged := base

	if p.MaxTotalBlogs != nil {
		merged.MaxTotalBlogs = p.MaxTotalBlogs
	}
	if p.DailyBlogLimit != nil {
		merged.DailyBlogLimit = p.DailyBlogLimit
	}
	if p.WhitelistedBlogURLs != nil {
		merged.WhitelistedBlogURLs = p.WhitelistedBlogURLs
	}
	if p.QuestionsPerBlog != nil {
		merged.QuestionsPerBlog = *p.QuestionsPerBlog
	}
	if p.LLMModel != nil {
		merged.LLMModel = *p.LLMModel
	}
	if p.ChatModel != nil {
		merged.ChatModel = *p.ChatModel
	}
	if p.Temperature != nil {
		merged.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		merged.MaxTokens = *p.MaxTokens
	}
	if p.ChatTemperature != nil {
		merged.ChatTemperature = *p.ChatTemperature
	}
	if p.ChatMaxTokens != nil {
		merged.ChatMaxTokens = *p.ChatMaxTokens
	}
	if p.GenerateSummary != nil {
		merged.GenerateSummary = *p.GenerateSummary
	}
	if p.GenerateEmbeddings != nil {
		merged.GenerateEmbeddings = *p.GenerateEmbeddings
	}
	if p.CustomQuestionPrompt != nil {
		merged.CustomQuestionPrompt = *p.CustomQuestionPrompt
	}
	if p.CustomSummaryPrompt != nil {
		merged.CustomSummaryPrompt = *p.CustomSummaryPrompt
	}

	if len(p.Extra) > 0 {
		if merged.Extra == nil {
			merged.Extra = make(map[string]json.RawMessage, len(p.Extra))
		} else {
			copied := make(map[string]json.RawMessage, len(merged.Extra)+len(p.Extra))
			for key, value := range merged.Extra {
				copied[key] = value
			}
			merged.Extra = copied
		}
		for key, value := range p.Extra {
			merged.Extra[key] = value
		}
	}

	return merged
}

// DefaultPublisherConfig returns the config applied at onboarding when the
// admin supplies no options.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		QuestionsPerBlog:   5,
		Temperature:        0.7,
		ChatTemperature:    0.7,
		GenerateSummary:    true,
		GenerateEmbeddings: true,
	}
}

// ApplyDefaults fills unset fields with their defaults.
func (c *PublisherConfig) ApplyDefaults() {
	if c.QuestionsPerBlog == 0 {
		c.QuestionsPerBlog = 5
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.ChatTemperature == 0 {
		c.ChatTemperature = 0.7
	}
}

// Validate enforces the recognized option ranges.
func (c *PublisherConfig) Validate() error {
	if c.QuestionsPerBlog < 1 || c.QuestionsPerBlog > 20 {
		return fmt.Errorf("questions_per_blog must be between 1 and 20, got %d", c.QuestionsPerBlog)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0.0 and 1.0, got %g", c.Temperature)
	}
	if c.ChatTemperature < 0 || c.ChatTemperature > 1 {
		return fmt.Errorf("chat_temperature must be between 0.0 and 1.0, got %g", c.ChatTemperature)
	}
	if c.MaxTotalBlogs != nil && *c.MaxTotalBlogs < 0 {
		return fmt.Errorf("max_total_blogs must be non-negative, got %d", *c.MaxTotalBlogs)
	}
	if c.DailyBlogLimit != nil && *c.DailyBlogLimit < 0 {
		return fmt.Errorf("daily_blog_limit must be non-negative, got %d", *c.DailyBlogLimit)
	}
	return nil
}

// Snapshot returns an independent copy taken at job creation so retries use
// stable parameters even if the publisher edits config mid-flight.
func (c PublisherConfig) Snapshot() *PublisherConfig {
	snapshot := c
	if c.MaxTotalBlogs != nil {
		v := *c.MaxTotalBlogs
		snapshot.MaxTotalBlogs = &v
	}
	if c.DailyBlogLimit != nil {
		v := *c.DailyBlogLimit
		snapshot.DailyBlogLimit = &v
	}
	if c.WhitelistedBlogURLs != nil {
		snapshot.WhitelistedBlogURLs = append([]string(nil), c.WhitelistedBlogURLs...)
	}
	if c.Extra != nil {
		snapshot.Extra = make(map[string]json.RawMessage, len(c.Extra))
		for key, value := range c.Extra {
			snapshot.Extra[key] = append(json.RawMessage(nil), value...)
		}
	}
	return &snapshot
}
