package catalog

import "golang.org/x/exp/slices"

// Platform ids

const (
	Meta      = "meta"
	Google    = "google"
	TikTok    = "tiktok"
	LinkedIn  = "linkedin"
	Twitter   = "twitter"
	Pinterest = "pinterest"
	Snapchat  = "snapchat"
	Amazon    = "amazon"
	Shopify   = "shopify"
	Klaviyo   = "klaviyo"
)

type Entry struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	RequiresOAuth  bool     `json:"requiresOAuth"`
	RequiresAPIKey bool     `json:"requiresApiKey"`
	APIKeyFields   []string `json:"apiKeyFields,omitempty"`
	DefaultScopes  []string `json:"defaultScopes,omitempty"`
}

// Catalog is the read-only list of supported platforms. Build it once at startup and pass it around.
type Catalog struct {
	entries []Entry
	index   map[string]int
}

func New(entries []Entry) *Catalog {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, entry := range entries {
		if _, exists := c.index[entry.ID]; exists {
			continue
		}
		c.index[entry.ID] = len(c.entries)
		c.entries = append(c.entries, clone(entry))
	}
	return c
}

func Default() *Catalog {
	return New([]Entry{
		{
			ID:            Meta,
			Name:          "Meta Ads",
			Description:   "Facebook and Instagram advertising.",
			Category:      "advertising",
			RequiresOAuth: true,
			DefaultScopes: []string{"ads_read", "business_management"},
		},
		{
			ID:            Google,
			Name:          "Google Ads",
			Description:   "Search, display and YouTube advertising.",
			Category:      "advertising",
			RequiresOAuth: true,
			DefaultScopes: []string{"https://www.googleapis.com/auth/adwords"},
		},
		{
			ID:            TikTok,
			Name:          "TikTok Ads",
			Description:   "TikTok for Business advertising.",
			Category:      "advertising",
			RequiresOAuth: true,
			DefaultScopes: []string{"ads.read"},
		},
		{
			ID:            LinkedIn,
			Name:          "LinkedIn Ads",
			Description:   "LinkedIn campaign manager.",
			Category:      "advertising",
			RequiresOAuth: true,
			DefaultScopes: []string{"r_ads", "r_ads_reporting"},
		},
		{
			ID:            Twitter,
			Name:          "X Ads",
			Description:   "X (Twitter) advertising.",
			Category:      "advertising",
			RequiresOAuth: true,
			DefaultScopes: []string{"tweet.read", "users.read", "offline.access"},
		},
		{
			ID:            Pinterest,
			Name:          "Pinterest Ads",
			Description:   "Pinterest advertising.",
			Category:      "advertising",
			RequiresOAuth: true,
			DefaultScopes: []string{"ads:read"},
		},
		{
			ID:            Snapchat,
			Name:          "Snapchat Ads",
			Description:   "Snapchat advertising.",
			Category:      "advertising",
			RequiresOAuth: true,
			DefaultScopes: []string{"snapchat-marketing-api"},
		},
		{
			ID:            Amazon,
			Name:          "Amazon Ads",
			Description:   "Amazon sponsored products and display.",
			Category:      "advertising",
			RequiresOAuth: true,
			DefaultScopes: []string{"advertising::campaign_management"},
		},
		{
			ID:             Shopify,
			Name:           "Shopify",
			Description:    "Shopify store marketing events.",
			Category:       "ecommerce",
			RequiresAPIKey: true,
			APIKeyFields:   []string{"apiKey", "apiSecret", "shopDomain"},
		},
		{
			ID:             Klaviyo,
			Name:           "Klaviyo",
			Description:    "Klaviyo email and SMS campaigns.",
			Category:       "email",
			RequiresAPIKey: true,
			APIKeyFields:   []string{"apiKey", "accountId"},
		},
	})
}

// All returns a copy of every entry in catalog order.
func (c *Catalog) All() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, clone(entry))
	}
	return out
}

func (c *Catalog) Get(id string) (Entry, bool) {
	i, ok := c.index[id]
	if !ok {
		return Entry{}, false
	}
	return clone(c.entries[i]), true
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.entries))
	for _, entry := range c.entries {
		ids = append(ids, entry.ID)
	}
	return ids
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

func clone(entry Entry) Entry {
	entry.APIKeyFields = slices.Clone(entry.APIKeyFields)
	entry.DefaultScopes = slices.Clone(entry.DefaultScopes)
	return entry
}
