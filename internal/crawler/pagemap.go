package crawler

// PageMap is the compact page description handed to the semantic resolver
type PageMap struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Elements   []Element `json:"elements"`
	Navigation []NavItem `json:"navigation,omitempty"`
	IsSPA      bool      `json:"isSPA"`
}

// Element represents an interactive element on the page
type Element struct {
	Selector    string   `json:"selector"`
	Type        string   `json:"type"` // button, input type, link, select, checkbox, radio, option, combobox
	Text        string   `json:"text,omitempty"`
	Label       string   `json:"label,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Name        string   `json:"name,omitempty"`
	ID          string   `json:"id,omitempty"`
	Value       string   `json:"value,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// NavItem represents a navigation link
type NavItem struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
	Href     string `json:"href"`
}

// Selectors returns the set of selectors present in the map
func (m *PageMap) Selectors() map[string]bool {
	out := make(map[string]bool, len(m.Elements)+len(m.Navigation))
	for _, el := range m.Elements {
		out[el.Selector] = true
	}
	for _, n := range m.Navigation {
		out[n.Selector] = true
	}
	return out
}
