package snapshot

import (
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// HTML element name constants for form field detection.
const (
	htmlElementInput    = "input"
	htmlElementSelect   = "select"
	htmlElementTextarea = "textarea"
)

// Parser extracts a Snapshot from rendered HTML.
type Parser struct {
	// baseURL is the URL of the page, used for resolving relative URLs.
	baseURL *url.URL

	// classes are the class names whose elements are counted.
	classes []string
}

// Snapshot summarizes one rendered document.
type Snapshot struct {
	// Title is the page title from the <title> tag.
	Title string `json:"title"`

	// Headings are the trimmed texts of h1-h3 elements in document order.
	Headings []string `json:"headings,omitempty"`

	// InternalLinks point at the same host as the page.
	InternalLinks []string `json:"internal_links,omitempty"`

	// ExternalLinks point anywhere else.
	ExternalLinks []string `json:"external_links,omitempty"`

	// Images are image and icon sources.
	Images []string `json:"images,omitempty"`

	// Scripts are external script sources.
	Scripts []string `json:"scripts,omitempty"`

	// Forms describes each form and its fields.
	Forms []Form `json:"forms,omitempty"`

	// MetaTags holds name/property → content of meta tags.
	MetaTags map[string]string `json:"meta_tags,omitempty"`

	// ClassCounts counts elements carrying each requested class name.
	ClassCounts map[string]int `json:"class_counts,omitempty"`

	// Elements is the total number of element nodes.
	Elements int `json:"elements"`

	// text is the whitespace-normalized visible text.
	text string
}

// Form describes an HTML form.
type Form struct {
	// Action is the resolved form action URL.
	Action string `json:"action,omitempty"`

	// Method is the HTTP method (GET, POST).
	Method string `json:"method"`

	// Fields contains the named controls of the form.
	Fields []FormField `json:"fields,omitempty"`
}

// FormField represents a form control.
type FormField struct {
	// Name is the field name attribute, or its id when unnamed.
	Name string `json:"name"`

	// Type is the input type (text, email, radio, textarea, ...).
	Type string `json:"type"`

	// Label is the text of the label associated with the field.
	Label string `json:"label,omitempty"`
}

// NewParser creates a parser for a page at baseURL that counts elements
// carrying any of classes.
func NewParser(baseURL string, classes []string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u, classes: classes}, nil
}

// Parse reads a document and builds its snapshot.
func (p *Parser) Parse(content io.Reader) (*Snapshot, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		MetaTags:    make(map[string]string),
		ClassCounts: make(map[string]int, len(p.classes)),
	}
	for _, class := range p.classes {
		snap.ClassCounts[class] = 0
	}

	labels := collectLabels(doc)

	var text strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			p.processElement(n, snap, labels)
			if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
				return
			}
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteString(" ")
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	snap.text = normalizeSpace(text.String())
	return snap, nil
}

// processElement handles one element node.
func (p *Parser) processElement(n *html.Node, snap *Snapshot, labels map[string]string) {
	snap.Elements++
	p.countClasses(n, snap)

	switch n.Data {
	case "title":
		snap.Title = normalizeSpace(textOf(n))

	case "h1", "h2", "h3":
		if t := normalizeSpace(textOf(n)); t != "" {
			snap.Headings = append(snap.Headings, t)
		}

	case "a":
		if href := getAttr(n, "href"); href != "" {
			if resolved := p.resolveURL(href); resolved != "" {
				p.classifyLink(resolved, snap)
			}
		}

	case "form":
		form := Form{
			Action: p.resolveURL(getAttr(n, "action")),
			Method: strings.ToUpper(getAttr(n, "method")),
		}
		if form.Method == "" {
			form.Method = "GET"
		}
		extractFormFields(n, &form, labels)
		snap.Forms = append(snap.Forms, form)

	case "script":
		if src := getAttr(n, "src"); src != "" {
			snap.Scripts = append(snap.Scripts, p.resolveURL(src))
		}

	case "img":
		if src := getAttr(n, "src"); src != "" {
			snap.Images = append(snap.Images, p.resolveURL(src))
		}

	case "meta":
		name := getAttr(n, "name")
		if name == "" {
			name = getAttr(n, "property") // OpenGraph uses property
		}
		if content := getAttr(n, "content"); name != "" && content != "" {
			snap.MetaTags[name] = content
		}

	case "link":
		if href := getAttr(n, "href"); href != "" {
			rel := getAttr(n, "rel")
			if rel == "icon" || rel == "shortcut icon" || rel == "apple-touch-icon" {
				snap.Images = append(snap.Images, p.resolveURL(href))
			}
		}
	}
}

// countClasses increments the counters of requested classes n carries.
func (p *Parser) countClasses(n *html.Node, snap *Snapshot) {
	if len(p.classes) == 0 {
		return
	}
	have := strings.Fields(getAttr(n, "class"))
	for _, want := range p.classes {
		if hasAllClasses(have, want) {
			snap.ClassCounts[want]++
		}
	}
}

// hasAllClasses reports whether have contains every class of want, which may
// be a dotted compound such as "h-8.w-auto".
func hasAllClasses(have []string, want string) bool {
	parts := strings.Split(strings.TrimPrefix(want, "."), ".")
	for _, part := range parts {
		found := false
		for _, h := range have {
			if h == part {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return len(parts) > 0
}

// collectLabels maps control ids to the text of their <label for=...>.
func collectLabels(doc *html.Node) map[string]string {
	labels := make(map[string]string)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "label" {
			if id := getAttr(n, "for"); id != "" {
				labels[id] = normalizeSpace(textOf(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return labels
}

// extractFormFields recursively extracts the controls of a form. Controls
// nested in a <label> take that label's text.
func extractFormFields(n *html.Node, form *Form, labels map[string]string) {
	if n.Type == html.ElementNode && (n.Data == htmlElementInput || n.Data == htmlElementSelect || n.Data == htmlElementTextarea) {
		field := FormField{
			Name: getAttr(n, "name"),
			Type: getAttr(n, "type"),
		}
		id := getAttr(n, "id")
		if field.Name == "" {
			field.Name = id
		}
		if field.Type == "" {
			switch n.Data {
			case htmlElementTextarea:
				field.Type = htmlElementTextarea
			case htmlElementSelect:
				field.Type = htmlElementSelect
			default:
				field.Type = "text"
			}
		}
		if id != "" {
			field.Label = labels[id]
		}
		if field.Label == "" {
			for parent := n.Parent; parent != nil; parent = parent.Parent {
				if parent.Type == html.ElementNode && parent.Data == "label" {
					field.Label = normalizeSpace(textOf(parent))
					break
				}
			}
		}
		if field.Name != "" || field.Label != "" {
			form.Fields = append(form.Fields, field)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractFormFields(c, form, labels)
	}
}

// resolveURL resolves a relative URL against the base URL.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") ||
		href == "#" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(u).String()
}

// classifyLink files a link as internal or external.
func (p *Parser) classifyLink(link string, snap *Snapshot) {
	u, err := url.Parse(link)
	if err != nil {
		return
	}
	if u.Host == "" || strings.EqualFold(u.Host, p.baseURL.Host) {
		snap.InternalLinks = append(snap.InternalLinks, link)
		return
	}
	snap.ExternalLinks = append(snap.ExternalLinks, link)
}

// ContainsText reports whether the visible text contains s, ignoring
// differences in whitespace.
func (s *Snapshot) ContainsText(text string) bool {
	return strings.Contains(s.text, normalizeSpace(text))
}

// Stats returns the snapshot as ordered key/value pairs for run reports.
func (s *Snapshot) Stats() [][2]string {
	stats := [][2]string{
		{"title", s.Title},
		{"elements", strconv.Itoa(s.Elements)},
		{"headings", strconv.Itoa(len(s.Headings))},
		{"links", strconv.Itoa(len(s.InternalLinks) + len(s.ExternalLinks))},
		{"images", strconv.Itoa(len(s.Images))},
		{"forms", strconv.Itoa(len(s.Forms))},
	}

	classes := make([]string, 0, len(s.ClassCounts))
	for class := range s.ClassCounts {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		stats = append(stats, [2]string{"class." + class, strconv.Itoa(s.ClassCounts[class])})
	}
	return stats
}

// textOf concatenates the text nodes below n.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// normalizeSpace collapses runs of whitespace and trims the result.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
