package browser

import (
	"fmt"
	"strconv"
	"strings"
)

// Locator identifies elements on a page. Exactly one of Selector, Label or
// Text is normally set; HasText narrows a Selector match and Nth picks one
// of several matches.
type Locator struct {
	// Selector is a CSS selector.
	Selector string

	// HasText keeps only Selector matches whose text contains it.
	HasText string

	// Label finds the form control associated with a <label> whose text
	// equals it, falling back to an aria-label match.
	Label string

	// Text finds the innermost element whose text equals it.
	Text string

	// Nth is the 0-based index among the matches.
	Nth int
}

// CSS returns a locator for a plain CSS selector.
func CSS(selector string) Locator {
	return Locator{Selector: selector}
}

// IsZero reports whether the locator names nothing.
func (l Locator) IsZero() bool {
	return l.Selector == "" && l.Label == "" && l.Text == ""
}

// String renders the locator for logs and reports.
func (l Locator) String() string {
	var b strings.Builder
	switch {
	case l.Label != "":
		b.WriteString("label=")
		b.WriteString(strconv.Quote(l.Label))
	case l.Text != "":
		b.WriteString("text=")
		b.WriteString(strconv.Quote(l.Text))
	default:
		b.WriteString(l.Selector)
		if l.HasText != "" {
			fmt.Fprintf(&b, ":has-text(%s)", strconv.Quote(l.HasText))
		}
	}
	if l.Nth > 0 {
		fmt.Fprintf(&b, " >> nth=%d", l.Nth)
	}
	return b.String()
}

// args returns the locator as positional arguments for the locate scripts.
func (l Locator) args() []any {
	return []any{l.Selector, l.HasText, l.Label, l.Text, l.Nth}
}

// locateAllJS returns every element matching a locator, in document order.
const locateAllJS = `function (selector, hasText, label, text) {
	const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
	if (label) {
		const labels = [...document.querySelectorAll('label')];
		let found = labels.filter((l) => norm(l.textContent) === label);
		if (found.length === 0) {
			const lower = label.toLowerCase();
			found = labels.filter((l) => norm(l.textContent).toLowerCase().includes(lower));
		}
		const controls = found.map((l) => l.control || (l.htmlFor && document.getElementById(l.htmlFor))).filter(Boolean);
		if (controls.length > 0) {
			return controls;
		}
		return [...document.querySelectorAll('[aria-label]')].filter((el) => norm(el.getAttribute('aria-label')) === label);
	}
	if (text) {
		const matches = [...document.body.querySelectorAll('*')].filter((el) => norm(el.textContent) === text);
		return matches.filter((el) => !matches.some((other) => other !== el && el.contains(other)));
	}
	const all = [...document.querySelectorAll(selector)];
	return hasText ? all.filter((el) => (el.textContent || '').includes(hasText)) : all;
}`

// locateOneJS returns the Nth match or null.
const locateOneJS = `(selector, hasText, label, text, nth) => {
	const all = (` + locateAllJS + `)(selector, hasText, label, text);
	return all[nth] || null;
}`

// countJS returns the number of matches.
const countJS = `(selector, hasText, label, text) => (` + locateAllJS + `)(selector, hasText, label, text).length`

// hiddenJS is true when the Nth match is absent or not rendered.
const hiddenJS = `(selector, hasText, label, text, nth) => {
	const el = (` + locateAllJS + `)(selector, hasText, label, text)[nth];
	if (!el) {
		return true;
	}
	const style = window.getComputedStyle(el);
	return style.visibility === 'hidden' || el.getClientRects().length === 0;
}`

// checkedJS reads native and ARIA checked state.
const checkedJS = `function () {
	if (typeof this.checked === 'boolean' && (this.type === 'checkbox' || this.type === 'radio')) {
		return this.checked;
	}
	return this.getAttribute('aria-checked') === 'true' || this.getAttribute('data-state') === 'checked';
}`

// forceClickJS dispatches a click without actionability checks.
const forceClickJS = `function () { this.click(); }`
