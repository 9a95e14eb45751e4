// Package browser drives Chromium over the DevTools protocol with go-rod.
//
// A Launcher owns one browser process (or an attached browser reached via
// its control URL). Each scenario gets its own Page in a fresh incognito
// context with the scenario's viewport, user agent and touch emulation.
// Elements are addressed with a Locator: a CSS selector optionally narrowed
// by contained text, a form label, or an exact text match.
//
// Operations that wait take an explicit timeout. A deadline surfaces as an
// error matching both ErrTimeout and context.DeadlineExceeded.
package browser
