// Package watch turns file system changes under a set of directories into
// debounced triggers.
//
// `queuelab verify --watch` uses it to rerun scenarios while the site's
// sources are being edited. Directories are watched recursively, new
// directories are picked up as they appear, and bursts of events (an editor
// saving, a bundler rewriting its output) collapse into one Event once the
// tree has been quiet for the debounce interval.
package watch
