// Package main provides the entry point for the queuelab CLI.
//
// queuelab drives a headless browser through visual verification scenarios
// against a local dev server and preprocesses the site's image assets.
//
// Usage:
//
//	queuelab verify [scenario...]
//	queuelab assets
//	queuelab history <scenario>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
