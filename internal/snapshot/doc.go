// Package snapshot summarizes the rendered DOM of a page.
//
// A snapshot is taken from the serialized document the browser returns after
// scripts ran, so it reflects client-side rendering rather than the HTML the
// dev server sent. The summary is small enough to store in the run report
// and compare between runs: title, headings, links, images, scripts, forms
// and element counts for a list of class names.
//
// # Usage
//
//	p, err := snapshot.NewParser("http://localhost:3000", []string{"h-8"})
//	snap, err := p.Parse(strings.NewReader(html))
//	fmt.Println(snap.Title, len(snap.Headings))
package snapshot
