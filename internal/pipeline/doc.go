// Package pipeline executes verification scenarios as a sequence of steps.
//
// A scenario from the configuration is turned into a Pipeline by Build. Each
// step acts on a Page (navigate, click, fill, wait, screenshot, ...) and
// records its outcome, written files and observed values on the run's
// model.RunReport. The pipeline stops at the first failing step unless the
// scenario continues on error; a failing step can additionally trigger a
// best-effort diagnostic screenshot.
//
// BatchProcessor runs several scenarios concurrently with errgroup, giving
// each one a fresh page so that scenarios never share storage or history.
package pipeline
