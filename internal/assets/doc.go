// Package assets converts source images into the icon, favicon and social
// preview files the site ships.
//
// Each job decodes a source (respecting its EXIF orientation), resizes it to
// an exact size, converts the color mode and encodes PNG, ICO or JPEG. Jobs
// fail independently: a broken or missing source only affects the jobs that
// read it. After all jobs ran, the sources are deleted unless the caller
// asked to keep them.
package assets
