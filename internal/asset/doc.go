// Package asset localizes the images referenced by mirrored pages.
//
// A Store downloads each image once into the asset directory and hands
// back a reference relative to the content root ("images/logo.png").
// The presence of the file on disk is the only cache record: an existing
// file is never fetched again, and there is no checksum or staleness
// check. When an image cannot be fetched or written the Store returns the
// original remote URL, so the generated page links to the image on the
// site instead of to a missing local file.
package asset
