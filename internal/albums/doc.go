// Package albums removes albums and articles from the upload tree, the
// catalog and the thumbnail cache in one step.
package albums
