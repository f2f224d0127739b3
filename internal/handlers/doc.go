// Package handlers provides the HTTP handlers of the image host.
//
// It includes handlers for:
//   - ZIP uploads and catalog synchronization
//   - Album, article and file listings
//   - Thumbnails and original images
//   - Album and article deletion, publishing and XLSX export
//   - Health checks and version information
package handlers
