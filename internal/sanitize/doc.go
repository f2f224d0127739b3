// Package sanitize turns user-supplied album, article and archive names into
// filesystem-safe path segments.
//
// Every component that derives a path segment from user input goes through
// [Name], so the same logical name always maps to the same directory.
package sanitize
