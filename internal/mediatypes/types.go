package mediatypes

import (
	"path/filepath"
	"strings"
)

// ImageFormat identifies how an allowed image can be rasterized.
type ImageFormat string

const (
	// FormatJPEG covers .jpg and .jpeg.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is Portable Network Graphics.
	FormatPNG ImageFormat = "png"
	// FormatGIF is the first frame of a GIF.
	FormatGIF ImageFormat = "gif"
	// FormatBMP is Windows bitmap.
	FormatBMP ImageFormat = "bmp"
	// FormatWebP is Google WebP.
	FormatWebP ImageFormat = "webp"
	// FormatTIFF is Tagged Image File Format.
	FormatTIFF ImageFormat = "tiff"
	// FormatSVG is a vector image. It is indexed and served but never rasterized.
	FormatSVG ImageFormat = "svg"
	// FormatUnknown is anything outside the allowed set.
	FormatUnknown ImageFormat = "unknown"
)

// ImageExtensions maps allowed upload extensions to their format.
var ImageExtensions = map[string]ImageFormat{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".webp": FormatWebP,
	".tiff": FormatTIFF,
	".svg":  FormatSVG,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".svg":  "image/svg+xml",
	".zip":  "application/zip",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Ext returns the lowercased extension of name including the leading dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// IsAllowedImage reports whether name carries an extension from the allowed
// image set. The comparison is case-insensitive.
func IsAllowedImage(name string) bool {
	_, ok := ImageExtensions[Ext(name)]
	return ok
}

// GetFormat returns the image format for a file name.
func GetFormat(name string) ImageFormat {
	if f, ok := ImageExtensions[Ext(name)]; ok {
		return f
	}
	return FormatUnknown
}

// IsRasterizable reports whether thumbnails can be produced for the format.
func (f ImageFormat) IsRasterizable() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatGIF, FormatBMP, FormatWebP, FormatTIFF:
		return true
	default:
		return false
	}
}

// GetMimeType returns the MIME type for a given file name or extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(name string) string {
	if mime, ok := MimeTypes[Ext(name)]; ok {
		return mime
	}
	return "application/octet-stream"
}
