// Package export renders the public links of an album as an XLSX workbook,
// one row per article.
package export
