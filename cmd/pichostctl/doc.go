// Command pichostctl runs maintenance tasks against a pichost installation
// without going through the HTTP server: synchronization, offline imports,
// deletions, XLSX export, thumbnail cleanup and SQLite to PostgreSQL
// catalog migration.
//
// It reads the same configuration as the server (config file, .env files
// and environment variables).
//
// Usage:
//
//	pichostctl sync --output json
//	pichostctl import ./My\ Shoes.zip
//	pichostctl delete-article My_Shoes A100 --yes
//	pichostctl export My_Shoes --type in_cell --out links.xlsx
//	pichostctl migrate --from ./data/pichost.db --to postgres://user:pass@db/pichost
//	pichostctl thumbnails clean My_Shoes
package main
