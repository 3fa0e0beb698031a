// Package migrations embeds the schema files. Files apply in lexical order,
// so new migrations take the next NNNN_ prefix.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
