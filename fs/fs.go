// Package appfs embeds the static files shipped with the binaries.
package appfs

import "embed"

//go:embed migrations/*.sql all:templates common-passwords.txt
var FS embed.FS
