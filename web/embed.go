package web

import "embed"

// Content holds the browser client: the page, the three.js renderer script and
// its stylesheet.
//
//go:embed index.html app.js styles.css
var Content embed.FS
