package web

import (
	_ "embed"
)

//go:embed index.html
var indexPage []byte

// GetIndexPage returns the page that hosts the embedding SDK and drives an
// embed session over the websocket.
func GetIndexPage() ([]byte, error) {
	return indexPage, nil
}
