package cache

import "strings"

// KeyPrefix namespaces cache entries in shared backends such as Redis.
const KeyPrefix = "catalog:response:"

// Key returns the backend key for a request URL.
// The URL is used verbatim so that distinct requests never collide.
//
// Example:
//
//	catalog:response:https://zoeken.oba.nl/api/v1/search?authorization=KEY&q=cats&pagesize=5&refine=true&page=1&rctx=abc
func Key(url string) string {
	return KeyPrefix + url
}

// URLFromKey strips KeyPrefix from a backend key.
func URLFromKey(key string) (string, bool) {
	return strings.CutPrefix(key, KeyPrefix)
}
