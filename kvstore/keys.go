package kvstore

import "strings"

// Separator joins a namespace and a raw key into a storage key. Raw keys or
// namespaces that themselves contain the separator produce ambiguous prefix
// matches during enumeration and clear-by-namespace; inputs are passed
// through unchanged, so callers that need unambiguous listing must avoid
// the separator in their own identifiers.
const Separator = ":"

// StorageKey maps a raw key and namespace to the key used on the engine
// boundary. An empty namespace leaves the key untouched.
func StorageKey(key, namespace string) string {
	if namespace == "" {
		return key
	}
	return namespace + Separator + key
}

// RawKey strips the namespace prefix from a storage key. The second return
// is false when the storage key does not belong to the namespace.
func RawKey(storageKey, namespace string) (string, bool) {
	if namespace == "" {
		return storageKey, true
	}
	prefix := namespace + Separator
	if !strings.HasPrefix(storageKey, prefix) {
		return "", false
	}
	return storageKey[len(prefix):], true
}

// FilterKeys returns the raw keys belonging to namespace, preserving the
// original enumeration order. With an empty namespace every key is returned
// as-is.
func FilterKeys(keys []string, namespace string) []string {
	if namespace == "" {
		return keys
	}
	filtered := make([]string, 0, len(keys))
	for _, k := range keys {
		if raw, ok := RawKey(k, namespace); ok {
			filtered = append(filtered, raw)
		}
	}
	return filtered
}
