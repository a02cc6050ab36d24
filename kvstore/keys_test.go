package kvstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		namespace string
		expected  string
	}{
		{"no namespace", "user", "", "user"},
		{"with namespace", "user", "app", "app:user"},
		{"empty key with namespace", "", "app", "app:"},
		{"separator in key passes through", "a:b", "app", "app:a:b"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, StorageKey(test.key, test.namespace))
		})
	}
}

func TestRawKey_RoundTrip(t *testing.T) {
	keys := []string{"user", "a:b", "", "deeply/nested/key"}
	namespaces := []string{"", "app", "ns:with:separator"}

	for _, ns := range namespaces {
		for _, key := range keys {
			raw, ok := RawKey(StorageKey(key, ns), ns)
			assert.True(t, ok, "round trip should succeed for key=%q ns=%q", key, ns)
			assert.Equal(t, key, raw)
		}
	}
}

func TestRawKey_WrongNamespace(t *testing.T) {
	_, ok := RawKey("other:user", "app")
	assert.False(t, ok)

	// Empty namespace accepts everything unchanged.
	raw, ok := RawKey("other:user", "")
	assert.True(t, ok)
	assert.Equal(t, "other:user", raw)
}

func TestFilterKeys(t *testing.T) {
	all := []string{"app:one", "other:two", "app:three", "bare", "app:"}

	filtered := FilterKeys(all, "app")
	assert.Equal(t, []string{"one", "three", ""}, filtered, "order preserved, prefix stripped")

	assert.Equal(t, all, FilterKeys(all, ""), "empty namespace returns input unchanged")
	assert.Empty(t, FilterKeys(all, "nomatch"))
}

func TestFilterKeys_SeparatorAmbiguity(t *testing.T) {
	// A raw key containing the separator is indistinguishable from a
	// nested namespace. Both storage keys below match namespace "a".
	all := []string{
		StorageKey("b:c", "a"), // "a:b:c"
		StorageKey("c", "a:b"), // "a:b:c" as well
	}
	filtered := FilterKeys(all, "a")
	assert.Equal(t, []string{"b:c", "b:c"}, filtered)
}
