package query

import (
	"encoding/json"
	"fmt"

	"moneyguard/internal/cache"
)

// DeriveKey builds the cache key of a query: the name followed by the
// canonical JSON of params in parentheses. Structs encode in field order and
// maps with sorted keys, so deep-equal params give equal keys.
func DeriveKey(name string, params any) cache.QueryKey {
	if params == nil {
		return cache.QueryKey(name + "()")
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return cache.QueryKey(fmt.Sprintf("%s(%#v)", name, params))
	}
	switch string(raw) {
	case "null", "{}", `""`:
		return cache.QueryKey(name + "()")
	}
	return cache.QueryKey(name + "(" + string(raw) + ")")
}
