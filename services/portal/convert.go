package portal

import (
	"encoding/json"

	"gorm.io/datatypes"
)

func mapFromJSONMap(src datatypes.JSONMap) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func toJSONMap(src map[string]any) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	if src == nil {
		return out
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

func stringsFromJSON(src datatypes.JSON) []string {
	out := []string{}
	if len(src) == 0 {
		return out
	}
	if err := json.Unmarshal(src, &out); err != nil {
		return []string{}
	}
	return out
}

func toJSONStrings(src []string) datatypes.JSON {
	if src == nil {
		src = []string{}
	}
	data, err := json.Marshal(src)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}
