package content

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// scenarioSchemaJSON 是剧本文件的结构约束。decision_point 允许 index 或 time
// 二选一，具体取舍在 loader 中用 gjson 探测。
const scenarioSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "symbol", "bars", "decision_point"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "symbol": {"type": "string", "minLength": 1},
    "chart_timeframe": {"type": "string"},
    "bars": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["time", "open", "high", "low", "close", "volume"],
        "properties": {
          "time": {"type": "integer"},
          "open": {"type": "number"},
          "high": {"type": "number"},
          "low": {"type": "number"},
          "close": {"type": "number"},
          "volume": {"type": "number", "minimum": 0}
        }
      }
    },
    "key_levels": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "price"],
        "properties": {
          "type": {"type": "string"},
          "price": {"type": "number"},
          "strength": {"type": "integer"},
          "label": {"type": "string"}
        }
      }
    },
    "decision_point": {
      "type": "object",
      "required": ["correct_action"],
      "properties": {
        "index": {"type": "integer", "minimum": 0},
        "time": {"type": "integer"},
        "correct_action": {"type": "string"}
      },
      "anyOf": [
        {"required": ["index"]},
        {"required": ["time"]}
      ]
    }
  }
}`

var scenarioSchema = mustCompileSchema(scenarioSchemaJSON)

func mustCompileSchema(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("scenario.json", strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("scenario schema resource: %v", err))
	}
	schema, err := compiler.Compile("scenario.json")
	if err != nil {
		panic(fmt.Sprintf("scenario schema compile: %v", err))
	}
	return schema
}
