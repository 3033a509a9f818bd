package entity

const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "routes": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["uri"],
        "properties": {
          "methods": {"type": "array", "items": {"type": "string", "minLength": 1}},
          "uri": {"type": "string"},
          "name": {"type": "string"},
          "action": {"type": "string"},
          "pattern": {"type": "string"},
          "wheres": {"type": "object", "additionalProperties": {"type": "string"}}
        }
      }
    },
    "views": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "translations": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "needles"],
        "properties": {
          "kind": {"type": "string"},
          "name": {"type": "string", "minLength": 1},
          "id": {"type": "string"},
          "needles": {
            "type": "array",
            "items": {
              "type": "object",
              "additionalProperties": false,
              "required": ["weight", "text"],
              "properties": {
                "weight": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
                "text": {"type": "string", "minLength": 1},
                "regex": {"type": "boolean"}
              }
            }
          }
        }
      }
    }
  }
}`
