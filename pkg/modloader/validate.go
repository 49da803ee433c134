// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package modloader

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/agentlang-ai/agentlang/pkg/types"
)

// manifestSchema checks the structural shape of a manifest before the
// decoder runs; pattern bodies stay free-form and are checked by the
// pattern decoder itself.
const manifestSchema = `{
  "type": "object",
  "required": ["module"],
  "properties": {
    "module": {"type": "string", "minLength": 1, "pattern": "^[^/]+$"},
    "records": {"$ref": "#/definitions/recordList"},
    "events": {"$ref": "#/definitions/recordList"},
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "attributes": {"$ref": "#/definitions/attrList"},
          "rbac": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["roles", "allow"],
              "properties": {
                "roles": {"type": "array", "items": {"type": "string"}},
                "allow": {
                  "type": "array",
                  "items": {"enum": ["create", "read", "update", "delete"]}
                }
              }
            }
          },
          "before": {"type": "object"},
          "after": {"type": "object"},
          "config": {"type": "boolean"},
          "unique": {
            "type": "array",
            "items": {"type": "array", "items": {"type": "string"}}
          }
        }
      }
    },
    "relationships": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "from", "to"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"enum": ["contains", "between"]},
          "from": {"type": "string", "minLength": 1},
          "to": {"type": "string", "minLength": 1},
          "cardinality": {"enum": ["one_one", "one_many", "many_many"]},
          "attributes": {"$ref": "#/definitions/attrList"}
        }
      }
    },
    "workflows": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "statements"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "statements": {"type": "array"}
        }
      }
    },
    "agents": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {"name": {"type": "string", "minLength": 1}}
      }
    },
    "resolvers": {"type": "object", "additionalProperties": {"type": "string"}},
    "init": {"type": "array"}
  },
  "definitions": {
    "recordList": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "attributes": {"$ref": "#/definitions/attrList"}
        }
      }
    },
    "attrList": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "type"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

// validateManifest checks raw manifest YAML against the embedded schema.
func validateManifest(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return types.WrapError(types.KindParse, err, "parse manifest yaml")
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(manifestSchema),
		gojsonschema.NewGoLoader(doc))
	if err != nil {
		return types.WrapError(types.KindParse, err, "validate manifest")
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return types.NewError(types.KindValidation, "invalid manifest: %s", strings.Join(msgs, "; "))
}
