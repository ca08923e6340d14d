package normalize

import "github.com/santhosh-tekuri/jsonschema/v5"

// recordSchema is a structural pre-check on the raw extraction mapping,
// applied before any per-field coercion. It is deliberately loose about
// scalar types (extractors emit numbers and strings interchangeably) and
// strict only about shape: the record is an object and line_items, when
// present, is an array of objects.
const recordSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "invoice_id":     {"type": ["string", "number", "null"]},
    "invoice_number": {"type": ["string", "number", "null"]},
    "currency":       {"type": ["string", "null"]},
    "line_items": {
      "type": ["array", "null"],
      "items": {"type": "object"}
    }
  }
}`

var recordSchema = jsonschema.MustCompileString("extraction-record.json", recordSchemaJSON)
