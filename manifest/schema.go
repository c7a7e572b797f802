package manifest

// SchemaFor maps a serializer type token to a JSON-Schema fragment. An
// explicit schema declared on the parameter always wins; this covers the
// builtin tokens so plain declarations need no hand-written schema. Unknown
// tokens yield the empty schema, which accepts any value.
func SchemaFor(token string) map[string]any {
	switch token {
	case "int", "int64":
		return map[string]any{"type": "integer"}
	case "float64":
		return map[string]any{"type": "number"}
	case "string":
		return map[string]any{"type": "string"}
	case "bool":
		return map[string]any{"type": "boolean"}
	case "bytes":
		return map[string]any{"type": "string", "contentEncoding": "base64"}
	case "file":
		return map[string]any{
			"type":             "string",
			"contentEncoding":  "base64",
			"contentMediaType": "application/octet-stream",
		}
	case "[]int":
		return map[string]any{"type": "array", "items": map[string]any{"type": "integer"}}
	case "[]float64":
		return map[string]any{"type": "array", "items": map[string]any{"type": "number"}}
	case "[]string":
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case "[]any":
		return map[string]any{"type": "array"}
	case "map[string]any":
		return map[string]any{"type": "object"}
	default:
		return map[string]any{}
	}
}
