package openai

import "encoding/json"

// rawJSONSchema decodes a caller-supplied JSON schema document into the
// generic map the OpenAI SDK's response_format field expects.
func rawJSONSchema(raw []byte) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
