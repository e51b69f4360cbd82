package gateway

import "strings"

// UnwrapCodeFence strips an optional markdown fence (```json ... ``` or
// ``` ... ```) around a model response. Unfenced input is only trimmed.
func UnwrapCodeFence(s string) string {
	cleaned := strings.TrimSpace(s)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "```")
	// drop the info string, e.g. "json"
	if nl := strings.IndexByte(cleaned, '\n'); nl >= 0 {
		info := strings.TrimSpace(cleaned[:nl])
		if !strings.ContainsAny(info, "{[") {
			cleaned = cleaned[nl+1:]
		}
	} else {
		cleaned = strings.TrimLeft(cleaned, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
