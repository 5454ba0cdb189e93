package imagecoord

// modelAliases maps OpenAI-style model names accepted by callers to the
// Image Backend's own model identifiers. Anything absent from this table
// falls back to defaultModel.
var modelAliases = map[string]string{
	"dall-e-3-pro":       "black-forest-labs/flux-1.1-pro",
	"dall-e-3-pro-ultra": "black-forest-labs/flux-1.1-pro-ultra",
	"dall-e-3-schnell":   "black-forest-labs/flux-1.1-schnell",
}

const defaultModel = "black-forest-labs/flux-1.1-dev"

// ResolveModel maps alias to a backend model identifier. Total: every
// input, including the empty string, produces a value.
func ResolveModel(alias string) string {
	if model, ok := modelAliases[alias]; ok {
		return model
	}
	return defaultModel
}

// sizeAspectRatios maps the OpenAI `size` parameter to the backend's
// aspect-ratio string. Anything absent falls back to defaultAspect.
var sizeAspectRatios = map[string]string{
	"1024x1024": "1:1",
	"1024x1792": "9:16",
	"1792x1024": "16:9",
}

const defaultAspect = "3:2"

// ResolveAspect maps size to an aspect ratio. Total, same as ResolveModel.
func ResolveAspect(size string) string {
	if aspect, ok := sizeAspectRatios[size]; ok {
		return aspect
	}
	return defaultAspect
}
