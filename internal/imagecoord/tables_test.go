package imagecoord

import "testing"

func TestResolveModelTable(t *testing.T) {
	cases := map[string]string{
		"dall-e-3-pro":       "black-forest-labs/flux-1.1-pro",
		"dall-e-3-pro-ultra": "black-forest-labs/flux-1.1-pro-ultra",
		"dall-e-3-schnell":   "black-forest-labs/flux-1.1-schnell",
		"":                   defaultModel,
		"something-unknown":  defaultModel,
	}
	for alias, want := range cases {
		if got := ResolveModel(alias); got != want {
			t.Errorf("ResolveModel(%q) = %q, want %q", alias, got, want)
		}
	}
}

func TestResolveAspectTable(t *testing.T) {
	cases := map[string]string{
		"1024x1024": "1:1",
		"1024x1792": "9:16",
		"1792x1024": "16:9",
		"512x512":   defaultAspect,
		"":          defaultAspect,
	}
	for size, want := range cases {
		if got := ResolveAspect(size); got != want {
			t.Errorf("ResolveAspect(%q) = %q, want %q", size, got, want)
		}
	}
}
