package gemini

// SetBaseURLForTest overrides the endpoint prefix a Provider calls, for
// tests that stand up a local httptest.Server instead of hitting the real
// API.
func SetBaseURLForTest(p *Provider, url string) {
	p.baseURL = url
}
