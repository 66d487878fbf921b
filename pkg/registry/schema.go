// pkg/registry/schema.go
package registry

type OperationRegistry struct {
	Version     string      `json:"version"`
	LastUpdated string      `json:"lastUpdated"`
	Operations  []Operation `json:"operations"`
}

type Operation struct {
	Name         string                 `json:"name"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Version      string                 `json:"version"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema"`
	ErrorCodes   []string               `json:"errorCodes"`
	Timeout      string                 `json:"timeout"`
	Cacheable    bool                   `json:"cacheable"`
	Tags         []string               `json:"tags"`
}

// Find returns the operation descriptor for a name, if registered.
func (r *OperationRegistry) Find(name string) (*Operation, bool) {
	for i := range r.Operations {
		if r.Operations[i].Name == name {
			return &r.Operations[i], true
		}
	}
	return nil, false
}
