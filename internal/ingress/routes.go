package ingress

// RoutingTable maps an originating platform to the downstream platforms
// that should receive its normalized events. It is static, assembled at
// startup. A source without an entry fans out as a broadcast that
// excludes the source itself.
type RoutingTable map[string][]string

// DefaultRoutes returns the built-in fan-out topology: code-development
// events feed the productivity and automation tools, support and
// deployment events feed the automation layer, and AI events land in the
// knowledge base.
func DefaultRoutes() RoutingTable {
	return RoutingTable{
		"github":  {"notion", "zapier"},
		"vercel":  {"github", "zapier"},
		"notion":  {"zapier"},
		"zapier":  {"notion"},
		"zendesk": {"zapier", "notion"},
		"openai":  {"notion"},
	}
}

// Targets returns the downstream platforms for a source, or nil when the
// event should be broadcast.
func (t RoutingTable) Targets(source string) []string {
	return t[source]
}
