package constants

// GeoIndex is the fixed geography-code table the classifier was trained
// against. Codes outside this set encode to FallbackGeoIndex.
var GeoIndex = map[string]int{
	"PK": 0,
	"IN": 1,
	"US": 2,
	"AE": 3,
	"BD": 4,
	"NG": 5,
}

// FallbackGeoIndex is the index assigned to geography codes the model has
// never seen. It must stay inside the trained category space.
const FallbackGeoIndex = 0

// GeoCodes returns the known codes in index order.
func GeoCodes() []string {
	out := make([]string, len(GeoIndex))
	for code, idx := range GeoIndex {
		out[idx] = code
	}
	return out
}
