package features

import "github.com/fraudsight/fraudsight/constants"

// Encode maps a geography code to its trained category index. It is a total
// function: codes outside the table map to constants.FallbackGeoIndex so an
// unseen code at inference time never fails the request.
func Encode(geoCode string) int {
	if idx, ok := constants.GeoIndex[geoCode]; ok {
		return idx
	}
	return constants.FallbackGeoIndex
}
