// ABOUTME: Build and product identification
// ABOUTME: Version is overridden at link time with -ldflags "-X"
package version

// Version is the release version
var Version = "0.1.0"

const (
	Product      = "tempostream"
	Manufacturer = "harperreed"
)

// String returns "product version"
func String() string {
	return Product + " " + Version
}
