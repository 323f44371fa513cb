//go:build !linux

package plan

// setUmask022 is a no-op outside Linux; the composition engine's mount step
// never runs there anyway, but keeping this package buildable elsewhere
// keeps its unit tests runnable on a developer's non-Linux machine.
func setUmask022() func() {
	return func() {}
}
