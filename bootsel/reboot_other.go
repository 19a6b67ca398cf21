//go:build !(tinygo && rp)

package bootsel

func reboot() error {
	return ErrUnsupported
}
