//go:build !linux

package transport

func openPTY() (*ptyPair, error) {
	return nil, ErrPTYUnsupported
}
