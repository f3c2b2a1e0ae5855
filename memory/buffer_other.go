//go:build !linux

package memory

func allocate(size int, hugePages bool) ([]byte, bool, error) {
	return make([]byte, size), false, nil
}

func unmap(mem []byte) error {
	return nil
}
