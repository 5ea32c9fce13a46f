package testhelpers

import (
	"os"
	"path/filepath"
	"runtime"
)

func LoadFixture(name string) ([]byte, error) {
	_, file, _, _ := runtime.Caller(0)
	return os.ReadFile(filepath.Join(filepath.Dir(file), "fixtures", name))
}

// MustFixture is LoadFixture for specs; it panics on a missing file.
func MustFixture(name string) string {
	data, err := LoadFixture(name)
	if err != nil {
		panic(err)
	}
	return string(data)
}
