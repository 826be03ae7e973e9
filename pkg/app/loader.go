package app

import (
	"net/url"
	"os"

	"github.com/pkg/errors"
)

const envScheme = "env"

// LoadFile loads the contents at location. Plain paths and file:// URLs are
// read from the local file system. env://NAME reads the environment variable
// NAME, which lets secrets such as TLS keys be injected without a file.
func LoadFile(location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid file location %s", location)
	}

	switch u.Scheme {
	case "", "file":
		b, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", u.Path)
		}
		return b, nil
	case envScheme:
		value, ok := os.LookupEnv(u.Host)
		if !ok || len(value) == 0 {
			return nil, errors.Errorf("environment variable %s is not set", u.Host)
		}
		return []byte(value), nil
	default:
		return nil, errors.Errorf("unsupported file location scheme: %s", u.Scheme)
	}
}
