package secret

import (
	"os"
)

// EnvStore reads secrets from environment variables of the current process.
type EnvStore struct{}

func (EnvStore) Get(key string) ([]byte, error) {
	return []byte(os.Getenv(key)), nil
}
