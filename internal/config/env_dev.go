//go:build dev

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// dotEnvFiles are loaded in order. godotenv never overrides a variable that
// is already set, so the process environment wins, then .env.local, then .env.
var dotEnvFiles = []string{".env.local", ".env"}

func loadDotEnv() error {
	var present []string
	for _, name := range dotEnvFiles {
		if _, err := os.Stat(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		present = append(present, name)
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}
