package config

import "fmt"

// LoadFromEnv reads the process environment. Builds tagged dev also pick up
// .env files from the working directory first.
func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Load(FromEnviron())
}
