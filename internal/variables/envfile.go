package variables

import (
	"fmt"

	"github.com/joho/godotenv"
)

// LoadEnvFiles reads dotenv files in order, later files overriding earlier ones
func LoadEnvFiles(paths ...string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		vars, err := godotenv.Read(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", p, err)
		}
		for k, v := range vars {
			out[k] = v
		}
	}
	return out, nil
}
