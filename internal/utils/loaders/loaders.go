package loaders

import (
	"fmt"
	"os"

	"github.com/steveiliop56/adhub/internal/config"

	"github.com/traefik/paerser/cli"
	"github.com/traefik/paerser/env"
	"github.com/traefik/paerser/flag"
)

// Default returns the loaders in the order paerser tries them. The first one that loads wins, so a
// config file shadows flags and flags shadow the environment.
func Default() []cli.ResourceLoader {
	return []cli.ResourceLoader{
		&FileLoader{},
		&FlagLoader{},
		&EnvLoader{},
	}
}

// FlagLoader decodes --section.field=value arguments, e.g. --server.port=3000.
type FlagLoader struct{}

func (*FlagLoader) Load(args []string, cmd *cli.Command) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}

	if err := flag.Decode(args, cmd.Configuration); err != nil {
		return false, fmt.Errorf("failed to decode configuration from flags: %w", err)
	}

	return true, nil
}

// EnvLoader reads ADHUB_ prefixed variables, e.g. ADHUB_ENCRYPTION_SECRET or ADHUB_PLATFORMS_META_APIBASEURL.
type EnvLoader struct{}

func (*EnvLoader) Load(_ []string, cmd *cli.Command) (bool, error) {
	vars := env.FindPrefixedEnvVars(os.Environ(), config.DefaultNamePrefix, cmd.Configuration)
	if len(vars) == 0 {
		return false, nil
	}

	if err := env.Decode(vars, config.DefaultNamePrefix, cmd.Configuration); err != nil {
		return false, fmt.Errorf("failed to decode configuration from environment variables: %w", err)
	}

	return true, nil
}
