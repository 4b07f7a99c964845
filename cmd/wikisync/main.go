// Command wikisync synchronises Confluence spaces into a search index.
package main

import (
	"context"
	"os"

	"github.com/custodia-labs/wikisync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/wikisync/internal/adapters/driving/cli"
	"github.com/custodia-labs/wikisync/internal/app"
	"github.com/custodia-labs/wikisync/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetBootstrap(bootstrap)
	if err := cli.Execute(version); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// bootstrap loads the configuration and wires the services.
func bootstrap(ctx context.Context, configPath string, withSource bool) (*cli.Services, error) {
	a, err := app.Load(ctx, file.NewConfigStore(configPath), app.Options{WithSource: withSource})
	if err != nil {
		return nil, err
	}

	svc := &cli.Services{
		Index:  a.Index,
		Search: a.Search,
		Close:  a.Close,
	}
	if a.Sync != nil {
		svc.Sync = a.Sync
	}
	return svc, nil
}
