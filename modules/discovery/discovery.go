package discovery

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do/v2"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/core/feed"
	"github.com/veil-network/pool-scanner/core/scanner"
	"github.com/veil-network/pool-scanner/internal/config"
	"github.com/veil-network/pool-scanner/internal/postgres"
	discoveryapi "github.com/veil-network/pool-scanner/modules/discovery/api"
	"github.com/veil-network/pool-scanner/modules/discovery/datagateway"
	"github.com/veil-network/pool-scanner/modules/discovery/keys"
	discoverymemory "github.com/veil-network/pool-scanner/modules/discovery/repository/memory"
	discoverypostgres "github.com/veil-network/pool-scanner/modules/discovery/repository/postgres"
	"github.com/veil-network/pool-scanner/pkg/crypto"
	"github.com/veil-network/pool-scanner/pkg/logger"
)

func New(injector do.Injector) (scanner.Worker, error) {
	ctx := do.MustInvoke[context.Context](injector)
	conf := do.MustInvoke[config.Config](injector)
	moduleConf := conf.Modules.Discovery

	var discoveryDg datagateway.DiscoveryDataGateway
	var cleanupFuncs []func(context.Context) error
	switch strings.ToLower(moduleConf.Database) {
	case "postgresql", "postgres", "pg":
		pg, err := postgres.NewPool(ctx, moduleConf.Postgres)
		if err != nil {
			if errors.Is(err, errs.InvalidArgument) {
				return nil, errors.Wrap(err, "Invalid Postgres configuration for discovery")
			}
			return nil, errors.Wrap(err, "can't create Postgres connection pool")
		}
		cleanupFuncs = append(cleanupFuncs, func(ctx context.Context) error {
			pg.Close()
			return nil
		})
		cryptoClient, err := loadCryptoClient(moduleConf.CacheKeyFile)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		discoveryDg = discoverypostgres.NewRepository(pg, cryptoClient)
	case "memory":
		discoveryDg = discoverymemory.NewRepository()
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q database for discovery is not supported", moduleConf.Database)
	}

	activityFeed, err := feed.New(ctx, conf.Feed)
	if err != nil {
		return nil, errors.Wrap(err, "can't create activity feed")
	}

	accounts, err := loadAccounts(moduleConf.AccountKeyFiles)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	pools, err := parsePools(moduleConf.Pools)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	discoverer := NewDiscoverer(activityFeed, discoveryDg, keys.NewMiMCDeriver())
	module := NewModule(discoverer, accounts, pools, moduleConf.ScanInterval, cleanupFuncs)

	// Mount API
	httpServer := do.MustInvoke[*fiber.App](injector)
	httpHandler := discoveryapi.NewHTTPHandler(discoveryDg, moduleConf.Decimals)
	if err := httpHandler.Mount(httpServer); err != nil {
		return nil, errors.Wrap(err, "can't mount Discovery API")
	}
	logger.InfoContext(ctx, "Mounted HTTP handler")

	return scanner.New(module), nil
}

func loadCryptoClient(keyFile string) (*crypto.Client, error) {
	if keyFile == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read cache key file %q", keyFile)
	}
	client, err := crypto.New(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid cache key in %q", keyFile)
	}
	return client, nil
}

func loadAccounts(keyFiles []string) ([]keys.Account, error) {
	accounts := make([]keys.Account, 0, len(keyFiles))
	for _, keyFile := range keyFiles {
		raw, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, errors.Wrapf(err, "can't read account key file %q", keyFile)
		}
		account, err := keys.NewAccountFromHex(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid account key in %q", keyFile)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func parsePools(rawPools []string) ([]common.Pool, error) {
	pools := make([]common.Pool, 0, len(rawPools))
	for _, raw := range rawPools {
		pool := common.Pool(strings.TrimSpace(raw))
		if !pool.IsValid() {
			return nil, errors.Wrapf(errs.InvalidArgument, "invalid pool address %q", raw)
		}
		pools = append(pools, pool)
	}
	return pools, nil
}
