package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/modules/discovery/keys"
	"github.com/veil-network/pool-scanner/pkg/crypto"
)

type generateAccountCmdOptions struct {
	Path string
}

func NewGenerateAccountCommand() *cobra.Command {
	opts := &generateAccountCmdOptions{}

	cmd := &cobra.Command{
		Use:   "generate-account",
		Short: "Generate a new account key and a cache encryption key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateAccountHandler(opts, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Path, "path", "/data/keys", `Path to save the key files`)

	return cmd
}

func generateAccountHandler(opts *generateAccountCmdOptions, _ *cobra.Command, _ []string) error {
	fmt.Printf("Generating account key\n")
	accountKeyBytes := make([]byte, 32)
	if _, err := rand.Read(accountKeyBytes); err != nil {
		return errors.Wrap(errs.SomethingWentWrong, "random bytes")
	}

	account, err := keys.NewAccountFromHex(hex.EncodeToString(accountKeyBytes))
	if err != nil {
		return errors.Wrap(err, "new account")
	}
	fmt.Printf("Identity: %s\n", account.Identity())

	if err := os.MkdirAll(opts.Path, 0o755); err != nil {
		return errors.Wrap(errs.SomethingWentWrong, "create directory")
	}

	accountKeyPath := path.Join(opts.Path, "account.key")
	if _, err := os.Stat(accountKeyPath); err == nil {
		fmt.Printf("Existing account key found at %s\n[WARNING] THE EXISTING ACCOUNT KEY WILL BE LOST\nType [replace] to replace existing account key: ", accountKeyPath)
		var ans string
		fmt.Scanln(&ans)
		if ans != "replace" {
			fmt.Printf("Account generation aborted\n")
			return nil
		}
	}

	if err := os.WriteFile(accountKeyPath, []byte(hex.EncodeToString(accountKeyBytes)), 0o600); err != nil {
		return errors.Wrap(err, "write account key file")
	}
	fmt.Printf("Account key saved at %s\n", accountKeyPath)

	// cache encryption key for discovery state at rest
	cacheClient, err := crypto.GenerateKey()
	if err != nil {
		return errors.Wrap(err, "generate cache key")
	}
	cacheKeyPath := path.Join(opts.Path, "cache.key")
	if err := os.WriteFile(cacheKeyPath, []byte(cacheClient.PrivateKeyHex()), 0o600); err != nil {
		return errors.Wrap(err, "write cache key file")
	}
	fmt.Printf("Cache encryption key saved at %s\n", cacheKeyPath)
	fmt.Printf("Cache public key: %s\n", cacheClient.PublicKeyHex())
	return nil
}
