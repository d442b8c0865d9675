package cmd

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/veil-network/pool-scanner/common"
	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/core/constants"
	"github.com/veil-network/pool-scanner/modules/discovery"
)

var versions = map[string]string{
	"":                              constants.Version,
	common.ModuleDiscovery.String(): discovery.Version,
}

type versionCmdOptions struct {
	Module string
}

func NewVersionCommand() *cobra.Command {
	opts := &versionCmdOptions{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show pool-scanner version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return versionHandler(opts, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Module, "module", "", `Show version of a specific module. E.g. "discovery"`)

	return cmd
}

func versionHandler(opts *versionCmdOptions, _ *cobra.Command, _ []string) error {
	version, ok := versions[opts.Module]
	if !ok {
		return errors.Wrap(errs.Unsupported, "Invalid module name")
	}
	fmt.Println(version)
	return nil
}
