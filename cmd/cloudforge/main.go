// Command cloudforge provisions the EKS CloudForge infrastructure, ships the
// application image and verifies the deployment.
//
// Usage:
//
//	cloudforge preflight              Check tools and AWS credentials
//	cloudforge infra up               Create or update the stack
//	cloudforge build                  Build and push the application image
//	cloudforge kubeconfig             Add the cluster to kubeconfig
//	cloudforge verify                 Wait for the application to be healthy
//	cloudforge deploy                 Run every step in order
//	cloudforge cleanup --yes          Destroy the stack
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"eks-cloudforge/internal/status"

	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		status.New(os.Stderr).Error("%v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd(newCLI(defaultDeps())).ExecuteContext(ctx)
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cloudforge",
		Short: "Deploy the CloudForge application to EKS",
		Long: `cloudforge provisions a VPC, an EKS cluster and an ECR repository with
Pulumi, builds and pushes the application image, and checks that the
application reports healthy.

Settings are read from cloudforge.yaml:

    project: cloudforge
    environment: dev
    region: us-west-2

Then run the whole deployment:

    cloudforge deploy --cleanup-on-failure`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(c.stdout)
	rootCmd.SetErr(c.stderr)
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to cloudforge.yaml")

	rootCmd.AddCommand(
		newPreflightCmd(c),
		newInfraCmd(c),
		newBuildCmd(c),
		newKubeconfigCmd(c),
		newVerifyCmd(c),
		newDeployCmd(c),
		newCleanupCmd(c),
		newVersionCmd(c),
	)
	return rootCmd
}

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.stdout, "cloudforge %s\n", getVersion())
		},
	}
}
