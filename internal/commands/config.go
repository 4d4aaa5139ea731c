package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"evalgo.org/mdm/internal/config"
)

const maskedSecret = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runShowConfig,
}

var initConfigCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with the default settings",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInitConfig,
}

func init() {
	showConfigCmd.Flags().Bool("secrets", false, "print passwords and signing secrets in clear text")
	initConfigCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(initConfigCmd)
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	showSecrets, _ := cmd.Flags().GetBool("secrets")

	out := *cfg
	if !showSecrets {
		out.CouchDB.Password = mask(out.CouchDB.Password)
		out.Security.JWTSecret = mask(out.Security.JWTSecret)
		out.Security.JWTRefreshSecret = mask(out.Security.JWTRefreshSecret)
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return maskedSecret
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := "config.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	data, err := yaml.Marshal(config.Defaults())
	if err != nil {
		return err
	}
	header := []byte("# MDM configuration\n# Every key can be overridden with an MDM_ prefixed environment variable,\n# e.g. MDM_COUCHDB_URL or MDM_SECURITY_JWT_SECRET.\n\n")

	if err := os.WriteFile(path, append(header, data...), 0600); err != nil {
		return err
	}

	fmt.Printf("✓ Created %s\n", path)
	return nil
}
