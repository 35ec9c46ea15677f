package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/org/envvault/pkg/models"
)

var rootCmd = &cobra.Command{
	Use:           "envvault",
	Short:         "EnvVault CLI",
	Long:          "A CLI for managing developer secrets held by envvaultd.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadConfig()
		// Env var overrides are applied in newClient()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json, raw")

	rootCmd.AddCommand(
		listCmd(),
		searchCmd(),
		getCmd(),
		addCmd(),
		updateCmd(),
		rmCmd(),
		importCmd(),
		exportCmd(),
		syncCmd(),
		pathCmd(),
		hookCmd(),
		configCmd(),
	)
}

// fail prints err and hands it back so the process exits non-zero.
func fail(err error) error {
	printError(err.Error())
	return err
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List secrets with masked values",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []models.SecretItem
			if err := newClient().getInto("/v1/secrets", &items); err != nil {
				return fail(err)
			}
			printItems(items)
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search secrets by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []models.SecretItem
			if err := newClient().getInto("/v1/secrets?q="+url.QueryEscape(args[0]), &items); err != nil {
				return fail(err)
			}
			printItems(items)
			return nil
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print the full value of a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return fail(err)
			}
			var out struct {
				Value string `json:"value"`
			}
			if err := newClient().getInto("/v1/secrets/"+id+"/value", &out); err != nil {
				return fail(err)
			}
			fmt.Println(out.Value)
			return nil
		},
	}
}

func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <KEY> <value> | add KEY=value",
		Short: "Store a secret, replacing any existing value for the key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value, err := parseAddArgs(args)
			if err != nil {
				return fail(err)
			}
			if _, err := newClient().post("/v1/secrets", map[string]string{"key": key, "value": value}); err != nil {
				return fail(err)
			}
			printSuccess("Stored " + key)
			return nil
		},
	}
}

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <value>",
		Short: "Replace the value of a secret",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return fail(err)
			}
			if _, err := newClient().put("/v1/secrets/"+id, map[string]string{"value": args[1]}); err != nil {
				return fail(err)
			}
			printSuccess("Updated secret " + id)
			return nil
		},
	}
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a secret",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return fail(err)
			}
			if err := newClient().delete("/v1/secrets/" + id); err != nil {
				return fail(err)
			}
			printSuccess("Deleted secret " + id)
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file|-]",
		Short: "Import KEY=value lines from a .env file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args)
			if err != nil {
				return fail(err)
			}
			result, err := newClient().postText("/v1/env/import", text)
			if err != nil {
				return fail(err)
			}
			if outputFormat != "table" {
				printResult(result)
				return nil
			}
			data, _ := result["data"].(map[string]any)
			printSuccess(fmt.Sprintf("Imported %v secrets", data["applied"]))
			if n, _ := data["skipped"].(float64); n > 0 {
				printHint(fmt.Sprintf("Skipped %v malformed lines", n))
			}
			if n, _ := data["rejected"].(float64); n > 0 {
				printHint(fmt.Sprintf("Rejected %v entries that cannot be stored", n))
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print all secrets as .env text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := newClient().getText("/v1/env/export")
			if err != nil {
				return fail(err)
			}
			fmt.Print(text)
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Rewrite the shell secrets file from the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient().post("/v1/sys/sync", nil)
			if err != nil {
				return fail(err)
			}
			data, _ := result["data"].(map[string]any)
			printSuccess(fmt.Sprintf("Synced %v", data["path"]))
			return nil
		},
	}
}

func pathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the shell secrets file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Path string `json:"path"`
			}
			if err := newClient().getInto("/v1/sys/sync-path", &out); err != nil {
				return fail(err)
			}
			fmt.Println(out.Path)
			return nil
		},
	}
}

func hookCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "hook", Short: "Manage the shell profile hook"}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Make shell profiles source the secrets file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient().post("/v1/sys/shell-hook", nil)
			if err != nil {
				return fail(err)
			}
			data, _ := result["data"].(map[string]any)
			changed, _ := data["changed"].([]any)
			if len(changed) == 0 {
				printSuccess("Shell profiles already source the secrets file")
				return nil
			}
			for _, p := range changed {
				printSuccess(fmt.Sprintf("Added hook to %v", p))
			}
			printHint("Open a new shell to load your secrets")
			return nil
		},
	}

	cmd.AddCommand(installCmd)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage CLI configuration"}

	setCmd := &cobra.Command{
		Use:   "set <address|token|token_file> <value>",
		Short: "Set a CLI configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "address":
				cfg.Address = args[1]
			case "token":
				cfg.Token = args[1]
			case "token_file":
				cfg.TokenFile = args[1]
			default:
				return fail(fmt.Errorf("unknown config key %q", args[0]))
			}
			if err := saveConfig(); err != nil {
				return fail(err)
			}
			printSuccess("Saved " + configPath())
			return nil
		},
	}

	cmd.AddCommand(setCmd)
	return cmd
}

// parseAddArgs accepts either "KEY value" or a single "KEY=value".
func parseAddArgs(args []string) (key, value string, err error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	key, value, ok := strings.Cut(args[0], "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid KEY=value pair: %s", args[0])
	}
	return key, value, nil
}

func parseIDArg(s string) (string, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("invalid secret id: %s", s)
	}
	return strconv.FormatInt(id, 10), nil
}

func readInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(args[0])
	return string(data), err
}
