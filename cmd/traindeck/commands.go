package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/traindeck/traindeck/internal/commands"
	"github.com/traindeck/traindeck/internal/config"
	"github.com/traindeck/traindeck/internal/storage"
)

// --- greet ---

var greetCmd = &cobra.Command{
	Use:   "greet <name>",
	Short: "Ask the server for a greeting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var greeting string
		if err := client.invoke(cmd.Context(), commands.CmdGreet, map[string]any{"name": args[0]}, &greeting); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), greeting)
		return nil
	},
}

// --- url ---

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Show or change the API base URL",
}

var urlGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current API base URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var baseURL string
		if err := client.invoke(cmd.Context(), commands.CmdGetAPIBaseURL, nil, &baseURL); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), baseURL)
		return nil
	},
}

var urlSetCmd = &cobra.Command{
	Use:   "set <url>",
	Short: "Replace the API base URL for this server process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "" {
			printWarning(cmd.ErrOrStderr(), "setting an empty API base URL")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if err := client.invoke(cmd.Context(), commands.CmdSetAPIBaseURL, map[string]any{"url": args[0]}, nil); err != nil {
			return err
		}
		printSuccess(cmd.ErrOrStderr(), "API base URL set to %s", args[0])
		return nil
	},
}

func init() {
	urlCmd.AddCommand(urlGetCmd)
	urlCmd.AddCommand(urlSetCmd)
}

// --- env ---

var envCmd = &cobra.Command{
	Use:   "env <key> [key...]",
	Short: "Read environment variables as the server sees them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var vars map[string]*string
		if err := client.invoke(cmd.Context(), commands.CmdGetEnvVars, map[string]any{"keys": args}, &vars); err != nil {
			return err
		}

		keys := make([]string, 0, len(vars))
		for k := range vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := cmd.OutOrStdout()
		for _, k := range keys {
			if v := vars[k]; v != nil {
				fmt.Fprintf(out, "%s=%s\n", k, *v)
			} else {
				fmt.Fprintf(out, "%s %s\n", k, colorize(colorYellow, "(unset)"))
			}
		}
		return nil
	},
}

// --- runtime-config ---

var runtimeConfigCmd = &cobra.Command{
	Use:   "runtime-config",
	Short: "Show the runtime config served to the front-end",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var rc commands.RuntimeConfig
		if err := client.invoke(cmd.Context(), commands.CmdGetRuntimeConfig, nil, &rc); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rc)
	},
}

// --- invoke ---

var invokeCmd = &cobra.Command{
	Use:   "invoke <command> [json-args]",
	Short: "Invoke any command with raw JSON arguments",
	Args: func(cmd *cobra.Command, args []string) error {
		if list, _ := cmd.Flags().GetBool("list"); list {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.RangeArgs(1, 2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if list, _ := cmd.Flags().GetBool("list"); list {
			resp, err := client.get(cmd.Context(), "/commands")
			if err != nil {
				return err
			}
			var names []string
			if err := decodeJSON(resp, &names); err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(out, n)
			}
			return nil
		}

		body := json.RawMessage(`{}`)
		if len(args) == 2 {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("arguments for %s are not valid JSON", args[0])
			}
			body = json.RawMessage(args[1])
		}

		resp, err := client.do(cmd.Context(), http.MethodPost, "/invoke/"+args[0], body)
		if err != nil {
			return err
		}
		var result json.RawMessage
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, result, "", "  "); err != nil {
			return err
		}
		fmt.Fprintln(out, pretty.String())
		return nil
	},
}

func init() {
	invokeCmd.Flags().Bool("list", false, "list the commands the server accepts")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent command invocations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		command, _ := cmd.Flags().GetString("command")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		if command != "" {
			q.Set("command", command)
		}
		resp, err := client.get(cmd.Context(), "/invocations?"+q.Encode())
		if err != nil {
			return err
		}
		total := resp.Header.Get("X-Total-Count")

		var invs []storage.Invocation
		if err := decodeJSON(resp, &invs); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(invs) == 0 {
			fmt.Fprintln(out, "No invocations recorded.")
			return nil
		}

		for _, inv := range invs {
			status := colorize(colorGreen, inv.Status)
			if inv.Status != storage.StatusOK {
				status = colorize(colorRed, inv.Status)
			}
			id := inv.ID
			if len(id) > 8 {
				id = id[:8]
			}
			fmt.Fprintf(out, "%s  %s  %-4s  %-20s %s  %s\n",
				colorize(colorCyan, id),
				inv.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				inv.Transport,
				inv.Command,
				status,
				inv.Args,
			)
		}
		if total != "" {
			fmt.Fprintf(out, "Showing %d of %s invocations.\n", len(invs), total)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of invocations to list")
	historyCmd.Flags().String("command", "", "only list invocations of this command")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess(cmd.ErrOrStderr(), "Set %s = %s", key, value)
		if key == "api.default_base_url" || key == "api.seed_env" {
			printStep(cmd.ErrOrStderr(), "restart the server for this to take effect")
		}
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List valid configuration keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range config.ValidKeys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
}
