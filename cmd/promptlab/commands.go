package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvsaikumar/promptlab/internal/config"
	"github.com/dvsaikumar/promptlab/internal/extract"
)

// --- prompts ---

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage the prompt library",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved prompts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		framework, _ := cmd.Flags().GetString("framework")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/prompts"
		if framework != "" {
			path += "?framework=" + url.QueryEscape(framework)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var prompts []struct {
			ID        int64  `json:"id"`
			Title     string `json:"title"`
			Framework string `json:"framework"`
			CreatedAt string `json:"created_at"`
		}
		if err := decodeJSON(resp, &prompts); err != nil {
			return err
		}

		if len(prompts) == 0 {
			fmt.Println("No prompts found.")
			return nil
		}

		for _, p := range prompts {
			title := p.Title
			if len(title) > 80 {
				title = title[:80] + "..."
			}
			fmt.Printf("%s  %s  %s  %s\n",
				colorize(colorCyan, fmt.Sprintf("%4d", p.ID)),
				p.CreatedAt,
				colorize(colorBold, p.Framework),
				title,
			)
		}
		return nil
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single prompt as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/prompts/"+args[0])
		if err != nil {
			return err
		}

		var prompt any
		if err := decodeJSON(resp, &prompt); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(prompt)
	},
}

var promptsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a prompt to the library",
	Long: `Save a prompt to the library.

Examples:
  promptlab prompts save --title "Release notes" --framework costar --prompt "# Context\n..."
  promptlab prompts save --title "Bug triage" --framework race --file ./prompt.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		framework, _ := cmd.Flags().GetString("framework")
		text, _ := cmd.Flags().GetString("prompt")
		file, _ := cmd.Flags().GetString("file")

		if title == "" || framework == "" {
			return fmt.Errorf("--title and --framework are required")
		}
		if text == "" && file == "" {
			return fmt.Errorf("one of --prompt or --file is required")
		}
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			text = string(data)
		}

		req := map[string]any{
			"title":     title,
			"framework": framework,
			"prompt":    text,
			"fields":    "{}",
			"tones":     "[]",
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/prompts", req)
		if err != nil {
			return err
		}

		var result map[string]int64
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Saved prompt %d", result["id"])
		return nil
	},
}

var promptsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search prompt titles and bodies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/prompts/search?q="+url.QueryEscape(query))
		if err != nil {
			return err
		}

		var prompts []struct {
			ID        int64  `json:"id"`
			Title     string `json:"title"`
			Framework string `json:"framework"`
			Prompt    string `json:"prompt"`
		}
		if err := decodeJSON(resp, &prompts); err != nil {
			return err
		}

		if len(prompts) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for _, p := range prompts {
			fmt.Printf("\n%s  %s\n", colorize(colorCyan, fmt.Sprintf("%4d", p.ID)), colorize(colorBold, p.Title))
			body := p.Prompt
			if len(body) > 200 {
				body = body[:200] + "..."
			}
			fmt.Printf("  %s\n", body)
		}
		return nil
	},
}

var promptsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a saved prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		changes := map[string]any{}
		if cmd.Flags().Changed("title") {
			title, _ := cmd.Flags().GetString("title")
			changes["title"] = title
		}
		if cmd.Flags().Changed("prompt") {
			text, _ := cmd.Flags().GetString("prompt")
			changes["prompt"] = text
		}
		if cmd.Flags().Changed("framework") {
			framework, _ := cmd.Flags().GetString("framework")
			changes["framework"] = framework
		}
		if len(changes) == 0 {
			return fmt.Errorf("nothing to update: pass at least one of --title, --prompt, --framework")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/prompts/"+args[0], changes)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Updated prompt %s", args[0])
		return nil
	},
}

var promptsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/prompts/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted prompt %s", args[0])
		return nil
	},
}

func init() {
	promptsListCmd.Flags().String("framework", "", "filter by framework id")
	promptsSaveCmd.Flags().String("title", "", "prompt title")
	promptsSaveCmd.Flags().String("framework", "", "framework id (e.g. costar, race)")
	promptsSaveCmd.Flags().String("prompt", "", "prompt text")
	promptsSaveCmd.Flags().String("file", "", "file to read prompt text from")
	promptsUpdateCmd.Flags().String("title", "", "new title")
	promptsUpdateCmd.Flags().String("prompt", "", "new prompt text")
	promptsUpdateCmd.Flags().String("framework", "", "new framework id")

	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsShowCmd)
	promptsCmd.AddCommand(promptsSaveCmd)
	promptsCmd.AddCommand(promptsSearchCmd)
	promptsCmd.AddCommand(promptsUpdateCmd)
	promptsCmd.AddCommand(promptsDeleteCmd)
}

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage provider settings",
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provider settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/settings")
		if err != nil {
			return err
		}

		var settings []struct {
			ID         int64  `json:"id"`
			ProviderID string `json:"provider_id"`
			Model      string `json:"model"`
			IsActive   bool   `json:"is_active"`
		}
		if err := decodeJSON(resp, &settings); err != nil {
			return err
		}

		if len(settings) == 0 {
			fmt.Println("No settings found.")
			return nil
		}

		for _, s := range settings {
			marker := " "
			if s.IsActive {
				marker = colorize(colorGreen, "*")
			}
			fmt.Printf("%s %s  %s / %s\n",
				marker,
				colorize(colorCyan, fmt.Sprintf("%4d", s.ID)),
				colorize(colorBold, s.ProviderID),
				s.Model,
			)
		}
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <provider> <model>",
	Short: "Insert or update a provider setting and make it active",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey, _ := cmd.Flags().GetString("api-key")
		baseURL, _ := cmd.Flags().GetString("base-url")

		if apiKey == "" {
			apiKey = os.Getenv("PROMPTLAB_PROVIDER_API_KEY")
		}
		if apiKey == "" {
			return fmt.Errorf("--api-key or PROMPTLAB_PROVIDER_API_KEY is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"provider_id": args[0],
			"model":       args[1],
			"api_key":     apiKey,
			"base_url":    baseURL,
			"is_active":   true,
		}
		resp, err := client.put(cmd.Context(), "/settings", req)
		if err != nil {
			return err
		}

		var result map[string]int64
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s / %s as active (id %d)", args[0], args[1], result["id"])
		return nil
	},
}

var settingsActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the active provider setting",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/settings/active")
		if err != nil {
			return err
		}

		var setting any
		if err := decodeJSON(resp, &setting); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(setting)
	},
}

var settingsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a provider setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/settings/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted setting %s", args[0])
		return nil
	},
}

func init() {
	settingsSetCmd.Flags().String("api-key", "", "API key for the provider")
	settingsSetCmd.Flags().String("base-url", "", "base URL override")

	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsActiveCmd)
	settingsCmd.AddCommand(settingsDeleteCmd)
}

// --- compose ---

var composeCmd = &cobra.Command{
	Use:   "compose <framework>",
	Short: "Render a prompt from a framework and field values",
	Long: `Render a prompt from a framework and field values.

Examples:
  promptlab compose costar --field context="Quarterly report" --field objective="Summarize revenue" --tone professional
  promptlab compose race --field role="Support agent" --field action="Draft a reply" --field context="Angry customer" --field expectation="Calm tone"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fieldPairs, _ := cmd.Flags().GetStringSlice("field")
		tones, _ := cmd.Flags().GetStringSlice("tone")
		industry, _ := cmd.Flags().GetString("industry")
		role, _ := cmd.Flags().GetString("role")
		save, _ := cmd.Flags().GetBool("save")
		title, _ := cmd.Flags().GetString("title")

		fields := make(map[string]string, len(fieldPairs))
		for _, pair := range fieldPairs {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("invalid --field %q (expected key=value)", pair)
			}
			fields[strings.TrimSpace(key)] = value
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"framework": args[0],
			"fields":    fields,
			"tones":     tones,
			"industry":  industry,
			"role":      role,
		}
		resp, err := client.post(cmd.Context(), "/prompts/compose", req)
		if err != nil {
			return err
		}

		var result struct {
			Prompt string `json:"prompt"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Prompt)

		if save {
			if title == "" {
				title = fmt.Sprintf("%s prompt", args[0])
			}
			fieldsJSON, err := json.Marshal(fields)
			if err != nil {
				return err
			}
			tonesJSON, err := json.Marshal(tones)
			if err != nil {
				return err
			}
			saveReq := map[string]any{
				"title":     title,
				"framework": args[0],
				"prompt":    result.Prompt,
				"fields":    string(fieldsJSON),
				"tones":     string(tonesJSON),
				"industry":  industry,
				"role":      role,
			}
			saveResp, err := client.post(cmd.Context(), "/prompts", saveReq)
			if err != nil {
				return err
			}
			var saved map[string]int64
			if err := decodeJSON(saveResp, &saved); err != nil {
				return err
			}
			printSuccess("Saved prompt %d", saved["id"])
		}
		return nil
	},
}

func init() {
	composeCmd.Flags().StringSlice("field", nil, "framework field as key=value (repeatable)")
	composeCmd.Flags().StringSlice("tone", nil, "tone id to apply (repeatable)")
	composeCmd.Flags().String("industry", "", "target industry")
	composeCmd.Flags().String("role", "", "target role or persona")
	composeCmd.Flags().Bool("save", false, "save the composed prompt to the library")
	composeCmd.Flags().String("title", "", "title to save under (with --save)")
}

// --- extract ---

var extractCmd = &cobra.Command{
	Use:   "extract <file>...",
	Short: "Extract plain text from PDF, HTML, or text files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, _ := cmd.Flags().GetBool("remote")

		if remote {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("opening %s: %w", path, err)
				}
				resp, err := client.upload(cmd.Context(), "/extract", path, f)
				f.Close()
				if err != nil {
					return err
				}
				var result struct {
					Text string `json:"text"`
				}
				if err := decodeJSON(resp, &result); err != nil {
					return err
				}
				if len(args) > 1 {
					fmt.Printf("%s\n", colorize(colorBold, "=== "+path+" ==="))
				}
				fmt.Println(result.Text)
			}
			return nil
		}

		results, err := extract.Batch(cmd.Context(), args)
		if err != nil {
			return err
		}
		for i, text := range results {
			if len(args) > 1 {
				fmt.Printf("%s\n", colorize(colorBold, "=== "+args[i]+" ==="))
			}
			fmt.Println(text)
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().Bool("remote", false, "extract via the running server instead of locally")
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

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
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

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
