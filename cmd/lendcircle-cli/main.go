// Command lendcircle-cli is a developer CLI for operating a lendcircle-core
// node: creating circles, running auctions, casting governance votes,
// moving funds across the privacy bridge, and driving payment collection
// and risk operations against a running node's REST API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	cliName = "lendcircle-cli"
	banner  = `lendcircle-cli — operator console for a lendcircle-core node`
)

var (
	apiURL  string
	token   string
	output  string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   cliName,
	Short: "Operator CLI for a lendcircle-core node",
	Long: banner + `

Talks to a node's REST API (internal/httpapi) to drive circle lifecycle,
sealed-bid auctions, anonymous governance, cross-chain bridge transfers,
payment collection, and risk/liquidation operations.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(banner)
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "http://127.0.0.1:8080", "node REST API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("LENDCIRCLE_API_TOKEN"), "bearer auth token (defaults to LENDCIRCLE_API_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "output format (json, text)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	rootCmd.AddCommand(circleCmd, auctionCmd, governanceCmd, bridgeCmd, paymentsCmd, riskCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// apiClient issues authenticated JSON requests against the node's REST API
// and renders the response according to the --output flag.
type apiClient struct {
	httpClient *http.Client
}

func newAPIClient() *apiClient {
	return &apiClient{httpClient: &http.Client{Timeout: timeout}}
}

func (a *apiClient) do(method, path string, body interface{}) (map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, apiURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode >= 400 {
		return parsed, fmt.Errorf("node returned %s: %v", resp.Status, parsed["error"])
	}
	return parsed, nil
}

func (a *apiClient) render(data map[string]interface{}) {
	if output == "text" {
		for k, v := range data {
			fmt.Printf("%s: %v\n", k, v)
		}
		return
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to render response: %v\n", err)
		return
	}
	fmt.Println(string(encoded))
}

// run issues a request and prints either the result or a formatted error,
// exiting non-zero on failure — the common tail of every leaf command.
func run(method, path string, body interface{}) {
	client := newAPIClient()
	result, err := client.do(method, path, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	client.render(result)
}
