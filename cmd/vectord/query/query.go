// Package querycmder provides the query command: a similarity search against
// a running vectord serve instance.
package querycmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/novelassist/vectord/api"
	"github.com/novelassist/vectord/pkg/config"
	"github.com/novelassist/vectord/pkg/utils"
)

const queryLongDesc string = `Run a similarity search against a running vectord serve.

Sends the query text to the API server, which forwards it to the embedding
worker and returns the closest documents with their distances.

Examples:
  vectord query "the lighthouse keeper's daughter"
  vectord query --collection notes --limit 3 "storm at the harbor"
  vectord query --filter chapter=2 "foreshadowing"`

const queryShortDesc string = "Run a similarity search"

type queryCommander struct {
	apiTarget  string
	collection string
	limit      int
	filter     map[string]string
}

func NewQueryCmd() *cobra.Command {
	cmder := &queryCommander{}

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: queryShortDesc,
		Long:  queryLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %w", err)
			}

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.ClientFlags, []string{
				config.FlagAPITarget,
				config.FlagCollection,
			})
			cmder.apiTarget = v.GetString("client.api_target")
			cmder.collection = v.GetString("store.default_collection")

			return cmder.run(cmd.Context(), args[0], cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagCollection, &cmder.collection)
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 0, "Maximum number of matches to return")
	cmd.Flags().StringToStringVar(&cmder.filter, "filter", nil, "Metadata filter as key=value pairs")

	return cmd
}

func (c *queryCommander) run(ctx context.Context, text string, out io.Writer) error {
	filter := make(map[string]any, len(c.filter))
	for k, v := range c.filter {
		filter[k] = v
	}

	payload, err := json.Marshal(api.QueryRequest{
		Collection: c.collection,
		Text:       text,
		Limit:      c.limit,
		Filter:     filter,
	})
	if err != nil {
		return fmt.Errorf("marshaling query request: %w", err)
	}

	url := strings.TrimRight(c.apiTarget, "/") + "/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("is vectord serve running? sending query: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading query response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("query failed: %s", apiErr.Error)
		}
		return fmt.Errorf("query failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var queryResp api.QueryResponse
	if err := json.Unmarshal(data, &queryResp); err != nil {
		return fmt.Errorf("decoding query response: %w", err)
	}

	if queryResp.Count == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}

	fmt.Fprintln(out)
	for i, match := range queryResp.Results {
		fmt.Fprintf(out, "  %d. %s  (distance %.4f)\n", i+1, match.ID, match.Distance)
		fmt.Fprintf(out, "     %s\n", utils.Truncate(match.Text, 96))
	}
	fmt.Fprintln(out)

	return nil
}
