package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/wagi"
	"github.com/caffeineduck/wagi/config"
	"github.com/caffeineduck/wagi/gateway"
)

var runCmd = &cobra.Command{
	Use:   "run [module.wasm]",
	Short: "Run one module with a synthetic request",
	Long: `Execute a module once, outside the server, and print its response.

The request is assembled from flags and the response prints as a status
line, headers, a blank line, and the body:

  wagi run hello.wasm
  wagi run --path /item --query 'id=7' api.wasm
  wagi run --allow-host api.example.com fetcher.wasm`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("entrypoint", "", "Exported function to call (default _start)")
	runCmd.Flags().String("path", "/", "Request path")
	runCmd.Flags().StringP("method", "X", "GET", "Request method")
	runCmd.Flags().String("query", "", "Raw query string")
	runCmd.Flags().StringP("body", "d", "", "Request body, passed on stdin")
	runCmd.Flags().StringToString("env", nil, "Extra environment variable, name=value (repeatable)")
	runCmd.Flags().StringToString("volume", nil, "Mount a host directory, guestpath=hostpath (repeatable)")
	runCmd.Flags().StringSlice("allow-host", nil, "Allow outbound HTTP to host (repeatable)")
	runCmd.Flags().Int("max-http", config.DefaultMaxHTTPRequests, "Outbound HTTP call limit")
	runCmd.Flags().Duration("timeout", 30*time.Second, "Execution timeout")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	entry, _ := cmd.Flags().GetString("entrypoint")
	reqPath, _ := cmd.Flags().GetString("path")
	method, _ := cmd.Flags().GetString("method")
	query, _ := cmd.Flags().GetString("query")
	body, _ := cmd.Flags().GetString("body")
	env, _ := cmd.Flags().GetStringToString("env")
	volumes, _ := cmd.Flags().GetStringToString("volume")
	hosts, _ := cmd.Flags().GetStringSlice("allow-host")
	maxHTTP, _ := cmd.Flags().GetInt("max-http")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	mod := config.Module{
		Route:           "/...",
		Module:          args[0],
		Path:            path,
		Entrypoint:      entry,
		Volumes:         volumes,
		Environment:     env,
		AllowedHosts:    hosts,
		MaxHTTPRequests: maxHTTP,
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	gw, err := gateway.New(ctx, []config.Module{mod})
	if err != nil {
		return err
	}
	defer gw.Close()

	req := &wagi.Request{
		Method: strings.ToUpper(method),
		Path:   reqPath,
		Query:  query,
		Scheme: "http",
		Host:   "localhost",
	}
	if body != "" {
		req.Body = []byte(body)
	}

	resp, err := gw.Process(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp.Reason != "" {
		fmt.Fprintf(out, "Status: %d %s\n", resp.Status, resp.Reason)
	} else {
		fmt.Fprintf(out, "Status: %d\n", resp.Status)
	}
	for _, name := range resp.Header.Names() {
		for _, value := range resp.Header.Values(name) {
			fmt.Fprintf(out, "%s: %s\n", name, value)
		}
	}
	fmt.Fprintln(out)
	if len(resp.Body) > 0 {
		fmt.Fprintf(out, "%s", resp.Body)
	}
	return nil
}
