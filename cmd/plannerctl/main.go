// plannerctl is a small operator CLI for a running planner service.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	addr    string
	timeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:          "plannerctl",
		Short:        "Operate a running tripweaver planner service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8080", "service base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(planCmd(), budgetCmd(), healthCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func client() *resty.Client {
	return resty.New().
		SetBaseURL(addr).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
}

func printBody(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	var pretty json.RawMessage = resp.Body()
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(resp.String())
		return nil
	}
	fmt.Println(string(out))
	return nil
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "plan", Short: "Manage plans"}

	var (
		ownerID   string
		title     string
		interests []string
		days      int
		groupSize int
		lat, lon  float64
		auto      bool
	)
	create := &cobra.Command{
		Use:   "create <query>",
		Short: "Create a plan from a free-text query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"ownerId":     ownerID,
				"title":       title,
				"query":       args[0],
				"interests":   interests,
				"days":        days,
				"groupSize":   groupSize,
				"latitude":    lat,
				"longitude":   lon,
				"autoRefresh": auto,
			}
			resp, err := client().R().SetBody(body).Post("/v1/plans")
			if err != nil {
				return err
			}
			return printBody(resp)
		},
	}
	create.Flags().StringVar(&ownerID, "owner", "local", "owner id")
	create.Flags().StringVar(&title, "title", "", "plan title (defaults to the query)")
	create.Flags().StringSliceVar(&interests, "interest", nil, "interest, repeatable")
	create.Flags().IntVar(&days, "days", 1, "trip length in days")
	create.Flags().IntVar(&groupSize, "group", 1, "group size")
	create.Flags().Float64Var(&lat, "lat", 0, "city latitude")
	create.Flags().Float64Var(&lon, "lon", 0, "city longitude")
	create.Flags().BoolVar(&auto, "auto-refresh", false, "opt in to background refresh")

	get := &cobra.Command{
		Use:   "get <plan-id>",
		Short: "Fetch one plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().R().Get("/v1/plans/" + args[0])
			if err != nil {
				return err
			}
			return printBody(resp)
		},
	}

	var listOwner string
	list := &cobra.Command{
		Use:   "list",
		Short: "List an owner's plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().R().SetQueryParam("ownerId", listOwner).Get("/v1/plans")
			if err != nil {
				return err
			}
			return printBody(resp)
		},
	}
	list.Flags().StringVar(&listOwner, "owner", "local", "owner id")

	del := &cobra.Command{
		Use:   "delete <plan-id>",
		Short: "Delete a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().R().Delete("/v1/plans/" + args[0])
			if err != nil {
				return err
			}
			if resp.StatusCode() >= http.StatusBadRequest {
				return fmt.Errorf("status %d", resp.StatusCode())
			}
			fmt.Println("deleted")
			return nil
		},
	}

	refresh := &cobra.Command{
		Use:   "refresh <plan-id>",
		Short: "Re-evaluate a plan against live conditions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().R().Post("/v1/plans/" + args[0] + "/refresh")
			if err != nil {
				return err
			}
			return printBody(resp)
		},
	}

	cmd.AddCommand(create, get, list, del, refresh)
	return cmd
}

func budgetCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "budget", Short: "Budget allocation"}

	var (
		itemsFile string
		amount    float64
		groupSize int
	)
	allocate := &cobra.Command{
		Use:   "allocate",
		Short: "Allocate a budget over an item pool from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(itemsFile)
			if err != nil {
				return err
			}
			var items json.RawMessage = raw
			body := map[string]any{
				"items":       items,
				"budget":      amount,
				"groupSize":   groupSize,
				"constraints": map[string]any{},
			}
			resp, err := client().R().SetBody(body).Post("/v1/budget/allocate")
			if err != nil {
				return err
			}
			return printBody(resp)
		},
	}
	allocate.Flags().StringVar(&itemsFile, "items", "items.json", "path to the item pool JSON array")
	allocate.Flags().Float64Var(&amount, "budget", 0, "total budget")
	allocate.Flags().IntVar(&groupSize, "group", 1, "group size")
	_ = allocate.MarkFlagRequired("budget")

	cmd.AddCommand(allocate)
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().R().Get("/v1/health")
			if err != nil {
				return err
			}
			return printBody(resp)
		},
	}
}
