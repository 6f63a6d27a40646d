package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible negotiations",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/negotiations")
		if err != nil {
			return err
		}

		var result struct {
			Negotiations []struct {
				ID         string `json:"id"`
				SellerName string `json:"sellerName"`
				Category   string `json:"category"`
				State      string `json:"state"`
				UpdatedAt  string `json:"updatedAt"`
			} `json:"negotiations"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Negotiations) == 0 {
			fmt.Println("No negotiations.")
			return nil
		}
		for _, n := range result.Negotiations {
			fmt.Printf("%s  %-8s %-26s %-20s %s\n", n.ID[:8], n.Category, n.State, n.SellerName, n.UpdatedAt)
		}
		return nil
	},
}

// --- checkpoint decisions ---

func decide(id, kind string, approved bool) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.post(fmt.Sprintf("/negotiations/%s/checkpoints/%s", id, kind), map[string]any{
		"approved": approved,
	})
	if err != nil {
		return err
	}
	var result map[string]any
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	fmt.Printf("%s checkpoint for %s: approved=%v\n", kind, id, approved)
	return nil
}

var approveCmd = &cobra.Command{
	Use:   "approve <conversation-id>",
	Short: "Approve the pending purchase checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(args[0], "purchase", true)
	},
}

var declineCmd = &cobra.Command{
	Use:   "decline <conversation-id>",
	Short: "Decline the pending purchase checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(args[0], "purchase", false)
	},
}

var paidCmd = &cobra.Command{
	Use:   "paid <conversation-id>",
	Short: "Assert that the payment was sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(args[0], "payment", true)
	},
}

// --- manual finalizers ---

var completeCmd = &cobra.Command{
	Use:   "complete <conversation-id>",
	Short: "Manually complete a negotiation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post("/negotiations/"+args[0]+"/complete", map[string]any{})
		if err != nil {
			return err
		}
		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Printf("Completed %s\n", args[0])
		return nil
	},
}

var failCmd = &cobra.Command{
	Use:   "fail <conversation-id>",
	Short: "Manually fail a negotiation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post("/negotiations/"+args[0]+"/fail", map[string]any{
			"reason": reason,
		})
		if err != nil {
			return err
		}
		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Printf("Failed %s\n", args[0])
		return nil
	},
}

func init() {
	failCmd.Flags().String("reason", "", "failure reason to record")
}
