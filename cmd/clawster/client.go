package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/clawster/clawster/pkg/client"
)

var apiAddr string

func init() {
	for _, cmd := range []*cobra.Command{statusCmd, nodesCmd, leaderCmd, eventsCmd, attestCmd} {
		cmd.Flags().StringVar(&apiAddr, "api", "http://127.0.0.1:7946", "Node API address")
	}
	attestCmd.Flags().Float64("stake", 0, "Stake backing the attestation (0-100)")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the node's status snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := client.New(apiAddr).Status(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Node:     %s (%s)\n", status.NodeID, status.Address)
		if status.IsLeader {
			fmt.Println("Role:     leader")
		} else {
			fmt.Printf("Role:     follower (leader: %s)\n", status.Leader)
		}
		fmt.Printf("Peers:    %d known\n", len(status.Gossip.KnownPeers))
		fmt.Printf("Memory:   %d tracked, %d active\n", status.MemoryTotal, status.MemoryActive)
		if status.Cluster != nil {
			fmt.Printf("Cluster:  %d nodes (%d healthy, %d suspected, %d failed)\n",
				status.Cluster.Total, status.Cluster.Healthy,
				status.Cluster.Suspected, status.Cluster.Failed)
		}
		return nil
	},
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List registered nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, err := client.New(apiAddr).Nodes(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tADDRESS\tLAST SEEN\tCAPABILITIES")
		for _, node := range nodes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n",
				node.ID, node.State, node.Address,
				node.LastSeen.Format(time.RFC3339), node.Capabilities)
		}
		return w.Flush()
	},
}

var leaderCmd = &cobra.Command{
	Use:   "leader",
	Short: "Show the current lease holder",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := client.New(apiAddr).Leader(cmd.Context())
		if err != nil {
			return err
		}
		if !resp.HasLease {
			fmt.Println("No leader: lease is vacant")
			return nil
		}
		fmt.Printf("Leader: %s\n", resp.Leader)
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the cluster failure/recovery trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := client.New(apiAddr).Events(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tNODE\tEVENT\tREASON")
		for _, ev := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				ev.Timestamp.Format(time.RFC3339), ev.NodeID, ev.Event, ev.Reason)
		}
		return w.Flush()
	},
}

var attestCmd = &cobra.Command{
	Use:   "attest <capability>",
	Short: "Attest one of the node's capabilities",
	Long: `Attest a capability on the target node, optionally backed by a stake.
Confidence is stake/100 capped at 1.0; an unstaked attestation carries
the default 0.5 confidence.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stake, _ := cmd.Flags().GetFloat64("stake")

		att, err := client.New(apiAddr).Attest(cmd.Context(), args[0], stake)
		if err != nil {
			return err
		}

		fmt.Printf("Attested %s (chain length %d)\n", att.Capability, len(att.Chain))
		for _, entry := range att.Chain {
			fmt.Printf("  %s  confidence %.2f  at %s\n",
				entry.NodeID, entry.Confidence, entry.Timestamp.Format(time.RFC3339))
		}
		return nil
	},
}
