package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clawster/clawster/pkg/agent"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "clawster",
	Short: "Clawster - peer-to-peer coordination for autonomous agent nodes",
	Long: `Clawster is a coordination layer for a cluster of autonomous agent
nodes: lease-based leader election, epidemic gossip with causal ordering,
isnad-style capability provenance, and relevance-ranked memory exchange,
all over a shared coordination store.`,
	Version: agent.Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Clawster version %s\nCommit: %s\nBuilt: %s\n",
		agent.Version, agent.Commit, agent.BuildTime,
	))

	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(leaderCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(attestCmd)
}
