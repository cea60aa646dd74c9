package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var governanceCmd = &cobra.Command{
	Use:   "governance",
	Short: "Anonymous governance operations",
	Long:  "Create proposals, cast anonymous ballots, and finalize or execute them",
}

var governanceProposeCmd = &cobra.Command{
	Use:   "create-proposal [circleId]",
	Short: "Create a new governance proposal",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		proposalType, _ := cmd.Flags().GetUint8("type")
		proposer, _ := cmd.Flags().GetString("proposer")
		payload, _ := cmd.Flags().GetString("payload")
		createdAt, _ := cmd.Flags().GetUint64("created-at")
		eligibleCount, _ := cmd.Flags().GetInt("eligible-count")

		run("POST", "/api/v1/governance/proposals", map[string]interface{}{
			"type":          proposalType,
			"proposer":      proposer,
			"circleId":      args[0],
			"payload":       payload,
			"createdAt":     createdAt,
			"eligibleCount": eligibleCount,
		})
	},
}

var governanceVoteCmd = &cobra.Command{
	Use:   "vote [proposalId]",
	Short: "Cast an anonymous ballot on a proposal",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		voter, _ := cmd.Flags().GetString("voter")
		voteCommit, _ := cmd.Flags().GetString("vote-commit")
		nullifier, _ := cmd.Flags().GetString("nullifier")
		voteProof, _ := cmd.Flags().GetString("vote-proof")
		choice, _ := cmd.Flags().GetUint8("choice")
		timestamp, _ := cmd.Flags().GetUint64("timestamp")
		now, _ := cmd.Flags().GetUint64("now")

		run("POST", fmt.Sprintf("/api/v1/governance/proposals/%s/votes", args[0]), map[string]interface{}{
			"voter":      voter,
			"voteCommit": voteCommit,
			"nullifier":  nullifier,
			"voteProof":  voteProof,
			"choice":     choice,
			"timestamp":  timestamp,
			"now":        now,
		})
	},
}

var governanceFinalizeCmd = &cobra.Command{
	Use:   "finalize [proposalId]",
	Short: "Finalize a proposal's voting period",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		now, _ := cmd.Flags().GetUint64("now")
		run("POST", fmt.Sprintf("/api/v1/governance/proposals/%s/finalize", args[0]), map[string]interface{}{"now": now})
	},
}

var governanceExecuteCmd = &cobra.Command{
	Use:   "execute [proposalId]",
	Short: "Execute a passed proposal after its timelock",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		now, _ := cmd.Flags().GetUint64("now")
		run("POST", fmt.Sprintf("/api/v1/governance/proposals/%s/execute", args[0]), map[string]interface{}{"now": now})
	},
}

func init() {
	governanceProposeCmd.Flags().Uint8("type", 0, "proposal type (0=interest-rate .. 4=voting-period)")
	governanceProposeCmd.Flags().String("proposer", "", "hex-encoded proposer identity commitment")
	governanceProposeCmd.Flags().String("payload", "", "hex-encoded proposal payload")
	governanceProposeCmd.Flags().Uint64("created-at", 0, "creation timestamp")
	governanceProposeCmd.Flags().Int("eligible-count", 0, "number of members eligible to vote")

	governanceVoteCmd.Flags().String("voter", "", "hex-encoded voter identity commitment")
	governanceVoteCmd.Flags().String("vote-commit", "", "hex-encoded vote commitment")
	governanceVoteCmd.Flags().String("nullifier", "", "hex-encoded vote nullifier")
	governanceVoteCmd.Flags().String("vote-proof", "", "hex-encoded vote_validity circuit proof")
	governanceVoteCmd.Flags().Uint8("choice", 0, "0=no, 1=yes")
	governanceVoteCmd.Flags().Uint64("timestamp", 0, "vote timestamp")
	governanceVoteCmd.Flags().Uint64("now", 0, "current timestamp")

	governanceFinalizeCmd.Flags().Uint64("now", 0, "current timestamp")
	governanceExecuteCmd.Flags().Uint64("now", 0, "current timestamp")

	governanceCmd.AddCommand(governanceProposeCmd, governanceVoteCmd, governanceFinalizeCmd, governanceExecuteCmd)
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Cross-chain privacy bridge operations",
	Long:  "Initiate, confirm, and execute transfers routed through the privacy bridge",
}

var bridgeInitiateCmd = &cobra.Command{
	Use:   "initiate [transferId]",
	Short: "Initiate a cross-chain transfer",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source, _ := cmd.Flags().GetString("source")
		target, _ := cmd.Flags().GetString("target")
		amount, _ := cmd.Flags().GetUint64("amount")
		recipientCommit, _ := cmd.Flags().GetString("recipient-commit")
		mode, _ := cmd.Flags().GetUint8("mode")
		createdAt, _ := cmd.Flags().GetUint64("created-at")

		run("POST", "/api/v1/bridge/transfers", map[string]interface{}{
			"transferId":      args[0],
			"source":          source,
			"target":          target,
			"amount":          amount,
			"recipientCommit": recipientCommit,
			"mode":            mode,
			"createdAt":       createdAt,
		})
	},
}

var bridgeConfirmCmd = &cobra.Command{
	Use:   "confirm [transferId]",
	Short: "Confirm a transfer's source-chain lock with a nullifier and proof",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		nullifier, _ := cmd.Flags().GetString("nullifier")
		proof, _ := cmd.Flags().GetString("proof")

		run("POST", fmt.Sprintf("/api/v1/bridge/transfers/%s/confirm", args[0]), map[string]interface{}{
			"nullifier": nullifier,
			"proof":     proof,
		})
	},
}

var bridgeExecuteCmd = &cobra.Command{
	Use:   "execute [transferId]",
	Short: "Execute a confirmed transfer on its destination chain",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run("POST", fmt.Sprintf("/api/v1/bridge/transfers/%s/execute", args[0]), nil)
	},
}

func init() {
	bridgeInitiateCmd.Flags().String("source", "", "source chain id (e.g. midnight)")
	bridgeInitiateCmd.Flags().String("target", "", "target chain id")
	bridgeInitiateCmd.Flags().Uint64("amount", 0, "transfer amount")
	bridgeInitiateCmd.Flags().String("recipient-commit", "", "hex-encoded recipient commitment")
	bridgeInitiateCmd.Flags().Uint8("mode", 0, "route mode (0=fastest, 1=cheapest, 2=most-private)")
	bridgeInitiateCmd.Flags().Uint64("created-at", 0, "creation timestamp")

	bridgeConfirmCmd.Flags().String("nullifier", "", "hex-encoded transfer nullifier")
	bridgeConfirmCmd.Flags().String("proof", "", "hex-encoded lock proof")

	bridgeCmd.AddCommand(bridgeInitiateCmd, bridgeConfirmCmd, bridgeExecuteCmd)
}
