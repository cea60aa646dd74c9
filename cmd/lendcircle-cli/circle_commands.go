package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var circleCmd = &cobra.Command{
	Use:   "circle",
	Short: "Circle lifecycle operations",
	Long:  "Create, join, and advance rotating-savings circles",
}

var circleCreateCmd = &cobra.Command{
	Use:   "create [circleId]",
	Short: "Create a new circle",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		creator, _ := cmd.Flags().GetString("creator")
		maxMembers, _ := cmd.Flags().GetInt("max-members")
		monthlyAmount, _ := cmd.Flags().GetUint64("monthly-amount")
		totalRounds, _ := cmd.Flags().GetInt("total-rounds")
		interestRateBP, _ := cmd.Flags().GetUint32("interest-rate-bp")
		stakeRequirement, _ := cmd.Flags().GetUint64("stake-requirement")
		createdAt, _ := cmd.Flags().GetUint64("created-at")

		run("POST", "/api/v1/circles", map[string]interface{}{
			"circleId":         args[0],
			"creator":          creator,
			"maxMembers":       maxMembers,
			"monthlyAmount":    monthlyAmount,
			"totalRounds":      totalRounds,
			"interestRateBp":   interestRateBP,
			"stakeRequirement": stakeRequirement,
			"createdAt":        createdAt,
		})
	},
}

var circleGetCmd = &cobra.Command{
	Use:   "get [circleId]",
	Short: "Fetch a circle's current state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run("GET", fmt.Sprintf("/api/v1/circles/%s", args[0]), nil)
	},
}

var circleJoinCmd = &cobra.Command{
	Use:   "join [circleId]",
	Short: "Join a circle with an identity commitment and stake",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ic, _ := cmd.Flags().GetString("identity-commitment")
		stake, _ := cmd.Flags().GetUint64("stake")

		run("POST", fmt.Sprintf("/api/v1/circles/%s/join", args[0]), map[string]interface{}{
			"identityCommitment": ic,
			"stake":              stake,
		})
	},
}

var circleAdvanceCmd = &cobra.Command{
	Use:   "advance [circleId]",
	Short: "Advance a circle to its next round",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run("POST", fmt.Sprintf("/api/v1/circles/%s/advance", args[0]), nil)
	},
}

func init() {
	circleCreateCmd.Flags().Int("max-members", 10, "maximum number of members")
	circleCreateCmd.Flags().Uint64("monthly-amount", 0, "monthly contribution amount")
	circleCreateCmd.Flags().Int("total-rounds", 10, "number of rounds")
	circleCreateCmd.Flags().Uint32("interest-rate-bp", 0, "interest rate in basis points")
	circleCreateCmd.Flags().Uint64("stake-requirement", 0, "base stake requirement")
	circleCreateCmd.Flags().Uint64("created-at", 0, "creation timestamp")
	circleCreateCmd.Flags().String("creator", "", "hex-encoded identity commitment of the circle's creator")

	circleJoinCmd.Flags().String("identity-commitment", "", "hex-encoded identity commitment")
	circleJoinCmd.Flags().Uint64("stake", 0, "stake amount offered")
	circleJoinCmd.MarkFlagRequired("identity-commitment")

	circleCmd.AddCommand(circleCreateCmd, circleGetCmd, circleJoinCmd, circleAdvanceCmd)
}

var auctionCmd = &cobra.Command{
	Use:   "auction",
	Short: "Sealed-bid auction operations",
	Long:  "Open rounds for bidding, submit sealed bids, and finalize winners",
}

var auctionOpenCmd = &cobra.Command{
	Use:   "open [auctionId] [circleId]",
	Short: "Open a new auction round",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		round, _ := cmd.Flags().GetInt("round")
		minBid, _ := cmd.Flags().GetUint64("min-bid")
		maxBid, _ := cmd.Flags().GetUint64("max-bid")
		deadline, _ := cmd.Flags().GetUint64("deadline")
		eligible, _ := cmd.Flags().GetStringSlice("eligible")

		run("POST", "/api/v1/auctions", map[string]interface{}{
			"auctionId": args[0],
			"circleId":  args[1],
			"round":     round,
			"minBid":    minBid,
			"maxBid":    maxBid,
			"deadline":  deadline,
			"eligible":  eligible,
		})
	},
}

var auctionBidCmd = &cobra.Command{
	Use:   "bid [auctionId]",
	Short: "Submit a sealed bid",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		commitment, _ := cmd.Flags().GetString("commitment")
		nullifier, _ := cmd.Flags().GetString("nullifier")
		memberCommitment, _ := cmd.Flags().GetString("member-commitment")
		circleID, _ := cmd.Flags().GetString("circle-id")
		round, _ := cmd.Flags().GetInt("round")
		amount, _ := cmd.Flags().GetUint64("amount")
		blinder, _ := cmd.Flags().GetString("blinder")
		timestamp, _ := cmd.Flags().GetUint64("timestamp")
		rangeProof, _ := cmd.Flags().GetString("range-proof")
		membershipProof, _ := cmd.Flags().GetString("membership-proof")
		fairnessProof, _ := cmd.Flags().GetString("fairness-proof")
		now, _ := cmd.Flags().GetUint64("now")

		run("POST", fmt.Sprintf("/api/v1/auctions/%s/bids", args[0]), map[string]interface{}{
			"commitment":       commitment,
			"nullifier":        nullifier,
			"memberCommitment": memberCommitment,
			"circleId":         circleID,
			"round":            round,
			"amount":           amount,
			"blinder":          blinder,
			"timestamp":        timestamp,
			"rangeProof":       rangeProof,
			"membershipProof":  membershipProof,
			"fairnessProof":    fairnessProof,
			"now":              now,
		})
	},
}

var auctionCloseCmd = &cobra.Command{
	Use:   "close [auctionId]",
	Short: "Close an auction to further bids",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run("POST", fmt.Sprintf("/api/v1/auctions/%s/close", args[0]), nil)
	},
}

var auctionFinalizeCmd = &cobra.Command{
	Use:   "finalize [auctionId]",
	Short: "Finalize an auction, deriving the winner from the lowest revealed bid",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run("POST", fmt.Sprintf("/api/v1/auctions/%s/finalize", args[0]), nil)
	},
}

func init() {
	auctionOpenCmd.Flags().Int("round", 0, "round number")
	auctionOpenCmd.Flags().Uint64("min-bid", 0, "minimum acceptable bid")
	auctionOpenCmd.Flags().Uint64("max-bid", 0, "maximum acceptable bid")
	auctionOpenCmd.Flags().Uint64("deadline", 0, "bid submission deadline timestamp")
	auctionOpenCmd.Flags().StringSlice("eligible", nil, "hex-encoded eligible member identity commitments")

	auctionBidCmd.Flags().String("commitment", "", "hex-encoded bid commitment")
	auctionBidCmd.Flags().String("nullifier", "", "hex-encoded bid nullifier")
	auctionBidCmd.Flags().String("member-commitment", "", "hex-encoded bidder's identity commitment")
	auctionBidCmd.Flags().String("circle-id", "", "hex-encoded circle id")
	auctionBidCmd.Flags().Int("round", 0, "round number")
	auctionBidCmd.Flags().Uint64("amount", 0, "bid amount")
	auctionBidCmd.Flags().String("blinder", "", "hex-encoded commitment blinder")
	auctionBidCmd.Flags().Uint64("timestamp", 0, "bid timestamp")
	auctionBidCmd.Flags().String("range-proof", "", "hex-encoded range proof")
	auctionBidCmd.Flags().String("membership-proof", "", "hex-encoded membership proof")
	auctionBidCmd.Flags().String("fairness-proof", "", "hex-encoded fairness proof")
	auctionBidCmd.Flags().Uint64("now", 0, "current timestamp")

	auctionCmd.AddCommand(auctionOpenCmd, auctionBidCmd, auctionCloseCmd, auctionFinalizeCmd)
}
