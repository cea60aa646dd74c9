package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "Payment processor operations",
	Long:  "Register external wallets and drive round payment collection",
}

var paymentsRegisterWalletCmd = &cobra.Command{
	Use:   "register-wallet",
	Short: "Register an external wallet against an identity commitment",
	Run: func(cmd *cobra.Command, args []string) {
		ic, _ := cmd.Flags().GetString("identity-commitment")
		chain, _ := cmd.Flags().GetString("chain")
		balanceCommit, _ := cmd.Flags().GetString("balance-commit")
		ownershipProof, _ := cmd.Flags().GetString("ownership-proof")
		verifiedAt, _ := cmd.Flags().GetUint64("verified-at")

		run("POST", "/api/v1/payments/wallets", map[string]interface{}{
			"identityCommitment": ic,
			"chain":              chain,
			"balanceCommit":      balanceCommit,
			"ownershipProof":     ownershipProof,
			"verifiedAt":         verifiedAt,
		})
	},
}

var paymentsCollectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect a round's contribution from a member",
	Run: func(cmd *cobra.Command, args []string) {
		contributor, _ := cmd.Flags().GetString("contributor")
		circleID, _ := cmd.Flags().GetString("circle-id")
		round, _ := cmd.Flags().GetInt("round")
		requiredAmount, _ := cmd.Flags().GetUint64("required-amount")
		recipientCommit, _ := cmd.Flags().GetString("recipient-commit")
		allowPartial, _ := cmd.Flags().GetBool("allow-partial")
		maxRetries, _ := cmd.Flags().GetInt("max-retries")
		priority, _ := cmd.Flags().GetInt("priority")
		chain, _ := cmd.Flags().GetString("chain")
		amount, _ := cmd.Flags().GetUint64("amount")
		balanceProof, _ := cmd.Flags().GetString("balance-proof")
		reason, _ := cmd.Flags().GetString("reason")
		now, _ := cmd.Flags().GetUint64("now")

		run("POST", "/api/v1/payments/collect", map[string]interface{}{
			"contributor":     contributor,
			"circleId":        circleID,
			"round":           round,
			"requiredAmount":  requiredAmount,
			"recipientCommit": recipientCommit,
			"allowPartial":    allowPartial,
			"maxRetries":      maxRetries,
			"priority":        priority,
			"contributions": []map[string]interface{}{
				{"chain": chain, "amount": amount, "balanceProof": balanceProof},
			},
			"reason": reason,
			"now":    now,
		})
	},
}

var paymentsListWalletsCmd = &cobra.Command{
	Use:   "list-wallets [identityCommitment]",
	Short: "List a contributor's registered chain wallets",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run("GET", fmt.Sprintf("/api/v1/payments/wallets/%s", args[0]), nil)
	},
}

func init() {
	paymentsRegisterWalletCmd.Flags().String("identity-commitment", "", "hex-encoded identity commitment")
	paymentsRegisterWalletCmd.Flags().String("chain", "", "chain the wallet lives on")
	paymentsRegisterWalletCmd.Flags().String("balance-commit", "", "hex-encoded balance commitment")
	paymentsRegisterWalletCmd.Flags().String("ownership-proof", "", "hex-encoded ownership proof")
	paymentsRegisterWalletCmd.Flags().Uint64("verified-at", 0, "verification timestamp")

	paymentsCollectCmd.Flags().String("contributor", "", "hex-encoded contributor identity commitment")
	paymentsCollectCmd.Flags().String("circle-id", "", "hex-encoded circle id")
	paymentsCollectCmd.Flags().Int("round", 0, "round number")
	paymentsCollectCmd.Flags().Uint64("required-amount", 0, "amount required this round")
	paymentsCollectCmd.Flags().String("recipient-commit", "", "hex-encoded recipient commitment")
	paymentsCollectCmd.Flags().Bool("allow-partial", false, "accept a partial payment above threshold")
	paymentsCollectCmd.Flags().Int("max-retries", 3, "maximum retry attempts")
	paymentsCollectCmd.Flags().Int("priority", 0, "retry queue priority")
	paymentsCollectCmd.Flags().String("chain", "", "chain the contribution is claimed on")
	paymentsCollectCmd.Flags().Uint64("amount", 0, "claimed contribution amount on that chain")
	paymentsCollectCmd.Flags().String("balance-proof", "", "hex-encoded balance proof backing the claimed amount")
	paymentsCollectCmd.Flags().String("reason", "", "retry reason if this collection failed previously")
	paymentsCollectCmd.Flags().Uint64("now", 0, "current timestamp")

	paymentsCmd.AddCommand(paymentsRegisterWalletCmd, paymentsListWalletsCmd, paymentsCollectCmd)
}

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Risk engine operations",
	Long:  "Flag defaults, run detection sweeps, and order liquidations",
}

var riskFlagDefaultCmd = &cobra.Command{
	Use:   "flag-default",
	Short: "Flag a member's default for a round",
	Run: func(cmd *cobra.Command, args []string) {
		memberSecret, _ := cmd.Flags().GetString("member-secret")
		circleID, _ := cmd.Flags().GetString("circle-id")
		round, _ := cmd.Flags().GetInt("round")
		severityCommit, _ := cmd.Flags().GetString("severity-commit")
		proof, _ := cmd.Flags().GetString("proof")
		now, _ := cmd.Flags().GetUint64("now")

		run("POST", "/api/v1/risk/defaults", map[string]interface{}{
			"memberSecret":   memberSecret,
			"circleId":       circleID,
			"round":          round,
			"severityCommit": severityCommit,
			"proof":          proof,
			"now":            now,
		})
	},
}

var riskDetectDefaultsCmd = &cobra.Command{
	Use:   "detect-defaults [circleId] [round]",
	Short: "Run a default-detection sweep for a circle round",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		run("GET", fmt.Sprintf("/api/v1/risk/defaults/%s/%s", args[0], args[1]), nil)
	},
}

var riskLiquidateCmd = &cobra.Command{
	Use:   "liquidate",
	Short: "Order liquidation of a defaulting member's stake",
	Run: func(cmd *cobra.Command, args []string) {
		orderID, _ := cmd.Flags().GetString("order-id")
		circleID, _ := cmd.Flags().GetString("circle-id")
		targetNullifier, _ := cmd.Flags().GetString("target-nullifier")
		encryptedReason, _ := cmd.Flags().GetString("encrypted-reason")
		amount, _ := cmd.Flags().GetUint64("amount")
		justificationProof, _ := cmd.Flags().GetString("justification-proof")
		executionDeadline, _ := cmd.Flags().GetUint64("execution-deadline")
		now, _ := cmd.Flags().GetUint64("now")

		run("POST", "/api/v1/risk/liquidations", map[string]interface{}{
			"orderId":             orderID,
			"circleId":            circleID,
			"targetNullifier":     targetNullifier,
			"encryptedReason":     encryptedReason,
			"amount":              amount,
			"justificationProof":  justificationProof,
			"executionDeadline":   executionDeadline,
			"now":                 now,
		})
	},
}

func init() {
	riskFlagDefaultCmd.Flags().String("member-secret", "", "hex-encoded member secret authorizing the flag")
	riskFlagDefaultCmd.Flags().String("circle-id", "", "hex-encoded circle id")
	riskFlagDefaultCmd.Flags().Int("round", 0, "round number")
	riskFlagDefaultCmd.Flags().String("severity-commit", "", "hex-encoded severity commitment")
	riskFlagDefaultCmd.Flags().String("proof", "", "hex-encoded flag proof")
	riskFlagDefaultCmd.Flags().Uint64("now", 0, "current timestamp")

	riskLiquidateCmd.Flags().String("order-id", "", "hex-encoded liquidation order id")
	riskLiquidateCmd.Flags().String("circle-id", "", "hex-encoded circle id")
	riskLiquidateCmd.Flags().String("target-nullifier", "", "hex-encoded target member's nullifier")
	riskLiquidateCmd.Flags().String("encrypted-reason", "", "hex-encoded encrypted liquidation reason")
	riskLiquidateCmd.Flags().Uint64("amount", 0, "liquidation amount")
	riskLiquidateCmd.Flags().String("justification-proof", "", "hex-encoded justification proof")
	riskLiquidateCmd.Flags().Uint64("execution-deadline", 0, "execution deadline timestamp")
	riskLiquidateCmd.Flags().Uint64("now", 0, "current timestamp")

	riskCmd.AddCommand(riskFlagDefaultCmd, riskDetectDefaultsCmd, riskLiquidateCmd)
}
