package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "x402-gate",
	Short: "Serve HTTP routes behind x402 payments",
	Long: `x402-gate serves a demo API whose routes require an x402 payment.

Routes, prices and the facilitator are read from x402-gate.yaml (or --config)
and may be overridden with X402GATE_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: ./x402-gate.yaml)")
	rootCmd.AddCommand(serveCmd)
}
