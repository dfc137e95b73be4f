package main

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/spf13/cobra"

	"github.com/sigma0-xyz/zkbitcoin/btctx"
	"github.com/sigma0-xyz/zkbitcoin/compliance"
)

var (
	fTxid         string
	fVout         uint32
	fAmount       int64
	fRecipient    string
	fBitcoinFee   int64
	fServiceFee   int64
	fFeeCollector string
	fNetwork      string
)

var screenCmd = &cobra.Command{
	Use:   "screen <address>",
	Short: "check a Bitcoin address against the OFAC sanctions list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := compliance.NewVerifier()
		if err := v.Sync(cmd.Context()); err != nil {
			return err
		}
		if v.IsSanctioned(args[0]) {
			return fmt.Errorf("address %s is on the sanctions list", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), "address is not on the sanctions list")
		return nil
	},
}

var unlockTxCmd = &cobra.Command{
	Use:   "unlock-tx",
	Short: "build the unsigned transaction unlocking a zkapp UTXO",
	Long: `unlock-tx builds the Bitcoin transaction spending a zkapp taproot
output to a recipient, net of the miner and service fees, and prints its hex
encoding. The recipient address is screened against the OFAC sanctions list
before the transaction is built. Signing is left to the key holders.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := networkParams(fNetwork)
		if err != nil {
			return err
		}
		hash, err := chainhash.NewHashFromStr(fTxid)
		if err != nil {
			return fmt.Errorf("invalid txid: %v", err)
		}
		recipient, err := btcutil.DecodeAddress(fRecipient, params)
		if err != nil {
			return fmt.Errorf("invalid recipient address: %v", err)
		}
		keyBytes, err := hex.DecodeString(fFeeCollector)
		if err != nil {
			return fmt.Errorf("invalid fee collector key: %v", err)
		}
		collector, err := btcec.ParsePubKey(keyBytes)
		if err != nil {
			return fmt.Errorf("invalid fee collector key: %v", err)
		}

		v := compliance.NewVerifier()
		if err := v.Sync(cmd.Context()); err != nil {
			return err
		}
		if v.IsSanctioned(fRecipient) {
			return fmt.Errorf("recipient %s is on the sanctions list",
				fRecipient)
		}

		tx, err := btctx.CreateUnlockingTx(btctx.UnlockRequest{
			Utxo:         wire.OutPoint{Hash: *hash, Index: fVout},
			Amount:       btcutil.Amount(fAmount),
			Recipient:    recipient,
			BitcoinFee:   btcutil.Amount(fBitcoinFee),
			ServiceFee:   btcutil.Amount(fServiceFee),
			FeeCollector: collector,
		})
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := tx.Serialize(&buf); err != nil {
			return fmt.Errorf("error encoding transaction: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(buf.Bytes()))
		return nil
	},
}

func networkParams(name string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}

func init() {
	flags := unlockTxCmd.Flags()
	flags.StringVar(&fTxid, "txid", "", "txid of the zkapp UTXO")
	flags.Uint32Var(&fVout, "vout", 0, "output index of the zkapp UTXO")
	flags.Int64Var(&fAmount, "amount", 0, "value of the zkapp UTXO in satoshis")
	flags.StringVar(&fRecipient, "recipient", "", "address receiving the unlocked funds")
	flags.Int64Var(&fBitcoinFee, "bitcoin-fee", 800, "miner fee in satoshis")
	flags.Int64Var(&fServiceFee, "service-fee", 200, "service fee in satoshis")
	flags.StringVar(&fFeeCollector, "fee-collector", "", "hex public key collecting the service fee")
	flags.StringVar(&fNetwork, "network", "mainnet", "bitcoin network: mainnet, testnet, signet or regtest")
	for _, name := range []string{"txid", "amount", "recipient", "fee-collector"} {
		unlockTxCmd.MarkFlagRequired(name)
	}
	rootCmd.AddCommand(screenCmd, unlockTxCmd)
}
