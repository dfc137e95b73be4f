// Package btctx builds and signs the Bitcoin transactions that unlock zkapp
// funds once a proof has been accepted: a taproot key spend of the zkapp UTXO
// paying the recipient, with a second output carrying the service fee.
package btctx

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// UnlockRequest describes the spend of a zkapp UTXO.
type UnlockRequest struct {
	// Utxo is the zkapp output being unlocked
	Utxo wire.OutPoint
	// Amount is the value held by the zkapp output
	Amount btcutil.Amount
	// Recipient receives Amount minus the two fees
	Recipient btcutil.Address
	// BitcoinFee is left to the miners
	BitcoinFee btcutil.Amount
	// ServiceFee is paid to the fee collector key
	ServiceFee btcutil.Amount
	// FeeCollector is the internal key of the service fee output
	FeeCollector *btcec.PublicKey
}

// CreateUnlockingTx builds the unsigned transaction spending a zkapp UTXO:
// the UTXO as sole input, a first output paying the recipient the unlocked
// amount minus fees, and a second taproot output paying the service fee.
func CreateUnlockingTx(req UnlockRequest) (*wire.MsgTx, error) {
	payout := req.Amount - req.BitcoinFee - req.ServiceFee
	if payout <= 0 {
		return nil, fmt.Errorf("fees (%v) leave nothing of the unlocked "+
			"amount (%v)", req.BitcoinFee+req.ServiceFee, req.Amount)
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: req.Utxo,
		Sequence:         wire.MaxTxInSequenceNum,
	})

	recipientScript, err := txscript.PayToAddrScript(req.Recipient)
	if err != nil {
		return nil, fmt.Errorf("error building recipient script: %v", err)
	}
	tx.AddTxOut(wire.NewTxOut(int64(payout), recipientScript))

	feeKey := txscript.ComputeTaprootKeyNoScript(req.FeeCollector)
	feeScript, err := txscript.PayToTaprootScript(feeKey)
	if err != nil {
		return nil, fmt.Errorf("error building fee collector script: %v", err)
	}
	tx.AddTxOut(wire.NewTxOut(int64(req.ServiceFee), feeScript))

	return tx, nil
}

// SignUnlockingTx produces the taproot key-spend witness for the zkapp input
// and places it on the transaction. prevOuts holds the outputs being spent,
// in input order; the zkapp UTXO is always the first input. The sighash flag
// is always ALL.
func SignUnlockingTx(key *btcec.PrivateKey, tx *wire.MsgTx,
	prevOuts []*wire.TxOut) error {
	if len(prevOuts) != len(tx.TxIn) {
		return fmt.Errorf("got %d previous outputs for %d inputs",
			len(prevOuts), len(tx.TxIn))
	}
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range tx.TxIn {
		fetcher.AddPrevOut(in.PreviousOutPoint, prevOuts[i])
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	witness, err := txscript.TaprootWitnessSignature(tx, sigHashes, 0,
		prevOuts[0].Value, prevOuts[0].PkScript, txscript.SigHashAll, key)
	if err != nil {
		return fmt.Errorf("error signing zkapp input: %v", err)
	}
	tx.TxIn[0].Witness = witness
	return nil
}
