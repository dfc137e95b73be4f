package btctx

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func taprootAddress(t *testing.T, key *btcec.PrivateKey) btcutil.Address {
	t.Helper()
	outputKey := txscript.ComputeTaprootKeyNoScript(key.PubKey())
	addr, err := btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(outputKey), &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	return addr
}

func testRequest(t *testing.T) (UnlockRequest, *btcec.PrivateKey) {
	t.Helper()
	recipientKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	collectorKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return UnlockRequest{
		Utxo:         wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0},
		Amount:       100_000,
		Recipient:    taprootAddress(t, recipientKey),
		BitcoinFee:   800,
		ServiceFee:   200,
		FeeCollector: collectorKey.PubKey(),
	}, collectorKey
}

func TestCreateUnlockingTx(t *testing.T) {
	req, collectorKey := testRequest(t)
	tx, err := CreateUnlockingTx(req)
	require.NoError(t, err)

	require.EqualValues(t, 2, tx.Version)
	require.EqualValues(t, 0, tx.LockTime)
	require.Len(t, tx.TxIn, 1)
	require.Equal(t, req.Utxo, tx.TxIn[0].PreviousOutPoint)
	require.Equal(t, uint32(wire.MaxTxInSequenceNum), tx.TxIn[0].Sequence)

	// payout covers the full amount minus both fees
	require.Len(t, tx.TxOut, 2)
	require.EqualValues(t, 99_000, tx.TxOut[0].Value)
	recipientScript, err := txscript.PayToAddrScript(req.Recipient)
	require.NoError(t, err)
	require.Equal(t, recipientScript, tx.TxOut[0].PkScript)

	require.EqualValues(t, 200, tx.TxOut[1].Value)
	feeScript, err := txscript.PayToTaprootScript(
		txscript.ComputeTaprootKeyNoScript(collectorKey.PubKey()))
	require.NoError(t, err)
	require.Equal(t, feeScript, tx.TxOut[1].PkScript)
}

func TestCreateUnlockingTxRejectsExcessFees(t *testing.T) {
	req, _ := testRequest(t)
	req.Amount = 900
	_, err := CreateUnlockingTx(req)
	require.ErrorContains(t, err, "leave nothing")
}

func TestSignUnlockingTx(t *testing.T) {
	req, _ := testRequest(t)
	zkappKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	// the output being unlocked is a key-spendable taproot output
	zkappScript, err := txscript.PayToTaprootScript(
		txscript.ComputeTaprootKeyNoScript(zkappKey.PubKey()))
	require.NoError(t, err)
	prevOuts := []*wire.TxOut{wire.NewTxOut(int64(req.Amount), zkappScript)}

	tx, err := CreateUnlockingTx(req)
	require.NoError(t, err)
	require.NoError(t, SignUnlockingTx(zkappKey, tx, prevOuts))

	// sighash-all key-spend witness: 64-byte schnorr signature + flag byte
	require.Len(t, tx.TxIn[0].Witness, 1)
	require.Len(t, tx.TxIn[0].Witness[0], 65)

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	fetcher.AddPrevOut(tx.TxIn[0].PreviousOutPoint, prevOuts[0])
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	sighash, err := txscript.CalcTaprootSignatureHash(
		sigHashes, txscript.SigHashAll, tx, 0, fetcher)
	require.NoError(t, err)

	sig, err := schnorr.ParseSignature(tx.TxIn[0].Witness[0][:64])
	require.NoError(t, err)
	outputKey := txscript.ComputeTaprootKeyNoScript(zkappKey.PubKey())
	require.True(t, sig.Verify(sighash, outputKey),
		"witness signature must verify against the tweaked output key")
}

func TestSignUnlockingTxRejectsMissingPrevOuts(t *testing.T) {
	req, _ := testRequest(t)
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	tx, err := CreateUnlockingTx(req)
	require.NoError(t, err)
	require.Error(t, SignUnlockingTx(key, tx, nil))
}
