package chain

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// SignMessage decodes a serialized unsigned message (legacy or v0) and signs
// it with key, which must be the fee payer and the only required signer.
func SignMessage(raw []byte, key solana.PrivateKey) (*solana.Transaction, error) {
	var msg solana.Message
	if err := msg.UnmarshalWithDecoder(bin.NewBinDecoder(raw)); err != nil {
		return nil, errors.Wrap(err, "decode message")
	}
	if len(msg.AccountKeys) == 0 {
		return nil, errors.New("message has no accounts")
	}
	payer := key.PublicKey()
	if !msg.AccountKeys[0].Equals(payer) {
		return nil, errors.Errorf("message fee payer is %s, wallet is %s", msg.AccountKeys[0], payer)
	}
	if msg.Header.NumRequiredSignatures != 1 {
		return nil, errors.Errorf("message requires %d signatures", msg.Header.NumRequiredSignatures)
	}

	tx := &solana.Transaction{Message: msg}
	_, err := tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(payer) {
			return &key
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "sign")
	}
	return tx, nil
}
