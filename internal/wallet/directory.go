package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"log"

	"github.com/ethereum/go-ethereum/crypto"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
)

// Account is a decrypted, ready-to-sign wallet.
type Account struct {
	Address string
	Key     *ecdsa.PrivateKey
}

// Directory hands out one custodial wallet per user, creating it on first
// touch. Keys only exist in plaintext inside the process.
type Directory struct {
	vault  *Vault
	store  *Store
	logger *log.Logger
}

func NewDirectory(vault *Vault, store *Store, logger *log.Logger) *Directory {
	return &Directory{vault: vault, store: store, logger: logger}
}

// GetOrCreate returns the user's wallet, generating and persisting a new key
// when none exists yet.
func (d *Directory) GetOrCreate(ctx context.Context, userID int64) (Account, error) {
	rec, address, err := d.store.Get(ctx, userID)
	if err == nil {
		raw, derr := d.vault.Decrypt(rec)
		if derr != nil {
			return Account{}, derr
		}
		key, kerr := crypto.ToECDSA(raw)
		if kerr != nil {
			return Account{}, boterr.Wrap(boterr.CodeCorruptRecord, "rebuild wallet key", kerr)
		}
		return Account{Address: address, Key: key}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, err
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return Account{}, boterr.Wrap(boterr.CodeInternal, "generate wallet key", err)
	}
	address = crypto.PubkeyToAddress(key.PublicKey).Hex()

	sealed, err := d.vault.Encrypt(crypto.FromECDSA(key))
	if err != nil {
		return Account{}, err
	}
	if err := d.store.Save(ctx, userID, address, sealed); err != nil {
		return Account{}, err
	}
	d.logger.Printf("created wallet %s for user %d", address, userID)
	return Account{Address: address, Key: key}, nil
}

// Lookup returns the wallet address without decrypting the key, or empty if
// the user has no wallet yet.
func (d *Directory) Lookup(ctx context.Context, userID int64) (string, error) {
	_, address, err := d.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return address, nil
}

// ExportKey decrypts the user's private key and returns it hex encoded.
func (d *Directory) ExportKey(ctx context.Context, userID int64) (string, error) {
	rec, _, err := d.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	raw, err := d.vault.Decrypt(rec)
	if err != nil {
		return "", err
	}
	if _, err := crypto.ToECDSA(raw); err != nil {
		return "", boterr.Wrap(boterr.CodeCorruptRecord, "rebuild wallet key", err)
	}
	return "0x" + hex.EncodeToString(raw), nil
}
