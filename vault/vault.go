package vault

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/hashicorp/go-hclog"
	bolt "go.etcd.io/bbolt"

	"github.com/omniward/omniward/store"
	"github.com/omniward/omniward/types"
)

var (
	// ErrTransferNotAllowed is returned on any attempt to move an asset into
	// bridge custody, or to mint, burn or unlock, through a path other than
	// the bridge itself
	ErrTransferNotAllowed = errors.New("transfer not allowed")
	// ErrNotOwner is returned when the caller does not own the token it tries to move
	ErrNotOwner = errors.New("caller does not own token")
	// ErrInsufficientBalance is returned when a fee token transfer exceeds the payer balance
	ErrInsufficientBalance = errors.New("insufficient fee token balance")
)

// Vault tracks ownership of every non-fungible asset known to this node and a
// fungible ledger for the designated fee token. Custody moves, mints, burns
// and unlocks are reserved for authorized operators (the bridge, and the
// adapter for fee pulls); everything else goes through Transfer, which rejects
// attempts to push assets into custody directly.
type Vault struct {
	logger  hclog.Logger
	store   *store.VaultStore
	custody types.Address

	operators map[types.Address]bool
}

// NewVault creates a vault whose custody account is the given address
func NewVault(logger hclog.Logger, vaultStore *store.VaultStore, custody types.Address) *Vault {
	return &Vault{
		logger:    logger.Named("vault"),
		store:     vaultStore,
		custody:   custody,
		operators: map[types.Address]bool{},
	}
}

// Authorize marks an address as a vault operator. Called once during node
// wiring, before any traffic.
func (v *Vault) Authorize(operator types.Address) {
	v.operators[operator] = true
}

// Custody returns the custody account address
func (v *Vault) Custody() types.Address {
	return v.custody
}

func (v *Vault) isOperator(caller types.Address) bool {
	return v.operators[caller]
}

// CreateCollection registers a new collection with the caller as its minter
func (v *Vault) CreateCollection(
	caller types.Address, address types.Address, name, symbol string, dbTx *bolt.Tx) error {
	return v.store.InsertCollection(&store.Collection{
		Address: address,
		Name:    name,
		Symbol:  symbol,
		Minter:  caller,
	}, dbTx)
}

// GetCollection returns the collection metadata
func (v *Vault) GetCollection(address types.Address, dbTx *bolt.Tx) (*store.Collection, error) {
	return v.store.GetCollection(address, dbTx)
}

// Mint creates a token owned by the given account. Only the collection minter
// or a vault operator may mint.
func (v *Vault) Mint(caller types.Address, collection types.Address,
	tokenID uint64, owner types.Address, uri string, dbTx *bolt.Tx) error {
	coll, err := v.store.GetCollection(collection, dbTx)
	if err != nil {
		return err
	}

	if caller != coll.Minter && !v.isOperator(caller) {
		return fmt.Errorf("%w: %s cannot mint on %s", ErrTransferNotAllowed, caller, collection)
	}

	return v.store.InsertToken(&store.Token{
		Collection: collection,
		ID:         tokenID,
		Owner:      owner,
		URI:        uri,
	}, dbTx)
}

// Burn destroys a token. Operators only.
func (v *Vault) Burn(caller types.Address, collection types.Address, tokenID uint64, dbTx *bolt.Tx) error {
	if !v.isOperator(caller) {
		return fmt.Errorf("%w: %s cannot burn", ErrTransferNotAllowed, caller)
	}

	return v.store.DeleteToken(collection, tokenID, dbTx)
}

// OwnerOf returns the current owner of the token
func (v *Vault) OwnerOf(collection types.Address, tokenID uint64, dbTx *bolt.Tx) (types.Address, error) {
	token, err := v.store.GetToken(collection, tokenID, dbTx)
	if err != nil {
		return types.ZeroAddress, err
	}

	return token.Owner, nil
}

// GetToken returns the full token record
func (v *Vault) GetToken(collection types.Address, tokenID uint64, dbTx *bolt.Tx) (*store.Token, error) {
	return v.store.GetToken(collection, tokenID, dbTx)
}

// Transfer moves a token between accounts on behalf of its owner. Moving a
// token into the custody account through this path is rejected, custody is
// entered through the bridge send entry point only.
func (v *Vault) Transfer(caller types.Address, collection types.Address,
	tokenID uint64, to types.Address, dbTx *bolt.Tx) error {
	if to == v.custody && !v.isOperator(caller) {
		return fmt.Errorf("%w: direct transfer into bridge custody", ErrTransferNotAllowed)
	}

	token, err := v.store.GetToken(collection, tokenID, dbTx)
	if err != nil {
		return err
	}

	if token.Owner != caller {
		return fmt.Errorf("%w: token %d of %s", ErrNotOwner, tokenID, collection)
	}

	return v.store.UpdateTokenOwner(collection, tokenID, to, dbTx)
}

// TransferToCustody moves the owner's token into bridge custody. Operators only.
func (v *Vault) TransferToCustody(caller types.Address, owner types.Address,
	collection types.Address, tokenID uint64, dbTx *bolt.Tx) error {
	if !v.isOperator(caller) {
		return fmt.Errorf("%w: %s cannot move assets into custody", ErrTransferNotAllowed, caller)
	}

	token, err := v.store.GetToken(collection, tokenID, dbTx)
	if err != nil {
		return err
	}

	if token.Owner != owner {
		return fmt.Errorf("%w: token %d of %s", ErrNotOwner, tokenID, collection)
	}

	return v.store.UpdateTokenOwner(collection, tokenID, v.custody, dbTx)
}

// ReleaseFromCustody returns a custody held token to the given account. Operators only.
func (v *Vault) ReleaseFromCustody(caller types.Address, collection types.Address,
	tokenID uint64, to types.Address, dbTx *bolt.Tx) error {
	if !v.isOperator(caller) {
		return fmt.Errorf("%w: %s cannot release custody", ErrTransferNotAllowed, caller)
	}

	token, err := v.store.GetToken(collection, tokenID, dbTx)
	if err != nil {
		return err
	}

	if token.Owner != v.custody {
		return fmt.Errorf("%w: token %d of %s is not custody held", ErrNotOwner, tokenID, collection)
	}

	return v.store.UpdateTokenOwner(collection, tokenID, to, dbTx)
}

// FeeBalanceOf returns the fee token balance of the account
func (v *Vault) FeeBalanceOf(account types.Address, dbTx *bolt.Tx) (*big.Int, error) {
	return v.store.GetFeeBalance(account, dbTx)
}

// CreditFee increases the fee token balance of the account. Operators only,
// used for genesis seeding and refunds.
func (v *Vault) CreditFee(caller types.Address, account types.Address, amount *big.Int, dbTx *bolt.Tx) error {
	if !v.isOperator(caller) {
		return fmt.Errorf("%w: %s cannot credit fee balances", ErrTransferNotAllowed, caller)
	}

	balance, err := v.store.GetFeeBalance(account, dbTx)
	if err != nil {
		return err
	}

	return v.store.SetFeeBalance(account, new(big.Int).Add(balance, amount), dbTx)
}

// TransferFee moves fee tokens between accounts. The caller must be the payer
// or an operator pulling a validated fee.
func (v *Vault) TransferFee(caller types.Address, from, to types.Address, amount *big.Int, dbTx *bolt.Tx) error {
	if caller != from && !v.isOperator(caller) {
		return fmt.Errorf("%w: %s cannot spend fee balance of %s", ErrTransferNotAllowed, caller, from)
	}

	fromBalance, err := v.store.GetFeeBalance(from, dbTx)
	if err != nil {
		return err
	}

	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s, needs %s", ErrInsufficientBalance, fromBalance, amount)
	}

	toBalance, err := v.store.GetFeeBalance(to, dbTx)
	if err != nil {
		return err
	}

	if err := v.store.SetFeeBalance(from, new(big.Int).Sub(fromBalance, amount), dbTx); err != nil {
		return err
	}

	return v.store.SetFeeBalance(to, new(big.Int).Add(toBalance, amount), dbTx)
}
