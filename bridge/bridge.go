package bridge

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	bolt "go.etcd.io/bbolt"

	"github.com/omniward/omniward/accessmgmt"
	"github.com/omniward/omniward/router"
	"github.com/omniward/omniward/store"
	"github.com/omniward/omniward/types"
	"github.com/omniward/omniward/vault"
)

// MessageSender is the outbound capability the bridge needs from the adapter.
// The concrete adapter is bound after construction to break the mutual
// dependency between the two components.
type MessageSender interface {
	// GetFee quotes the delivery fee for the message
	GetFee(msg *router.Message) (*big.Int, error)

	// SendMessage dispatches the message, the fee was supplied in native
	// value by the original caller
	SendMessage(caller types.Address, msg *router.Message, fee *big.Int, dbTx *bolt.Tx) error

	// SendMessageUsingFeeToken dispatches the message after pulling the fee
	// amount from the payer's fee token balance
	SendMessageUsingFeeToken(caller types.Address, payer types.Address,
		msg *router.Message, amount *big.Int, dbTx *bolt.Tx) error
}

// Config holds the static identity of the bridge instance
type Config struct {
	// ChainID is the EVM chain id of the local chain
	ChainID uint64

	// Address is the account the bridge acts as. It is the custody account
	// of the vault and the caller identity used against the adapter.
	Address types.Address
}

// Bridge is the cross-chain transfer core. It owns the route table, decides
// custody against burn/mint per transfer and hands wire payloads to the
// adapter for delivery.
type Bridge struct {
	logger hclog.Logger
	config *Config

	state  *store.State
	access *accessmgmt.Manager
	vault  *vault.Vault
	sender MessageSender
}

// SendResult describes a dispatched outbound transfer
type SendResult struct {
	ToChainID uint64        `json:"toChainId"`
	Adapter   types.Address `json:"adapter"`
	Fee       *big.Int      `json:"fee"`
	Payload   *Payload      `json:"payload"`
}

func NewBridge(logger hclog.Logger, state *store.State,
	access *accessmgmt.Manager, assetVault *vault.Vault, config *Config) *Bridge {
	return &Bridge{
		logger: logger.Named("bridge"),
		config: config,
		state:  state,
		access: access,
		vault:  assetVault,
	}
}

// SetMessageSender binds the outbound adapter. Must be called before the
// first send, wiring happens once at startup.
func (b *Bridge) SetMessageSender(sender MessageSender) {
	b.sender = sender
}

// Address returns the account the bridge acts as
func (b *Bridge) Address() types.Address {
	return b.config.Address
}

// ChainID returns the EVM chain id of the local chain
func (b *Bridge) ChainID() uint64 {
	return b.config.ChainID
}

// SetChainSetting creates or replaces the route entry for (chain, ramp).
// Restricted through the access manager.
func (b *Bridge) SetChainSetting(caller types.Address, setting *store.ChainSetting) error {
	if err := b.access.Check(caller, b.config.Address, accessmgmt.FuncSetChainSetting); err != nil {
		return err
	}

	return b.state.Update(func(tx *bolt.Tx) error {
		previous, err := b.state.BridgeStore.GetChainSetting(setting.EvmChainID, setting.Ramp, tx)
		if err != nil && !errors.Is(err, store.ErrSettingNotFound) {
			return err
		}

		if err := b.state.BridgeStore.InsertChainSetting(setting, tx); err != nil {
			return err
		}

		b.logger.Info("chain setting updated",
			"chain", setting.EvmChainID,
			"routerChain", setting.RouterChainID,
			"ramp", setting.Ramp,
			"adapter", setting.Adapter,
			"enabled", setting.Enabled)

		event := struct {
			Previous *store.ChainSetting `json:"previous,omitempty"`
			Current  *store.ChainSetting `json:"current"`
		}{previous, setting}

		return b.state.AppendAuditEvent("EvmChainSettingsSet", event, tx)
	})
}

// GetChainSetting returns the route entry for (chain, ramp), disabled entries
// included. Route gating applies on use, not on read.
func (b *Bridge) GetChainSetting(evmChainID uint64, ramp store.RampType) (*store.ChainSetting, error) {
	setting, err := b.state.BridgeStore.GetChainSetting(evmChainID, ramp, nil)
	if errors.Is(err, store.ErrSettingNotFound) {
		return nil, fmt.Errorf("%w: chain %d %s", ErrAdapterNotFound, evmChainID, ramp)
	}

	return setting, err
}

// ChainSettings returns all route entries
func (b *Bridge) ChainSettings() ([]*store.ChainSetting, error) {
	return b.state.BridgeStore.ChainSettings()
}

// GetWrappedAsset returns the wrapped registry record for an origin collection
func (b *Bridge) GetWrappedAsset(originChainID uint64, origin types.Address) (*store.WrappedAssetRecord, error) {
	return b.state.BridgeStore.GetWrappedAsset(originChainID, origin, nil)
}

// resolveOnRamp loads and gates the outbound route entry
func (b *Bridge) resolveOnRamp(toChainID uint64, dbTx *bolt.Tx) (*store.ChainSetting, error) {
	setting, err := b.state.BridgeStore.GetChainSetting(toChainID, store.OnRamp, dbTx)
	if err != nil {
		if errors.Is(err, store.ErrSettingNotFound) {
			return nil, fmt.Errorf("%w: chain %d %s", ErrAdapterNotFound, toChainID, store.OnRamp)
		}

		return nil, err
	}

	if !setting.Enabled {
		return nil, fmt.Errorf("%w: chain %d %s", ErrAdapterNotEnabled, toChainID, store.OnRamp)
	}

	return setting, nil
}

// buildPayload assembles the outbound payload for the token. A token minted by
// a previous inbound wrap is referenced by its recorded origin, a native token
// by the local chain.
func (b *Bridge) buildPayload(owner types.Address, collection types.Address,
	tokenID uint64, dbTx *bolt.Tx) (*Payload, bool, error) {
	payload := &Payload{
		Owner:   owner,
		TokenID: tokenID,
	}

	isWrapped := false

	record, err := b.state.BridgeStore.GetWrappedOrigin(collection, dbTx)

	switch {
	case err == nil:
		payload.OriginChainID = record.OriginChainID
		payload.OriginAddress = record.OriginAddress
		isWrapped = true
	case errors.Is(err, store.ErrWrappedAssetNotFound):
		payload.OriginChainID = b.config.ChainID
		payload.OriginAddress = collection
	default:
		return nil, false, err
	}

	coll, err := b.vault.GetCollection(collection, dbTx)
	if err != nil {
		return nil, false, err
	}

	token, err := b.vault.GetToken(collection, tokenID, dbTx)
	if err != nil {
		return nil, false, err
	}

	payload.Name = coll.Name
	payload.Symbol = coll.Symbol
	payload.URI = token.URI

	return payload, isWrapped, nil
}

// lockOrBurn takes the token away from the sender. A wrapped token is burned,
// its canonical counterpart is custody held on the origin chain. A native
// token moves into bridge custody.
func (b *Bridge) lockOrBurn(caller types.Address, collection types.Address,
	tokenID uint64, isWrapped bool, dbTx *bolt.Tx) error {
	if isWrapped {
		owner, err := b.vault.OwnerOf(collection, tokenID, dbTx)
		if err != nil {
			return err
		}

		if owner != caller {
			return fmt.Errorf("%w: token %d of %s", ErrNotTokenOwner, tokenID, collection)
		}

		return b.vault.Burn(b.config.Address, collection, tokenID, dbTx)
	}

	return b.vault.TransferToCustody(b.config.Address, caller, collection, tokenID, dbTx)
}

// SendERC721 bridges the caller's token to the target chain, delivery fee
// paid in native value. The route lookup, fee validation, custody change and
// dispatch commit or roll back as one unit.
func (b *Bridge) SendERC721(caller types.Address, toChainID uint64,
	collection types.Address, tokenID uint64, fee *big.Int) (*SendResult, error) {
	var result *SendResult

	err := b.state.Update(func(tx *bolt.Tx) error {
		setting, err := b.resolveOnRamp(toChainID, tx)
		if err != nil {
			return err
		}

		payload, isWrapped, err := b.buildPayload(caller, collection, tokenID, tx)
		if err != nil {
			return err
		}

		data, err := payload.EncodeAbi()
		if err != nil {
			return err
		}

		msg := &router.Message{
			ToChain:  setting.RouterChainID,
			Receiver: setting.Adapter,
			Data:     data,
			GasLimit: setting.GasLimit,
		}

		quoted, err := b.sender.GetFee(msg)
		if err != nil {
			return err
		}

		if fee.Cmp(quoted) < 0 {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFee, fee, quoted)
		}

		if err := b.lockOrBurn(caller, collection, tokenID, isWrapped, tx); err != nil {
			return err
		}

		if err := b.sender.SendMessage(b.config.Address, msg, fee, tx); err != nil {
			return err
		}

		result = &SendResult{
			ToChainID: toChainID,
			Adapter:   setting.Adapter,
			Fee:       fee,
			Payload:   payload,
		}

		return b.state.AppendAuditEvent("ERC721Sent", result, tx)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncrCounter([]string{"bridge", "sent"}, 1)
	b.logger.Info("token bridged out",
		"to", toChainID, "collection", collection, "token", tokenID, "owner", caller)

	return result, nil
}

// SendERC721UsingFeeToken bridges the caller's token to the target chain,
// delivery fee pulled from the caller's fee token balance at the quoted
// amount. An insufficient balance aborts the whole transfer.
func (b *Bridge) SendERC721UsingFeeToken(caller types.Address, toChainID uint64,
	collection types.Address, tokenID uint64) (*SendResult, error) {
	var result *SendResult

	err := b.state.Update(func(tx *bolt.Tx) error {
		setting, err := b.resolveOnRamp(toChainID, tx)
		if err != nil {
			return err
		}

		payload, isWrapped, err := b.buildPayload(caller, collection, tokenID, tx)
		if err != nil {
			return err
		}

		data, err := payload.EncodeAbi()
		if err != nil {
			return err
		}

		msg := &router.Message{
			ToChain:  setting.RouterChainID,
			Receiver: setting.Adapter,
			Data:     data,
			GasLimit: setting.GasLimit,
		}

		quoted, err := b.sender.GetFee(msg)
		if err != nil {
			return err
		}

		if err := b.lockOrBurn(caller, collection, tokenID, isWrapped, tx); err != nil {
			return err
		}

		if err := b.sender.SendMessageUsingFeeToken(b.config.Address, caller, msg, quoted, tx); err != nil {
			return err
		}

		result = &SendResult{
			ToChainID: toChainID,
			Adapter:   setting.Adapter,
			Fee:       quoted,
			Payload:   payload,
		}

		return b.state.AppendAuditEvent("ERC721Sent", result, tx)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncrCounter([]string{"bridge", "sent"}, 1)
	b.logger.Info("token bridged out",
		"to", toChainID, "collection", collection, "token", tokenID, "owner", caller)

	return result, nil
}

// ReceiveERC721 applies an inbound transfer. The caller must hold the receive
// role, deliveries arrive through the adapter only. A token coming home is
// released from custody, a foreign token mints on its wrapped collection,
// deployed on first use.
func (b *Bridge) ReceiveERC721(caller types.Address, fromChain uint64,
	sender types.Address, data []byte, dbTx *bolt.Tx) error {
	if err := b.access.Check(caller, b.config.Address, accessmgmt.FuncReceiveERC721); err != nil {
		return err
	}

	receiveFn := func(tx *bolt.Tx) error {
		setting, err := b.state.BridgeStore.GetChainSettingByRouterChain(fromChain, store.OffRamp, tx)
		if err != nil {
			if errors.Is(err, store.ErrSettingNotFound) {
				return fmt.Errorf("%w: router chain %d %s", ErrAdapterNotFound, fromChain, store.OffRamp)
			}

			return err
		}

		if !setting.Enabled {
			return fmt.Errorf("%w: router chain %d %s", ErrAdapterNotEnabled, fromChain, store.OffRamp)
		}

		if sender != setting.Adapter {
			return fmt.Errorf("%w: unexpected sender %s on router chain %d",
				ErrAdapterNotFound, sender, fromChain)
		}

		payload := &Payload{}
		if err := payload.DecodeAbi(data); err != nil {
			return err
		}

		if payload.OriginChainID == b.config.ChainID {
			// coming home, the canonical token is custody held
			if err := b.vault.ReleaseFromCustody(b.config.Address,
				payload.OriginAddress, payload.TokenID, payload.Owner, tx); err != nil {
				return err
			}
		} else {
			if err := b.mintWrapped(payload, tx); err != nil {
				return err
			}
		}

		event := struct {
			FromChainID uint64        `json:"fromChainId"`
			Sender      types.Address `json:"sender"`
			Payload     *Payload      `json:"payload"`
		}{setting.EvmChainID, sender, payload}

		return b.state.AppendAuditEvent("ERC721Received", event, tx)
	}

	var err error
	if dbTx == nil {
		err = b.state.Update(receiveFn)
	} else {
		err = receiveFn(dbTx)
	}

	if err != nil {
		return err
	}

	metrics.IncrCounter([]string{"bridge", "received"}, 1)

	return nil
}

// mintWrapped mints the payload's token on the wrapped counterpart of its
// origin collection, creating the collection on first use
func (b *Bridge) mintWrapped(payload *Payload, tx *bolt.Tx) error {
	record, created, err := b.state.BridgeStore.InsertWrappedAsset(&store.WrappedAssetRecord{
		OriginChainID: payload.OriginChainID,
		OriginAddress: payload.OriginAddress,
		WrappedAddress: WrappedAddress(
			payload.OriginChainID, payload.OriginAddress),
	}, tx)
	if err != nil {
		return err
	}

	if created {
		if err := b.vault.CreateCollection(b.config.Address, record.WrappedAddress,
			wrappedName(payload.Name), wrappedSymbol(payload.Symbol), tx); err != nil {
			return err
		}

		b.logger.Info("wrapped collection created",
			"origin", payload.OriginAddress,
			"originChain", payload.OriginChainID,
			"wrapped", record.WrappedAddress)

		if err := b.state.AppendAuditEvent("WrappedAssetCreated", record, tx); err != nil {
			return err
		}
	}

	return b.vault.Mint(b.config.Address, record.WrappedAddress,
		payload.TokenID, payload.Owner, payload.URI, tx)
}
