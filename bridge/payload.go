package bridge

import (
	"fmt"
	"math/big"

	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"

	"github.com/omniward/omniward/types"
)

var (
	payloadABIType = abi.MustNewType(
		"tuple(address owner, bytes originRef, bytes metadata)")

	originRefABIType = abi.MustNewType(
		"tuple(uint256 chainId, address token, uint256 tokenId)")

	metadataABIType = abi.MustNewType(
		"tuple(string name, string symbol, string uri)")
)

// Payload is the decoded cross-chain transfer payload. The wire form nests
// the origin reference and the collection metadata as opaque byte fields so
// receivers that only route on the owner do not pay for the inner decode.
type Payload struct {
	// Owner receives the token on the destination chain
	Owner types.Address

	// OriginChainID and OriginAddress identify the canonical collection,
	// TokenID the token within it
	OriginChainID uint64
	OriginAddress types.Address
	TokenID       uint64

	// collection metadata carried for wrapped deployment
	Name   string
	Symbol string
	URI    string
}

// EncodeAbi encodes the payload into its nested ABI wire form
func (p *Payload) EncodeAbi() ([]byte, error) {
	originRef, err := originRefABIType.Encode(map[string]interface{}{
		"chainId": new(big.Int).SetUint64(p.OriginChainID),
		"token":   ethgo.Address(p.OriginAddress),
		"tokenId": new(big.Int).SetUint64(p.TokenID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode origin reference: %w", err)
	}

	metadata, err := metadataABIType.Encode(map[string]interface{}{
		"name":   p.Name,
		"symbol": p.Symbol,
		"uri":    p.URI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	return payloadABIType.Encode(map[string]interface{}{
		"owner":     ethgo.Address(p.Owner),
		"originRef": originRef,
		"metadata":  metadata,
	})
}

// DecodeAbi decodes the nested ABI wire form into the payload
func (p *Payload) DecodeAbi(data []byte) error {
	rawPayload, err := payloadABIType.Decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	payloadMap, isOk := rawPayload.(map[string]interface{})
	if !isOk {
		return fmt.Errorf("invalid payload data")
	}

	owner, isOk := payloadMap["owner"].(ethgo.Address)
	if !isOk {
		return fmt.Errorf("invalid payload owner field")
	}

	originRefRaw, isOk := payloadMap["originRef"].([]byte)
	if !isOk {
		return fmt.Errorf("invalid payload origin reference field")
	}

	metadataRaw, isOk := payloadMap["metadata"].([]byte)
	if !isOk {
		return fmt.Errorf("invalid payload metadata field")
	}

	rawOriginRef, err := originRefABIType.Decode(originRefRaw)
	if err != nil {
		return fmt.Errorf("failed to decode origin reference: %w", err)
	}

	originRefMap, isOk := rawOriginRef.(map[string]interface{})
	if !isOk {
		return fmt.Errorf("invalid origin reference data")
	}

	chainID, isOk := originRefMap["chainId"].(*big.Int)
	if !isOk {
		return fmt.Errorf("invalid origin reference chain id field")
	}

	token, isOk := originRefMap["token"].(ethgo.Address)
	if !isOk {
		return fmt.Errorf("invalid origin reference token field")
	}

	tokenID, isOk := originRefMap["tokenId"].(*big.Int)
	if !isOk {
		return fmt.Errorf("invalid origin reference token id field")
	}

	rawMetadata, err := metadataABIType.Decode(metadataRaw)
	if err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}

	metadataMap, isOk := rawMetadata.(map[string]interface{})
	if !isOk {
		return fmt.Errorf("invalid metadata data")
	}

	name, isOk := metadataMap["name"].(string)
	if !isOk {
		return fmt.Errorf("invalid metadata name field")
	}

	symbol, isOk := metadataMap["symbol"].(string)
	if !isOk {
		return fmt.Errorf("invalid metadata symbol field")
	}

	uri, isOk := metadataMap["uri"].(string)
	if !isOk {
		return fmt.Errorf("invalid metadata uri field")
	}

	*p = Payload{
		Owner:         types.Address(owner),
		OriginChainID: chainID.Uint64(),
		OriginAddress: types.Address(token),
		TokenID:       tokenID.Uint64(),
		Name:          name,
		Symbol:        symbol,
		URI:           uri,
	}

	return nil
}
