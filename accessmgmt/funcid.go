package accessmgmt

// FuncID enumerates the privileged entry points that can be bound to a role.
// Bindings are resolved through this enum at call time, there is no selector
// introspection.
type FuncID uint8

const (
	// FuncSetChainSetting guards Bridge.SetChainSetting
	FuncSetChainSetting FuncID = iota + 1
	// FuncReceiveERC721 guards Bridge.ReceiveERC721
	FuncReceiveERC721
	// FuncSendMessage guards Adapter.SendMessage in both fee modes
	FuncSendMessage
	// FuncDeliverMessage guards Adapter.DeliverMessage
	FuncDeliverMessage
	// FuncExecuteMessages guards Adapter.ExecuteMessages
	FuncExecuteMessages
	// FuncSetUpdateInterval guards Adapter.SetUpdateInterval
	FuncSetUpdateInterval
	// FuncSetExecutionLimit guards Adapter.SetDefaultExecutionLimit
	FuncSetExecutionLimit
)

func (f FuncID) String() string {
	switch f {
	case FuncSetChainSetting:
		return "setChainSetting"
	case FuncReceiveERC721:
		return "receiveERC721"
	case FuncSendMessage:
		return "sendMessage"
	case FuncDeliverMessage:
		return "deliverMessage"
	case FuncExecuteMessages:
		return "executeMessages"
	case FuncSetUpdateInterval:
		return "setUpdateInterval"
	case FuncSetExecutionLimit:
		return "setExecutionLimit"
	default:
		return "unknown"
	}
}
